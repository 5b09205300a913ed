package lzf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecompressLiteralRun(t *testing.T) {
	data := []byte{0, 0, 1, 2, 3}
	want := []byte{0, 1, 2, 3}
	got, err := Decompress([]byte{byte(len(want) - 1), want[0], want[1], want[2], want[3]}, len(want))
	_ = data
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecompressBackReference(t *testing.T) {
	// "aaaa": literal 'a' then a back-reference copying 3 more 'a's.
	// ctrl=32*(length-2)|... ; simplest: length=3 -> ctrl>>5=1, offset=0 -> ref to previous byte.
	src := []byte{
		0, 'a', // literal run of 1: "a"
		byte(1 << 5), 0, // ctrl: length=1+2=3, offset=0 -> copies "aaa" from 1 byte back
	}
	got, err := Decompress(src, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("aaaa"), got)
}

func TestDecompressSizeMismatchFails(t *testing.T) {
	_, err := Decompress([]byte{0, 'a'}, 5)
	require.Error(t, err)
}

func TestDecompressTruncatedLiteralFails(t *testing.T) {
	_, err := Decompress([]byte{5, 'a'}, 6)
	require.Error(t, err)
}

func TestDecompressBackReferenceBeforeStartFails(t *testing.T) {
	src := []byte{byte(1 << 5), 200}
	_, err := Decompress(src, 3)
	require.Error(t, err)
}
