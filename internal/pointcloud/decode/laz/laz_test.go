package laz

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const headerSize = 227

func buildMinimalLAS(t *testing.T, raws [][3]int32) []byte {
	t.Helper()
	const recordLength = 20 // point format 0
	data := make([]byte, headerSize+len(raws)*recordLength)

	copy(data[0:4], "LASF")
	data[24] = 1
	data[25] = 2
	binary.LittleEndian.PutUint16(data[94:], headerSize)
	binary.LittleEndian.PutUint32(data[96:], headerSize)
	data[104] = 0
	binary.LittleEndian.PutUint16(data[105:], recordLength)
	binary.LittleEndian.PutUint32(data[107:], uint32(len(raws)))

	putF64 := func(off int, v float64) {
		binary.LittleEndian.PutUint64(data[off:], math.Float64bits(v))
	}
	putF64(131, 1)
	putF64(139, 1)
	putF64(147, 1)
	putF64(155, 0)
	putF64(163, 0)
	putF64(171, 0)

	for i, raw := range raws {
		rec := headerSize + i*recordLength
		binary.LittleEndian.PutUint32(data[rec:], uint32(raw[0]))
		binary.LittleEndian.PutUint32(data[rec+4:], uint32(raw[1]))
		binary.LittleEndian.PutUint32(data[rec+8:], uint32(raw[2]))
	}
	return data
}

type fakeDecompressor struct {
	out []byte
	err error
}

func (f fakeDecompressor) Decompress(data []byte) ([]byte, error) {
	return f.out, f.err
}

func TestDecodeDelegatesToDecompressor(t *testing.T) {
	las := buildMinimalLAS(t, [][3]int32{{0, 0, 0}, {1, 0, 0}})
	c, err := Decode([]byte("fake laz bytes"), fakeDecompressor{out: las})
	require.NoError(t, err)
	require.Equal(t, 2, c.PointCount())
}

func TestDecodeNilDecompressorFails(t *testing.T) {
	_, err := Decode([]byte("fake"), nil)
	require.Error(t, err)
}

func TestDecodePropagatesDecompressError(t *testing.T) {
	_, err := Decode([]byte("fake"), fakeDecompressor{err: errors.New("boom")})
	require.Error(t, err)
}
