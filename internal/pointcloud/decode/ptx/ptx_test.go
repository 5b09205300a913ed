package ptx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func identityHeader(cols, rows int) string {
	h := ""
	h += itoaStr(cols) + "\n"
	h += itoaStr(rows) + "\n"
	h += "0 0 0\n"
	h += "1 0 0\n0 1 0\n0 0 1\n"
	h += "1 0 0 0\n0 1 0 0\n0 0 1 0\n0 0 0 1\n"
	return h
}

func itoaStr(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestDecodeSingleScanIdentity(t *testing.T) {
	data := identityHeader(2, 1) + "1 0 0 0.5\n2 0 0 0.8\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 2, c.PointCount())
	require.True(t, c.HasIntensity)
}

func TestDecodeSkipsScannerHoles(t *testing.T) {
	data := identityHeader(3, 1) + "0 0 0 0\n1 0 0 0.5\n0 0 0 0\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 1, c.PointCount())
}

func TestDecodeWithColorColumns(t *testing.T) {
	data := identityHeader(1, 1) + "1 0 0 0.5 255 0 0\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.True(t, c.HasColor)
	require.InDelta(t, 1.0, c.Colors[0], 1e-6)
}

func TestDecodeMultipleScans(t *testing.T) {
	scan := identityHeader(1, 1) + "1 0 0 0.5\n"
	data := scan + scan
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 2, c.PointCount())
}

func TestDecodeNoScansFails(t *testing.T) {
	_, err := Decode([]byte(""))
	require.Error(t, err)
}

func TestDecodeAppliesNonIdentityTransform(t *testing.T) {
	h := "1\n1\n0 0 0\n1 0 0\n0 1 0\n0 0 1\n1 0 0 10\n0 1 0 0\n0 0 1 0\n0 0 0 1\n"
	data := h + "1 0 0 0.5\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 1, c.PointCount())
}
