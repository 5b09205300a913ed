package off

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePlainOFF(t *testing.T) {
	data := "OFF\n3 1 0\n0 0 0\n1 0 0\n0 1 0\n3 0 1 2\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 3, c.PointCount())
	require.Equal(t, []uint32{0, 1, 2}, c.Indices)
	require.False(t, c.HasColor)
}

func TestDecodeCountsOnMagicLine(t *testing.T) {
	data := "OFF 3 1 0\n0 0 0\n1 0 0\n0 1 0\n3 0 1 2\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 3, c.PointCount())
}

func TestDecodeCOFFColor(t *testing.T) {
	data := "COFF\n2 0 0\n0 0 0 255 0 0\n1 0 0 0 255 0\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.True(t, c.HasColor)
	require.InDelta(t, 1.0, c.Colors[0], 1e-6)
}

func TestDecodeNOFFDiscardsNormals(t *testing.T) {
	data := "NOFF\n1 0 0\n0 0 0 0 1 0\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 1, c.PointCount())
}

func TestDecodeUnrecognizedMagicFails(t *testing.T) {
	_, err := Decode([]byte("XYZOFF\n1 0 0\n0 0 0\n"))
	require.Error(t, err)
}

func TestDecodeQuadFaceFanTriangulated(t *testing.T) {
	data := "OFF\n4 1 0\n0 0 0\n1 0 0\n1 1 0\n0 1 0\n4 0 1 2 3\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Len(t, c.Indices, 6)
}

func TestDecodeSkipsComments(t *testing.T) {
	data := "OFF\n# a comment\n3 1 0\n0 0 0\n1 0 0\n0 1 0\n3 0 1 2\n"
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 3, c.PointCount())
}
