package cloud

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func simpleCloud() *Cloud {
	return &Cloud{
		Positions:       []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Colors:          []float32{1, 1, 1, 0.5, 0.5, 0.5, 0, 0, 0},
		Intensities:     []float32{0.1, 0.2, 0.3},
		Classifications: []float32{2, 2, 5},
		Header:          Header{MinX: -1, MaxX: 1, MinY: -1, MaxY: 1, MinZ: -1, MaxZ: 1, Source: "test"},
	}
}

func TestPointCount(t *testing.T) {
	c := simpleCloud()
	require.Equal(t, 3, c.PointCount())
}

func TestPosition(t *testing.T) {
	c := simpleCloud()
	p := c.Position(1)
	require.Equal(t, 1.0, p.X)
	require.Equal(t, 0.0, p.Y)
	require.Equal(t, 0.0, p.Z)
}

func TestBounds(t *testing.T) {
	c := simpleCloud()
	min, max := c.Bounds()
	require.Equal(t, 0.0, min.X)
	require.Equal(t, 1.0, max.X)
	require.Equal(t, 0.0, min.Y)
	require.Equal(t, 1.0, max.Y)
}

func TestBoundsEmpty(t *testing.T) {
	c := &Cloud{}
	min, max := c.Bounds()
	require.Equal(t, min, max)
}

func TestValidateOK(t *testing.T) {
	c := simpleCloud()
	require.NoError(t, c.Validate())
}

func TestValidateRejectsMismatchedLengths(t *testing.T) {
	c := simpleCloud()
	c.Intensities = c.Intensities[:2]
	require.Error(t, c.Validate())
}

func TestValidateRejectsOutOfRangeColor(t *testing.T) {
	c := simpleCloud()
	c.Colors[0] = 1.5
	require.Error(t, c.Validate())
}

func TestValidateRejectsOutOfRangeIndex(t *testing.T) {
	c := simpleCloud()
	c.Indices = []uint32{0, 1, 5}
	require.Error(t, c.Validate())
}

func TestValidateRejectsBadIndexCount(t *testing.T) {
	c := simpleCloud()
	c.Indices = []uint32{0, 1}
	require.Error(t, c.Validate())
}

func TestResetSelectionSizesToPointCount(t *testing.T) {
	c := simpleCloud()
	c.Selected = []bool{true, true, true}
	c.ResetSelection()
	require.Len(t, c.Selected, 3)
	for _, s := range c.Selected {
		require.False(t, s)
	}
}

func TestResetSelectionReusesCapacity(t *testing.T) {
	c := simpleCloud()
	c.Selected = make([]bool, 0, 10)
	c.ResetSelection()
	require.Len(t, c.Selected, 3)
}
