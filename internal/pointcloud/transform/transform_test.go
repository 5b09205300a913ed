package transform

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
)

func fourPointCloud() *cloud.Cloud {
	return &cloud.Cloud{
		Positions:       []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0},
		Colors:          []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		Intensities:     []float32{0.1, 0.2, 0.3, 0.4},
		Classifications: []float32{0, 0, 0, 0},
	}
}

func TestTranslateShiftsAllPointsAndCenter(t *testing.T) {
	c := fourPointCloud()
	Translate(c, r3.Vec{X: 1, Y: 2, Z: 3})
	p := c.Position(0)
	require.InDelta(t, 1, p.X, 1e-6)
	require.InDelta(t, 2, p.Y, 1e-6)
	require.InDelta(t, 3, p.Z, 1e-6)
	require.InDelta(t, -1, c.Center.X, 1e-6)
}

func TestScaleAboutCentroid(t *testing.T) {
	c := fourPointCloud()
	before := centroidOf(c)
	Scale(c, 2.0)
	after := centroidOf(c)
	require.InDelta(t, before.X, after.X, 1e-5)
	require.InDelta(t, before.Y, after.Y, 1e-5)
}

func TestScaleNonPositiveIsNoop(t *testing.T) {
	c := fourPointCloud()
	orig := append([]float32{}, c.Positions...)
	Scale(c, 0)
	require.Equal(t, orig, c.Positions)
	Scale(c, -1)
	require.Equal(t, orig, c.Positions)
}

func TestThinClampsAndKeepsAtLeastOne(t *testing.T) {
	c := fourPointCloud()
	Thin(c, 0)
	require.Equal(t, 1, c.PointCount())
}

func TestThinNoopWhenKeepingEverything(t *testing.T) {
	c := fourPointCloud()
	Thin(c, 100)
	require.Equal(t, 4, c.PointCount())
}

func TestThinRefusesMeshTopology(t *testing.T) {
	c := fourPointCloud()
	c.Indices = []uint32{0, 1, 2}
	Thin(c, 25)
	require.Equal(t, 4, c.PointCount())
}

func TestThinKeepsArraysInLockstep(t *testing.T) {
	c := fourPointCloud()
	Thin(c, 50)
	require.NoError(t, c.Validate())
	require.Equal(t, 2, c.PointCount())
}

func TestDeleteCompactsSelectedPoints(t *testing.T) {
	c := fourPointCloud()
	c.Selected = []bool{false, true, false, true}
	empty := Delete(c)
	require.False(t, empty)
	require.Equal(t, 2, c.PointCount())
	require.NoError(t, c.Validate())
}

func TestDeleteAllPointsReportsEmpty(t *testing.T) {
	c := fourPointCloud()
	c.Selected = []bool{true, true, true, true}
	empty := Delete(c)
	require.True(t, empty)
	require.Equal(t, 0, c.PointCount())
}

func TestDeleteDropsFacesReferencingDeletedVertex(t *testing.T) {
	c := fourPointCloud()
	c.Indices = []uint32{0, 1, 2, 1, 2, 3}
	c.Selected = []bool{false, false, false, true} // delete vertex 3
	Delete(c)
	require.Equal(t, 3, c.PointCount())
	require.Equal(t, []uint32{0, 1, 2}, c.Indices) // second face referenced vertex 3
}

func TestDeleteWithoutSelectionIsNoop(t *testing.T) {
	c := fourPointCloud()
	empty := Delete(c)
	require.False(t, empty)
	require.Equal(t, 4, c.PointCount())
}
