package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func gridPoints() []r3.Vec {
	return []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 10, Y: 10, Z: 10},
	}
}

func TestNewGridDegenerateFallsBackToUnitCellSize(t *testing.T) {
	g := NewGrid(nil, 8)
	require.Equal(t, 1.0, g.CellSize())
}

func TestKNearestReturnsClosestFirst(t *testing.T) {
	pts := gridPoints()
	g := NewGrid(pts, 4)
	nearest := g.KNearest(pts[0], 2, 0)
	require.Len(t, nearest, 2)
	require.Contains(t, nearest, 1)
	require.Contains(t, nearest, 2)
	require.NotContains(t, nearest, 3) // far outlier excluded by k=2
}

func TestKNearestExcludesSelf(t *testing.T) {
	pts := gridPoints()
	g := NewGrid(pts, 4)
	nearest := g.KNearest(pts[0], 10, 0)
	require.NotContains(t, nearest, 0)
}

func TestKNearestZeroKReturnsNil(t *testing.T) {
	pts := gridPoints()
	g := NewGrid(pts, 4)
	require.Nil(t, g.KNearest(pts[0], 0, -1))
}

func TestInsertGrowsPointsSlice(t *testing.T) {
	g := NewGrid(gridPoints(), 4)
	g.Insert(10, r3.Vec{X: 5, Y: 5, Z: 5})
	nearest := g.KNearest(r3.Vec{X: 5, Y: 5, Z: 5}, 1, 10)
	require.NotContains(t, nearest, 10)
}

func TestCellSizeForSinglePointCloudFallsBack(t *testing.T) {
	size := cellSizeFor([]r3.Vec{{X: 1, Y: 1, Z: 1}}, 8)
	require.Equal(t, 1.0, size)
}
