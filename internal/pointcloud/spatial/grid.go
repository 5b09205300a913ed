// Package spatial implements the Uniform Grid spatial index and the PCA
// Normal Estimator (spec.md §4.6), grounded on the analytic closed-form
// eigensolve style used for oriented-bounding-box estimation elsewhere in
// this codebase's lineage.
package spatial

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxRingRadius bounds how far kNearest expands its cell search before
// giving up and returning whatever it has found.
const maxRingRadius = 5

type cellCoord struct{ x, y, z int }

// Grid is a uniform spatial hash over a fixed set of points, sized so the
// expected cell occupancy approximates the caller's desired neighbor
// count k.
type Grid struct {
	cellSize float64
	cells    map[cellCoord][]int
	points   []r3.Vec
}

// NewGrid sizes a grid for points using cellSize = extent / cbrt(n/k),
// falling back to 1.0 when there are no points, k is not positive, or the
// cloud has zero extent.
func NewGrid(points []r3.Vec, k int) *Grid {
	g := &Grid{cells: make(map[cellCoord][]int, len(points)), points: points}
	g.cellSize = cellSizeFor(points, k)
	for i, p := range points {
		c := g.cellOf(p)
		g.cells[c] = append(g.cells[c], i)
	}
	return g
}

func cellSizeFor(points []r3.Vec, k int) float64 {
	n := len(points)
	if n == 0 || k <= 0 {
		return 1.0
	}
	min, max := points[0], points[0]
	for _, p := range points[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.Z < min.Z {
			min.Z = p.Z
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
		if p.Z > max.Z {
			max.Z = p.Z
		}
	}
	extent := math.Max(max.X-min.X, math.Max(max.Y-min.Y, max.Z-min.Z))
	if extent <= 0 {
		return 1.0
	}
	ratio := float64(n) / float64(k)
	if ratio <= 0 {
		return 1.0
	}
	size := extent / math.Cbrt(ratio)
	if size <= 0 {
		return 1.0
	}
	return size
}

// CellSize returns the grid's cell edge length, used by callers (the
// reconstructor) to derive a default maxEdgeLength.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

func (g *Grid) cellOf(p r3.Vec) cellCoord {
	return cellCoord{
		x: int(math.Floor(p.X / g.cellSize)),
		y: int(math.Floor(p.Y / g.cellSize)),
		z: int(math.Floor(p.Z / g.cellSize)),
	}
}

// Insert adds point index i at position p to the grid. Grids built via
// NewGrid already contain every point; Insert exists for callers that
// build a grid incrementally (e.g. incremental LOD tiles).
func (g *Grid) Insert(i int, p r3.Vec) {
	c := g.cellOf(p)
	g.cells[c] = append(g.cells[c], i)
	if i >= len(g.points) {
		grown := make([]r3.Vec, i+1)
		copy(grown, g.points)
		g.points = grown
	}
	g.points[i] = p
}

type neighborDist struct {
	idx int
	d2  float64
}

// KNearest returns up to k point indices nearest to p (excluding the
// index in exclude, typically p's own index), sorted ascending by
// squared distance. It expands its cell search ring by ring, up to
// maxRingRadius cells out, and returns whatever it found if the search
// space is exhausted first.
func (g *Grid) KNearest(p r3.Vec, k int, exclude int) []int {
	if k <= 0 {
		return nil
	}
	center := g.cellOf(p)
	var candidates []neighborDist
	seen := make(map[int]bool)

	for radius := 0; radius <= maxRingRadius; radius++ {
		g.collectRing(center, radius, p, exclude, seen, &candidates)
		if len(candidates) >= k && radius >= 1 {
			// one extra ring beyond first hit avoids missing a closer
			// point that sits just across a cell boundary.
			break
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].d2 < candidates[j].d2 })
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]int, len(candidates))
	for i, c := range candidates {
		out[i] = c.idx
	}
	return out
}

func (g *Grid) collectRing(center cellCoord, radius int, p r3.Vec, exclude int, seen map[int]bool, out *[]neighborDist) {
	if radius == 0 {
		g.collectCell(center, p, exclude, seen, out)
		return
	}
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			for dz := -radius; dz <= radius; dz++ {
				if abs(dx) != radius && abs(dy) != radius && abs(dz) != radius {
					continue // interior cell, already visited at a smaller radius
				}
				g.collectCell(cellCoord{center.x + dx, center.y + dy, center.z + dz}, p, exclude, seen, out)
			}
		}
	}
}

func (g *Grid) collectCell(c cellCoord, p r3.Vec, exclude int, seen map[int]bool, out *[]neighborDist) {
	for _, idx := range g.cells[c] {
		if idx == exclude || seen[idx] {
			continue
		}
		seen[idx] = true
		q := g.points[idx]
		dx, dy, dz := q.X-p.X, q.Y-p.Y, q.Z-p.Z
		*out = append(*out, neighborDist{idx: idx, d2: dx*dx + dy*dy + dz*dz})
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
