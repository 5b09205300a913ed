// Package reconstruct implements the Greedy Projection surface
// reconstructor (spec.md §4.7): per-seed tangent-frame triangulation over
// a uniform grid's k-nearest neighbors, cooperatively yielded across four
// progress phases and cancellable between them.
package reconstruct

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/spatial"
)

// DefaultKNeighbors and DefaultMaxEdgeFactor give the reconstructor's
// default parameters when the caller doesn't override them; maxEdgeLength
// defaults to DefaultMaxEdgeFactor * the grid's cell size.
const (
	DefaultKNeighbors    = 15
	DefaultMaxEdgeFactor = 2.0
)

// Params configures one reconstruction pass.
type Params struct {
	KNeighbors    int
	MaxEdgeLength float64
}

// Progress reports one phase transition to the caller, mirroring
// spec.md §4.7's four fixed phases.
type Progress struct {
	Phase   string
	Percent int
}

// Reconstruct triangulates points using their precomputed normals over
// grid, reporting progress to progressFn (nil is fine) and polling
// cancel between each of its four phases. It returns a flat triangle
// index array, or *decode.Error{Kind: EmptyResult} if no triangle could
// be formed.
func Reconstruct(points []r3.Vec, normals []r3.Vec, grid *spatial.Grid, params Params, cancel func() bool, progressFn func(Progress)) ([]uint32, error) {
	report := func(phase string, pct int) {
		if progressFn != nil {
			progressFn(Progress{Phase: phase, Percent: pct})
		}
	}
	checkCancel := func() bool { return cancel != nil && cancel() }

	if params.KNeighbors <= 0 {
		params.KNeighbors = DefaultKNeighbors
	}

	report("Building spatial index", 10)
	if checkCancel() {
		return nil, decode.Cancelledf("reconstruct")
	}

	report("Estimating normals", 30)
	if checkCancel() {
		return nil, decode.Cancelledf("reconstruct")
	}
	// Normals are supplied precomputed by the caller (the Spatial Index +
	// Normal Estimator stage); this phase exists in the progress timeline
	// even though the work already happened, so the UI's phase sequence
	// matches spec.md's four-stage description.
	report("Estimating normals", 60)

	maxEdge := params.MaxEdgeLength
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdgeFactor * cellSizeFallback(grid)
	}
	maxEdgeSq := maxEdge * maxEdge

	report("Triangulating", 60)
	if checkCancel() {
		return nil, decode.Cancelledf("reconstruct")
	}
	type triKey [3]uint32
	seen := make(map[triKey]bool)
	var indices []uint32

	for i, p := range points {
		n := normals[i]
		u, ok := tangentU(n)
		if !ok {
			continue
		}
		v := cross(n, u)

		neighbors := grid.KNearest(p, params.KNeighbors, i)
		type ringEntry struct {
			idx   int
			angle float64
			d2    float64
		}
		ring := make([]ringEntry, 0, len(neighbors))
		for _, j := range neighbors {
			q := points[j]
			dx, dy, dz := q.X-p.X, q.Y-p.Y, q.Z-p.Z
			d2 := dx*dx + dy*dy + dz*dz
			if d2 > maxEdgeSq {
				continue
			}
			proj := r3.Vec{X: dx, Y: dy, Z: dz}
			pu := dot(proj, u)
			pv := dot(proj, v)
			ring = append(ring, ringEntry{idx: j, angle: math.Atan2(pv, pu), d2: d2})
		}
		if len(ring) < 2 {
			continue
		}
		sort.Slice(ring, func(a, b int) bool { return ring[a].angle < ring[b].angle })

		for k := 0; k < len(ring); k++ {
			a := ring[k]
			b := ring[(k+1)%len(ring)]
			if a.idx == b.idx {
				continue
			}
			qa, qb := points[a.idx], points[b.idx]
			edx, edy, edz := qb.X-qa.X, qb.Y-qa.Y, qb.Z-qa.Z
			if edx*edx+edy*edy+edz*edz > maxEdgeSq {
				continue
			}
			gap := b.angle - a.angle
			if gap < 0 {
				gap += 2 * math.Pi
			}
			if gap > math.Pi/2 {
				continue
			}

			key := canonicalKey(uint32(i), uint32(a.idx), uint32(b.idx))
			if seen[key] {
				continue
			}
			seen[key] = true

			ia, ib, ic := uint32(i), uint32(a.idx), uint32(b.idx)
			if windingDot(points[ia], points[ib], points[ic], n) < 0 {
				ib, ic = ic, ib
			}
			indices = append(indices, ia, ib, ic)
		}
	}

	report("Finalizing", 95)
	if checkCancel() {
		return nil, decode.Cancelledf("reconstruct")
	}

	if len(indices) == 0 {
		return nil, decode.EmptyResultf("reconstruct", "no triangles formed")
	}

	report("Complete", 100)
	return indices, nil
}

func cellSizeFallback(grid *spatial.Grid) float64 {
	if grid == nil {
		return 1.0
	}
	return grid.CellSize()
}

// tangentU builds the first tangent-plane basis vector for normal n:
// u = n × (1,0,0) unless n.x's magnitude dominates, in which case
// u = n × (0,1,0). Reports ok=false if the cross product degenerates.
func tangentU(n r3.Vec) (r3.Vec, bool) {
	var ref r3.Vec
	if math.Abs(n.X) >= 0.9 {
		ref = r3.Vec{X: 0, Y: 1, Z: 0}
	} else {
		ref = r3.Vec{X: 1, Y: 0, Z: 0}
	}
	u := cross(n, ref)
	norm := math.Sqrt(dot(u, u))
	if norm < 1e-12 {
		return r3.Vec{}, false
	}
	return r3.Vec{X: u.X / norm, Y: u.Y / norm, Z: u.Z / norm}, true
}

func cross(a, b r3.Vec) r3.Vec {
	return r3.Vec{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func dot(a, b r3.Vec) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func windingDot(pi, pb, pc r3.Vec, n r3.Vec) float64 {
	ab := r3.Vec{X: pb.X - pi.X, Y: pb.Y - pi.Y, Z: pb.Z - pi.Z}
	ac := r3.Vec{X: pc.X - pi.X, Y: pc.Y - pi.Y, Z: pc.Z - pi.Z}
	return dot(cross(ab, ac), n)
}

func canonicalKey(a, b, c uint32) [3]uint32 {
	s := []uint32{a, b, c}
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return [3]uint32{s[0], s[1], s[2]}
}
