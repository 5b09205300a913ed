// Package cloud defines the canonical in-memory point cloud representation
// that every decoder normalizes into and every downstream component
// (registry, transform, selection, spatial index, reconstructor, LOD,
// exporters) reads and mutates.
package cloud

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// SoftPointCeiling bounds decoder output. Raw point counts above this are
// stride-sampled down (stride = ceil(raw/SoftPointCeiling)) unless the
// source carries mesh topology (indices), which must not be thinned.
const SoftPointCeiling = 5_000_000

// Header carries the original (pre-conversion) bounds and source metadata,
// plus the legacy LAS-style scale/offset some decoders populate.
//
// 0) Source-frame bounds
// 1) Provenance
// 2) Legacy LAS scale/offset (zero-valued for non-LAS sources)
type Header struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64

	Source string // e.g. "las", "ply-binary", "e57"

	ScaleX, ScaleY, ScaleZ   float64
	OffsetX, OffsetY, OffsetZ float64
}

// Cloud is the canonical, format-agnostic point cloud record (spec.md §3).
// Positions/colors/intensities/classifications are flat parallel arrays so
// they can be handed to the renderer or wire codec without per-point
// conversion. Normals and Selected are optional per-point streams populated
// by later pipeline stages (the Normal Estimator and Selection Engine).
type Cloud struct {
	Positions       []float32 // xyz triples, Y-up, centered
	Colors          []float32 // rgb triples in [0,1]
	Intensities     []float32 // one per point, in [0,1]
	Classifications []float32 // one per point, ASPRS codes

	Indices []uint32 // optional triangle indices, len%3==0

	Normals  []r3.Vec // optional, one per point
	Selected []bool   // optional, one per point

	Header Header
	Center r3.Vec // offset subtracted from source coordinates

	HasColor          bool
	HasIntensity       bool
	HasClassification bool
}

// PointCount returns the number of points in the cloud.
func (c *Cloud) PointCount() int {
	return len(c.Positions) / 3
}

// Position returns the i-th point position.
func (c *Cloud) Position(i int) r3.Vec {
	return r3.Vec{X: float64(c.Positions[3*i]), Y: float64(c.Positions[3*i+1]), Z: float64(c.Positions[3*i+2])}
}

// Bounds returns the AABB of Positions in the cloud's own (centered) frame.
// Returns the zero box for an empty cloud.
func (c *Cloud) Bounds() (min, max r3.Vec) {
	n := c.PointCount()
	if n == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	min = c.Position(0)
	max = min
	for i := 1; i < n; i++ {
		p := c.Position(i)
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
	return min, max
}

// Validate checks the invariants spec.md §3/§8 require to hold after every
// public operation. It is used by tests and may be called defensively by
// callers that mutate a Cloud outside the transform package.
func (c *Cloud) Validate() error {
	n := len(c.Positions)
	if n%3 != 0 {
		return fmt.Errorf("cloud: positions length %d not divisible by 3", n)
	}
	pts := n / 3
	if len(c.Colors) != n {
		return fmt.Errorf("cloud: colors length %d, want %d", len(c.Colors), n)
	}
	if len(c.Intensities) != pts {
		return fmt.Errorf("cloud: intensities length %d, want %d", len(c.Intensities), pts)
	}
	if len(c.Classifications) != pts {
		return fmt.Errorf("cloud: classifications length %d, want %d", len(c.Classifications), pts)
	}
	if len(c.Indices)%3 != 0 {
		return fmt.Errorf("cloud: indices length %d not divisible by 3", len(c.Indices))
	}
	for _, idx := range c.Indices {
		if int(idx) >= pts {
			return fmt.Errorf("cloud: index %d out of range for %d points", idx, pts)
		}
	}
	for i, v := range c.Colors {
		if v < 0 || v > 1 {
			return fmt.Errorf("cloud: color component %d out of [0,1]: %v", i, v)
		}
	}
	for i, v := range c.Intensities {
		if v < 0 || v > 1 {
			return fmt.Errorf("cloud: intensity %d out of [0,1]: %v", i, v)
		}
	}
	if c.Header.MinX > c.Header.MaxX || c.Header.MinY > c.Header.MaxY || c.Header.MinZ > c.Header.MaxZ {
		return fmt.Errorf("cloud: header min exceeds max")
	}
	return nil
}

// ResetSelection clears the Selected flag stream, sizing it to the current
// point count. Used by Delete after rebuilding the survivor arrays.
func (c *Cloud) ResetSelection() {
	n := c.PointCount()
	if cap(c.Selected) >= n {
		c.Selected = c.Selected[:n]
		for i := range c.Selected {
			c.Selected[i] = false
		}
		return
	}
	c.Selected = make([]bool, n)
}
