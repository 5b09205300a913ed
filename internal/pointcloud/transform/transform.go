// Package transform implements the Transform & Edit Engine (spec.md
// §4.4): in-place mutations of a Canonical Cloud's point arrays. These
// functions do not touch the registry; the caller records each mutation
// with registry.BumpTransformVersion so the LOD Controller and renderer
// know to reload.
package transform

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
)

// Translate shifts every point position by delta. It does not touch
// Header bounds (those describe the source frame) but does shift Center
// so downstream bounds queries stay consistent with the moved positions.
func Translate(c *cloud.Cloud, delta r3.Vec) {
	n := c.PointCount()
	for i := 0; i < n; i++ {
		c.Positions[3*i] += float32(delta.X)
		c.Positions[3*i+1] += float32(delta.Y)
		c.Positions[3*i+2] += float32(delta.Z)
	}
	c.Center.X -= delta.X
	c.Center.Y -= delta.Y
	c.Center.Z -= delta.Z
}

// Scale multiplies every point position about the cloud's own centroid by
// factor. factor <= 0 is a no-op (scaling to a point or mirroring is out
// of scope per spec.md §4.4 Non-goals).
func Scale(c *cloud.Cloud, factor float64) {
	if factor <= 0 {
		return
	}
	centroid := centroidOf(c)
	n := c.PointCount()
	for i := 0; i < n; i++ {
		p := c.Position(i)
		p.X = centroid.X + (p.X-centroid.X)*factor
		p.Y = centroid.Y + (p.Y-centroid.Y)*factor
		p.Z = centroid.Z + (p.Z-centroid.Z)*factor
		c.Positions[3*i] = float32(p.X)
		c.Positions[3*i+1] = float32(p.Y)
		c.Positions[3*i+2] = float32(p.Z)
	}
}

func centroidOf(c *cloud.Cloud) r3.Vec {
	n := c.PointCount()
	if n == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for i := 0; i < n; i++ {
		p := c.Position(i)
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	return r3.Vec{X: sum.X / float64(n), Y: sum.Y / float64(n), Z: sum.Z / float64(n)}
}

// Thin randomly discards points, keeping percent of them (clamped to
// [1,100]): keep = max(1, round(n*percent/100)). The kept subset is
// chosen with a partial Fisher-Yates shuffle, O(n) regardless of how
// aggressively points are thinned, then sorted ascending so the rebuilt
// arrays are written in original order (cache-friendly, and stable for
// callers diffing before/after). Thin refuses to act on a cloud that
// carries mesh topology (Indices), since removing vertices would leave
// dangling face indices; spec.md §4.4 scopes Thin to unstructured point
// data. If percent keeps everything, Thin is a no-op.
func Thin(c *cloud.Cloud, percent float64) {
	n := c.PointCount()
	if len(c.Indices) > 0 || n == 0 {
		return
	}
	if percent < 1 {
		percent = 1
	}
	if percent > 100 {
		percent = 100
	}
	keep := int(math.Round(float64(n) * percent / 100))
	if keep < 1 {
		keep = 1
	}
	if keep >= n {
		return
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := 0; i < keep; i++ {
		j := i + rand.Intn(n-i)
		order[i], order[j] = order[j], order[i]
	}
	kept := order[:keep]
	sort.Ints(kept)

	gather(c, kept)
	c.ResetSelection()
}

// Delete removes every point whose Selected flag is set, compacting the
// remaining arrays in place and clearing Selected. Deleting a vertex
// referenced by Indices drops any face that referenced it, per spec.md
// §4.4's edit-invalidates-mesh rule. Delete reports whether the cloud has
// zero points left; it does not remove the cloud itself, so in that case
// the caller removes it from the registry (Registry.Remove) rather than
// keeping an empty entry.
func Delete(c *cloud.Cloud) (empty bool) {
	n := c.PointCount()
	if len(c.Selected) != n {
		return n == 0
	}
	remap := make([]int, n)
	kept := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if c.Selected[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, i)
	}

	if len(c.Indices) > 0 {
		newIndices := make([]uint32, 0, len(c.Indices))
		for t := 0; t+2 < len(c.Indices); t += 3 {
			a, bI, cI := c.Indices[t], c.Indices[t+1], c.Indices[t+2]
			ra, rb, rc := remap[a], remap[bI], remap[cI]
			if ra < 0 || rb < 0 || rc < 0 {
				continue
			}
			newIndices = append(newIndices, uint32(ra), uint32(rb), uint32(rc))
		}
		c.Indices = newIndices
	}

	gather(c, kept)
	c.ResetSelection()
	return len(kept) == 0
}

// gather rebuilds every per-point array to contain exactly the points at
// the given original indices, in that order. It is the single point where
// Positions/Colors/Intensities/Classifications/Normals must all stay in
// lockstep; it leaves Selected alone, so callers call ResetSelection
// afterwards.
func gather(c *cloud.Cloud, idx []int) {
	positions := make([]float32, len(idx)*3)
	colors := make([]float32, len(idx)*3)
	intensities := make([]float32, len(idx))
	classifications := make([]float32, len(idx))
	var normals []r3.Vec
	if len(c.Normals) > 0 {
		normals = make([]r3.Vec, len(idx))
	}

	for newI, oldI := range idx {
		positions[3*newI], positions[3*newI+1], positions[3*newI+2] =
			c.Positions[3*oldI], c.Positions[3*oldI+1], c.Positions[3*oldI+2]
		colors[3*newI], colors[3*newI+1], colors[3*newI+2] =
			c.Colors[3*oldI], c.Colors[3*oldI+1], c.Colors[3*oldI+2]
		intensities[newI] = c.Intensities[oldI]
		classifications[newI] = c.Classifications[oldI]
		if normals != nil {
			normals[newI] = c.Normals[oldI]
		}
	}

	c.Positions = positions
	c.Colors = colors
	c.Intensities = intensities
	c.Classifications = classifications
	c.Normals = normals
}
