package decode

import (
	"math"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
)

// SoftCeiling is the per-decoder point cap from spec.md §4.1.
const SoftCeiling = cloud.SoftPointCeiling

// RawPoint is one point in the source file's own frame, before centering
// and the Y-up swap. Color/intensity/classification are optional per
// point but every decoder must set the Has* flags on Builder consistently
// for the whole file (a format either carries an attribute or it doesn't).
type RawPoint struct {
	X, Y, Z        float64
	R, G, B        float32 // 0..1
	Intensity      float32 // 0..1
	Classification float32
}

// Builder accumulates RawPoints (and optional mesh indices) in source
// frame and produces a canonical cloud.Cloud on Finalize. It centers on
// the AABB midpoint, applies the Y-up swap from spec.md §3
// (`y = sourceZ-centerZ`, `z = -(sourceY-centerY)`), and applies stride
// sampling when the raw count exceeds SoftCeiling and no indices were
// recorded (mesh topology must never be thinned, per §4.1 OBJ notes).
type Builder struct {
	Format string

	points []RawPoint
	faces  []uint32 // triangle vertex indices into points, already 0-based

	HasColor          bool
	HasIntensity      bool
	HasClassification bool
}

// NewBuilder returns an empty Builder tagged with the decoder's format
// name, used in Header.Source and in error messages.
func NewBuilder(format string) *Builder {
	return &Builder{Format: format}
}

// Add appends one raw point and returns its index for use in AddFace.
func (b *Builder) Add(p RawPoint) int {
	b.points = append(b.points, p)
	return len(b.points) - 1
}

// AddFace appends a triangle referencing three point indices already
// added via Add.
func (b *Builder) AddFace(a, c, d uint32) {
	b.faces = append(b.faces, a, c, d)
}

// Len reports the number of raw points accumulated so far.
func (b *Builder) Len() int { return len(b.points) }

// SetColor overwrites the color of an already-added point. Used by
// decoders (PLY) whose color normalization depends on having seen every
// point's raw channel values first.
func (b *Builder) SetColor(i int, r, g, c float32) {
	b.points[i].R, b.points[i].G, b.points[i].B = r, g, c
}

// SetIntensity overwrites the intensity of an already-added point.
func (b *Builder) SetIntensity(i int, v float32) {
	b.points[i].Intensity = v
}

// Finalize centers, converts to Y-up, strides down if needed, and returns
// the canonical cloud. Returns an EmptyCloud error if no points remain.
func (b *Builder) Finalize() (*cloud.Cloud, error) {
	if len(b.points) == 0 {
		return nil, EmptyCloudf(b.Format)
	}

	minX, minY, minZ := math.Inf(1), math.Inf(1), math.Inf(1)
	maxX, maxY, maxZ := math.Inf(-1), math.Inf(-1), math.Inf(-1)
	for _, p := range b.points {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Z < minZ {
			minZ = p.Z
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
		if p.Z > maxZ {
			maxZ = p.Z
		}
	}
	centerX := (minX + maxX) / 2
	centerY := (minY + maxY) / 2
	centerZ := (minZ + maxZ) / 2

	stride := 1
	if len(b.faces) == 0 && len(b.points) > SoftCeiling {
		stride = (len(b.points) + SoftCeiling - 1) / SoftCeiling
	}

	kept := make([]int, 0, len(b.points)/stride+1)
	for i := 0; i < len(b.points); i += stride {
		kept = append(kept, i)
	}

	out := &cloud.Cloud{
		Positions:       make([]float32, 0, 3*len(kept)),
		Colors:          make([]float32, 0, 3*len(kept)),
		Intensities:     make([]float32, 0, len(kept)),
		Classifications: make([]float32, 0, len(kept)),
		Header: cloud.Header{
			MinX: minX, MinY: minY, MinZ: minZ,
			MaxX: maxX, MaxY: maxY, MaxZ: maxZ,
			Source: b.Format,
		},
		HasColor:          b.HasColor,
		HasIntensity:      b.HasIntensity,
		HasClassification: b.HasClassification,
	}
	out.Center.X, out.Center.Y, out.Center.Z = centerX, centerY, centerZ

	oldToNew := map[int]uint32{}
	for newIdx, i := range kept {
		p := b.points[i]
		x := p.X - centerX
		y := p.Z - centerZ
		z := -(p.Y - centerY)
		out.Positions = append(out.Positions, float32(x), float32(y), float32(z))

		if b.HasColor {
			out.Colors = append(out.Colors, p.R, p.G, p.B)
		} else {
			out.Colors = append(out.Colors, 0.8, 0.8, 0.8)
		}
		if b.HasIntensity {
			out.Intensities = append(out.Intensities, p.Intensity)
		} else {
			out.Intensities = append(out.Intensities, 0)
		}
		if b.HasClassification {
			out.Classifications = append(out.Classifications, p.Classification)
		} else {
			out.Classifications = append(out.Classifications, 0)
		}
		if stride == 1 {
			oldToNew[i] = uint32(newIdx)
		}
	}

	if len(b.faces) > 0 {
		// stride is forced to 1 whenever faces are present, so oldToNew
		// maps every added point to itself; a face index with no added
		// point behind it is dropped.
		out.Indices = make([]uint32, 0, len(b.faces))
		for _, f := range b.faces {
			ni, ok := oldToNew[int(f)]
			if !ok {
				continue
			}
			out.Indices = append(out.Indices, ni)
		}
	}

	return out, nil
}
