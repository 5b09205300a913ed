// Package stl decodes ASCII and binary STL meshes, per spec.md §4.1.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

const (
	binaryHeaderSize = 80
	triCountOffset   = 80
	triRecordSize    = 50 // 12 (normal) + 3*12 (vertices) + 2 (attribute)
)

// vertexDeduper assigns a stable index to each distinct vertex position,
// keyed by its canonical decimal string so float32 rounding at write time
// doesn't fragment otherwise-identical vertices.
type vertexDeduper struct {
	b       *decode.Builder
	indexOf map[string]uint32
}

func newVertexDeduper(b *decode.Builder) *vertexDeduper {
	return &vertexDeduper{b: b, indexOf: make(map[string]uint32)}
}

func (d *vertexDeduper) add(p decode.RawPoint) uint32 {
	key := fmt.Sprintf("%.7g|%.7g|%.7g", p.X, p.Y, p.Z)
	if idx, ok := d.indexOf[key]; ok {
		return idx
	}
	idx := uint32(d.b.Add(p))
	d.indexOf[key] = idx
	return idx
}

// Decode implements the STL contract, choosing binary or ascii parsing
// based on the exact-length test from §4.1 (not the "solid" keyword,
// which binary files may also start with).
func Decode(data []byte) (*cloud.Cloud, error) {
	if len(data) >= triCountOffset+4 {
		triCount := binary.LittleEndian.Uint32(data[triCountOffset:])
		if uint64(len(data)) == uint64(binaryHeaderSize+4)+uint64(triCount)*triRecordSize {
			return decodeBinary(data, triCount)
		}
	}
	return decodeASCII(data)
}

func decodeBinary(data []byte, triCount uint32) (*cloud.Cloud, error) {
	b := decode.NewBuilder("stl")
	dedup := newVertexDeduper(b)
	anyColor := false

	off := binaryHeaderSize + 4
	for t := uint32(0); t < triCount; t++ {
		rec := data[off : off+triRecordSize]
		off += triRecordSize

		// bytes 0-11: facet normal, ignored (recomputed by the Normal
		// Estimator if needed).
		var verts [3]decode.RawPoint
		for v := 0; v < 3; v++ {
			base := 12 + v*12
			x := math.Float32frombits(binary.LittleEndian.Uint32(rec[base:]))
			y := math.Float32frombits(binary.LittleEndian.Uint32(rec[base+4:]))
			z := math.Float32frombits(binary.LittleEndian.Uint32(rec[base+8:]))
			verts[v] = decode.RawPoint{X: float64(x), Y: float64(y), Z: float64(z)}
		}

		attr := binary.LittleEndian.Uint16(rec[48:])
		if attr&0x8000 != 0 {
			r5 := (attr >> 10) & 0x1F
			g5 := (attr >> 5) & 0x1F
			b5 := attr & 0x1F
			r := float32(r5) / 31
			g := float32(g5) / 31
			bl := float32(b5) / 31
			for v := 0; v < 3; v++ {
				verts[v].R, verts[v].G, verts[v].B = r, g, bl
			}
			anyColor = true
		}

		i0 := dedup.add(verts[0])
		i1 := dedup.add(verts[1])
		i2 := dedup.add(verts[2])
		b.AddFace(i0, i1, i2)
	}
	b.HasColor = anyColor

	return b.Finalize()
}

func decodeASCII(data []byte) (*cloud.Cloud, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	b := decode.NewBuilder("stl")
	dedup := newVertexDeduper(b)

	var current []uint32
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) < 4 {
				continue
			}
			x, e1 := strconv.ParseFloat(fields[1], 64)
			y, e2 := strconv.ParseFloat(fields[2], 64)
			z, e3 := strconv.ParseFloat(fields[3], 64)
			if e1 != nil || e2 != nil || e3 != nil {
				continue
			}
			idx := dedup.add(decode.RawPoint{X: x, Y: y, Z: z})
			current = append(current, idx)
		case "endloop":
			if len(current) == 3 {
				b.AddFace(current[0], current[1], current[2])
			}
			current = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, decode.Truncatedf("stl", "scan failed: %v", err)
	}

	return b.Finalize()
}
