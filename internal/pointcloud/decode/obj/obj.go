// Package obj decodes Wavefront OBJ meshes/point clouds, per spec.md
// §4.1.
package obj

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

// faceVertexIndex parses one "f" token (v, v/vt, v/vt/vn, or v//vn) and
// returns just the vertex component, resolving negative (relative)
// indices against the current vertex count.
func faceVertexIndex(token string, vertexCount int) (int, bool) {
	first := token
	if idx := strings.IndexByte(token, '/'); idx >= 0 {
		first = token[:idx]
	}
	n, err := strconv.Atoi(first)
	if err != nil {
		return 0, false
	}
	if n < 0 {
		n = vertexCount + n + 1
	}
	if n < 1 {
		return 0, false
	}
	return n - 1, true // OBJ indices are 1-based
}

// Decode implements the OBJ contract.
func Decode(data []byte) (*cloud.Cloud, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	b := decode.NewBuilder("obj")
	vertexCount := 0
	anyColor := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				continue
			}
			x, e1 := strconv.ParseFloat(fields[1], 64)
			y, e2 := strconv.ParseFloat(fields[2], 64)
			z, e3 := strconv.ParseFloat(fields[3], 64)
			if e1 != nil || e2 != nil || e3 != nil {
				continue
			}
			p := decode.RawPoint{X: x, Y: y, Z: z}
			if len(fields) >= 7 {
				r, e4 := strconv.ParseFloat(fields[4], 64)
				g, e5 := strconv.ParseFloat(fields[5], 64)
				bl, e6 := strconv.ParseFloat(fields[6], 64)
				if e4 == nil && e5 == nil && e6 == nil {
					p.R, p.G, p.B = float32(r), float32(g), float32(bl)
					anyColor = true
				}
			}
			b.Add(p)
			vertexCount++
		case "f":
			if len(fields) < 4 {
				continue
			}
			idxs := make([]uint32, 0, len(fields)-1)
			ok := true
			for _, tok := range fields[1:] {
				vi, good := faceVertexIndex(tok, vertexCount)
				if !good {
					ok = false
					break
				}
				idxs = append(idxs, uint32(vi))
			}
			if !ok || len(idxs) < 3 {
				continue
			}
			for k := 1; k < len(idxs)-1; k++ { // fan triangulation
				b.AddFace(idxs[0], idxs[k], idxs[k+1])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, decode.Truncatedf("obj", "scan failed: %v", err)
	}
	b.HasColor = anyColor

	return b.Finalize()
}
