// Package off decodes Geomview OFF/COFF/NOFF/CNOFF meshes, per spec.md
// §4.1.
package off

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

// Decode implements the OFF/COFF/NOFF/CNOFF contract. Normals are parsed
// but discarded: the canonical cloud only carries normals once the
// Normal Estimator (internal/pointcloud/spatial) computes them.
func Decode(data []byte) (*cloud.Cloud, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	nextLine := func() (string, bool) {
		for scanner.Scan() {
			t := strings.TrimSpace(scanner.Text())
			if t == "" || strings.HasPrefix(t, "#") {
				continue
			}
			return t, true
		}
		return "", false
	}

	magicLine, ok := nextLine()
	if !ok {
		return nil, decode.Truncatedf("off", "empty file")
	}
	magicFields := strings.Fields(magicLine)
	magic := magicFields[0]

	hasColor, hasNormal := false, false
	switch magic {
	case "OFF":
	case "COFF", "CNOFF":
		hasColor = true
	case "NOFF":
		hasNormal = true
	default:
		return nil, decode.InvalidSignaturef("off", "unrecognized magic %q", magic)
	}
	if magic == "CNOFF" {
		hasNormal = true
	}

	var countFields []string
	if len(magicFields) >= 4 {
		countFields = magicFields[1:]
	} else {
		line, ok := nextLine()
		if !ok {
			return nil, decode.Truncatedf("off", "missing vertex/face counts")
		}
		countFields = strings.Fields(line)
	}
	if len(countFields) < 2 {
		return nil, decode.Truncatedf("off", "malformed counts line")
	}
	nVerts, e1 := strconv.Atoi(countFields[0])
	nFaces, e2 := strconv.Atoi(countFields[1])
	if e1 != nil || e2 != nil {
		return nil, decode.Truncatedf("off", "non-integer counts")
	}

	b := decode.NewBuilder("off")
	b.HasColor = hasColor

	for i := 0; i < nVerts; i++ {
		line, ok := nextLine()
		if !ok {
			return nil, decode.Truncatedf("off", "expected %d vertices, got %d", nVerts, i)
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		x, e1 := strconv.ParseFloat(fields[0], 64)
		y, e2 := strconv.ParseFloat(fields[1], 64)
		z, e3 := strconv.ParseFloat(fields[2], 64)
		if e1 != nil || e2 != nil || e3 != nil {
			continue
		}
		p := decode.RawPoint{X: x, Y: y, Z: z}
		pos := 3
		// CNOFF order: xyz, then color, then normal (matches this decoder's
		// magic-prefix convention above; the format itself does not fix an
		// order between C and N blocks).
		if hasColor && pos+2 < len(fields) {
			r, _ := strconv.ParseFloat(fields[pos], 64)
			g, _ := strconv.ParseFloat(fields[pos+1], 64)
			bl, _ := strconv.ParseFloat(fields[pos+2], 64)
			if r > 1 || g > 1 || bl > 1 {
				r, g, bl = r/255, g/255, bl/255
			}
			p.R, p.G, p.B = float32(r), float32(g), float32(bl)
			pos += 3
			if pos < len(fields) && magic != "CNOFF" { // optional alpha (COFF only)
				pos++
			}
		}
		if hasNormal && pos+2 < len(fields) {
			pos += 3 // normals are discarded; recomputed later by the Normal Estimator
		}
		b.Add(p)
	}

	for i := 0; i < nFaces; i++ {
		line, ok := nextLine()
		if !ok {
			return nil, decode.Truncatedf("off", "expected %d faces, got %d", nFaces, i)
		}
		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || len(fields) < 1+n || n < 3 {
			continue
		}
		idxs := make([]uint32, n)
		ok2 := true
		for k := 0; k < n; k++ {
			v, err := strconv.Atoi(fields[1+k])
			if err != nil {
				ok2 = false
				break
			}
			idxs[k] = uint32(v)
		}
		if !ok2 {
			continue
		}
		for k := 1; k < n-1; k++ { // fan triangulation
			b.AddFace(idxs[0], idxs[k], idxs[k+1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, decode.Truncatedf("off", "scan failed: %v", err)
	}

	return b.Finalize()
}
