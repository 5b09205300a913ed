// Package ptx decodes Leica .ptx multi-scan point clouds, per spec.md
// §4.1.
package ptx

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

// Decode implements the PTX contract: one or more scans, each with its
// own header and row-major 4x4 transform.
func Decode(data []byte) (*cloud.Cloud, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	b := decode.NewBuilder("ptx")
	b.HasIntensity = true

	lines := make([]string, 0, 4096)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, decode.Truncatedf("ptx", "scan failed: %v", err)
	}

	i := 0
	readInt := func() (int, error) {
		if i >= len(lines) {
			return 0, decode.Truncatedf("ptx", "unexpected end of file")
		}
		v, err := strconv.Atoi(strings.TrimSpace(lines[i]))
		i++
		return v, err
	}
	readFloats := func(n int) ([]float64, error) {
		if i >= len(lines) {
			return nil, decode.Truncatedf("ptx", "unexpected end of file")
		}
		fields := strings.Fields(lines[i])
		i++
		if len(fields) < n {
			return nil, decode.Truncatedf("ptx", "expected %d numbers, got %d", n, len(fields))
		}
		out := make([]float64, n)
		for j := 0; j < n; j++ {
			v, err := strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return nil, decode.Truncatedf("ptx", "bad number: %v", err)
			}
			out[j] = v
		}
		return out, nil
	}

	hasAnyColor := false
	anyScan := false
	for i < len(lines) {
		cols, err := readInt()
		if err != nil {
			break // trailing blank lines at EOF are tolerated
		}
		rows, err := readInt()
		if err != nil {
			return nil, err
		}
		if _, err := readFloats(3); err != nil { // scanner registration XYZ, unused
			return nil, err
		}
		for r := 0; r < 3; r++ { // 3x3 rotation, skipped per §4.1
			if _, err := readFloats(3); err != nil {
				return nil, err
			}
		}
		var m [16]float64
		for r := 0; r < 4; r++ {
			row, err := readFloats(4)
			if err != nil {
				return nil, err
			}
			copy(m[r*4:r*4+4], row)
		}
		identity := m == decode.Identity4x4

		n := cols * rows
		anyScan = true
		for p := 0; p < n; p++ {
			if i >= len(lines) {
				return nil, decode.Truncatedf("ptx", "scan ended early: expected %d points, got %d", n, p)
			}
			fields := strings.Fields(lines[i])
			i++
			if len(fields) < 4 {
				continue
			}
			x, e1 := strconv.ParseFloat(fields[0], 64)
			y, e2 := strconv.ParseFloat(fields[1], 64)
			z, e3 := strconv.ParseFloat(fields[2], 64)
			inten, e4 := strconv.ParseFloat(fields[3], 64)
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
				continue
			}
			if x == 0 && y == 0 && z == 0 {
				continue // scanner hole, §4.1
			}
			if !identity {
				x, y, z = decode.Apply4x4(x, y, z, m)
			}
			rp := decode.RawPoint{X: x, Y: y, Z: z, Intensity: float32(inten)}
			if len(fields) >= 7 {
				r, e5 := strconv.ParseFloat(fields[4], 64)
				g, e6 := strconv.ParseFloat(fields[5], 64)
				bl, e7 := strconv.ParseFloat(fields[6], 64)
				if e5 == nil && e6 == nil && e7 == nil {
					rp.R, rp.G, rp.B = float32(r/255), float32(g/255), float32(bl/255)
					hasAnyColor = true
				}
			}
			b.Add(rp)
		}
	}
	if !anyScan {
		return nil, decode.Truncatedf("ptx", "no scans found")
	}
	b.HasColor = hasAnyColor

	return b.Finalize()
}
