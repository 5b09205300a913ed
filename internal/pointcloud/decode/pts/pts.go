// Package pts decodes Leica .pts point clouds, per spec.md §4.1.
package pts

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

// normalizeIntensity applies the PTS-specific raw-intensity mapping from
// §4.1: negative values come from a signed 12-bit-ish encoder range,
// values already above 1 are 0..255 integers, otherwise the raw value is
// already normalized.
func normalizeIntensity(raw float64) float32 {
	switch {
	case raw < 0:
		return float32((raw + 2048) / 4095)
	case raw > 1:
		return float32(raw / 255)
	default:
		return float32(raw)
	}
}

// Decode implements the PTS contract.
func Decode(data []byte) (*cloud.Cloud, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	b := decode.NewBuilder("pts")

	first := true
	haveColumns := false
	ncols := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			fields := strings.Fields(line)
			if len(fields) == 1 {
				if _, err := strconv.Atoi(fields[0]); err == nil {
					continue // leading point count, skipped
				}
			}
		}
		fields := strings.Fields(line)
		if !haveColumns {
			ncols = len(fields)
			haveColumns = true
			switch {
			case ncols == 4:
				b.HasIntensity = true
			case ncols == 6:
				b.HasColor = true
			case ncols >= 7:
				b.HasIntensity = true
				b.HasColor = true
			}
		}
		if len(fields) < 3 {
			continue
		}
		vals := make([]float64, len(fields))
		ok := true
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		p := decode.RawPoint{X: vals[0], Y: vals[1], Z: vals[2]}
		switch {
		case ncols == 4:
			p.Intensity = normalizeIntensity(vals[3])
		case ncols == 6:
			p.R, p.G, p.B = float32(vals[3]/255), float32(vals[4]/255), float32(vals[5]/255)
		case ncols >= 7:
			p.Intensity = normalizeIntensity(vals[3])
			p.R, p.G, p.B = float32(vals[4]/255), float32(vals[5]/255), float32(vals[6]/255)
		}
		b.Add(p)
	}
	if err := scanner.Err(); err != nil {
		return nil, decode.Truncatedf("pts", "scan failed: %v", err)
	}

	return b.Finalize()
}
