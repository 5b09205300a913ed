// Package xyztext decodes whitespace/comma/semicolon/tab-delimited text
// point clouds (.xyz, .txt, .csv, .asc), per spec.md §4.1.
package xyztext

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

// detectDelimiter picks the first delimiter from comma, semicolon, tab,
// whitespace that actually splits the given line into more than one
// field, per §4.1's declared priority order.
func detectDelimiter(line string) string {
	for _, d := range []string{",", ";", "\t"} {
		if strings.Contains(line, d) {
			return d
		}
	}
	return "" // whitespace: strings.Fields
}

func splitLine(line, delim string) []string {
	if delim == "" {
		return strings.Fields(line)
	}
	fields := strings.Split(line, delim)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func firstTokenIsNumeric(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(fields[0], 64)
	return err == nil
}

// Decode implements the XYZ/TXT/CSV/ASC contract.
func Decode(data []byte) (*cloud.Cloud, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	b := decode.NewBuilder("xyz")

	var delim string
	delimChosen := false
	haveColumns := false
	ncols := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !delimChosen {
			delim = detectDelimiter(line)
			delimChosen = true
		}
		fields := splitLine(line, delim)
		if len(fields) == 0 {
			continue
		}
		if !haveColumns {
			if !firstTokenIsNumeric(fields) {
				continue // header line, skipped per §4.1
			}
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
		if !ok || len(vals) < 3 {
			continue
		}
		p := decode.RawPoint{X: vals[0], Y: vals[1], Z: vals[2]}
		switch {
		case ncols == 4:
			p.Intensity = float32(vals[3] / 255)
		case ncols == 6:
			p.R, p.G, p.B = float32(vals[3]/255), float32(vals[4]/255), float32(vals[5]/255)
		case ncols >= 7:
			p.Intensity = float32(vals[3] / 255)
			p.R, p.G, p.B = float32(vals[4]/255), float32(vals[5]/255), float32(vals[6]/255)
		}
		b.Add(p)
	}
	if err := scanner.Err(); err != nil {
		return nil, decode.Truncatedf("xyz", "scan failed: %v", err)
	}

	return b.Finalize()
}
