// Package dxf decodes POINT and 3DFACE entities from the ENTITIES section
// of an ASCII DXF drawing, per spec.md §4.1.
package dxf

import (
	"bufio"
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

type pair struct {
	code  int
	value string
}

func readPairs(data []byte) ([]pair, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 16*1024*1024)
	var pairs []pair
	for scanner.Scan() {
		codeLine := strings.TrimSpace(scanner.Text())
		if !scanner.Scan() {
			return nil, decode.Truncatedf("dxf", "odd number of group-code lines")
		}
		valueLine := strings.TrimSpace(scanner.Text())
		code, err := strconv.Atoi(codeLine)
		if err != nil {
			return nil, decode.Truncatedf("dxf", "non-numeric group code %q", codeLine)
		}
		pairs = append(pairs, pair{code: code, value: valueLine})
	}
	if err := scanner.Err(); err != nil {
		return nil, decode.Truncatedf("dxf", "scan failed: %v", err)
	}
	return pairs, nil
}

// Decode implements the DXF contract.
func Decode(data []byte) (*cloud.Cloud, error) {
	pairs, err := readPairs(data)
	if err != nil {
		return nil, err
	}

	b := decode.NewBuilder("dxf")
	anyColor := false

	inEntities := false
	i := 0
	for i < len(pairs) {
		p := pairs[i]
		switch {
		case p.code == 0 && p.value == "SECTION":
			if i+1 < len(pairs) && pairs[i+1].code == 2 && pairs[i+1].value == "ENTITIES" {
				inEntities = true
				i += 2
				continue
			}
		case p.code == 0 && p.value == "ENDSEC":
			inEntities = false
			i++
			continue
		}
		if !inEntities || p.code != 0 {
			i++
			continue
		}

		entityType := p.value
		start := i + 1
		end := start
		for end < len(pairs) && pairs[end].code != 0 {
			end++
		}
		fields := pairs[start:end]
		i = end

		switch entityType {
		case "POINT":
			pt, color, hasColor := parsePoint(fields)
			if hasColor {
				anyColor = true
			}
			pt.R, pt.G, pt.B = color[0], color[1], color[2]
			b.Add(pt)
		case "3DFACE":
			corners, color, hasColor := parse3DFace(fields)
			if hasColor {
				anyColor = true
			}
			idxs := make([]uint32, 0, 4)
			for _, c := range corners {
				c.R, c.G, c.B = color[0], color[1], color[2]
				idxs = append(idxs, uint32(b.Add(c)))
			}
			if len(idxs) >= 3 {
				b.AddFace(idxs[0], idxs[1], idxs[2])
			}
			if len(idxs) == 4 && idxs[3] != idxs[2] {
				b.AddFace(idxs[0], idxs[2], idxs[3])
			}
		}
	}
	b.HasColor = anyColor

	return b.Finalize()
}

func parsePoint(fields []pair) (decode.RawPoint, [3]float32, bool) {
	p := decode.RawPoint{}
	color := [3]float32{0.8, 0.8, 0.8}
	hasColor := false
	for _, f := range fields {
		switch f.code {
		case 10:
			p.X = atof(f.value)
		case 20:
			p.Y = atof(f.value)
		case 30:
			p.Z = atof(f.value)
		case 62:
			color = aciToRGB(atoi(f.value))
			hasColor = true
		case 420:
			color = trueColorToRGB(atoi(f.value))
			hasColor = true
		}
	}
	return p, color, hasColor
}

func parse3DFace(fields []pair) ([]decode.RawPoint, [3]float32, bool) {
	corners := make([]decode.RawPoint, 4)
	present := [4]bool{}
	color := [3]float32{0.8, 0.8, 0.8}
	hasColor := false
	for _, f := range fields {
		idx := -1
		axis := -1
		switch {
		case f.code >= 10 && f.code <= 13:
			idx, axis = f.code-10, 0
		case f.code >= 20 && f.code <= 23:
			idx, axis = f.code-20, 1
		case f.code >= 30 && f.code <= 33:
			idx, axis = f.code-30, 2
		case f.code == 62:
			color = aciToRGB(atoi(f.value))
			hasColor = true
			continue
		case f.code == 420:
			color = trueColorToRGB(atoi(f.value))
			hasColor = true
			continue
		default:
			continue
		}
		present[idx] = true
		switch axis {
		case 0:
			corners[idx].X = atof(f.value)
		case 1:
			corners[idx].Y = atof(f.value)
		case 2:
			corners[idx].Z = atof(f.value)
		}
	}
	if !present[3] || (corners[3].X == corners[2].X && corners[3].Y == corners[2].Y && corners[3].Z == corners[2].Z) {
		corners = corners[:3]
	}
	return corners, color, hasColor
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func atoi(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func trueColorToRGB(packed int) [3]float32 {
	r := float32((packed>>16)&0xFF) / 255
	g := float32((packed>>8)&0xFF) / 255
	bl := float32(packed&0xFF) / 255
	return [3]float32{r, g, bl}
}

var aciBase = map[int][3]float32{
	1: {1, 0, 0},
	2: {1, 1, 0},
	3: {0, 1, 0},
	4: {0, 1, 1},
	5: {0, 0, 1},
	6: {1, 0, 1},
	7: {1, 1, 1},
}

// aciToRGB maps an AutoCAD Color Index to RGB per §4.1: the standard
// 7-color table for 1..7, fixed grays for 8..9 and 250..255, and an
// HSV-based approximation (24 hue steps × 10 shade variants) for 10..249.
func aciToRGB(aci int) [3]float32 {
	if c, ok := aciBase[aci]; ok {
		return c
	}
	switch {
	case aci == 8:
		return [3]float32{65.0 / 255, 65.0 / 255, 65.0 / 255}
	case aci == 9:
		return [3]float32{128.0 / 255, 128.0 / 255, 128.0 / 255}
	case aci >= 250 && aci <= 255:
		g := float32(aci-250) / 5
		return [3]float32{g, g, g}
	case aci >= 10 && aci <= 249:
		n := aci - 10
		hueIdx := n / 10
		shadeIdx := n % 10
		hue := float64(hueIdx) * (360.0 / 24.0)
		var sat, val float64
		if shadeIdx < 5 {
			sat = 1.0
			val = 1.0 - 0.15*float64(shadeIdx)
		} else {
			val = 1.0
			sat = 1.0 - 0.18*float64(shadeIdx-5)
		}
		return hsvToRGB(hue, sat, val)
	default:
		return [3]float32{0.8, 0.8, 0.8}
	}
}

func hsvToRGB(h, s, v float64) [3]float32 {
	c := v * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := v - c
	return [3]float32{float32(r + m), float32(g + m), float32(b + m)}
}
