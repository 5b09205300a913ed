// Package ply decodes Stanford PLY point clouds, ascii and
// binary_little_endian variants, per spec.md §4.1.
package ply

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

// scalarType is one of the eight PLY scalar encodings, identified by byte
// width and signedness/float-ness rather than by its many spelling
// aliases (char/int8, uchar/uint8, ...).
type scalarType struct {
	size   int
	signed bool
	float  bool
}

var typeAliases = map[string]scalarType{
	"char": {1, true, false}, "int8": {1, true, false},
	"uchar": {1, false, false}, "uint8": {1, false, false},
	"short": {2, true, false}, "int16": {2, true, false},
	"ushort": {2, false, false}, "uint16": {2, false, false},
	"int": {4, true, false}, "int32": {4, true, false},
	"uint": {4, false, false}, "uint32": {4, false, false},
	"float": {4, false, true}, "float32": {4, false, true},
	"double": {8, false, true}, "float64": {8, false, true},
}

type property struct {
	name      string
	isList    bool
	countType scalarType
	valType   scalarType
}

type element struct {
	name       string
	count      int
	properties []property
}

const signature = "ply"

// Decode implements the PLY contract.
func Decode(data []byte) (*cloud.Cloud, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\r\n"), []byte(signature)) {
		return nil, decode.InvalidSignaturef("ply", "missing 'ply' magic line")
	}

	headerEnd, elements, binaryLE, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	// ascii and binary_little_endian are the only variants parseHeader
	// accepts (§4.1); binary_big_endian falls through to UnsupportedVariant.

	b := decode.NewBuilder("ply")
	var colorIdx []int // index into b's points, parallel to rawColors
	var rawColors [][3]float32

	body := data[headerEnd:]
	var ascii *bufio.Scanner
	if !binaryLE {
		ascii = bufio.NewScanner(bytes.NewReader(body))
		ascii.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	}
	cursor := 0

	for _, el := range elements {
		vertexProps := el.name == "vertex"
		var xi, yi, zi, ri, gi, bi, ii = -1, -1, -1, -1, -1, -1, -1
		if vertexProps {
			for idx, p := range el.properties {
				switch p.name {
				case "x":
					xi = idx
				case "y":
					yi = idx
				case "z":
					zi = idx
				case "red", "r":
					ri = idx
				case "green", "g":
					gi = idx
				case "blue", "b":
					bi = idx
				case "intensity", "scalar_intensity":
					ii = idx
				}
			}
			if xi < 0 || yi < 0 || zi < 0 {
				return nil, decode.Truncatedf("ply", "vertex element missing x/y/z properties")
			}
			b.HasColor = ri >= 0 && gi >= 0 && bi >= 0
			b.HasIntensity = ii >= 0
		}

		for i := 0; i < el.count; i++ {
			var values []float64
			if binaryLE {
				values, cursor, err = readBinaryRecord(body, cursor, el.properties)
			} else {
				if !ascii.Scan() {
					return nil, decode.Truncatedf("ply", "element %s: expected %d records, ran out at %d", el.name, el.count, i)
				}
				values, err = readASCIIRecord(ascii.Text(), el.properties)
			}
			if err != nil {
				return nil, err
			}
			if !vertexProps {
				continue
			}
			p := decode.RawPoint{X: values[xi], Y: values[yi], Z: values[zi]}
			idx := b.Add(p)
			if b.HasIntensity {
				b.SetIntensity(idx, float32(values[ii]))
			}
			if b.HasColor {
				rawColors = append(rawColors, [3]float32{float32(values[ri]), float32(values[gi]), float32(values[bi])})
				colorIdx = append(colorIdx, idx)
			}
		}
	}

	// §4.1: "if any channel > 1 treat as 0..255 else 0..1".
	if b.HasColor {
		above := false
		for _, c := range rawColors {
			if c[0] > 1 || c[1] > 1 || c[2] > 1 {
				above = true
				break
			}
		}
		for i, c := range rawColors {
			if above {
				c[0] /= 255
				c[1] /= 255
				c[2] /= 255
			}
			b.SetColor(colorIdx[i], c[0], c[1], c[2])
		}
	}

	return b.Finalize()
}

func parseHeader(data []byte) (headerEnd int, elements []element, binaryLE bool, err error) {
	lines := splitHeaderLines(data)
	var els []element
	format := ""
	i := 0
	if i >= len(lines) || strings.TrimSpace(lines[i].text) != "ply" {
		return 0, nil, false, decode.InvalidSignaturef("ply", "missing 'ply' magic line")
	}
	i++
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i].text)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return 0, nil, false, decode.Truncatedf("ply", "malformed format line")
			}
			format = fields[1]
		case "comment", "obj_info":
			// ignored
		case "element":
			if len(fields) < 3 {
				return 0, nil, false, decode.Truncatedf("ply", "malformed element line")
			}
			n, perr := strconv.Atoi(fields[2])
			if perr != nil {
				return 0, nil, false, decode.Truncatedf("ply", "bad element count: %v", perr)
			}
			els = append(els, element{name: fields[1], count: n})
		case "property":
			if len(els) == 0 {
				return 0, nil, false, decode.Truncatedf("ply", "property before any element")
			}
			cur := &els[len(els)-1]
			if fields[1] == "list" {
				ct, ok1 := typeAliases[fields[2]]
				vt, ok2 := typeAliases[fields[3]]
				if !ok1 || !ok2 {
					return 0, nil, false, decode.UnsupportedVariantf("ply", "unknown list property types %s/%s", fields[2], fields[3])
				}
				cur.properties = append(cur.properties, property{name: fields[4], isList: true, countType: ct, valType: vt})
			} else {
				t, ok := typeAliases[fields[1]]
				if !ok {
					return 0, nil, false, decode.UnsupportedVariantf("ply", "unknown property type %s", fields[1])
				}
				cur.properties = append(cur.properties, property{name: fields[2], valType: t})
			}
		case "end_header":
			headerEnd := lines[i].end
			switch format {
			case "ascii":
				return headerEnd, els, false, nil
			case "binary_little_endian":
				return headerEnd, els, true, nil
			default:
				return 0, nil, false, decode.UnsupportedVariantf("ply", "unsupported format %q", format)
			}
		}
	}
	return 0, nil, false, decode.Truncatedf("ply", "missing end_header")
}

type headerLine struct {
	text string
	end  int // byte offset in data immediately after this line's newline
}

func splitHeaderLines(data []byte) []headerLine {
	var out []headerLine
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			line := string(data[start:i])
			line = strings.TrimRight(line, "\r")
			out = append(out, headerLine{text: line, end: i + 1})
			start = i + 1
			if strings.TrimSpace(line) == "end_header" {
				break
			}
		}
	}
	return out
}

func readASCIIRecord(line string, props []property) ([]float64, error) {
	fields := strings.Fields(line)
	out := make([]float64, len(props))
	pos := 0
	for i, p := range props {
		if pos >= len(fields) {
			return nil, decode.Truncatedf("ply", "short record for property %s", p.name)
		}
		if p.isList {
			n, err := strconv.Atoi(fields[pos])
			if err != nil {
				return nil, decode.Truncatedf("ply", "bad list count: %v", err)
			}
			pos += 1 + n // skip the list values entirely; unused by this decoder
			continue
		}
		v, err := strconv.ParseFloat(fields[pos], 64)
		if err != nil {
			return nil, decode.Truncatedf("ply", "bad numeric field for %s: %v", p.name, err)
		}
		out[i] = v
		pos++
	}
	return out, nil
}

func readBinaryRecord(data []byte, cursor int, props []property) ([]float64, int, error) {
	out := make([]float64, len(props))
	for i, p := range props {
		if p.isList {
			n, next, err := readScalar(data, cursor, p.countType)
			if err != nil {
				return nil, 0, err
			}
			cursor = next
			for j := 0; j < int(n); j++ {
				_, next, err := readScalar(data, cursor, p.valType)
				if err != nil {
					return nil, 0, err
				}
				cursor = next
			}
			continue
		}
		v, next, err := readScalar(data, cursor, p.valType)
		if err != nil {
			return nil, 0, err
		}
		out[i] = v
		cursor = next
	}
	return out, cursor, nil
}

func readScalar(data []byte, cursor int, t scalarType) (float64, int, error) {
	if cursor+t.size > len(data) {
		return 0, 0, decode.Truncatedf("ply", "binary record truncated")
	}
	chunk := data[cursor : cursor+t.size]
	cursor += t.size
	switch {
	case t.float && t.size == 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk))), cursor, nil
	case t.float && t.size == 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(chunk)), cursor, nil
	case t.signed:
		switch t.size {
		case 1:
			return float64(int8(chunk[0])), cursor, nil
		case 2:
			return float64(int16(binary.LittleEndian.Uint16(chunk))), cursor, nil
		default:
			return float64(int32(binary.LittleEndian.Uint32(chunk))), cursor, nil
		}
	default:
		switch t.size {
		case 1:
			return float64(chunk[0]), cursor, nil
		case 2:
			return float64(binary.LittleEndian.Uint16(chunk)), cursor, nil
		default:
			return float64(binary.LittleEndian.Uint32(chunk)), cursor, nil
		}
	}
}
