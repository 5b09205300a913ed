// Package pcd decodes PCL .pcd point clouds (ascii, binary, and
// binary_compressed/LZF), per spec.md §4.1.
package pcd

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/lzf"
)

type field struct {
	name  string
	size  int
	typ   byte // 'F', 'U', 'I'
	count int
}

type header struct {
	fields    []field
	width     int
	height    int
	points    int
	viewpoint [7]float64 // tx,ty,tz,qw,qx,qy,qz
	dataMode  string     // ascii|binary|binary_compressed
}

func (h *header) recordSlots() int {
	n := 0
	for _, f := range h.fields {
		n += f.count
	}
	return n
}

func (h *header) recordBytes() int {
	n := 0
	for _, f := range h.fields {
		n += f.size * f.count
	}
	return n
}

// slotOffset returns the starting value-slot index (not byte offset) of
// field i, used for both ascii token indexing and as a column index for
// binary_compressed layout.
func (h *header) slotOffset(i int) int {
	n := 0
	for j := 0; j < i; j++ {
		n += h.fields[j].count
	}
	return n
}

func parseHeader(data []byte) (*header, int, error) {
	h := &header{viewpoint: [7]float64{0, 0, 0, 1, 0, 0, 0}}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	consumed := 0
	for scanner.Scan() {
		line := scanner.Text()
		consumed += len(line) + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		key := fields[0]
		rest := fields[1:]
		switch key {
		case "FIELDS":
			h.fields = make([]field, len(rest))
			for i, n := range rest {
				h.fields[i].name = n
			}
		case "SIZE":
			for i, s := range rest {
				v, err := strconv.Atoi(s)
				if err != nil || i >= len(h.fields) {
					return nil, 0, decode.Truncatedf("pcd", "bad SIZE entry: %v", err)
				}
				h.fields[i].size = v
			}
		case "TYPE":
			for i, t := range rest {
				if i >= len(h.fields) || len(t) == 0 {
					return nil, 0, decode.Truncatedf("pcd", "bad TYPE entry")
				}
				h.fields[i].typ = t[0]
			}
		case "COUNT":
			for i, c := range rest {
				v, err := strconv.Atoi(c)
				if err != nil || i >= len(h.fields) {
					return nil, 0, decode.Truncatedf("pcd", "bad COUNT entry: %v", err)
				}
				h.fields[i].count = v
			}
		case "WIDTH":
			h.width, _ = strconv.Atoi(rest[0])
		case "HEIGHT":
			h.height, _ = strconv.Atoi(rest[0])
		case "POINTS":
			h.points, _ = strconv.Atoi(rest[0])
		case "VIEWPOINT":
			for i := 0; i < 7 && i < len(rest); i++ {
				v, err := strconv.ParseFloat(rest[i], 64)
				if err == nil {
					h.viewpoint[i] = v
				}
			}
		case "DATA":
			if len(rest) == 0 {
				return nil, 0, decode.Truncatedf("pcd", "missing DATA mode")
			}
			h.dataMode = rest[0]
			return h, consumed, nil
		}
	}
	return nil, 0, decode.Truncatedf("pcd", "missing DATA line")
}

// layout holds the column positions of the canonical fields this decoder
// cares about; findLayout sets -1 for any that are absent.
type layout struct {
	x, y, z, rgb, r, g, bl, intensity, label int
}

func findLayout(h *header) layout {
	l := layout{x: -1, y: -1, z: -1, rgb: -1, r: -1, g: -1, bl: -1, intensity: -1, label: -1}
	for i, f := range h.fields {
		switch f.name {
		case "x":
			l.x = i
		case "y":
			l.y = i
		case "z":
			l.z = i
		case "rgb", "rgba":
			l.rgb = i
		case "r":
			l.r = i
		case "g":
			l.g = i
		case "b":
			l.bl = i
		case "intensity":
			l.intensity = i
		case "label", "classification":
			l.label = i
		}
	}
	return l
}

// Decode implements the PCD contract.
func Decode(data []byte) (*cloud.Cloud, error) {
	h, consumed, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.points == 0 {
		h.points = h.width * h.height
	}
	if l := findLayout(h); l.x < 0 || l.y < 0 || l.z < 0 {
		return nil, decode.Truncatedf("pcd", "missing x/y/z fields")
	}

	b := decode.NewBuilder("pcd")
	l := findLayout(h)
	b.HasColor = l.rgb >= 0 || (l.r >= 0 && l.g >= 0 && l.bl >= 0)
	b.HasIntensity = l.intensity >= 0
	b.HasClassification = l.label >= 0

	body := data[consumed:]
	var rows [][]float64 // per point, one value per value-slot

	switch h.dataMode {
	case "ascii":
		rows, err = readASCII(body, h)
	case "binary":
		rows, err = readBinaryRowMajor(body, h)
	case "binary_compressed":
		rows, err = readBinaryCompressed(body, h)
	default:
		return nil, decode.UnsupportedVariantf("pcd", "unknown DATA mode %q", h.dataMode)
	}
	if err != nil {
		return nil, err
	}

	qw, qx, qy, qz := h.viewpoint[3], h.viewpoint[4], h.viewpoint[5], h.viewpoint[6]
	identityPose := h.viewpoint[0] == 0 && h.viewpoint[1] == 0 && h.viewpoint[2] == 0 &&
		qw == 1 && qx == 0 && qy == 0 && qz == 0

	for _, row := range rows {
		x, y, z := row[l.x], row[l.y], row[l.z]
		if !identityPose {
			x, y, z = decode.ApplyQuaternionPose(x, y, z, qw, qx, qy, qz, h.viewpoint[0], h.viewpoint[1], h.viewpoint[2])
		}
		p := decode.RawPoint{X: x, Y: y, Z: z}
		if l.rgb >= 0 {
			packed := row[l.rgb]
			bits := math.Float32bits(float32(packed))
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], bits)
			p.R = float32(buf[2]) / 255
			p.G = float32(buf[1]) / 255
			p.B = float32(buf[0]) / 255
		} else if l.r >= 0 && l.g >= 0 && l.bl >= 0 {
			p.R, p.G, p.B = float32(row[l.r])/255, float32(row[l.g])/255, float32(row[l.bl])/255
		}
		if l.intensity >= 0 {
			p.Intensity = float32(row[l.intensity])
		}
		if l.label >= 0 {
			p.Classification = float32(row[l.label])
		}
		b.Add(p)
	}

	return b.Finalize()
}

func readASCII(body []byte, h *header) ([][]float64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	slots := h.recordSlots()
	rows := make([][]float64, 0, h.points)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < slots {
			continue
		}
		row := make([]float64, slots)
		ok := true
		for i := 0; i < slots; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				ok = false
				break
			}
			row[i] = v
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func readScalar(buf []byte, f field) float64 {
	switch f.typ {
	case 'F':
		if f.size == 8 {
			return math.Float64frombits(binary.LittleEndian.Uint64(buf))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case 'U':
		switch f.size {
		case 1:
			return float64(buf[0])
		case 2:
			return float64(binary.LittleEndian.Uint16(buf))
		case 8:
			return float64(binary.LittleEndian.Uint64(buf))
		default:
			return float64(binary.LittleEndian.Uint32(buf))
		}
	default: // 'I'
		switch f.size {
		case 1:
			return float64(int8(buf[0]))
		case 2:
			return float64(int16(binary.LittleEndian.Uint16(buf)))
		case 8:
			return float64(int64(binary.LittleEndian.Uint64(buf)))
		default:
			return float64(int32(binary.LittleEndian.Uint32(buf)))
		}
	}
}

func readBinaryRowMajor(body []byte, h *header) ([][]float64, error) {
	recBytes := h.recordBytes()
	slots := h.recordSlots()
	rows := make([][]float64, 0, h.points)
	for p := 0; p < h.points; p++ {
		recStart := p * recBytes
		if recStart+recBytes > len(body) {
			break
		}
		row := make([]float64, slots)
		byteOff := 0
		slot := 0
		for _, f := range h.fields {
			for c := 0; c < f.count; c++ {
				row[slot] = readScalar(body[recStart+byteOff:], f)
				byteOff += f.size
				slot++
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readBinaryCompressed(body []byte, h *header) ([][]float64, error) {
	if len(body) < 8 {
		return nil, decode.Truncatedf("pcd", "binary_compressed header too short")
	}
	compressedSize := binary.LittleEndian.Uint32(body[0:4])
	uncompressedSize := binary.LittleEndian.Uint32(body[4:8])
	rest := body[8:]
	if uint32(len(rest)) < compressedSize {
		return nil, decode.Truncatedf("pcd", "compressed payload shorter than header claims")
	}
	raw, err := lzf.Decompress(rest[:compressedSize], int(uncompressedSize))
	if err != nil {
		return nil, decode.UnsupportedVariantf("pcd", "lzf decompress: %v", err)
	}

	slots := h.recordSlots()
	rows := make([][]float64, h.points)
	for i := range rows {
		rows[i] = make([]float64, slots)
	}

	byteOff := 0
	slot := 0
	for _, f := range h.fields {
		for c := 0; c < f.count; c++ {
			colBytes := f.size * h.points
			if byteOff+colBytes > len(raw) {
				return nil, decode.Truncatedf("pcd", "decompressed column overruns buffer")
			}
			col := raw[byteOff : byteOff+colBytes]
			for p := 0; p < h.points; p++ {
				rows[p][slot] = readScalar(col[p*f.size:], f)
			}
			byteOff += colBytes
			slot++
		}
	}
	return rows, nil
}
