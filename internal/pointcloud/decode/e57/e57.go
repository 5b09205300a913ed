// Package e57 decodes ASTM E57 point clouds: a paged binary container
// with an embedded XML document describing one or more scans, each
// backed by a CompressedVector of bit-packed bytestreams. Per spec.md
// §4.1.
package e57

import (
	"encoding/binary"
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

const magic = "ASTM-E57"

// Fixed header field offsets (spec.md §4.1).
const (
	magicOff           = 0
	majorVersionOff    = 8
	minorVersionOff    = 12
	fileLengthOff      = 16
	xmlPhysOffsetOff   = 24
	xmlLogicalLenOff   = 32
	pageSizeOff        = 40
	headerMinBytes     = 48
	sectionHeaderBytes = 32
)

// pageCursor sequentially reads logical bytes from a file that stripes a
// 4-byte CRC after every pageSize-4 data bytes, advancing past CRC gaps
// transparently. CRCs are never validated, per spec's open question.
type pageCursor struct {
	data     []byte
	pageSize int
	physPos  int
}

func newPageCursor(data []byte, physStart, pageSize int) *pageCursor {
	return &pageCursor{data: data, pageSize: pageSize, physPos: physStart}
}

func (c *pageCursor) read(n int) ([]byte, error) {
	dataPerPage := c.pageSize - 4
	out := make([]byte, 0, n)
	for len(out) < n {
		pageStart := (c.physPos / c.pageSize) * c.pageSize
		offsetInPage := c.physPos - pageStart
		if offsetInPage >= dataPerPage {
			c.physPos = pageStart + c.pageSize
			continue
		}
		avail := dataPerPage - offsetInPage
		need := n - len(out)
		take := avail
		if take > need {
			take = need
		}
		if c.physPos+take > len(c.data) {
			return nil, decode.Truncatedf("e57", "read past end of file at physical offset %d", c.physPos)
		}
		out = append(out, c.data[c.physPos:c.physPos+take]...)
		c.physPos += take
	}
	return out, nil
}

// xnode is a generic XML element used to walk E57's dynamic schema
// (scan prototypes vary per file) without a fixed struct per element
// kind, per SPEC_FULL.md's "Dynamic typing in decoders" design note.
type xnode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xnode    `xml:",any"`
}

func (n *xnode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xnode) child(name string) *xnode {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			return &n.Children[i]
		}
	}
	return nil
}

func (n *xnode) allChildren(name string) []*xnode {
	var out []*xnode
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

type protoField struct {
	name              string
	kind              string // "float", "scaledInteger", "integer"
	floatDouble       bool
	minimum, maximum  float64
	scale, offsetTerm float64
	bits              int
}

func bitsForRange(minimum, maximum float64) int {
	span := maximum - minimum
	if span <= 0 {
		return 0
	}
	bits := 0
	for (1 << uint(bits)) < int64(span)+1 {
		bits++
	}
	return bits
}

func parseProtoField(n *xnode) protoField {
	f := protoField{name: n.XMLName.Local}
	typ, _ := n.attr("type")
	switch typ {
	case "Float":
		f.kind = "float"
		if prec, ok := n.attr("precision"); ok && prec == "double" {
			f.floatDouble = true
		}
	case "ScaledInteger":
		f.kind = "scaledInteger"
	case "Integer":
		f.kind = "integer"
	default:
		f.kind = "unsupported"
	}
	if v, ok := n.attr("minimum"); ok {
		f.minimum = parseFloatAttr(v)
	}
	if v, ok := n.attr("maximum"); ok {
		f.maximum = parseFloatAttr(v)
	}
	f.scale = 1
	if v, ok := n.attr("scale"); ok {
		f.scale = parseFloatAttr(v)
	}
	if v, ok := n.attr("offset"); ok {
		f.offsetTerm = parseFloatAttr(v)
	}
	if f.kind == "integer" || f.kind == "scaledInteger" {
		f.bits = bitsForRange(f.minimum, f.maximum)
	}
	return f
}

func parseFloatAttr(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

type pose struct {
	tx, ty, tz     float64
	qw, qx, qy, qz float64
	identity       bool
}

func parsePose(n *xnode) pose {
	p := pose{qw: 1}
	if n == nil {
		p.identity = true
		return p
	}
	if t := n.child("translation"); t != nil {
		if v, ok := t.attr("x"); ok {
			p.tx = parseFloatAttr(v)
		}
		if v, ok := t.attr("y"); ok {
			p.ty = parseFloatAttr(v)
		}
		if v, ok := t.attr("z"); ok {
			p.tz = parseFloatAttr(v)
		}
	}
	if r := n.child("rotation"); r != nil {
		if v, ok := r.attr("w"); ok {
			p.qw = parseFloatAttr(v)
		}
		if v, ok := r.attr("x"); ok {
			p.qx = parseFloatAttr(v)
		}
		if v, ok := r.attr("y"); ok {
			p.qy = parseFloatAttr(v)
		}
		if v, ok := r.attr("z"); ok {
			p.qz = parseFloatAttr(v)
		}
	}
	p.identity = p.tx == 0 && p.ty == 0 && p.tz == 0 && p.qw == 1 && p.qx == 0 && p.qy == 0 && p.qz == 0
	return p
}

type scan struct {
	recordCount int
	binPhysOff  int
	fields      []protoField
	pose        pose
	hasCodecs   bool
}

func parseScans(root *xnode) []scan {
	data3D := root.child("data3D")
	if data3D == nil {
		return nil
	}
	var scans []scan
	for _, sc := range data3D.Children {
		points := sc.child("points")
		if points == nil {
			continue
		}
		s := scan{}
		if v, ok := points.attr("recordCount"); ok {
			s.recordCount = int(parseFloatAttr(v))
		}
		if v, ok := points.attr("fileOffset"); ok {
			s.binPhysOff = int(parseFloatAttr(v))
		}
		if proto := points.child("prototype"); proto != nil {
			for i := range proto.Children {
				s.fields = append(s.fields, parseProtoField(&proto.Children[i]))
			}
		}
		if codecs := points.child("codecs"); codecs != nil && len(codecs.Children) > 0 {
			s.hasCodecs = true
		}
		s.pose = parsePose(sc.child("pose"))
		scans = append(scans, s)
	}
	return scans
}

// bitReader reads LSB-first bit fields from a byte slice, per §4.1's
// integer/scaledInteger encoding.
type bitReader struct {
	data    []byte
	byteIdx int
	bitIdx  uint
}

func (r *bitReader) readBits(n int) (uint64, bool) {
	var v uint64
	for i := 0; i < n; i++ {
		if r.byteIdx >= len(r.data) {
			return 0, false
		}
		bit := (r.data[r.byteIdx] >> r.bitIdx) & 1
		v |= uint64(bit) << uint(i)
		r.bitIdx++
		if r.bitIdx == 8 {
			r.bitIdx = 0
			r.byteIdx++
		}
	}
	return v, true
}

// decodeFieldStream decodes as many values as fit in payload for field f,
// appending to out (a running per-field accumulator), stopping at want
// total values.
func decodeFieldStream(f protoField, payload []byte, out []float64, want int) []float64 {
	switch f.kind {
	case "float":
		size := 4
		if f.floatDouble {
			size = 8
		}
		for off := 0; off+size <= len(payload) && len(out) < want; off += size {
			if size == 4 {
				out = append(out, float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))))
			} else {
				out = append(out, math.Float64frombits(binary.LittleEndian.Uint64(payload[off:])))
			}
		}
	case "integer", "scaledInteger":
		if f.bits == 0 {
			// constant stream: every value equals the field's minimum,
			// mapped the same way a decoded raw value of 0 would be.
			val := mapRaw(f, 0)
			for len(out) < want {
				out = append(out, val)
			}
			break
		}
		br := &bitReader{data: payload}
		for len(out) < want {
			raw, ok := br.readBits(f.bits)
			if !ok {
				break
			}
			out = append(out, mapRaw(f, int64(raw)))
		}
	}
	return out
}

func mapRaw(f protoField, raw int64) float64 {
	if f.kind == "scaledInteger" {
		return (float64(raw) + f.minimum) * f.scale + f.offsetTerm
	}
	return float64(raw) + f.minimum
}

// decodeScanPoints reads the CompressedVector section for s and returns
// the decoded value stream for each prototype field, in field order.
func decodeScanPoints(data []byte, pageSize int, s scan) ([][]float64, error) {
	hdrCur := newPageCursor(data, s.binPhysOff, pageSize)
	hdr, err := hdrCur.read(sectionHeaderBytes)
	if err != nil {
		return nil, err
	}
	if hdr[0] != 1 {
		return nil, decode.Truncatedf("e57", "bad CompressedVector section id %d", hdr[0])
	}
	dataPhysOff := int(binary.LittleEndian.Uint64(hdr[16:24]))

	fieldValues := make([][]float64, len(s.fields))
	for i := range fieldValues {
		fieldValues[i] = make([]float64, 0, s.recordCount)
	}

	cur := newPageCursor(data, dataPhysOff, pageSize)
	done := false
	for !done {
		allFull := true
		for _, fv := range fieldValues {
			if len(fv) < s.recordCount {
				allFull = false
				break
			}
		}
		if allFull {
			break
		}

		typeByte, err := cur.read(1)
		if err != nil {
			break
		}
		if typeByte[0] == 0 {
			// index packet: fixed 16 bytes total, already consumed 1.
			if _, err := cur.read(15); err != nil {
				break
			}
			continue
		}

		// byte 1 (reserved) + packetLengthMinus1 u16 at offset 2 + bytestreamCount u16 at offset 4
		rest, err := cur.read(5)
		if err != nil {
			break
		}
		packetLength := int(binary.LittleEndian.Uint16(rest[1:3])) + 1
		bytestreamCount := int(binary.LittleEndian.Uint16(rest[3:5]))

		lengthsBytes, err := cur.read(bytestreamCount * 2)
		if err != nil {
			break
		}
		streamLens := make([]int, bytestreamCount)
		for i := 0; i < bytestreamCount; i++ {
			streamLens[i] = int(binary.LittleEndian.Uint16(lengthsBytes[i*2:]))
		}

		consumedSoFar := 1 + 5 + bytestreamCount*2
		for i := 0; i < bytestreamCount && i < len(s.fields); i++ {
			payload, err := cur.read(streamLens[i])
			if err != nil {
				done = true
				break
			}
			consumedSoFar += streamLens[i]
			fieldValues[i] = decodeFieldStream(s.fields[i], payload, fieldValues[i], s.recordCount)
		}
		if done {
			break
		}
		if consumedSoFar < packetLength {
			if _, err := cur.read(packetLength - consumedSoFar); err != nil {
				break
			}
		}
	}
	return fieldValues, nil
}

func fieldIndex(fields []protoField, name string) int {
	for i, f := range fields {
		if f.name == name {
			return i
		}
	}
	return -1
}

// Decode implements the E57 contract.
func Decode(data []byte) (*cloud.Cloud, error) {
	if len(data) < headerMinBytes || string(data[magicOff:magicOff+len(magic)]) != magic {
		return nil, decode.InvalidSignaturef("e57", "missing ASTM-E57 magic")
	}
	pageSize := int(binary.LittleEndian.Uint32(data[pageSizeOff:]))
	if pageSize <= 4 {
		return nil, decode.Truncatedf("e57", "invalid page size %d", pageSize)
	}
	xmlPhysOff := int(binary.LittleEndian.Uint64(data[xmlPhysOffsetOff:]))
	xmlLen := int(binary.LittleEndian.Uint64(data[xmlLogicalLenOff:]))

	xmlCur := newPageCursor(data, xmlPhysOff, pageSize)
	xmlBytes, err := xmlCur.read(xmlLen)
	if err != nil {
		return nil, err
	}

	var root xnode
	if err := xml.Unmarshal(xmlBytes, &root); err != nil {
		return nil, decode.Truncatedf("e57", "malformed XML section: %v", err)
	}

	scans := parseScans(&root)
	for _, s := range scans {
		if s.hasCodecs {
			return nil, decode.UnsupportedVariantf("e57", "compressed (non-empty codecs) scan")
		}
	}

	b := decode.NewBuilder("e57")
	anyScanYieldedPoints := false

	for _, s := range scans {
		xi, yi, zi := fieldIndex(s.fields, "cartesianX"), fieldIndex(s.fields, "cartesianY"), fieldIndex(s.fields, "cartesianZ")
		ri, ai, ei := fieldIndex(s.fields, "sphericalRange"), fieldIndex(s.fields, "sphericalAzimuth"), fieldIndex(s.fields, "sphericalElevation")
		cartesian := xi >= 0 && yi >= 0 && zi >= 0
		spherical := ri >= 0 && ai >= 0 && ei >= 0
		if !cartesian && !spherical {
			continue // skip scan: no coordinates identified, per §4.1
		}

		values, err := decodeScanPoints(data, pageSize, s)
		if err != nil {
			continue
		}

		n := s.recordCount
		for i := 0; i < n; i++ {
			var x, y, z float64
			if cartesian {
				if i >= len(values[xi]) || i >= len(values[yi]) || i >= len(values[zi]) {
					break
				}
				x, y, z = values[xi][i], values[yi][i], values[zi][i]
			} else {
				if i >= len(values[ri]) || i >= len(values[ai]) || i >= len(values[ei]) {
					break
				}
				r, az, el := values[ri][i], values[ai][i], values[ei][i]
				x = r * math.Cos(el) * math.Cos(az)
				y = r * math.Cos(el) * math.Sin(az)
				z = r * math.Sin(el)
			}
			if !s.pose.identity {
				x, y, z = decode.ApplyQuaternionPose(x, y, z, s.pose.qw, s.pose.qx, s.pose.qy, s.pose.qz, s.pose.tx, s.pose.ty, s.pose.tz)
			}
			b.Add(decode.RawPoint{X: x, Y: y, Z: z})
			anyScanYieldedPoints = true
		}
	}

	if !anyScanYieldedPoints {
		return nil, decode.EmptyCloudf("e57")
	}

	return b.Finalize()
}
