// Package protocol implements the wire formats crossing the worker/UI and
// LOD-backend boundaries (spec.md §4.10): the parse request/response
// envelope and the LOD binary chunk codec.
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Chunk is one decoded LOD node, little-endian wire format:
//
//	u32  chunkCount
//	for each chunk:
//	  u32  nodeIdLen
//	  u8[] nodeIdUtf8            // padded to 4-byte alignment
//	  3×f64 center
//	  u32  level
//	  f32  spacing
//	  u32  pointCount
//	  pointCount × (f32×3)  positions
//	  pointCount × u8×3     colors
//	  pointCount × u16      intensities
//	  pointCount × u8       classifications
//	  // padded to 4-byte alignment
type Chunk struct {
	NodeID  string
	Center  [3]float64
	Level   uint32
	Spacing float32

	Positions       []float32 // 3 per point
	Colors          []uint8   // 3 per point
	Intensities     []uint16  // 1 per point
	Classifications []uint8   // 1 per point
}

func pad4(n int) int {
	if r := n % 4; r != 0 {
		return n + (4 - r)
	}
	return n
}

// EncodeChunks serializes a slice of chunks into the wire format above.
func EncodeChunks(chunks []Chunk) []byte {
	buf := make([]byte, 0, 4096)
	buf = appendU32(buf, uint32(len(chunks)))
	for _, ch := range chunks {
		buf = encodeOne(buf, ch)
	}
	return buf
}

func encodeOne(buf []byte, ch Chunk) []byte {
	idBytes := []byte(ch.NodeID)
	buf = appendU32(buf, uint32(len(idBytes)))
	buf = append(buf, idBytes...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}

	for _, c := range ch.Center {
		buf = appendU64(buf, math.Float64bits(c))
	}
	buf = appendU32(buf, ch.Level)
	buf = appendU32(buf, math.Float32bits(ch.Spacing))

	n := len(ch.Positions) / 3
	buf = appendU32(buf, uint32(n))

	for _, p := range ch.Positions {
		buf = appendU32(buf, math.Float32bits(p))
	}
	buf = append(buf, ch.Colors...)
	for _, v := range ch.Intensities {
		buf = appendU16(buf, v)
	}
	buf = append(buf, ch.Classifications...)

	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

// DecodeChunks parses the wire format produced by EncodeChunks.
func DecodeChunks(data []byte) ([]Chunk, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("protocol: chunk stream too short for count header")
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	pos := 4
	chunks := make([]Chunk, 0, count)
	for i := uint32(0); i < count; i++ {
		ch, next, err := decodeOne(data, pos)
		if err != nil {
			return nil, fmt.Errorf("protocol: chunk %d: %w", i, err)
		}
		chunks = append(chunks, ch)
		pos = next
	}
	return chunks, nil
}

func decodeOne(data []byte, pos int) (Chunk, int, error) {
	var ch Chunk
	if pos+4 > len(data) {
		return ch, 0, fmt.Errorf("truncated nodeIdLen")
	}
	idLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+idLen > len(data) {
		return ch, 0, fmt.Errorf("truncated nodeId")
	}
	ch.NodeID = string(data[pos : pos+idLen])
	pos += idLen
	pos = pad4(pos)

	if pos+8*3+4+4+4 > len(data) {
		return ch, 0, fmt.Errorf("truncated chunk header")
	}
	for i := 0; i < 3; i++ {
		ch.Center[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))
		pos += 8
	}
	ch.Level = binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4
	ch.Spacing = math.Float32frombits(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	pointCount := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4

	posBytes := pointCount * 3 * 4
	colorBytes := pointCount * 3
	intensityBytes := pointCount * 2
	classBytes := pointCount

	need := posBytes + colorBytes + intensityBytes + classBytes
	if pos+need > len(data) {
		return ch, 0, fmt.Errorf("truncated point payload")
	}

	ch.Positions = make([]float32, pointCount*3)
	for i := range ch.Positions {
		ch.Positions[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
	}
	ch.Colors = append([]uint8(nil), data[pos:pos+colorBytes]...)
	pos += colorBytes
	ch.Intensities = make([]uint16, pointCount)
	for i := range ch.Intensities {
		ch.Intensities[i] = binary.LittleEndian.Uint16(data[pos : pos+2])
		pos += 2
	}
	ch.Classifications = append([]uint8(nil), data[pos:pos+classBytes]...)
	pos += classBytes

	pos = pad4(pos)
	return ch, pos, nil
}
