package stl

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeF32(buf *bytes.Buffer, v float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	buf.Write(b[:])
}

func buildBinarySTLOneTriangle() []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, binaryHeaderSize))
	var triCount [4]byte
	binary.LittleEndian.PutUint32(triCount[:], 1)
	buf.Write(triCount[:])

	// normal
	writeF32(&buf, 0)
	writeF32(&buf, 1)
	writeF32(&buf, 0)
	// 3 vertices
	writeF32(&buf, 0)
	writeF32(&buf, 0)
	writeF32(&buf, 0)
	writeF32(&buf, 1)
	writeF32(&buf, 0)
	writeF32(&buf, 0)
	writeF32(&buf, 0)
	writeF32(&buf, 1)
	writeF32(&buf, 0)
	// attribute byte count, no color
	buf.Write([]byte{0, 0})

	return buf.Bytes()
}

func TestDecodeBinaryOneTriangle(t *testing.T) {
	data := buildBinarySTLOneTriangle()
	c, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, 3, c.PointCount())
	require.Len(t, c.Indices, 3)
	require.NoError(t, c.Validate())
}

func TestDecodeASCIIOneTriangle(t *testing.T) {
	data := `solid test
facet normal 0 1 0
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 0 1 0
  endloop
endfacet
endsolid test
`
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 3, c.PointCount())
	require.Len(t, c.Indices, 3)
}

func TestDecodeDedupesSharedVertices(t *testing.T) {
	data := `solid test
facet normal 0 1 0
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 0 1 0
  endloop
endfacet
facet normal 0 1 0
  outer loop
    vertex 0 0 0
    vertex 0 1 0
    vertex 1 1 0
  endloop
endfacet
endsolid test
`
	c, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 4, c.PointCount()) // two triangles sharing an edge: 4 distinct verts
	require.Len(t, c.Indices, 6)
}

func TestDecodeBinaryWithColor(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, binaryHeaderSize))
	var triCount [4]byte
	binary.LittleEndian.PutUint32(triCount[:], 1)
	buf.Write(triCount[:])
	writeF32(&buf, 0)
	writeF32(&buf, 1)
	writeF32(&buf, 0)
	for i := 0; i < 3; i++ {
		writeF32(&buf, float32(i))
		writeF32(&buf, 0)
		writeF32(&buf, 0)
	}
	// attribute with bit15 set and some 5-5-5 color
	var attr [2]byte
	binary.LittleEndian.PutUint16(attr[:], 0x8000|(31<<10))
	buf.Write(attr[:])

	c, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.True(t, c.HasColor)
	require.InDelta(t, 1.0, c.Colors[0], 1e-6)
}
