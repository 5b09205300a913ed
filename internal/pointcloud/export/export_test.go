package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
)

func twoPointCloud() *cloud.Cloud {
	return &cloud.Cloud{
		Positions:       []float32{0, 0, 0, 1, 0, 0},
		Colors:          []float32{1, 0, 0, 0, 1, 0},
		Intensities:     []float32{0.5, 1.0},
		Classifications: []float32{2, 7},
		HasColor:        true,
	}
}

func triangleCloud() *cloud.Cloud {
	c := twoPointCloud()
	c.Positions = append(c.Positions, 0, 1, 0)
	c.Colors = append(c.Colors, 0, 0, 1)
	c.Intensities = append(c.Intensities, 0.2)
	c.Classifications = append(c.Classifications, 1)
	c.Indices = []uint32{0, 1, 2}
	return c
}

func TestPLYBinaryHeaderDeclaresVertexCount(t *testing.T) {
	data := PLYBinary(twoPointCloud())
	require.True(t, bytes.Contains(data, []byte("element vertex 2")))
	require.True(t, bytes.Contains(data, []byte("format binary_little_endian 1.0")))
}

func TestPLYBinaryIncludesFaceElementWhenIndexed(t *testing.T) {
	data := PLYBinary(triangleCloud())
	require.True(t, bytes.Contains(data, []byte("element face 1")))
}

func TestPLYBinaryOmitsFaceElementForPointCloud(t *testing.T) {
	data := PLYBinary(twoPointCloud())
	require.False(t, bytes.Contains(data, []byte("element face")))
}

func TestPLYBinaryVertexRecordSize(t *testing.T) {
	c := twoPointCloud()
	data := PLYBinary(c)
	headerEnd := bytes.Index(data, []byte("end_header\n")) + len("end_header\n")
	body := data[headerEnd:]
	require.Equal(t, 2*20, len(body)) // no faces, 20 bytes/vertex
}

func TestPLYAsciiRowFormat(t *testing.T) {
	data := PLYAscii(twoPointCloud())
	s := string(data)
	require.True(t, strings.Contains(s, "end_header\n"))
	lines := strings.Split(strings.TrimSpace(s), "\n")
	last := lines[len(lines)-1]
	require.Equal(t, 8, len(strings.Fields(last)))
}

func TestOBJWritesVerticesAndColor(t *testing.T) {
	data := OBJ(twoPointCloud())
	s := string(data)
	require.True(t, strings.HasPrefix(s, "v "))
	require.Equal(t, 2, strings.Count(s, "v "))
	require.True(t, strings.Contains(s, "v 0 0 0 1 0 0\n"))
}

func TestOBJWritesFacesOneBasedWhenIndexed(t *testing.T) {
	data := OBJ(triangleCloud())
	require.True(t, strings.Contains(string(data), "f 1 2 3\n"))
}

func TestOBJWritesNormalsWhenPresent(t *testing.T) {
	c := triangleCloud()
	c.Normals = []r3.Vec{{X: 0, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}}
	data := OBJ(c)
	s := string(data)
	require.True(t, strings.Contains(s, "vn 0 1 0"))
	require.True(t, strings.Contains(s, "f 1//1 2//2 3//3\n"))
}

func TestXYZColorsAs0to255Ints(t *testing.T) {
	data := XYZ(twoPointCloud())
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "0 0 0 255 0 0", lines[0])
}

func TestPTSHasLeadingCountLine(t *testing.T) {
	data := PTS(twoPointCloud())
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, "2", lines[0])
	require.Len(t, lines, 3)
}

func TestCSVHasHeaderRow(t *testing.T) {
	data := CSV(twoPointCloud())
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, "x,y,z,r,g,b,intensity,classification", lines[0])
	require.Len(t, lines, 3)
}

func TestClampByteRoundsAndClamps(t *testing.T) {
	require.Equal(t, uint8(255), clampByte(1.5))
	require.Equal(t, uint8(0), clampByte(-0.5))
	require.Equal(t, uint8(128), clampByte(128.0/255))
}

func TestClassByteDoesNotNormalize(t *testing.T) {
	require.Equal(t, uint8(7), classByte(7))
	require.Equal(t, uint8(255), classByte(300))
}
