// Package export serializes a Canonical Cloud to the on-disk formats
// spec.md §4.9 names: PLY (binary-LE and ascii), OBJ, XYZ, PTS, and CSV.
package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
)

// clampByte converts a [0,1] color channel to a rounded, clamped 0..255
// byte.
func clampByte(v float32) uint8 {
	i := int(math.Round(float64(v) * 255))
	if i < 0 {
		i = 0
	}
	if i > 255 {
		i = 255
	}
	return uint8(i)
}

// classByte clamps a raw ASPRS classification code (already 0..255, not
// normalized) to a byte.
func classByte(v float32) uint8 {
	i := int(math.Round(float64(v)))
	if i < 0 {
		i = 0
	}
	if i > 255 {
		i = 255
	}
	return uint8(i)
}

// PLYBinary writes the binary_little_endian PLY variant: per vertex 3
// float32 xyz (12B) + 3 uchar rgb (3B) + float32 intensity (4B) + uchar
// classification (1B) = 20B; per face uchar(3) + 3 int32 = 13B.
func PLYBinary(c *cloud.Cloud) []byte {
	n := c.PointCount()
	faces := len(c.Indices) / 3

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "ply\n")
	fmt.Fprintf(&buf, "format binary_little_endian 1.0\n")
	fmt.Fprintf(&buf, "element vertex %d\n", n)
	fmt.Fprintf(&buf, "property float x\nproperty float y\nproperty float z\n")
	fmt.Fprintf(&buf, "property uchar red\nproperty uchar green\nproperty uchar blue\n")
	fmt.Fprintf(&buf, "property float intensity\n")
	fmt.Fprintf(&buf, "property uchar classification\n")
	if faces > 0 {
		fmt.Fprintf(&buf, "element face %d\n", faces)
		fmt.Fprintf(&buf, "property list uchar int vertex_indices\n")
	}
	fmt.Fprintf(&buf, "end_header\n")

	var f32 [4]byte
	for i := 0; i < n; i++ {
		for axis := 0; axis < 3; axis++ {
			binary.LittleEndian.PutUint32(f32[:], math.Float32bits(c.Positions[3*i+axis]))
			buf.Write(f32[:])
		}
		buf.WriteByte(clampByte(c.Colors[3*i]))
		buf.WriteByte(clampByte(c.Colors[3*i+1]))
		buf.WriteByte(clampByte(c.Colors[3*i+2]))
		binary.LittleEndian.PutUint32(f32[:], math.Float32bits(c.Intensities[i]))
		buf.Write(f32[:])
		buf.WriteByte(classByte(c.Classifications[i]))
	}

	var i32 [4]byte
	for t := 0; t+2 < len(c.Indices); t += 3 {
		buf.WriteByte(3)
		for k := 0; k < 3; k++ {
			binary.LittleEndian.PutUint32(i32[:], c.Indices[t+k])
			buf.Write(i32[:])
		}
	}

	return buf.Bytes()
}

// PLYAscii writes the same schema as PLYBinary in space-separated decimal.
func PLYAscii(c *cloud.Cloud) []byte {
	n := c.PointCount()
	faces := len(c.Indices) / 3

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "ply\n")
	fmt.Fprintf(&buf, "format ascii 1.0\n")
	fmt.Fprintf(&buf, "element vertex %d\n", n)
	fmt.Fprintf(&buf, "property float x\nproperty float y\nproperty float z\n")
	fmt.Fprintf(&buf, "property uchar red\nproperty uchar green\nproperty uchar blue\n")
	fmt.Fprintf(&buf, "property float intensity\n")
	fmt.Fprintf(&buf, "property uchar classification\n")
	if faces > 0 {
		fmt.Fprintf(&buf, "element face %d\n", faces)
		fmt.Fprintf(&buf, "property list uchar int vertex_indices\n")
	}
	fmt.Fprintf(&buf, "end_header\n")

	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%g %g %g %d %d %d %g %d\n",
			c.Positions[3*i], c.Positions[3*i+1], c.Positions[3*i+2],
			clampByte(c.Colors[3*i]), clampByte(c.Colors[3*i+1]), clampByte(c.Colors[3*i+2]),
			c.Intensities[i], int(c.Classifications[i]))
	}
	for t := 0; t+2 < len(c.Indices); t += 3 {
		fmt.Fprintf(&buf, "3 %d %d %d\n", c.Indices[t], c.Indices[t+1], c.Indices[t+2])
	}
	return buf.Bytes()
}

// OBJ writes `v x y z [r g b]`, optional `vn` per vertex when normals are
// present, and 1-based `f` lines (`a//a b//b c//c` when normals present).
func OBJ(c *cloud.Cloud) []byte {
	n := c.PointCount()
	hasNormals := len(c.Normals) == n && n > 0

	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		if c.HasColor {
			fmt.Fprintf(&buf, "v %g %g %g %g %g %g\n",
				c.Positions[3*i], c.Positions[3*i+1], c.Positions[3*i+2],
				c.Colors[3*i], c.Colors[3*i+1], c.Colors[3*i+2])
		} else {
			fmt.Fprintf(&buf, "v %g %g %g\n", c.Positions[3*i], c.Positions[3*i+1], c.Positions[3*i+2])
		}
	}
	if hasNormals {
		for i := 0; i < n; i++ {
			fmt.Fprintf(&buf, "vn %g %g %g\n", c.Normals[i].X, c.Normals[i].Y, c.Normals[i].Z)
		}
	}
	for t := 0; t+2 < len(c.Indices); t += 3 {
		a, b, cc := c.Indices[t]+1, c.Indices[t+1]+1, c.Indices[t+2]+1
		if hasNormals {
			fmt.Fprintf(&buf, "f %d//%d %d//%d %d//%d\n", a, a, b, b, cc, cc)
		} else {
			fmt.Fprintf(&buf, "f %d %d %d\n", a, b, cc)
		}
	}
	return buf.Bytes()
}

// XYZ writes `x y z R G B` per line, RGB as 0..255 integers.
func XYZ(c *cloud.Cloud) []byte {
	var buf bytes.Buffer
	n := c.PointCount()
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%g %g %g %d %d %d\n",
			c.Positions[3*i], c.Positions[3*i+1], c.Positions[3*i+2],
			clampByte(c.Colors[3*i]), clampByte(c.Colors[3*i+1]), clampByte(c.Colors[3*i+2]))
	}
	return buf.Bytes()
}

// PTS writes the leading point-count line, then `x y z intensity R G B`.
func PTS(c *cloud.Cloud) []byte {
	var buf bytes.Buffer
	n := c.PointCount()
	fmt.Fprintf(&buf, "%d\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%g %g %g %g %d %d %d\n",
			c.Positions[3*i], c.Positions[3*i+1], c.Positions[3*i+2],
			c.Intensities[i],
			clampByte(c.Colors[3*i]), clampByte(c.Colors[3*i+1]), clampByte(c.Colors[3*i+2]))
	}
	return buf.Bytes()
}

// CSV writes the header `x,y,z,r,g,b,intensity,classification` followed
// by one row per point.
func CSV(c *cloud.Cloud) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "x,y,z,r,g,b,intensity,classification\n")
	n := c.PointCount()
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%g,%g,%g,%d,%d,%d,%g,%d\n",
			c.Positions[3*i], c.Positions[3*i+1], c.Positions[3*i+2],
			clampByte(c.Colors[3*i]), clampByte(c.Colors[3*i+1]), clampByte(c.Colors[3*i+2]),
			c.Intensities[i], int(c.Classifications[i]))
	}
	return buf.Bytes()
}
