package las

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

// buildLAS constructs a minimal LAS 1.2 point-format-2 file with the
// given raw (integer) XYZ tuples, scale, and offset. Each point gets a
// distinct RGB and intensity so round-trip fidelity is checkable.
func buildLAS(t *testing.T, raws [][3]int32, scale, offset [3]float64) []byte {
	t.Helper()
	const headerSize = 227
	const recordLength = 26 // point format 2: 20 base + 6 RGB
	data := make([]byte, headerSize+len(raws)*recordLength)

	copy(data[0:4], "LASF")
	data[24] = 1 // version major
	data[25] = 2 // version minor
	binary.LittleEndian.PutUint16(data[headerSizeOff:], headerSize)
	binary.LittleEndian.PutUint32(data[offsetToPointsOff:], headerSize)
	data[pointFormatOff] = 2
	binary.LittleEndian.PutUint16(data[recordLengthOff:], recordLength)
	binary.LittleEndian.PutUint32(data[legacyPointCountOff:], uint32(len(raws)))

	putF64 := func(off int, v float64) {
		binary.LittleEndian.PutUint64(data[off:], math.Float64bits(v))
	}
	putF64(scaleXOff, scale[0])
	putF64(scaleXOff+8, scale[1])
	putF64(scaleXOff+16, scale[2])
	putF64(offsetXOff, offset[0])
	putF64(offsetXOff+8, offset[1])
	putF64(offsetXOff+16, offset[2])

	for i, raw := range raws {
		rec := headerSize + i*recordLength
		binary.LittleEndian.PutUint32(data[rec+rawXOff:], uint32(raw[0]))
		binary.LittleEndian.PutUint32(data[rec+rawYOff:], uint32(raw[1]))
		binary.LittleEndian.PutUint32(data[rec+rawZOff:], uint32(raw[2]))
		binary.LittleEndian.PutUint16(data[rec+intensityOff:], uint16(1000*(i+1)))
		data[rec+classOffLow] = byte(i % 8)
		rgbOff, _ := rgbOffset(2)
		binary.LittleEndian.PutUint16(data[rec+rgbOff:], uint16(10*(i+1)))
		binary.LittleEndian.PutUint16(data[rec+rgbOff+2:], uint16(20*(i+1)))
		binary.LittleEndian.PutUint16(data[rec+rgbOff+4:], uint16(30*(i+1)))
	}
	return data
}

func TestDecodeEightPointGrid(t *testing.T) {
	var raws [][3]int32
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				raws = append(raws, [3]int32{int32(x), int32(y), int32(z)})
			}
		}
	}
	data := buildLAS(t, raws, [3]float64{1, 1, 1}, [3]float64{0, 0, 0})

	c, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, 8, c.PointCount())
	require.True(t, c.HasColor)
	require.True(t, c.HasIntensity)
	require.True(t, c.HasClassification)
	require.NoError(t, c.Validate())
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := buildLAS(t, [][3]int32{{0, 0, 0}}, [3]float64{1, 1, 1}, [3]float64{0, 0, 0})
	copy(data[0:4], "XXXX")
	_, err := Decode(data)
	require.Error(t, err)
	var de *decode.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, decode.InvalidSignature, de.Kind)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	require.Error(t, err)
	var de *decode.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, decode.Truncated, de.Kind)
}

func TestDecodeEightBitColorWhenAllChannelsLow(t *testing.T) {
	data := buildLAS(t, [][3]int32{{0, 0, 0}}, [3]float64{0.01, 0.01, 0.01}, [3]float64{0, 0, 0})
	c, err := Decode(data)
	require.NoError(t, err)
	// single point, RGB = 10,20,30 -> under 255, treated as 8-bit
	require.InDelta(t, 10.0/255, c.Colors[0], 1e-6)
}

func TestDecodeAppliesScaleAndOffset(t *testing.T) {
	data := buildLAS(t, [][3]int32{{100, 200, 300}}, [3]float64{0.01, 0.01, 0.01}, [3]float64{5, 10, 15})
	c, err := Decode(data)
	require.NoError(t, err)
	// source point = (100*0.01+5, 200*0.01+10, 300*0.01+15) = (6, 12, 18)
	// center == this single point, so output position is (0,0,0)
	p := c.Position(0)
	require.InDelta(t, 0.0, p.X, 1e-4)
	require.InDelta(t, 0.0, p.Y, 1e-4)
	require.InDelta(t, 0.0, p.Z, 1e-4)
}
