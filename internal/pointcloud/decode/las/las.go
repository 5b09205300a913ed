// Package las decodes uncompressed ASPRS LAS point clouds (versions
// 1.0-1.4) into the canonical cloud representation.
package las

import (
	"encoding/binary"
	"math"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
)

// Public header field offsets, fixed across all LAS versions 1.0-1.4.
const (
	magicOffset     = 0
	magicLen        = 4
	versionMajorOff = 24
	versionMinorOff = 25

	headerSizeOff       = 94  // u16
	offsetToPointsOff   = 96  // u32
	pointFormatOff      = 104 // u8
	recordLengthOff     = 105 // u16
	legacyPointCountOff = 107 // u32

	scaleXOff  = 131 // f64 × 3, 8 bytes each
	offsetXOff = 155 // f64 × 3, 8 bytes each

	// maxX, minX, maxY, minY, maxZ, minZ — six f64 in that order.
	boundsOff = 179

	// 1.4-only 64-bit point count, used when the legacy u32 count is 0.
	extPointCountLoOff = 247
	extPointCountHiOff = 251
)

// Per-point record field offsets, relative to the start of each record.
const (
	rawXOff = 0 // i32
	rawYOff = 4 // i32
	rawZOff = 8 // i32

	intensityOff = 12 // u16

	classOffLow  = 15 // formats 0-5
	classOffHigh = 16 // formats 6-10
)

func rgbOffset(pointFormat byte) (off int, ok bool) {
	switch pointFormat {
	case 2:
		return 20, true
	case 3, 5:
		return 28, true
	case 7, 8, 10:
		return 30, true
	default:
		return 0, false
	}
}

const magic = "LASF"

// Decode implements decode.Decoder for uncompressed LAS streams.
func Decode(data []byte) (*cloud.Cloud, error) {
	if len(data) < boundsOff+48 {
		return nil, decode.Truncatedf("las", "header too short: %d bytes", len(data))
	}
	if string(data[magicOffset:magicOffset+magicLen]) != magic {
		return nil, decode.InvalidSignaturef("las", "missing LASF magic")
	}

	headerSize := binary.LittleEndian.Uint16(data[headerSizeOff:])
	offsetToPoints := binary.LittleEndian.Uint32(data[offsetToPointsOff:])
	pointFormat := data[pointFormatOff] &^ 0x80 // strip the 1.4 "extended" bit
	recordLength := binary.LittleEndian.Uint16(data[recordLengthOff:])
	legacyCount := binary.LittleEndian.Uint32(data[legacyPointCountOff:])

	if int(headerSize) > len(data) || int(offsetToPoints) > len(data) {
		return nil, decode.Truncatedf("las", "header/point offsets exceed file length")
	}

	count := uint64(legacyCount)
	if count == 0 && len(data) > extPointCountHiOff+4 {
		lo := uint64(binary.LittleEndian.Uint32(data[extPointCountLoOff:]))
		hi := uint64(binary.LittleEndian.Uint32(data[extPointCountHiOff:]))
		count = hi<<32 | lo
	}

	scaleX := readF64(data, scaleXOff)
	scaleY := readF64(data, scaleXOff+8)
	scaleZ := readF64(data, scaleXOff+16)
	offX := readF64(data, offsetXOff)
	offY := readF64(data, offsetXOff+8)
	offZ := readF64(data, offsetXOff+16)

	classOff := classOffLow
	if pointFormat >= 6 {
		classOff = classOffHigh
	}
	rgbOff, hasColor := rgbOffset(pointFormat)

	b := decode.NewBuilder("las")
	b.HasIntensity = true
	b.HasClassification = true
	b.HasColor = hasColor

	sixteenBit := false
	if hasColor {
		sixteenBit = anyChannelAbove255(data, offsetToPoints, recordLength, rgbOff, count)
	}

	recStart := uint64(offsetToPoints)
	recLen := uint64(recordLength)
	for i := uint64(0); i < count; i++ {
		rec := recStart + i*recLen
		if rec+uint64(recordLength) > uint64(len(data)) {
			break // truncated tail: keep what decoded cleanly
		}
		rx := int32(binary.LittleEndian.Uint32(data[rec+rawXOff:]))
		ry := int32(binary.LittleEndian.Uint32(data[rec+rawYOff:]))
		rz := int32(binary.LittleEndian.Uint32(data[rec+rawZOff:]))

		p := decode.RawPoint{
			X: float64(rx)*scaleX + offX,
			Y: float64(ry)*scaleY + offY,
			Z: float64(rz)*scaleZ + offZ,
		}

		rawIntensity := binary.LittleEndian.Uint16(data[rec+intensityOff:])
		p.Intensity = float32(rawIntensity) / 65535

		p.Classification = float32(data[rec+uint64(classOff)])

		if hasColor {
			ro := rec + uint64(rgbOff)
			r := binary.LittleEndian.Uint16(data[ro:])
			g := binary.LittleEndian.Uint16(data[ro+2:])
			bb := binary.LittleEndian.Uint16(data[ro+4:])
			if sixteenBit {
				p.R = float32(r) / 65535
				p.G = float32(g) / 65535
				p.B = float32(bb) / 65535
			} else {
				p.R = float32(r) / 255
				p.G = float32(g) / 255
				p.B = float32(bb) / 255
			}
		}

		b.Add(p)
	}

	return b.Finalize()
}

func anyChannelAbove255(data []byte, offsetToPoints uint32, recordLength uint16, rgbOff int, count uint64) bool {
	recStart := uint64(offsetToPoints)
	recLen := uint64(recordLength)
	for i := uint64(0); i < count; i++ {
		rec := recStart + i*recLen
		if rec+uint64(recordLength) > uint64(len(data)) {
			break
		}
		ro := rec + uint64(rgbOff)
		r := binary.LittleEndian.Uint16(data[ro:])
		g := binary.LittleEndian.Uint16(data[ro+2:])
		bb := binary.LittleEndian.Uint16(data[ro+4:])
		if r > 255 || g > 255 || bb > 255 {
			return true
		}
	}
	return false
}

func readF64(data []byte, off int) float64 {
	bits := binary.LittleEndian.Uint64(data[off:])
	return math.Float64frombits(bits)
}
