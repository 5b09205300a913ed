// Package laz decodes LASzip-compressed point clouds by delegating
// decompression to an external collaborator and then applying LAS point
// semantics to the result (spec.md §4.1 "LAZ").
package laz

import (
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/las"
)

// Decompressor turns LAZ bytes into an uncompressed LAS byte stream. No
// such library is retrievable in this module's dependency pack (LASzip
// has no pure-Go port among gonum/uuid/testify/go-cmp), so production
// wiring of a real decompressor is left to the caller via this interface
// rather than fabricated here.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Decode delegates to dc to produce uncompressed LAS bytes, then decodes
// those with the LAS decoder.
func Decode(data []byte, dc Decompressor) (*cloud.Cloud, error) {
	if dc == nil {
		return nil, decode.UnsupportedVariantf("laz", "no LAZ decompressor configured")
	}
	uncompressed, err := dc.Decompress(data)
	if err != nil {
		return nil, decode.UnsupportedVariantf("laz", "decompress: %v", err)
	}
	return las.Decode(uncompressed)
}
