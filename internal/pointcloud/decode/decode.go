// Package decode holds the common decoder contract (spec.md §4.1) shared
// by every format-specific subpackage: the canonical error kinds, and the
// Builder that performs centering, the Y-up swap, and stride sampling so
// individual decoders only need to produce RawPoints in their own source
// frame.
package decode

import "github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"

// Decoder maps an immutable byte range to a canonical cloud. Implementations
// never partially commit: on any error the returned cloud is nil.
type Decoder interface {
	Decode(data []byte) (*cloud.Cloud, error)
}

// Func adapts a plain function to the Decoder interface.
type Func func(data []byte) (*cloud.Cloud, error)

// Decode implements Decoder.
func (f Func) Decode(data []byte) (*cloud.Cloud, error) { return f(data) }
