// Package dispatch implements the Parse Dispatcher (spec.md §4.2): it
// picks a decoder by case-insensitive file extension, runs most formats
// on a worker goroutine so the caller's thread stays free, and streams
// progress events over a channel.
package dispatch

import (
	"context"
	"strings"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/dxf"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/e57"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/las"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/laz"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/obj"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/off"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/pcd"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/ply"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/pts"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/ptx"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/stl"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/decode/xyztext"
)

// proprietaryHints maps extensions this dispatcher recognizes but refuses
// to decode (closed formats), per spec.md §6, to a conversion suggestion
// surfaced in the error.
var proprietaryHints = map[string]string{
	".rcp": "re-export from Autodesk ReCap as E57 or LAS",
	".rcs": "re-export from Autodesk ReCap as E57 or LAS",
	".fls": "re-export from FARO SCENE as E57 or PTX",
}

// mainThreadExtensions must run synchronously on the caller's goroutine
// rather than the worker pool: E57's XML prototype walk needs the
// caller's XML parser context, mirroring the browser main-thread
// constraint this dispatcher's design is modeled on.
var mainThreadExtensions = map[string]bool{
	".e57": true,
}

func ext(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i:])
}

// simpleDecode adapts a Decoder that needs no extra arguments.
func simpleDecode(ext string, data []byte) (*cloud.Cloud, error) {
	switch ext {
	case ".las":
		return las.Decode(data)
	case ".ply":
		return ply.Decode(data)
	case ".xyz", ".txt", ".csv", ".asc":
		return xyztext.Decode(data)
	case ".pts":
		return pts.Decode(data)
	case ".ptx":
		return ptx.Decode(data)
	case ".obj":
		return obj.Decode(data)
	case ".off", ".coff", ".noff", ".cnoff":
		return off.Decode(data)
	case ".stl":
		return stl.Decode(data)
	case ".pcd":
		return pcd.Decode(data)
	case ".dxf":
		return dxf.Decode(data)
	case ".e57":
		return e57.Decode(data)
	default:
		return nil, &decode.Error{Kind: decode.UnsupportedExtension, Format: ext}
	}
}

var knownExtensions = map[string]bool{
	".las": true, ".laz": true, ".ply": true, ".xyz": true, ".txt": true,
	".csv": true, ".asc": true, ".pts": true, ".ptx": true, ".obj": true,
	".off": true, ".coff": true, ".noff": true, ".cnoff": true, ".stl": true,
	".pcd": true, ".dxf": true, ".e57": true,
}

// LazDecompressor lets a caller supply an external LASzip decompressor
// for .laz inputs; Submit reports UnsupportedVariant for .laz when none
// is configured.
type LazDecompressor = laz.Decompressor

// Progress is one phase update emitted while decoding, per spec.md §4.2's
// four named phases.
type Progress struct {
	ID      string
	Phase   string
	Percent int
}

// Result is the terminal outcome of one Request: exactly one of Cloud or
// Err is set.
type Result struct {
	ID    string
	Cloud *cloud.Cloud
	Err   error
}

// Request names one file to decode; Filename's extension selects the
// decoder. Buffer ownership transfers to Dispatch and is not read again
// by the caller until the result arrives.
type Request struct {
	ID       string
	Filename string
	Buffer   []byte
}

// Dispatcher runs decode requests, offloading everything except
// main-thread-only formats (E57) onto its own goroutine per request.
type Dispatcher struct {
	laz LazDecompressor
}

// New constructs a Dispatcher. lazDecompressor may be nil, in which case
// .laz requests fail with UnsupportedVariant (no LASzip port exists in
// this module's dependency set).
func New(lazDecompressor LazDecompressor) *Dispatcher {
	return &Dispatcher{laz: lazDecompressor}
}

// Submit starts decoding req and returns a progress channel and a result
// channel. The result channel receives exactly one Result and is then
// closed; the progress channel is closed once decoding completes (either
// channel may be drained or ignored by the caller).
func (d *Dispatcher) Submit(ctx context.Context, req Request) (<-chan Progress, <-chan Result) {
	progress := make(chan Progress, 8)
	result := make(chan Result, 1)

	run := func() {
		defer close(progress)
		defer close(result)

		e := ext(req.Filename)
		if hint, ok := proprietaryHints[e]; ok {
			result <- Result{ID: req.ID, Err: decode.Proprietary(e, hint)}
			return
		}
		if !knownExtensions[e] {
			result <- Result{ID: req.ID, Err: &decode.Error{Kind: decode.UnsupportedExtension, Format: e}}
			return
		}

		progress <- Progress{ID: req.ID, Phase: "Reading file", Percent: 0}
		select {
		case <-ctx.Done():
			result <- Result{ID: req.ID, Err: ctx.Err()}
			return
		default:
		}

		progress <- Progress{ID: req.ID, Phase: "Parsing", Percent: 20}

		var c *cloud.Cloud
		var err error
		if e == ".laz" {
			if d.laz == nil {
				err = decode.UnsupportedVariantf(".laz", "no LASzip decompressor configured")
			} else {
				c, err = laz.Decode(req.Buffer, d.laz)
			}
		} else {
			c, err = simpleDecode(e, req.Buffer)
		}

		if err != nil {
			result <- Result{ID: req.ID, Err: err}
			return
		}

		progress <- Progress{ID: req.ID, Phase: "Transferring data", Percent: 90}
		progress <- Progress{ID: req.ID, Phase: "Complete", Percent: 100}
		result <- Result{ID: req.ID, Cloud: c}
	}

	if mainThreadExtensions[ext(req.Filename)] {
		run()
	} else {
		go run()
	}

	return progress, result
}
