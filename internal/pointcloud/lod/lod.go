// Package lod implements the LOD Controller (spec.md §4.8): it owns the
// visible subset of an octree-backed cloud whose full data lives behind
// an opaque backend collaborator, throttles its update tick to ≤10 Hz,
// and never mutates the Canonical Cloud.
package lod

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointcloud-studio/internal/monitoring"
	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/protocol"
)

// maxConcurrentLoads bounds outstanding chunk fetches per batch (spec.md
// §5).
const maxConcurrentLoads = 15

// tickInterval is the minimum spacing between ticks (≤10 Hz).
const tickInterval = 100 * time.Millisecond

// cameraMovedEpsilon and rotationMovedEpsilon gate whether a tick does
// any work at all.
const (
	cameraMovedEpsilon   = 1e-3
	rotationMovedEpsilon = 1e-3
)

// Camera is the minimal camera state the controller needs to ask the
// backend for a visibility plan.
type Camera struct {
	Position    r3.Vec
	RotationL1  float64 // L1 norm of orientation, opaque to the controller
	FOV         float64
	Aspect      float64
	ScreenHeight float64
}

// NodePlan is one entry of a backend visibility plan.
type NodePlan struct {
	NodeID     string
	Bounds     [2]r3.Vec
	Level      int
	PointCount int
	HasChildren bool
}

// Backend is the opaque LOD data-plane collaborator (spec.md §6). The
// controller never constructs one; it is handed an implementation by the
// caller (an octree store, typically out-of-process).
type Backend interface {
	OpenPointcloud(ctx context.Context, path string) (id string, totalPoints int, bounds [2]r3.Vec, hasColor, hasIntensity, hasClassification bool, err error)
	GetVisibleNodes(ctx context.Context, id string, cam Camera, budget int) ([]NodePlan, error)
	GetNodesBinary(ctx context.Context, id string, nodeIDs []string) ([]byte, error)
	GetProgress(ctx context.Context, id string) (progress float64, phase string, err error)
}

// NodeBuffer is one resident node's decoded, render-ready point data,
// already Z-up→Y-up swapped and translated by the cloud's world offset.
type NodeBuffer struct {
	NodeID          string
	Positions       []float32
	Colors          []float32
	Intensities     []float32
	Classifications []float32
	LastUsed        time.Time
}

// Controller tracks one cloud's resident LOD nodes and drives backend
// visibility queries on a throttled tick.
type Controller struct {
	backend     Backend
	cloudID     string
	worldOffset r3.Vec

	mu          sync.Mutex
	loaded      map[string]*NodeBuffer
	lastTick    time.Time
	lastCamera  Camera
	lastBudget  int
	ticking     bool
	disposed    bool
}

// New constructs a controller for the backend-side cloud id, translating
// every decoded chunk by worldOffset (the Canonical Cloud's AABB center)
// after the Z-up→Y-up swap.
func New(backend Backend, cloudID string, worldOffset r3.Vec) *Controller {
	return &Controller{
		backend:     backend,
		cloudID:     cloudID,
		worldOffset: worldOffset,
		loaded:      make(map[string]*NodeBuffer),
	}
}

// Tick runs one throttled visibility-plan update: it is a no-op if
// called before tickInterval has elapsed since the last tick, if the
// previous tick is still in flight, or if neither the camera nor the
// budget changed since the last tick that actually ran. BackendError is
// absorbed here and never returned to the caller, per spec.md §7; the
// next tick retries if the camera has since moved.
func (c *Controller) Tick(ctx context.Context, cam Camera, budget int) {
	c.mu.Lock()
	if c.disposed || c.ticking {
		c.mu.Unlock()
		return
	}
	now := time.Now()
	if now.Sub(c.lastTick) < tickInterval {
		c.mu.Unlock()
		return
	}
	if !c.cameraMoved(cam) && budget == c.lastBudget {
		c.mu.Unlock()
		return
	}
	c.ticking = true
	c.lastTick = now
	c.lastCamera = cam
	c.lastBudget = budget
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.ticking = false
		c.mu.Unlock()
	}()

	plan, err := c.backend.GetVisibleNodes(ctx, c.cloudID, cam, budget)
	if err != nil {
		// BackendError: log and skip this tick without applying a plan.
		monitoring.Logf("[LOD] visibility query for %s failed: %v", c.cloudID, err)
		return
	}

	c.applyPlan(ctx, plan)
}

func (c *Controller) cameraMoved(cam Camera) bool {
	dx := cam.Position.X - c.lastCamera.Position.X
	dy := cam.Position.Y - c.lastCamera.Position.Y
	dz := cam.Position.Z - c.lastCamera.Position.Z
	posDelta := math.Sqrt(dx*dx + dy*dy + dz*dz)
	rotDelta := cam.RotationL1 - c.lastCamera.RotationL1
	if rotDelta < 0 {
		rotDelta = -rotDelta
	}
	return posDelta > cameraMovedEpsilon || rotDelta > rotationMovedEpsilon
}

func (c *Controller) applyPlan(ctx context.Context, plan []NodePlan) {
	wanted := make(map[string]bool, len(plan))
	var toLoad []string
	for _, n := range plan {
		wanted[n.NodeID] = true
		c.mu.Lock()
		_, resident := c.loaded[n.NodeID]
		c.mu.Unlock()
		if !resident {
			toLoad = append(toLoad, n.NodeID)
		}
	}

	c.mu.Lock()
	for id := range c.loaded {
		if !wanted[id] {
			delete(c.loaded, id)
		}
	}
	c.mu.Unlock()

	for batchStart := 0; batchStart < len(toLoad); batchStart += maxConcurrentLoads {
		end := batchStart + maxConcurrentLoads
		if end > len(toLoad) {
			end = len(toLoad)
		}
		c.loadBatch(ctx, toLoad[batchStart:end])

		c.mu.Lock()
		disposed := c.disposed
		c.mu.Unlock()
		if disposed {
			return
		}
	}
}

func (c *Controller) loadBatch(ctx context.Context, nodeIDs []string) {
	var wg sync.WaitGroup
	for _, id := range nodeIDs {
		wg.Add(1)
		go func(nodeID string) {
			defer wg.Done()
			data, err := c.backend.GetNodesBinary(ctx, c.cloudID, []string{nodeID})
			if err != nil {
				return
			}
			buf, err := decodeChunk(data, c.worldOffset)
			if err != nil {
				return
			}

			c.mu.Lock()
			defer c.mu.Unlock()
			if c.disposed {
				return
			}
			c.loaded[nodeID] = buf
		}(id)
	}
	wg.Wait()
}

// Dispose sets the disposed flag and releases every resident buffer.
// In-flight load batches check the flag before adding to loaded.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	c.loaded = nil
}

// decodeChunk parses a single-node binary response, applies the
// Z-up→Y-up swap (y'=z, z'=-y, matching the Canonical Cloud convention)
// and translates by worldOffset (the cloud's AABB center) before
// returning a render-ready buffer.
func decodeChunk(data []byte, worldOffset r3.Vec) (*NodeBuffer, error) {
	chunks, err := protocol.DecodeChunks(data)
	if err != nil {
		return nil, err
	}
	if len(chunks) != 1 {
		return nil, fmt.Errorf("lod: expected exactly one chunk, got %d", len(chunks))
	}
	ch := chunks[0]

	n := len(ch.Positions) / 3
	positions := make([]float32, len(ch.Positions))
	for i := 0; i < n; i++ {
		x, y, z := ch.Positions[3*i], ch.Positions[3*i+1], ch.Positions[3*i+2]
		positions[3*i] = x - float32(worldOffset.X)
		positions[3*i+1] = z - float32(worldOffset.Y)
		positions[3*i+2] = -y - float32(worldOffset.Z)
	}

	colors := make([]float32, n*3)
	for i := 0; i < n; i++ {
		colors[3*i] = float32(ch.Colors[3*i]) / 255
		colors[3*i+1] = float32(ch.Colors[3*i+1]) / 255
		colors[3*i+2] = float32(ch.Colors[3*i+2]) / 255
	}

	intensities := make([]float32, n)
	for i, v := range ch.Intensities {
		intensities[i] = float32(v) / 65535
	}

	classifications := make([]float32, n)
	for i, v := range ch.Classifications {
		classifications[i] = float32(v)
	}

	return &NodeBuffer{
		NodeID:          ch.NodeID,
		Positions:       positions,
		Colors:          colors,
		Intensities:     intensities,
		Classifications: classifications,
		LastUsed:        time.Now(),
	}, nil
}

// Resident returns a snapshot of currently loaded node buffers.
func (c *Controller) Resident() []*NodeBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*NodeBuffer, 0, len(c.loaded))
	for _, b := range c.loaded {
		out = append(out, b)
	}
	return out
}
