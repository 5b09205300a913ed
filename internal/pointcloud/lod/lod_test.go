package lod

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/protocol"
)

type fakeBackend struct {
	mu       sync.Mutex
	plan     []NodePlan
	planErr  error
	binaries map[string][]byte
	calls    int
}

func (f *fakeBackend) OpenPointcloud(ctx context.Context, path string) (string, int, [2]r3.Vec, bool, bool, bool, error) {
	return "cloud-1", 0, [2]r3.Vec{}, false, false, false, nil
}

func (f *fakeBackend) GetVisibleNodes(ctx context.Context, id string, cam Camera, budget int) ([]NodePlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.plan, f.planErr
}

func (f *fakeBackend) GetNodesBinary(ctx context.Context, id string, nodeIDs []string) ([]byte, error) {
	return f.binaries[nodeIDs[0]], nil
}

func (f *fakeBackend) GetProgress(ctx context.Context, id string) (float64, string, error) {
	return 1, "Complete", nil
}

func chunkBinary(nodeID string) []byte {
	ch := protocol.Chunk{
		NodeID:          nodeID,
		Positions:       []float32{1, 2, 3},
		Colors:          []uint8{255, 0, 0},
		Intensities:     []uint16{65535},
		Classifications: []uint8{2},
	}
	return protocol.EncodeChunks([]protocol.Chunk{ch})
}

func TestTickLoadsPlannedNodes(t *testing.T) {
	backend := &fakeBackend{
		plan:     []NodePlan{{NodeID: "n1"}},
		binaries: map[string][]byte{"n1": chunkBinary("n1")},
	}
	c := New(backend, "cloud-1", r3.Vec{})
	c.Tick(context.Background(), Camera{Position: r3.Vec{X: 1}}, 1000)

	resident := c.Resident()
	require.Len(t, resident, 1)
	require.Equal(t, "n1", resident[0].NodeID)
}

func TestTickThrottledWithinInterval(t *testing.T) {
	backend := &fakeBackend{plan: []NodePlan{{NodeID: "n1"}}, binaries: map[string][]byte{"n1": chunkBinary("n1")}}
	c := New(backend, "cloud-1", r3.Vec{})
	c.Tick(context.Background(), Camera{Position: r3.Vec{X: 1}}, 1000)
	c.Tick(context.Background(), Camera{Position: r3.Vec{X: 2}}, 1000) // within 100ms, throttled

	backend.mu.Lock()
	calls := backend.calls
	backend.mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestTickNoopWithoutCameraOrBudgetChange(t *testing.T) {
	backend := &fakeBackend{plan: nil}
	c := New(backend, "cloud-1", r3.Vec{})
	c.Tick(context.Background(), Camera{}, 0) // identical to zero-value lastCamera/lastBudget
	backend.mu.Lock()
	calls := backend.calls
	backend.mu.Unlock()
	require.Zero(t, calls)
}

func TestTickAbsorbsBackendError(t *testing.T) {
	backend := &fakeBackend{planErr: errors.New("backend down")}
	c := New(backend, "cloud-1", r3.Vec{})
	require.NotPanics(t, func() {
		c.Tick(context.Background(), Camera{Position: r3.Vec{X: 1}}, 1000)
	})
	require.Empty(t, c.Resident())
}

func TestApplyPlanEvictsUnwantedNodes(t *testing.T) {
	backend := &fakeBackend{
		plan:     []NodePlan{{NodeID: "n1"}},
		binaries: map[string][]byte{"n1": chunkBinary("n1"), "n2": chunkBinary("n2")},
	}
	c := New(backend, "cloud-1", r3.Vec{})
	c.Tick(context.Background(), Camera{Position: r3.Vec{X: 1}}, 1000)
	require.Len(t, c.Resident(), 1)

	time.Sleep(tickInterval + 10*time.Millisecond)
	backend.plan = []NodePlan{{NodeID: "n2"}}
	c.Tick(context.Background(), Camera{Position: r3.Vec{X: 5}}, 1000)

	resident := c.Resident()
	require.Len(t, resident, 1)
	require.Equal(t, "n2", resident[0].NodeID)
}

func TestDisposeClearsResidentNodes(t *testing.T) {
	backend := &fakeBackend{plan: []NodePlan{{NodeID: "n1"}}, binaries: map[string][]byte{"n1": chunkBinary("n1")}}
	c := New(backend, "cloud-1", r3.Vec{})
	c.Tick(context.Background(), Camera{Position: r3.Vec{X: 1}}, 1000)
	c.Dispose()
	require.Empty(t, c.Resident())
}

func TestDecodeChunkAppliesZUpToYUpSwapAndOffset(t *testing.T) {
	data := chunkBinary("n1")
	buf, err := decodeChunk(data, r3.Vec{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	// source (1,2,3): x'=x-off.X=0, y'=z-off.Y=1, z'=-y-off.Z=-5
	require.InDelta(t, 0, buf.Positions[0], 1e-6)
	require.InDelta(t, 1, buf.Positions[1], 1e-6)
	require.InDelta(t, -5, buf.Positions[2], 1e-6)
	require.InDelta(t, 1.0, buf.Colors[0], 1e-6)
	require.InDelta(t, 1.0, buf.Intensities[0], 1e-6)
}
