// Package registry implements the process-wide Cloud Registry (spec.md
// §4.3): a flat id→cloud map plus a parallel id→metadata map, passed by
// reference rather than held as a module-level singleton, per Design
// Notes §9.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
)

// Entry is the UI-visible metadata for one loaded dataset (spec.md §3
// "Cloud Entry"), held separately from the point buffers so the UI can
// poll cheap fields without touching the backing arrays.
type Entry struct {
	ID       string
	Name     string
	Path     string
	Source   string
	Visible  bool

	TotalPoints       int
	BoundsMin         [3]float64
	BoundsMax         [3]float64
	HasColor          bool
	HasIntensity      bool
	HasClassification bool

	IndexingProgress float64 // 0..1
	IndexingPhase    string

	TransformVersion uint64

	createdAt time.Time
}

// Registry owns every loaded Canonical Cloud for the process's lifetime.
// It is constructed with New and torn down with Close; it is never a
// package-level singleton (Design Notes §9).
type Registry struct {
	mu      sync.RWMutex
	clouds  map[string]*cloud.Cloud
	entries map[string]*Entry
}

// New constructs an empty, ready-to-use Registry.
func New() *Registry {
	return &Registry{
		clouds:  make(map[string]*cloud.Cloud),
		entries: make(map[string]*Entry),
	}
}

// Close releases every held cloud and entry. The Registry must not be
// used afterward.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clouds = nil
	r.entries = nil
}

// Put installs a decoded cloud under a freshly minted UUID v4 id and
// returns the new Entry. Set operations are total (spec.md §4.3): Put
// always succeeds given a non-nil cloud.
func (r *Registry) Put(name, path, source string, c *cloud.Cloud) *Entry {
	id := uuid.NewString()
	min, max := c.Bounds()
	e := &Entry{
		ID:                id,
		Name:              name,
		Path:              path,
		Source:            source,
		Visible:           true,
		TotalPoints:       c.PointCount(),
		BoundsMin:         [3]float64{min.X, min.Y, min.Z},
		BoundsMax:         [3]float64{max.X, max.Y, max.Z},
		HasColor:          c.HasColor,
		HasIntensity:      c.HasIntensity,
		HasClassification: c.HasClassification,
		IndexingPhase:     "Complete",
		IndexingProgress:  1,
		TransformVersion:  0,
		createdAt:         time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clouds[id] = c
	r.entries[id] = e
	return e
}

// Get returns the cloud and entry for id, or ok=false if absent (spec.md
// §4.3 "get(id) → Option").
func (r *Registry) Get(id string) (c *cloud.Cloud, e *Entry, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok = r.clouds[id]
	if !ok {
		return nil, nil, false
	}
	return c, r.entries[id], true
}

// Entry returns just the metadata for id, or ok=false if absent.
func (r *Registry) Entry(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Remove deletes id from the registry entirely (spec.md §4.3
// "remove(id)"); a no-op if id is absent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clouds, id)
	delete(r.entries, id)
}

// SetVisible flips the UI-visible flag for id; a silent no-op if absent
// (transforms have no error path other than "no such cloud", per §7, and
// this registry-level toggle follows the same contract).
func (r *Registry) SetVisible(id string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.Visible = visible
	}
}

// BumpTransformVersion increments id's monotonic transformVersion counter
// and refreshes its point-count/bounds snapshot from the live
// cloud, called by every Transform/Edit operation after it mutates the
// cloud in place.
func (r *Registry) BumpTransformVersion(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, okC := r.clouds[id]
	e, okE := r.entries[id]
	if !okC || !okE {
		return
	}
	e.TransformVersion++
	e.TotalPoints = c.PointCount()
	min, max := c.Bounds()
	e.BoundsMin = [3]float64{min.X, min.Y, min.Z}
	e.BoundsMax = [3]float64{max.X, max.Y, max.Z}
}

// IDs returns a snapshot of every id currently registered.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clouds))
	for id := range r.clouds {
		out = append(out, id)
	}
	return out
}
