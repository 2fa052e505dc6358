// Package directory implements the Graph Directory: the two arrays that
// map a vertex id to the arena pointer of its newest vertex-block version
// and the head of its edge-label block chain.
package directory

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/myuser/graphstore/internal/block"
)

// Directory holds vertex_ptrs and edge_label_ptrs, growing either slice
// under a write lock whenever a vertex id exceeds current capacity.
// Reads and publishes hold the read lock while they index the slice and
// load or store the pointer atomically via atomic.Uintptr, so growth
// (which copies the slice under the write lock) never races with them.
type Directory struct {
	mu            sync.RWMutex
	vertexPtrs    []atomic.Uintptr
	edgeLabelPtrs []atomic.Uintptr
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{}
}

func (d *Directory) growLocked(id uint64) {
	need := int(id) + 1
	for len(d.vertexPtrs) < need {
		d.vertexPtrs = append(d.vertexPtrs, atomic.Uintptr{})
		d.edgeLabelPtrs = append(d.edgeLabelPtrs, atomic.Uintptr{})
	}
}

func (d *Directory) ensure(id uint64) {
	d.mu.RLock()
	ok := int(id) < len(d.vertexPtrs)
	d.mu.RUnlock()
	if ok {
		return
	}

	d.mu.Lock()
	d.growLocked(id)
	d.mu.Unlock()
}

// VertexPointer returns the newest published block.Pointer for vertexID,
// or block.NullPointer if the id has never been touched.
func (d *Directory) VertexPointer(vertexID uint64) block.Pointer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(vertexID) >= len(d.vertexPtrs) {
		return block.NullPointer
	}
	return block.Pointer(d.vertexPtrs[vertexID].Load())
}

// SetVertexPointer publishes p as vertexID's newest vertex-block version.
// The caller must hold vertexID's latch.
func (d *Directory) SetVertexPointer(vertexID uint64, p block.Pointer) {
	d.ensure(vertexID)
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.vertexPtrs[vertexID].Store(uintptr(p))
}

// EdgeLabelPointer returns the head of vertexID's edge-label block chain,
// or block.NullPointer if it has none.
func (d *Directory) EdgeLabelPointer(vertexID uint64) block.Pointer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(vertexID) >= len(d.edgeLabelPtrs) {
		return block.NullPointer
	}
	return block.Pointer(d.edgeLabelPtrs[vertexID].Load())
}

// SetEdgeLabelPointer publishes p as the head of vertexID's edge-label
// block chain. The caller must hold vertexID's latch.
func (d *Directory) SetEdgeLabelPointer(vertexID uint64, p block.Pointer) {
	d.ensure(vertexID)
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.edgeLabelPtrs[vertexID].Store(uintptr(p))
}
