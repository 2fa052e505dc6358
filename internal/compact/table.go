// Package compact tracks vertices touched by recent writes so a
// background compactor can find work without scanning the whole graph.
// No compactor runs here; Table is the feed a future one would drain.
package compact

import "sync"

// Table is a mutex-guarded set of touched vertex ids, grounded on the
// same lock-a-map shape as internal/latch.Table.
type Table struct {
	mu      sync.Mutex
	touched map[uint64]struct{}
}

// NewTable returns an empty compaction table.
func NewTable() *Table {
	return &Table{touched: make(map[uint64]struct{})}
}

// Touch records that vertexID had a write published against it.
func (t *Table) Touch(vertexID uint64) {
	t.mu.Lock()
	t.touched[vertexID] = struct{}{}
	t.mu.Unlock()
}

// Drain removes and returns every vertex id recorded since the last
// Drain call.
func (t *Table) Drain() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.touched) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(t.touched))
	for id := range t.touched {
		out = append(out, id)
	}
	t.touched = make(map[uint64]struct{})
	return out
}
