package latch

import "go.uber.org/atomic"

// IDPool hands out vertex ids: a fresh monotonically increasing id when
// the recycled queue is empty, otherwise the oldest recycled id. Deletes
// (in non-batch mode, with recycle requested) push an id back for reuse.
type IDPool struct {
	next     atomic.Uint64
	recycled chan uint64
}

// recycledCapacity bounds the buffered-channel FIFO; a pool under heavier
// churn than this simply stops recycling and falls back to fresh ids,
// which is always correct, just less space-efficient.
const recycledCapacity = 1 << 16

// NewIDPool returns a pool that will hand out fresh ids starting at 1;
// id 0 is reserved as "no vertex".
func NewIDPool() *IDPool {
	return &IDPool{recycled: make(chan uint64, recycledCapacity)}
}

// Allocate returns a recycled id if one is available, otherwise a fresh
// one.
func (p *IDPool) Allocate() uint64 {
	if id, ok := p.TryRecycled(); ok {
		return id
	}
	return p.AllocateFresh()
}

// TryRecycled pops an id from the global recycled queue without falling
// back to a fresh allocation.
func (p *IDPool) TryRecycled() (uint64, bool) {
	select {
	case id := <-p.recycled:
		return id, true
	default:
		return 0, false
	}
}

// AllocateFresh returns a never-before-issued id, ignoring the recycled
// queue.
func (p *IDPool) AllocateFresh() uint64 {
	return p.next.Inc()
}

// Issued returns the number of fresh ids ever handed out, which (since ids
// start at 1) is also the largest id ever handed out. A vertex id is valid
// iff it is at most Issued(): AllocateFresh's post-increment convention
// means the id just returned equals the new Issued() value, not one less
// than it.
func (p *IDPool) Issued() uint64 {
	return p.next.Load()
}

// Recycle makes vertexID available for reuse by a future Allocate. The id
// must not still be referenced by any live block.
func (p *IDPool) Recycle(vertexID uint64) {
	select {
	case p.recycled <- vertexID:
	default:
		// Queue full: drop the id rather than block. Fresh allocation
		// remains correct, it just never reclaims this slot.
	}
}

// ObserveIssued records that vertexID has already been issued by some
// means other than Allocate/AllocateFresh — WAL replay, specifically,
// where ids arrive pre-assigned from the log rather than handed out by
// this pool. It raises the fresh-id counter to vertexID if it is lower,
// so Issued() covers vertexID and a later Allocate never reissues it.
func (p *IDPool) ObserveIssued(vertexID uint64) {
	for {
		cur := p.next.Load()
		if cur >= vertexID {
			return
		}
		if p.next.CompareAndSwap(cur, vertexID) {
			return
		}
	}
}
