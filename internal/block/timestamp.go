package block

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Timestamp is the 64-bit signed epoch id used throughout the engine:
// positive for committed writes, negative (-txn_id) for writes not yet
// committed, and RollbackTombstone for aborted or not-yet-assigned state.
type Timestamp = int64

// RollbackTombstone is the "unset" sentinel: the deletion time of an edge
// entry that has not been deleted, and the value Abort restores into the
// timestamps a transaction pinned. It sorts after every real epoch so it
// is never mistaken for "visible".
const RollbackTombstone Timestamp = math.MaxInt64

// timestampAt returns a pointer to the int64 stored at byte offset off in
// buf, for use with sync/atomic. Callers must keep fields 8-byte aligned;
// every block layout in this package guarantees that by construction.
func timestampAt(buf []byte, off int) *int64 {
	return (*int64)(unsafe.Pointer(&buf[off]))
}

// LoadTimestamp atomically reads the timestamp at the given pointer.
func LoadTimestamp(p *int64) Timestamp {
	return atomic.LoadInt64(p)
}

// StoreTimestamp atomically writes the timestamp at the given pointer.
func StoreTimestamp(p *int64, v Timestamp) {
	atomic.StoreInt64(p, v)
}
