package block

import (
	"encoding/binary"
	"sync/atomic"
)

// EdgeLabelBlock maps a vertex's outgoing edge labels to the head of each
// label's edge-block chain: {order, vertex_id, creation_time, prev_pointer,
// num_entries, entries[num_entries]}.
type EdgeLabelBlock struct {
	buf []byte
}

const (
	elOrder        = 0
	elVertexID     = 8
	elCreationTime = 16
	elPrevPointer  = 24
	elNumEntries   = 32
	EdgeLabelBlockHeaderSize = 40
	edgeLabelEntrySize       = 16
)

// EdgeLabelEntryCapacity returns how many label entries fit in a block of
// the given order.
func EdgeLabelEntryCapacity(order int) int {
	return ((1 << uint(order)) - EdgeLabelBlockHeaderSize) / edgeLabelEntrySize
}

// EdgeLabelBlockSize returns the header+entries size needed for n entries.
func EdgeLabelBlockSize(n int) int {
	return EdgeLabelBlockHeaderSize + n*edgeLabelEntrySize
}

func ViewEdgeLabelBlock(buf []byte) EdgeLabelBlock {
	return EdgeLabelBlock{buf: buf}
}

func (e EdgeLabelBlock) Valid() bool { return e.buf != nil }

// Fill initializes a freshly allocated (possibly empty) edge-label block.
func (e EdgeLabelBlock) Fill(order int32, vertexID uint64, creationTime Timestamp, prevPointer Pointer) {
	binary.LittleEndian.PutUint32(e.buf[elOrder:], uint32(order))
	binary.LittleEndian.PutUint64(e.buf[elVertexID:], vertexID)
	StoreTimestamp(e.CreationTimePointer(), creationTime)
	binary.LittleEndian.PutUint64(e.buf[elPrevPointer:], uint64(prevPointer))
	atomic.StoreInt32(e.numEntriesPtr(), 0)
}

func (e EdgeLabelBlock) numEntriesPtr() *int32 {
	return (*int32)(ptr32(e.buf, elNumEntries))
}

func (e EdgeLabelBlock) Order() int32 { return int32(binary.LittleEndian.Uint32(e.buf[elOrder:])) }

func (e EdgeLabelBlock) VertexID() uint64 { return binary.LittleEndian.Uint64(e.buf[elVertexID:]) }

func (e EdgeLabelBlock) CreationTimePointer() *int64 { return timestampAt(e.buf, elCreationTime) }

func (e EdgeLabelBlock) PrevPointer() Pointer {
	return Pointer(binary.LittleEndian.Uint64(e.buf[elPrevPointer:]))
}

func (e EdgeLabelBlock) NumEntries() int { return int(atomic.LoadInt32(e.numEntriesPtr())) }

func (e EdgeLabelBlock) entryOffset(i int) int {
	return EdgeLabelBlockHeaderSize + i*edgeLabelEntrySize
}

// Label returns the label of the i'th entry.
func (e EdgeLabelBlock) Label(i int) int32 {
	off := e.entryOffset(i)
	return int32(binary.LittleEndian.Uint32(e.buf[off:]))
}

// EdgePointer returns the edge-chain head pointer of the i'th entry.
func (e EdgeLabelBlock) EdgePointer(i int) Pointer {
	off := e.entryOffset(i) + 8
	return Pointer(binary.LittleEndian.Uint64(e.buf[off:]))
}

// SetEdgePointer overwrites the i'th entry's chain head pointer in place.
func (e EdgeLabelBlock) SetEdgePointer(i int, p Pointer) {
	off := e.entryOffset(i) + 8
	binary.LittleEndian.PutUint64(e.buf[off:], uint64(p))
}

// Find returns the index of the entry for label, or -1.
func (e EdgeLabelBlock) Find(label int32) int {
	n := e.NumEntries()
	for i := 0; i < n; i++ {
		if e.Label(i) == label {
			return i
		}
	}
	return -1
}

// Capacity reports how many entries this block's order can hold.
func (e EdgeLabelBlock) Capacity() int {
	return EdgeLabelEntryCapacity(int(e.Order()))
}

// Append writes a new {label, pointer} entry in place and returns true, or
// returns false if the block has no remaining capacity.
func (e EdgeLabelBlock) Append(label int32, pointer Pointer) bool {
	n := e.NumEntries()
	if n >= e.Capacity() {
		return false
	}
	off := e.entryOffset(n)
	binary.LittleEndian.PutUint32(e.buf[off:], uint32(label))
	binary.LittleEndian.PutUint64(e.buf[off+8:], uint64(pointer))
	atomic.StoreInt32(e.numEntriesPtr(), int32(n+1))
	return true
}
