package block

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// EdgeBlock is a typed view over one append-only run of edge entries for a
// single (src, label) chain segment:
//
//	{order, src_vertex_id, creation_time, committed_time, prev_pointer,
//	 num_entries_and_data_length (packed atomic), entries[], data[],
//	 bloom_filter}
//
// entries[] grows backward from the block's mid point; data[] grows
// forward from the same point. The Bloom filter, if present, occupies the
// tail. Entry i's data lives at data + sum(length_j for j<i), exactly as
// spec.md describes.
type EdgeBlock struct {
	buf []byte
}

const (
	ebOrder                = 0
	ebSrcVertexID          = 8
	ebCreationTime         = 16
	ebCommittedTime        = 24
	ebPrevPointer          = 32
	ebNumEntriesDataLength = 40
	ebBloomLen             = 48
	EdgeBlockHeaderSize    = 56

	edgeEntrySize = 40
	edgeEntryDst  = 0
	edgeEntryLen  = 8
	edgeEntryCTS  = 16
	edgeEntryDTS  = 24
	edgeEntryVer  = 32
)

// EdgeEntryFields is the caller-facing shape of one edge entry, used both
// to write new entries and to read existing ones back out.
type EdgeEntryFields struct {
	Dst          uint64
	Length       int32
	CreationTime Timestamp
	DeletionTime Timestamp
	Version      int64
}

// EdgeEntryView is a materialized, already-addressed entry: its timestamp
// fields are exposed as pointers so the transaction engine can pin them in
// timestamps_to_update, and Data is a direct slice into the arena.
type EdgeEntryView struct {
	Dst                  uint64
	Length               int32
	CreationTimePointer  *int64
	DeletionTimePointer  *int64
	Version              int64
	Data                 []byte
}

func ViewEdgeBlock(buf []byte) EdgeBlock { return EdgeBlock{buf: buf} }

func (e EdgeBlock) Valid() bool { return e.buf != nil }

// Fill initializes a freshly allocated edge block header. bloomLen is the
// number of bytes reserved for the embedded Bloom filter (0 for none).
// Fill writes every header field and resets the entry count to zero; it
// does not clear the entry, data or Bloom-filter bytes. A block taken from
// a fresh region starts zeroed, but Alloc does not zero space reused after
// Free, so a reused block's filter may keep stale bits.
func (e EdgeBlock) Fill(order int32, src uint64, creationTime Timestamp, prevPointer Pointer, committedTime Timestamp, bloomLen int32) {
	binary.LittleEndian.PutUint32(e.buf[ebOrder:], uint32(order))
	binary.LittleEndian.PutUint64(e.buf[ebSrcVertexID:], src)
	StoreTimestamp(e.CreationTimePointer(), creationTime)
	StoreTimestamp(e.CommittedTimePointer(), committedTime)
	binary.LittleEndian.PutUint64(e.buf[ebPrevPointer:], uint64(prevPointer))
	binary.LittleEndian.PutUint32(e.buf[ebBloomLen:], uint32(bloomLen))
	e.StoreNumEntriesDataLength(0, 0)
}

func (e EdgeBlock) Order() int32 { return int32(binary.LittleEndian.Uint32(e.buf[ebOrder:])) }

func (e EdgeBlock) SrcVertexID() uint64 { return binary.LittleEndian.Uint64(e.buf[ebSrcVertexID:]) }

func (e EdgeBlock) CreationTimePointer() *int64 { return timestampAt(e.buf, ebCreationTime) }

// CommittedTimePointer is the conflict-detection witness: the epoch at
// which this block's newest entry became visible.
func (e EdgeBlock) CommittedTimePointer() *int64 { return timestampAt(e.buf, ebCommittedTime) }

func (e EdgeBlock) PrevPointer() Pointer {
	return Pointer(binary.LittleEndian.Uint64(e.buf[ebPrevPointer:]))
}

func (e EdgeBlock) BloomLen() int32 {
	return int32(binary.LittleEndian.Uint32(e.buf[ebBloomLen:]))
}

func (e EdgeBlock) numEntriesDataLengthPtr() *uint64 {
	return (*uint64)(unsafe.Pointer(&e.buf[ebNumEntriesDataLength]))
}

// LoadNumEntriesDataLength atomically reads the packed (num_entries,
// data_length) pair.
func (e EdgeBlock) LoadNumEntriesDataLength() (numEntries, dataLength int) {
	v := atomic.LoadUint64(e.numEntriesDataLengthPtr())
	return int(v >> 32), int(uint32(v))
}

// StoreNumEntriesDataLength atomically publishes the packed pair; per
// spec.md this is the single atomic publication point for an edge block's
// entry count and data length.
func (e EdgeBlock) StoreNumEntriesDataLength(numEntries, dataLength int) {
	v := uint64(uint32(numEntries))<<32 | uint64(uint32(dataLength))
	atomic.StoreUint64(e.numEntriesDataLengthPtr(), v)
}

func (e EdgeBlock) capacityBytes() int {
	return len(e.buf) - EdgeBlockHeaderSize - int(e.BloomLen())
}

// mid is the anchor point entries grow backward from and data grows
// forward from.
func (e EdgeBlock) mid() int {
	return EdgeBlockHeaderSize + e.capacityBytes()/2
}

func (e EdgeBlock) entryOffset(index int) int {
	return e.mid() - (index+1)*edgeEntrySize
}

func (e EdgeBlock) dataRegionEnd() int {
	return len(e.buf) - int(e.BloomLen())
}

// HasSpace reports whether one more entry (with newDataLen bytes of data)
// fits given the block currently holds numEntries entries totaling
// dataLength bytes of data.
func (e EdgeBlock) HasSpace(numEntries, dataLength, newDataLen int) bool {
	entryStart := e.entryOffset(numEntries)
	if entryStart < EdgeBlockHeaderSize {
		return false
	}
	dataEnd := e.mid() + dataLength + newDataLen
	return dataEnd <= e.dataRegionEnd()
}

// AppendEntry writes a new entry at logical index numEntries (0-based,
// insertion order) and its data at the next free data offset. It does not
// touch the atomically-published (num_entries, data_length) pair —
// callers stage the new pair themselves and publish it, per spec.md's
// "staged in the block's staging cache (published atomically on commit)".
func (e EdgeBlock) AppendEntry(numEntries, dataLength int, fields EdgeEntryFields, data []byte) EdgeEntryView {
	off := e.entryOffset(numEntries)
	binary.LittleEndian.PutUint64(e.buf[off+edgeEntryDst:], fields.Dst)
	binary.LittleEndian.PutUint32(e.buf[off+edgeEntryLen:], uint32(fields.Length))
	StoreTimestamp(timestampAt(e.buf, off+edgeEntryCTS), fields.CreationTime)
	StoreTimestamp(timestampAt(e.buf, off+edgeEntryDTS), fields.DeletionTime)
	binary.LittleEndian.PutUint64(e.buf[off+edgeEntryVer:], uint64(fields.Version))

	dataOff := e.mid() + dataLength
	copy(e.buf[dataOff:dataOff+len(data)], data)

	return EdgeEntryView{
		Dst:                 fields.Dst,
		Length:              fields.Length,
		CreationTimePointer: timestampAt(e.buf, off+edgeEntryCTS),
		DeletionTimePointer: timestampAt(e.buf, off+edgeEntryDTS),
		Version:             fields.Version,
		Data:                e.buf[dataOff : dataOff+len(data)],
	}
}

// Entries materializes the numEntries live-or-not entries in insertion
// order (oldest first), each addressed with pointers into arena memory.
func (e EdgeBlock) Entries(numEntries int) []EdgeEntryView {
	if numEntries == 0 {
		return nil
	}
	views := make([]EdgeEntryView, numEntries)
	dataOff := e.mid()
	for i := 0; i < numEntries; i++ {
		off := e.entryOffset(i)
		length := int32(binary.LittleEndian.Uint32(e.buf[off+edgeEntryLen:]))
		views[i] = EdgeEntryView{
			Dst:                 binary.LittleEndian.Uint64(e.buf[off+edgeEntryDst:]),
			Length:              length,
			CreationTimePointer: timestampAt(e.buf, off+edgeEntryCTS),
			DeletionTimePointer: timestampAt(e.buf, off+edgeEntryDTS),
			Version:             int64(binary.LittleEndian.Uint64(e.buf[off+edgeEntryVer:])),
			Data:                e.buf[dataOff : dataOff+int(length)],
		}
		dataOff += int(length)
	}
	return views
}

// EdgeEntrySize is exported so callers (the transaction engine's growth
// arithmetic) can size new blocks without duplicating the layout constant.
const EdgeEntrySize = edgeEntrySize
