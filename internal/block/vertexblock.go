package block

import "encoding/binary"

// VertexBlock is a typed view over one version of a vertex, per spec:
// {order, vertex_id, creation_time, prev_pointer, length, data[length]}.
// length == TombstoneLength marks the vertex deleted in this version.
type VertexBlock struct {
	buf []byte
}

const (
	vbOrder        = 0
	vbVertexID     = 8
	vbCreationTime = 16
	vbPrevPointer  = 24
	vbLength       = 32
	VertexBlockHeaderSize = 40
)

// TombstoneLength marks a VertexBlock as a deletion of the vertex.
const TombstoneLength int32 = -1

// VertexBlockSize returns the header+data size needed to store dataLen
// bytes of vertex payload.
func VertexBlockSize(dataLen int) int {
	return VertexBlockHeaderSize + dataLen
}

// ViewVertexBlock wraps an arena-owned byte slice as a VertexBlock. p must
// be NullPointer-checked by the caller; ViewVertexBlock returns the zero
// value (Valid() == false) for a nil buffer.
func ViewVertexBlock(buf []byte) VertexBlock {
	return VertexBlock{buf: buf}
}

// Valid reports whether this view actually refers to a block.
func (v VertexBlock) Valid() bool { return v.buf != nil }

// Fill initializes a freshly allocated block's header and copies data in.
func (v VertexBlock) Fill(order int32, vertexID uint64, creationTime Timestamp, prevPointer Pointer, data []byte) {
	binary.LittleEndian.PutUint32(v.buf[vbOrder:], uint32(order))
	binary.LittleEndian.PutUint64(v.buf[vbVertexID:], vertexID)
	StoreTimestamp(v.CreationTimePointer(), creationTime)
	binary.LittleEndian.PutUint64(v.buf[vbPrevPointer:], uint64(prevPointer))
	binary.LittleEndian.PutUint32(v.buf[vbLength:], int32ToUint32(int32(len(data))))
	copy(v.buf[VertexBlockHeaderSize:], data)
}

// FillTombstone initializes a freshly allocated block as a deletion marker.
func (v VertexBlock) FillTombstone(order int32, vertexID uint64, creationTime Timestamp, prevPointer Pointer) {
	binary.LittleEndian.PutUint32(v.buf[vbOrder:], uint32(order))
	binary.LittleEndian.PutUint64(v.buf[vbVertexID:], vertexID)
	StoreTimestamp(v.CreationTimePointer(), creationTime)
	binary.LittleEndian.PutUint64(v.buf[vbPrevPointer:], uint64(prevPointer))
	binary.LittleEndian.PutUint32(v.buf[vbLength:], int32ToUint32(TombstoneLength))
}

func (v VertexBlock) Order() int32 {
	return int32(binary.LittleEndian.Uint32(v.buf[vbOrder:]))
}

func (v VertexBlock) VertexID() uint64 {
	return binary.LittleEndian.Uint64(v.buf[vbVertexID:])
}

// CreationTimePointer exposes the raw timestamp cell so the transaction
// engine can pin it in timestamps_to_update for commit/abort stamping.
func (v VertexBlock) CreationTimePointer() *int64 {
	return timestampAt(v.buf, vbCreationTime)
}

func (v VertexBlock) PrevPointer() Pointer {
	return Pointer(binary.LittleEndian.Uint64(v.buf[vbPrevPointer:]))
}

func (v VertexBlock) Length() int32 {
	return uint32ToInt32(binary.LittleEndian.Uint32(v.buf[vbLength:]))
}

func (v VertexBlock) IsTombstone() bool {
	return v.Length() == TombstoneLength
}

func (v VertexBlock) Data() []byte {
	n := v.Length()
	if n <= 0 {
		return nil
	}
	return v.buf[VertexBlockHeaderSize : VertexBlockHeaderSize+int(n)]
}

func int32ToUint32(v int32) uint32 { return uint32(v) }
func uint32ToInt32(v uint32) int32 { return int32(v) }
