package txn

import (
	"github.com/myuser/graphstore/internal/block"
	"github.com/myuser/graphstore/internal/walog"
)

// NewVertex issues a fresh vertex id. useRecycled controls whether the
// global recycled pool may be consulted (non-batch transactions also
// consult their own local recycled cache first, from earlier del_vertex
// calls in the same transaction).
func (t *Transaction) NewVertex(useRecycled bool) (uint64, error) {
	if err := t.checkValid(); err != nil {
		return 0, err
	}
	if err := t.checkWritable(); err != nil {
		return 0, err
	}

	var vertexID uint64
	switch {
	case !t.batchUpdate() && len(t.recycledVertexCache) > 0:
		vertexID = t.recycledVertexCache[0]
		t.recycledVertexCache = t.recycledVertexCache[1:]
	case useRecycled:
		if id, ok := t.store.IDs.TryRecycled(); ok {
			vertexID = id
		} else {
			vertexID = t.store.IDs.AllocateFresh()
		}
	default:
		vertexID = t.store.IDs.AllocateFresh()
	}

	t.store.Dir.SetVertexPointer(vertexID, block.NullPointer)
	t.store.Dir.SetEdgeLabelPointer(vertexID, block.NullPointer)

	if !t.batchUpdate() {
		t.newVertexCache = append(t.newVertexCache, vertexID)
		t.walOps = append(t.walOps, walog.NewVertexOp{VertexID: vertexID})
	}
	return vertexID, nil
}

// prevVertexPointer resolves the pointer put_vertex/del_vertex must chain
// their new block onto: the transaction's own staged write if any,
// otherwise the published head after a conflict check.
func (t *Transaction) prevVertexPointer(vertexID uint64) (block.Pointer, error) {
	if t.batchUpdate() {
		return t.store.Dir.VertexPointer(vertexID), nil
	}
	if p, ok := t.vertexPtrCache[vertexID]; ok {
		return p, nil
	}
	if err := t.ensureNoConflictVertex(vertexID); err != nil {
		return block.NullPointer, err
	}
	return t.store.Dir.VertexPointer(vertexID), nil
}

// PutVertex stores data as vertexID's newest version.
func (t *Transaction) PutVertex(vertexID uint64, data []byte) error {
	if err := t.checkValid(); err != nil {
		return err
	}
	if err := t.checkWritable(); err != nil {
		return err
	}
	if err := t.checkVertexID(vertexID); err != nil {
		return err
	}

	t.lockVertex(vertexID)

	prev, err := t.prevVertexPointer(vertexID)
	if err != nil {
		return err
	}

	order := block.SizeToOrder(block.VertexBlockSize(len(data)))
	pointer, err := t.store.Arena.Alloc(order)
	if err != nil {
		return allocationFailure(err)
	}
	vb := block.ViewVertexBlock(t.store.Arena.Bytes(pointer, block.VertexBlockSize(len(data))))
	vb.Fill(int32(order), vertexID, t.writeEpochID, prev, data)

	t.store.Compact.Touch(vertexID)

	if t.batchUpdate() {
		t.store.Dir.SetVertexPointer(vertexID, pointer)
		t.unlockVertex(vertexID)
		return nil
	}

	t.recordAlloc(pointer, order)
	t.pinRollback(vb.CreationTimePointer(), block.RollbackTombstone)
	t.vertexPtrCache[vertexID] = pointer
	t.walOps = append(t.walOps, walog.PutVertexOp{VertexID: vertexID, Data: append([]byte(nil), data...)})
	return nil
}

// DelVertex marks vertexID deleted (a tombstone version). It returns
// false if the vertex has no live version to delete. When recycle is
// true, vertexID becomes available for reuse by later NewVertex calls in
// this transaction and, once it commits, by any NewVertex. In batch mode
// the id goes straight to the global pool, and only if a live version
// was actually deleted.
func (t *Transaction) DelVertex(vertexID uint64, recycle bool) (bool, error) {
	if err := t.checkValid(); err != nil {
		return false, err
	}
	if err := t.checkWritable(); err != nil {
		return false, err
	}
	if err := t.checkVertexID(vertexID); err != nil {
		return false, err
	}

	t.lockVertex(vertexID)

	prev, err := t.prevVertexPointer(vertexID)
	if err != nil {
		return false, err
	}

	prevBlock := t.store.Arena.VertexBlockAt(prev)
	deleted := false
	if prevBlock.Valid() && !prevBlock.IsTombstone() {
		deleted = true

		order := block.SizeToOrder(block.VertexBlockHeaderSize)
		pointer, err := t.store.Arena.Alloc(order)
		if err != nil {
			return false, allocationFailure(err)
		}
		vb := block.ViewVertexBlock(t.store.Arena.Bytes(pointer, block.VertexBlockHeaderSize))
		vb.FillTombstone(int32(order), vertexID, t.writeEpochID, prev)

		t.store.Compact.Touch(vertexID)

		if t.batchUpdate() {
			t.store.Dir.SetVertexPointer(vertexID, pointer)
		} else {
			t.recordAlloc(pointer, order)
			t.pinRollback(vb.CreationTimePointer(), block.RollbackTombstone)
			t.vertexPtrCache[vertexID] = pointer
		}
	}

	if t.batchUpdate() {
		// A never-live vertex id was never removed from circulation, so
		// recycling it here would let it be handed out twice.
		if recycle && deleted {
			t.store.IDs.Recycle(vertexID)
		}
		t.unlockVertex(vertexID)
		return deleted, nil
	}

	t.walOps = append(t.walOps, walog.DelVertexOp{VertexID: vertexID, Recycle: recycle})
	if recycle {
		t.recycledVertexCache = append(t.recycledVertexCache, vertexID)
	}
	return deleted, nil
}

// GetVertex returns the data of vertexID's version visible to this
// transaction's snapshot, or nil if the vertex does not exist, has been
// deleted, or is not visible yet.
func (t *Transaction) GetVertex(vertexID uint64) ([]byte, error) {
	if err := t.checkValid(); err != nil {
		return nil, err
	}
	if vertexID > t.store.IDs.Issued() {
		return nil, nil
	}

	var pointer block.Pointer
	if t.batchUpdate() {
		pointer = t.store.Dir.VertexPointer(vertexID)
	} else if p, ok := t.vertexPtrCache[vertexID]; ok {
		pointer = p
	} else {
		pointer = t.store.Dir.VertexPointer(vertexID)
	}

	vb := t.store.Arena.VertexBlockAt(pointer)
	for vb.Valid() {
		if cmpTimestamp(block.LoadTimestamp(vb.CreationTimePointer()), t.readEpochID, t.localTxnID) <= 0 {
			break
		}
		pointer = vb.PrevPointer()
		vb = t.store.Arena.VertexBlockAt(pointer)
	}

	if !vb.Valid() || vb.IsTombstone() {
		return nil, nil
	}
	data := vb.Data()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
