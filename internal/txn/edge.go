package txn

import (
	"github.com/myuser/graphstore/internal/block"
	"github.com/myuser/graphstore/internal/walog"
)

// locateEdgeBlock returns the newest edge-block segment of src's label
// chain that is visible to this transaction's snapshot, walking prev
// pointers past any segment created after read_epoch_id.
func (t *Transaction) locateEdgeBlock(src uint64, label int32) block.Pointer {
	labelPtr := t.store.Dir.EdgeLabelPointer(src)
	if labelPtr == block.NullPointer {
		return block.NullPointer
	}
	elb := t.store.Arena.EdgeLabelBlockAt(labelPtr)
	idx := elb.Find(label)
	if idx < 0 {
		return block.NullPointer
	}

	pointer := elb.EdgePointer(idx)
	for pointer != block.NullPointer {
		eb := t.store.Arena.EdgeBlockAt(pointer)
		if cmpTimestamp(block.LoadTimestamp(eb.CreationTimePointer()), t.readEpochID, t.localTxnID) <= 0 {
			break
		}
		pointer = eb.PrevPointer()
	}
	return pointer
}

// findEdge scans an edge block's entries (oldest first) for the first one
// with the given destination that is visible to this transaction's
// snapshot. A block's Bloom filter, if present, short-circuits misses.
func (t *Transaction) findEdge(dst uint64, eb block.EdgeBlock, numEntries, dataLength int) (block.EdgeEntryView, bool) {
	if !eb.Valid() || !eb.BloomMaybeContains(dst) {
		return block.EdgeEntryView{}, false
	}
	for _, en := range eb.Entries(numEntries) {
		if en.Dst == dst && t.visible(block.LoadTimestamp(en.CreationTimePointer), block.LoadTimestamp(en.DeletionTimePointer)) {
			return en, true
		}
	}
	return block.EdgeEntryView{}, false
}

// edgeCounts returns the (num_entries, data_length) pair a caller should
// build the next entry on top of: for batch-loader transactions this is
// always the block's published pair (batch mode publishes every edge
// write immediately, mirroring its direct vertex-pointer publication);
// for writable transactions it is the transaction's staged pair if one
// has been recorded yet, falling back to the block's published pair on
// first touch.
func (t *Transaction) edgeCounts(eb block.EdgeBlock, pointer block.Pointer) (numEntries, dataLength int) {
	if t.batchUpdate() {
		return eb.LoadNumEntriesDataLength()
	}
	if c, ok := t.edgeCountCache[pointer]; ok {
		return c.numEntries, c.dataLength
	}
	return eb.LoadNumEntriesDataLength()
}

func (t *Transaction) setEdgeCounts(eb block.EdgeBlock, pointer block.Pointer, numEntries, dataLength int) {
	if t.batchUpdate() {
		eb.StoreNumEntriesDataLength(numEntries, dataLength)
		return
	}
	t.edgeCountCache[pointer] = edgeCounts{numEntries: numEntries, dataLength: dataLength}
}

// readEdgePointer resolves src's label-chain head for a read: batch-loader
// and read-only transactions always re-locate; writable transactions
// consult their edge pointer cache so a read after a write on the same
// (src, label) sees the transaction's own staged head. A read never adds
// to the cache, so a later write still runs the conflict check.
func (t *Transaction) readEdgePointer(src uint64, label int32) block.Pointer {
	if t.batchUpdate() || t.mode == ModeReadOnly {
		return t.locateEdgeBlock(src, label)
	}
	key := edgeKey{src: src, label: label}
	if p, ok := t.edgePtrCache[key]; ok {
		return p
	}
	return t.locateEdgeBlock(src, label)
}

// writeEdgePointer resolves src's label-chain head for a write. Unless an
// earlier write in this transaction already cached a head for (src,
// label), it runs the optimistic conflict check first.
func (t *Transaction) writeEdgePointer(src uint64, label int32) (block.Pointer, error) {
	if t.batchUpdate() {
		return t.locateEdgeBlock(src, label), nil
	}
	key := edgeKey{src: src, label: label}
	if p, ok := t.edgePtrCache[key]; ok {
		return p, nil
	}
	if err := t.ensureNoConflictEdge(src, label); err != nil {
		return block.NullPointer, err
	}
	return t.locateEdgeBlock(src, label), nil
}

// updateEdgeLabelBlock repoints src's label entry at edgeBlockPointer,
// updating it in place if the label already has an entry or the label
// block has room, otherwise growing a fresh label block that copies the
// old entries plus the new one.
func (t *Transaction) updateEdgeLabelBlock(src uint64, label int32, edgeBlockPointer block.Pointer) error {
	pointer := t.store.Dir.EdgeLabelPointer(src)
	elb := t.store.Arena.EdgeLabelBlockAt(pointer)

	if elb.Valid() {
		if idx := elb.Find(label); idx >= 0 {
			elb.SetEdgePointer(idx, edgeBlockPointer)
			return nil
		}
		if elb.Append(label, edgeBlockPointer) {
			return nil
		}
	}

	numEntries := 0
	if elb.Valid() {
		numEntries = elb.NumEntries()
	}
	order := block.SizeToOrder(block.EdgeLabelBlockSize(numEntries + 1))
	newPointer, err := t.store.Arena.Alloc(order)
	if err != nil {
		return allocationFailure(err)
	}
	newELB := block.ViewEdgeLabelBlock(t.store.Arena.Bytes(newPointer, 1<<uint(order)))
	newELB.Fill(int32(order), src, t.writeEpochID, pointer)

	t.recordAlloc(newPointer, order)
	t.pinRollback(newELB.CreationTimePointer(), block.RollbackTombstone)

	for i := 0; i < numEntries; i++ {
		newELB.Append(elb.Label(i), elb.EdgePointer(i))
	}
	newELB.Append(label, edgeBlockPointer)

	t.store.Dir.SetEdgeLabelPointer(src, newPointer)
	return nil
}

// edgeBlockGrowthOrder sizes a replacement edge block for numEntries+1
// entries and dataLength+newDataLen bytes of data, carving out a Bloom
// filter once the block order crosses the threshold. Entries and data
// each get half of the space below the filter, so each half is sized for
// the larger of the two.
func edgeBlockGrowthOrder(numEntries, dataLength, newDataLen int) (order int, bloomLen int32) {
	half := (numEntries + 1) * block.EdgeEntrySize
	if d := dataLength + newDataLen; d > half {
		half = d
	}
	size := block.EdgeBlockHeaderSize + 2*half
	order = block.SizeToOrder(size)
	bloomLen = block.BloomFilterSize(order)
	if bloomLen > 0 {
		size += int(bloomLen)
		order = block.SizeToOrder(size)
		bloomLen = block.BloomFilterSize(order)
	}
	return order, bloomLen
}

// growEdgeBlock allocates a new, larger edge-block segment chained onto
// prev and copies forward every entry from eb that is still visible to
// this transaction (an entry deleted by this same transaction is dropped
// rather than carried forward, matching a fresh block starting clean).
func (t *Transaction) growEdgeBlock(src uint64, prev block.Pointer, eb block.EdgeBlock, numEntries, dataLength, newDataLen int) (block.Pointer, block.EdgeBlock, int, int, error) {
	order, bloomLen := edgeBlockGrowthOrder(numEntries, dataLength, newDataLen)
	newPointer, err := t.store.Arena.Alloc(order)
	if err != nil {
		return block.NullPointer, block.EdgeBlock{}, 0, 0, allocationFailure(err)
	}
	newEB := block.ViewEdgeBlock(t.store.Arena.Bytes(newPointer, 1<<uint(order)))
	newEB.Fill(int32(order), src, t.writeEpochID, prev, t.writeEpochID, bloomLen)

	t.recordAlloc(newPointer, order)
	t.pinRollback(newEB.CreationTimePointer(), block.RollbackTombstone)

	newNumEntries, newDataLength := 0, 0
	if eb.Valid() {
		for _, en := range eb.Entries(numEntries) {
			if cmpTimestamp(block.LoadTimestamp(en.DeletionTimePointer), t.readEpochID, t.localTxnID) <= 0 {
				continue
			}
			view := newEB.AppendEntry(newNumEntries, newDataLength, block.EdgeEntryFields{
				Dst:          en.Dst,
				Length:       en.Length,
				CreationTime: block.LoadTimestamp(en.CreationTimePointer),
				DeletionTime: block.LoadTimestamp(en.DeletionTimePointer),
				Version:      en.Version,
			}, en.Data)
			newEB.BloomAdd(en.Dst)
			if !t.batchUpdate() && block.LoadTimestamp(view.CreationTimePointer) == -t.localTxnID {
				t.pinRollback(view.CreationTimePointer, block.RollbackTombstone)
			}
			newNumEntries++
			newDataLength += int(en.Length)
		}
	}
	newEB.StoreNumEntriesDataLength(newNumEntries, newDataLength)

	t.store.Log.Debugw("block-grow", "src", src, "order", order, "num_entries", newNumEntries, "bloom_bytes", bloomLen)
	return newPointer, newEB, newNumEntries, newDataLength, nil
}

// putEdge implements both PutEdge and PutEdgeWithVersion: they differ only
// in the version stamped on the new entry.
func (t *Transaction) putEdge(src, dst uint64, label int32, data []byte, version int64, forceInsert bool) error {
	if err := t.checkValid(); err != nil {
		return err
	}
	if err := t.checkWritable(); err != nil {
		return err
	}
	if err := t.checkVertexID(src); err != nil {
		return err
	}
	if err := t.checkVertexID(dst); err != nil {
		return err
	}

	t.lockVertex(src)

	pointer, err := t.writeEdgePointer(src, label)
	if err != nil {
		return err
	}
	eb := t.store.Arena.EdgeBlockAt(pointer)
	numEntries, dataLength := 0, 0
	if eb.Valid() {
		numEntries, dataLength = t.edgeCounts(eb, pointer)
	}

	if !eb.Valid() || !eb.HasSpace(numEntries, dataLength, len(data)) {
		newPointer, newEB, newNumEntries, newDataLength, err := t.growEdgeBlock(src, pointer, eb, numEntries, dataLength, len(data))
		if err != nil {
			return err
		}
		if t.batchUpdate() {
			if err := t.updateEdgeLabelBlock(src, label, newPointer); err != nil {
				return err
			}
		}
		pointer, eb, numEntries, dataLength = newPointer, newEB, newNumEntries, newDataLength
	}

	if !forceInsert {
		if prevEntry, ok := t.findEdge(dst, eb, numEntries, dataLength); ok {
			block.StoreTimestamp(prevEntry.DeletionTimePointer, t.writeEpochID)
			t.pinRollback(prevEntry.DeletionTimePointer, block.RollbackTombstone)
		}
	}

	view := eb.AppendEntry(numEntries, dataLength, block.EdgeEntryFields{
		Dst:          dst,
		Length:       int32(len(data)),
		CreationTime: t.writeEpochID,
		DeletionTime: block.RollbackTombstone,
		Version:      version,
	}, data)
	eb.BloomAdd(dst)
	t.setEdgeCounts(eb, pointer, numEntries+1, dataLength+len(data))
	t.pinRollback(view.CreationTimePointer, block.RollbackTombstone)

	t.store.Compact.Touch(src)

	if t.batchUpdate() {
		t.unlockVertex(src)
		return nil
	}

	t.edgePtrCache[edgeKey{src: src, label: label}] = pointer
	t.walOps = append(t.walOps, walog.PutEdgeOp{
		Src: src, Label: label, Dst: dst, ForceInsert: forceInsert, Version: version,
		Data: append([]byte(nil), data...),
	})
	return nil
}

// PutEdge inserts an edge, stamping the fixed unversioned sentinel
// version. Unless forceInsert is set, any existing live edge to dst under
// this label is superseded (deleted as of this write) rather than
// duplicated.
func (t *Transaction) PutEdge(src, dst uint64, label int32, data []byte, forceInsert bool) error {
	return t.putEdge(src, dst, label, data, UnversionedEdgeVersion, forceInsert)
}

// PutEdgeWithVersion is PutEdge with an explicit application-supplied
// version stamp instead of the unversioned sentinel.
func (t *Transaction) PutEdgeWithVersion(src, dst uint64, label int32, data []byte, version int64, forceInsert bool) error {
	return t.putEdge(src, dst, label, data, version, forceInsert)
}

// DelEdge marks the live edge (src, label, dst) deleted, returning false
// if no live edge exists.
func (t *Transaction) DelEdge(src, dst uint64, label int32) (bool, error) {
	if err := t.checkValid(); err != nil {
		return false, err
	}
	if err := t.checkWritable(); err != nil {
		return false, err
	}
	if err := t.checkVertexID(src); err != nil {
		return false, err
	}
	if err := t.checkVertexID(dst); err != nil {
		return false, err
	}

	t.lockVertex(src)

	pointer, err := t.writeEdgePointer(src, label)
	if err != nil {
		return false, err
	}
	eb := t.store.Arena.EdgeBlockAt(pointer)
	if !eb.Valid() {
		if t.batchUpdate() {
			t.unlockVertex(src)
		}
		return false, nil
	}

	numEntries, dataLength := t.edgeCounts(eb, pointer)
	entry, found := t.findEdge(dst, eb, numEntries, dataLength)
	if found {
		block.StoreTimestamp(entry.DeletionTimePointer, t.writeEpochID)
		t.pinRollback(entry.DeletionTimePointer, block.RollbackTombstone)
	}

	t.store.Compact.Touch(src)

	if t.batchUpdate() {
		t.unlockVertex(src)
		return found, nil
	}

	t.edgePtrCache[edgeKey{src: src, label: label}] = pointer
	// Re-stage the same (unchanged) pair so commit still refreshes
	// committed_time for this block even though the count didn't move.
	t.setEdgeCounts(eb, pointer, numEntries, dataLength)
	t.walOps = append(t.walOps, walog.DelEdgeOp{Src: src, Label: label, Dst: dst})
	return found, nil
}

// GetEdge returns the data of the live edge (src, label, dst) visible to
// this transaction's snapshot, or nil if none exists.
func (t *Transaction) GetEdge(src, dst uint64, label int32) ([]byte, error) {
	if err := t.checkValid(); err != nil {
		return nil, err
	}
	if src > t.store.IDs.Issued() {
		return nil, nil
	}

	pointer := t.readEdgePointer(src, label)
	eb := t.store.Arena.EdgeBlockAt(pointer)
	if !eb.Valid() {
		return nil, nil
	}

	numEntries, dataLength := t.edgeCounts(eb, pointer)
	entry, found := t.findEdge(dst, eb, numEntries, dataLength)
	if !found {
		return nil, nil
	}
	out := make([]byte, len(entry.Data))
	copy(out, entry.Data)
	return out, nil
}

// GetEdgeWithVersion returns the data of every (src, label, dst) entry
// whose stamped version falls within [start, end], irrespective of
// visibility, found in the edge-block segment visible to this snapshot.
// Deleted or superseded entries in that segment are returned too. Older
// segments of the chain are not scanned, so entries that were dropped
// when the block was grown (those already deleted at that point) are not
// returned.
func (t *Transaction) GetEdgeWithVersion(src, dst uint64, label int32, start, end int64) ([][]byte, error) {
	if err := t.checkValid(); err != nil {
		return nil, err
	}
	if src > t.store.IDs.Issued() {
		return nil, nil
	}

	pointer := t.readEdgePointer(src, label)
	eb := t.store.Arena.EdgeBlockAt(pointer)
	if !eb.Valid() {
		return nil, nil
	}
	if !eb.BloomMaybeContains(dst) {
		return nil, nil
	}

	numEntries, _ := t.edgeCounts(eb, pointer)
	var out [][]byte
	for _, en := range eb.Entries(numEntries) {
		if en.Dst != dst || en.Version < start || en.Version > end {
			continue
		}
		cp := make([]byte, len(en.Data))
		copy(cp, en.Data)
		out = append(out, cp)
	}
	return out, nil
}
