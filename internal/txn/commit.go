package txn

import (
	"github.com/myuser/graphstore/internal/block"
	"github.com/myuser/graphstore/internal/txn/xerrors"
	"github.com/myuser/graphstore/internal/walog"
)

// Commit publishes a writable transaction's staged writes, in the order
// spec.md prescribes:
//
//  1. Register with the epoch manager, which assigns commit_epoch_id and
//     persists this transaction's WAL frame while still holding the
//     epoch-assignment lock (so epoch order and WAL order can't diverge).
//  2. Publish new/changed vertex pointers into the graph directory.
//  3. Return recycled vertex ids to the global pool.
//  4. Publish each touched edge block's (num_entries, data_length) pair
//     and refresh its committed_time witness.
//  5. Repoint any edge-label entries whose chain head changed.
//  6. Stamp every pinned creation/deletion/committed timestamp with the
//     final commit_epoch_id, making this transaction's writes visible.
//
// Once step 4 begins, commit is unabortable: a failure from here on (an
// allocation failure while growing a label block, say) is permanent and
// reported as such, with no attempt to undo already-published state.
//
// Batch-loader transactions publish directly as they go and have nothing
// staged to commit; Commit on one is a no-op that returns its read epoch.
func (t *Transaction) Commit(waitVisible bool) (int64, error) {
	if err := t.checkValid(); err != nil {
		return 0, err
	}
	if err := t.checkWritable(); err != nil {
		return 0, err
	}

	if t.batchUpdate() {
		return t.readEpochID, nil
	}

	commitEpochID, unfinished, err := t.store.Epoch.RegisterCommit(func(epoch int64) error {
		if t.store.WAL == nil || len(t.walOps) == 0 {
			return nil
		}
		return t.store.WAL.Append(walog.EncodeTxn(t.walOps))
	})
	if err != nil {
		t.Abort()
		return 0, xerrors.WalFailure("%v", err)
	}

	for vertexID, pointer := range t.vertexPtrCache {
		if t.store.Dir.VertexPointer(vertexID) != pointer {
			t.store.Dir.SetVertexPointer(vertexID, pointer)
		}
	}

	for _, vid := range t.recycledVertexCache {
		t.store.IDs.Recycle(vid)
	}

	for pointer, c := range t.edgeCountCache {
		eb := t.store.Arena.EdgeBlockAt(pointer)
		eb.StoreNumEntriesDataLength(c.numEntries, c.dataLength)
		t.pinRollback(eb.CommittedTimePointer(), block.LoadTimestamp(eb.CommittedTimePointer()))
		block.StoreTimestamp(eb.CommittedTimePointer(), t.writeEpochID)
	}

	for key, pointer := range t.edgePtrCache {
		prevPointer := t.locateEdgeBlock(key.src, key.label)
		if pointer == prevPointer {
			continue
		}
		if uerr := t.updateEdgeLabelBlock(key.src, key.label, pointer); uerr != nil {
			t.releaseAllLatches()
			t.store.Epoch.FinishCommit(commitEpochID, unfinished, false)
			t.clean()
			return 0, uerr
		}
	}

	for _, p := range t.timestampsToUpdate {
		block.StoreTimestamp(p.ptr, commitEpochID)
	}

	t.releaseAllLatches()
	t.clean()

	t.store.Epoch.FinishCommit(commitEpochID, unfinished, waitVisible)

	t.store.Log.Infow("commit", "epoch", commitEpochID)
	return commitEpochID, nil
}

// Abort discards a writable transaction's staged writes: every pinned
// timestamp is restored to its pre-transaction value, freshly allocated
// vertex ids return to the recycled pool, and every block this
// transaction allocated is freed. Batch-loader and read-only transactions
// have nothing staged; Abort on one just invalidates the transaction.
func (t *Transaction) Abort() error {
	if err := t.checkValid(); err != nil {
		return err
	}

	for _, p := range t.timestampsToUpdate {
		block.StoreTimestamp(p.ptr, p.rollback)
	}
	for _, vid := range t.newVertexCache {
		t.store.IDs.Recycle(vid)
	}
	for _, a := range t.blockCache {
		t.store.Arena.Free(a.pointer, a.order)
	}
	blocksFreed := len(t.blockCache)

	t.releaseAllLatches()
	t.clean()

	t.store.Log.Infow("abort", "blocks_freed", blocksFreed)
	return nil
}

// clean invalidates the transaction and drops its staging caches.
func (t *Transaction) clean() {
	t.valid = false
	t.newVertexCache = nil
	t.recycledVertexCache = nil
	t.vertexPtrCache = nil
	t.edgePtrCache = nil
	t.edgeCountCache = nil
	t.blockCache = nil
	t.timestampsToUpdate = nil
	t.heldLatches = nil
	t.walOps = nil
}
