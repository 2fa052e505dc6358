// Package txn implements the transaction engine: the writable, read-only
// and batch-loader transaction lifecycles that sit on top of the Block
// Manager (internal/block), the Epoch/Commit Manager (internal/epoch),
// the per-vertex latch table (internal/latch), the Graph Directory
// (internal/directory) and the write-ahead log (internal/walog).
package txn

import (
	"go.uber.org/zap"

	"github.com/myuser/graphstore/internal/block"
	"github.com/myuser/graphstore/internal/compact"
	"github.com/myuser/graphstore/internal/directory"
	"github.com/myuser/graphstore/internal/epoch"
	"github.com/myuser/graphstore/internal/latch"
	"github.com/myuser/graphstore/internal/txn/xerrors"
	"github.com/myuser/graphstore/internal/walog"
)

// UnversionedEdgeVersion is the fixed sentinel put_edge stamps on entries
// created through the unversioned form; put_edge_with_version lets the
// caller supply a real value instead.
const UnversionedEdgeVersion int64 = 888

// Mode selects a transaction's lifecycle discipline.
type Mode int

const (
	// ModeWritable transactions buffer writes in per-transaction caches,
	// run the optimistic conflict check, and publish everything at Commit.
	ModeWritable Mode = iota
	// ModeReadOnly transactions never write; they take no latches and see
	// a stable snapshot at their read_epoch_id.
	ModeReadOnly
	// ModeBatchLoader transactions publish directly under held latches,
	// skipping the WAL and conflict detection. Intended for bulk ingestion
	// with no concurrent writable transactions on the same vertices.
	ModeBatchLoader
)

// Store owns the durable and in-memory state shared by every transaction:
// the block arena, the epoch manager, the graph directory, the per-vertex
// latch table, the recycled-id pool, the write-ahead log and the
// compaction table. It is graphstore.Graph's storage engine.
type Store struct {
	Arena    *block.Arena
	Epoch    *epoch.Manager
	Dir      *directory.Directory
	Latches  *latch.Table
	IDs      *latch.IDPool
	WAL      *walog.WAL
	Compact  *compact.Table
	Log      *zap.SugaredLogger

	// BloomFilterThresholdOrder / BloomFilterPortion hold the values of
	// internal/block's Bloom-filter constants. Edge-block growth sizes the
	// filter through internal/block.BloomFilterSize, which uses those
	// constants; it does not read these fields.
	BloomFilterThresholdOrder int
	BloomFilterPortion        int
}

// NewStore wires the transaction engine's dependencies together and sets
// the Bloom filter fields to internal/block's constants. A nil log
// defaults to a development logger; graphstore.Open passes in the
// production-config logger it builds instead.
func NewStore(arena *block.Arena, wal *walog.WAL, log *zap.SugaredLogger) *Store {
	if log == nil {
		dev, err := zap.NewDevelopment()
		if err != nil {
			dev = zap.NewNop()
		}
		log = dev.Sugar()
	}
	return &Store{
		Arena:                     arena,
		Epoch:                     epoch.NewManager(),
		Dir:                       directory.New(),
		Latches:                   latch.NewTable(),
		IDs:                       latch.NewIDPool(),
		WAL:                       wal,
		Compact:                   compact.NewTable(),
		Log:                       log,
		BloomFilterThresholdOrder: block.BloomFilterThresholdOrder,
		BloomFilterPortion:        block.BloomFilterPortion,
	}
}

type blockAlloc struct {
	pointer block.Pointer
	order   int
}

type timestampPin struct {
	ptr      *int64
	rollback block.Timestamp
}

type edgeKey struct {
	src   uint64
	label int32
}

type edgeCounts struct {
	numEntries int
	dataLength int
}

// Transaction is a single unit of work against a Store.
type Transaction struct {
	store *Store
	mode  Mode

	readEpochID  int64
	localTxnID   int64
	writeEpochID int64

	valid bool

	// Writable-mode staging caches. Nil in read-only and batch-loader
	// transactions, which publish directly or don't write at all.
	newVertexCache      []uint64
	recycledVertexCache []uint64
	vertexPtrCache      map[uint64]block.Pointer
	edgePtrCache        map[edgeKey]block.Pointer
	edgeCountCache      map[block.Pointer]edgeCounts
	blockCache          []blockAlloc
	timestampsToUpdate  []timestampPin
	heldLatches         map[uint64]bool
	walOps              []walog.Op
}

func newTransaction(store *Store, mode Mode) *Transaction {
	t := &Transaction{store: store, mode: mode, valid: true}

	if mode == ModeWritable {
		t.readEpochID = store.Epoch.BeginRead()
		t.writeEpochID, t.localTxnID = store.Epoch.BeginWrite()
		t.vertexPtrCache = make(map[uint64]block.Pointer)
		t.edgePtrCache = make(map[edgeKey]block.Pointer)
		t.edgeCountCache = make(map[block.Pointer]edgeCounts)
		t.heldLatches = make(map[uint64]bool)
	} else {
		t.readEpochID = store.Epoch.BeginRead()
		t.localTxnID = 0
		t.writeEpochID = 0
	}
	return t
}

// BeginRead starts a read-only transaction: a stable snapshot at the
// largest fully-visible epoch, taking no latches.
func (s *Store) BeginRead() *Transaction {
	return newTransaction(s, ModeReadOnly)
}

// BeginWrite starts a writable transaction: writes are staged in
// per-transaction caches, conflict-checked, and published atomically at
// Commit.
func (s *Store) BeginWrite() *Transaction {
	return newTransaction(s, ModeWritable)
}

// BeginBatchLoader starts a batch-loader transaction: writes publish
// directly under held per-vertex latches, bypassing the WAL and conflict
// detection. Must not run concurrently with writable transactions on the
// same vertices.
func (s *Store) BeginBatchLoader() *Transaction {
	return newTransaction(s, ModeBatchLoader)
}

func (t *Transaction) checkValid() error {
	if !t.valid {
		return xerrors.InvalidTransaction("transaction already committed or aborted")
	}
	return nil
}

func (t *Transaction) checkWritable() error {
	if t.mode == ModeReadOnly {
		return xerrors.InvalidTransaction("transaction is read-only")
	}
	return nil
}

func (t *Transaction) checkVertexID(vertexID uint64) error {
	if vertexID > t.store.IDs.Issued() {
		return xerrors.InvalidVertexID("vertex id %d was never issued", vertexID)
	}
	return nil
}

// batchUpdate reports whether this transaction publishes writes directly
// (batch-loader) rather than staging them in caches.
func (t *Transaction) batchUpdate() bool { return t.mode == ModeBatchLoader }

func (t *Transaction) pinRollback(ptr *int64, rollback block.Timestamp) {
	if t.batchUpdate() {
		return
	}
	t.timestampsToUpdate = append(t.timestampsToUpdate, timestampPin{ptr: ptr, rollback: rollback})
}

func (t *Transaction) recordAlloc(p block.Pointer, order int) {
	if t.batchUpdate() {
		return
	}
	t.blockCache = append(t.blockCache, blockAlloc{pointer: p, order: order})
}

func (t *Transaction) lockVertex(vertexID uint64) {
	if t.batchUpdate() {
		t.store.Latches.Lock(vertexID)
		return
	}
	if t.heldLatches[vertexID] {
		return
	}
	t.store.Latches.Lock(vertexID)
	t.heldLatches[vertexID] = true
}

func (t *Transaction) unlockVertex(vertexID uint64) {
	if t.batchUpdate() {
		t.store.Latches.Unlock(vertexID)
		return
	}
	// Writable-mode latches are released at commit/abort, not per-op:
	// caches defer publication, so holding the latch across the whole
	// transaction (instead of per statement) is what actually guards
	// publish-time visibility into vertex_ptrs/edge_label_ptrs.
}

func (t *Transaction) releaseAllLatches() {
	for id := range t.heldLatches {
		t.store.Latches.Unlock(id)
	}
	t.heldLatches = nil
}
