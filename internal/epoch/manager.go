// Package epoch implements the storage engine's Epoch / Commit Manager: it
// hands out monotonically increasing epoch ids, tracks which commits are
// still in flight, and publishes a read_epoch watermark once every commit
// at or below it has durably finished.
package epoch

import (
	"sync"

	"github.com/google/btree"
	"go.uber.org/atomic"
)

// epochItem lets a bare epoch id sit in a btree.BTree, the same
// Item-based ordered-set pattern the storage layer uses for its key
// index, applied here to the set of in-flight commit epochs.
type epochItem int64

func (e epochItem) Less(than btree.Item) bool { return e < than.(epochItem) }

// Manager is the Epoch / Commit Manager.
type Manager struct {
	mu        sync.Mutex
	cond      *sync.Cond
	nextTxn   atomic.Int64
	nextEpoch atomic.Int64
	visible   atomic.Int64
	inFlight  *btree.BTree
}

// NewManager returns a Manager with read_epoch starting at 0: nothing has
// committed yet.
func NewManager() *Manager {
	m := &Manager{inFlight: btree.New(32)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// BeginRead returns the largest epoch fully visible to a transaction
// starting now.
func (m *Manager) BeginRead() int64 {
	return m.visible.Load()
}

// BeginWrite allocates a fresh local transaction id and its tentative
// write epoch, the -local_txn_id sentinel that stands in for the real
// commit epoch until RegisterCommit assigns one.
func (m *Manager) BeginWrite() (writeEpochID, localTxnID int64) {
	id := m.nextTxn.Inc()
	return -id, id
}

// RegisterCommit assigns this commit's epoch and calls persist with it
// while still holding the manager's lock, so that epoch assignment and
// WAL append order can never be observed out of sequence by a concurrent
// commit. It returns the assigned epoch and the number of commits
// (including this one) currently in flight.
func (m *Manager) RegisterCommit(persist func(epoch int64) error) (commitEpochID int64, unfinished int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	epoch := m.nextEpoch.Inc()
	if persist != nil {
		if perr := persist(epoch); perr != nil {
			return 0, 0, perr
		}
	}
	m.inFlight.ReplaceOrInsert(epochItem(epoch))
	return epoch, m.inFlight.Len(), nil
}

// FinishCommit marks commitEpochID durable and eligible for publication.
// When waitVisible is true it blocks until read_epoch has reached
// commitEpochID, i.e. until every commit at or below it has also finished,
// so that a read started after this call returns observes the commit.
func (m *Manager) FinishCommit(commitEpochID int64, unfinished int, waitVisible bool) {
	m.mu.Lock()
	m.inFlight.Delete(epochItem(commitEpochID))
	m.advanceVisibleLocked()
	m.cond.Broadcast()

	if !waitVisible {
		m.mu.Unlock()
		return
	}
	for m.visible.Load() < commitEpochID {
		m.cond.Wait()
	}
	m.mu.Unlock()
}

// advanceVisibleLocked recomputes read_epoch as one below the oldest
// still-in-flight commit, or the newest assigned epoch if none remain in
// flight. Must be called with mu held.
func (m *Manager) advanceVisibleLocked() {
	if item := m.inFlight.Min(); item != nil {
		m.visible.Store(int64(item.(epochItem)) - 1)
		return
	}
	m.visible.Store(m.nextEpoch.Load())
}
