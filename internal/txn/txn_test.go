package txn

import (
	"bytes"
	"testing"
	"time"

	"github.com/myuser/graphstore/internal/block"
	"github.com/myuser/graphstore/internal/txn/xerrors"
	"github.com/myuser/graphstore/internal/walog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(block.NewArena(20), nil, nil)
}

func TestNewVertexPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	wt := s.BeginWrite()
	id, err := wt.NewVertex(true)
	if err != nil {
		t.Fatalf("NewVertex: %v", err)
	}
	if err := wt.PutVertex(id, []byte("alice")); err != nil {
		t.Fatalf("PutVertex: %v", err)
	}

	sameTxnData, err := wt.GetVertex(id)
	if err != nil {
		t.Fatalf("GetVertex (same txn, first vertex ever issued): %v", err)
	}
	if !bytes.Equal(sameTxnData, []byte("alice")) {
		t.Fatalf("GetVertex (same txn) = %q, want %q", sameTxnData, "alice")
	}

	if _, err := wt.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt := s.BeginRead()
	data, err := rt.GetVertex(id)
	if err != nil {
		t.Fatalf("GetVertex: %v", err)
	}
	if !bytes.Equal(data, []byte("alice")) {
		t.Fatalf("GetVertex = %q, want %q", data, "alice")
	}
}

func TestDelVertexTombstonesAndRecycles(t *testing.T) {
	s := newTestStore(t)

	wt := s.BeginWrite()
	id, _ := wt.NewVertex(true)
	if err := wt.PutVertex(id, []byte("x")); err != nil {
		t.Fatalf("PutVertex: %v", err)
	}
	deleted, err := wt.DelVertex(id, true)
	if err != nil {
		t.Fatalf("DelVertex: %v", err)
	}
	if !deleted {
		t.Fatalf("DelVertex = false, want true")
	}
	if _, err := wt.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt := s.BeginRead()
	data, err := rt.GetVertex(id)
	if err != nil {
		t.Fatalf("GetVertex: %v", err)
	}
	if data != nil {
		t.Fatalf("GetVertex after delete = %q, want nil", data)
	}

	wt2 := s.BeginWrite()
	id2, _ := wt2.NewVertex(true)
	if id2 != id {
		t.Fatalf("recycled id = %d, want %d", id2, id)
	}
	wt2.Abort()
}

func TestDelVertexNeverLiveBatchModeDoesNotRecycle(t *testing.T) {
	s := newTestStore(t)

	bt := s.BeginBatchLoader()
	id, err := bt.NewVertex(false)
	if err != nil {
		t.Fatalf("NewVertex: %v", err)
	}
	deleted, err := bt.DelVertex(id, true)
	if err != nil {
		t.Fatalf("DelVertex: %v", err)
	}
	if deleted {
		t.Fatalf("DelVertex on never-live vertex = true, want false")
	}

	bt2 := s.BeginBatchLoader()
	id2, err := bt2.NewVertex(true)
	if err != nil {
		t.Fatalf("NewVertex: %v", err)
	}
	if id2 == id {
		t.Fatalf("id %d was wrongly recycled after a no-op delete", id)
	}
}

// TestPutVertexConflictRollsBack exercises the real conflict path: t1 and
// t2 share a read epoch and both touch the same vertex, so t2's PutVertex
// blocks on the latch t1 is holding for the rest of its transaction (see
// the writable-transaction latch-hold-duration design decision) and only
// sees t1's published, newer creation_time once t1 commits and releases it.
func TestPutVertexConflictRollsBack(t *testing.T) {
	s := newTestStore(t)

	setup := s.BeginWrite()
	id, _ := setup.NewVertex(true)
	if err := setup.PutVertex(id, []byte("v1")); err != nil {
		t.Fatalf("PutVertex: %v", err)
	}
	if _, err := setup.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	t1 := s.BeginWrite()
	t2 := s.BeginWrite()

	if err := t1.PutVertex(id, []byte("from t1")); err != nil {
		t.Fatalf("t1 PutVertex: %v", err)
	}

	t2Err := make(chan error, 1)
	go func() {
		t2Err <- t2.PutVertex(id, []byte("from t2"))
	}()

	time.Sleep(20 * time.Millisecond) // let t2 block on id's latch

	if _, err := t1.Commit(true); err != nil {
		t.Fatalf("t1 Commit: %v", err)
	}

	err := <-t2Err
	if err == nil {
		t.Fatalf("expected t2 PutVertex to fail with a write-write conflict once unblocked")
	} else if !xerrors.IsRollback(err) {
		t.Fatalf("t2 PutVertex err = %v, want a rollback-kind error", err)
	}
	if err := t2.Abort(); err != nil {
		t.Fatalf("t2 Abort: %v", err)
	}
}

func TestPutEdgeAndGetEdge(t *testing.T) {
	s := newTestStore(t)

	wt := s.BeginWrite()
	src, _ := wt.NewVertex(true)
	dst, _ := wt.NewVertex(true)
	if err := wt.PutEdge(src, dst, 1, []byte("knows"), false); err != nil {
		t.Fatalf("PutEdge: %v", err)
	}
	if _, err := wt.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt := s.BeginRead()
	data, err := rt.GetEdge(src, dst, 1)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if !bytes.Equal(data, []byte("knows")) {
		t.Fatalf("GetEdge = %q, want %q", data, "knows")
	}
}

func TestPutEdgeSupersedesUnlessForceInsert(t *testing.T) {
	s := newTestStore(t)

	wt := s.BeginWrite()
	src, _ := wt.NewVertex(true)
	dst, _ := wt.NewVertex(true)
	if err := wt.PutEdge(src, dst, 1, []byte("v1"), false); err != nil {
		t.Fatalf("PutEdge v1: %v", err)
	}
	if err := wt.PutEdge(src, dst, 1, []byte("v2"), false); err != nil {
		t.Fatalf("PutEdge v2: %v", err)
	}
	if _, err := wt.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt := s.BeginRead()
	views, err := rt.GetEdges(src, 1, false)
	if err != nil {
		t.Fatalf("GetEdges: %v", err)
	}
	if len(views) != 1 || !bytes.Equal(views[0].Data, []byte("v2")) {
		t.Fatalf("GetEdges = %+v, want one entry with data v2", views)
	}
}

func TestPutEdgeForceInsertKeepsBoth(t *testing.T) {
	s := newTestStore(t)

	wt := s.BeginWrite()
	src, _ := wt.NewVertex(true)
	dst, _ := wt.NewVertex(true)
	if err := wt.PutEdge(src, dst, 1, []byte("v1"), true); err != nil {
		t.Fatalf("PutEdge v1: %v", err)
	}
	if err := wt.PutEdge(src, dst, 1, []byte("v2"), true); err != nil {
		t.Fatalf("PutEdge v2: %v", err)
	}
	if _, err := wt.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt := s.BeginRead()
	views, err := rt.GetEdgesWithVersion(src, 1, UnversionedEdgeVersion, UnversionedEdgeVersion, false)
	if err != nil {
		t.Fatalf("GetEdgesWithVersion: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("GetEdgesWithVersion returned %d entries, want 2", len(views))
	}
}

// TestPutEdgeReadYourOwnWriteSameTransaction exercises GetEdge/GetEdges
// against a block whose new entry is still only in the transaction's
// staged edgeCountCache, not yet published by Commit.
func TestPutEdgeReadYourOwnWriteSameTransaction(t *testing.T) {
	s := newTestStore(t)

	wt := s.BeginWrite()
	src, _ := wt.NewVertex(true)
	dst, _ := wt.NewVertex(true)
	if err := wt.PutEdge(src, dst, 1, []byte("knows"), false); err != nil {
		t.Fatalf("PutEdge: %v", err)
	}

	data, err := wt.GetEdge(src, dst, 1)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if !bytes.Equal(data, []byte("knows")) {
		t.Fatalf("GetEdge (same txn) = %q, want %q", data, "knows")
	}

	views, err := wt.GetEdges(src, 1, false)
	if err != nil {
		t.Fatalf("GetEdges: %v", err)
	}
	if len(views) != 1 || !bytes.Equal(views[0].Data, []byte("knows")) {
		t.Fatalf("GetEdges (same txn) = %+v, want one entry with data knows", views)
	}

	if _, err := wt.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestDelEdgeMarksDeleted(t *testing.T) {
	s := newTestStore(t)

	wt := s.BeginWrite()
	src, _ := wt.NewVertex(true)
	dst, _ := wt.NewVertex(true)
	if err := wt.PutEdge(src, dst, 1, []byte("knows"), false); err != nil {
		t.Fatalf("PutEdge: %v", err)
	}
	if _, err := wt.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	dt := s.BeginWrite()
	found, err := dt.DelEdge(src, dst, 1)
	if err != nil {
		t.Fatalf("DelEdge: %v", err)
	}
	if !found {
		t.Fatalf("DelEdge = false, want true")
	}
	if _, err := dt.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt := s.BeginRead()
	data, err := rt.GetEdge(src, dst, 1)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if data != nil {
		t.Fatalf("GetEdge after delete = %q, want nil", data)
	}
}

func TestDelEdgeOnMissingBlockReturnsFalseAndUnlocksInBatchMode(t *testing.T) {
	s := newTestStore(t)

	bt := s.BeginBatchLoader()
	src, _ := bt.NewVertex(false)
	dst, _ := bt.NewVertex(false)

	found, err := bt.DelEdge(src, dst, 1)
	if err != nil {
		t.Fatalf("DelEdge: %v", err)
	}
	if found {
		t.Fatalf("DelEdge on a vertex with no edges = true, want false")
	}

	// src's latch must have been released by the early return above;
	// a second batch-mode op against src should not deadlock.
	if err := bt.PutEdge(src, dst, 1, []byte("x"), false); err != nil {
		t.Fatalf("PutEdge after DelEdge miss: %v", err)
	}
}

func TestAbortRollsBackVertexWrite(t *testing.T) {
	s := newTestStore(t)

	setup := s.BeginWrite()
	id, _ := setup.NewVertex(true)
	if err := setup.PutVertex(id, []byte("v1")); err != nil {
		t.Fatalf("PutVertex: %v", err)
	}
	if _, err := setup.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	wt := s.BeginWrite()
	if err := wt.PutVertex(id, []byte("v2")); err != nil {
		t.Fatalf("PutVertex: %v", err)
	}
	if err := wt.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	rt := s.BeginRead()
	data, err := rt.GetVertex(id)
	if err != nil {
		t.Fatalf("GetVertex: %v", err)
	}
	if !bytes.Equal(data, []byte("v1")) {
		t.Fatalf("GetVertex after abort = %q, want %q (pre-abort value)", data, "v1")
	}
}

func TestReplayReconstructsState(t *testing.T) {
	s := newTestStore(t)

	var ops []walog.Op
	ops = append(ops, walog.NewVertexOp{VertexID: 5})
	ops = append(ops, walog.PutVertexOp{VertexID: 5, Data: []byte("replayed")})
	ops = append(ops, walog.NewVertexOp{VertexID: 6})
	ops = append(ops, walog.PutEdgeOp{Src: 5, Label: 2, Dst: 6, Version: UnversionedEdgeVersion, Data: []byte("e")})

	if err := s.Replay(ops); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	rt := s.BeginRead()
	data, err := rt.GetVertex(5)
	if err != nil {
		t.Fatalf("GetVertex: %v", err)
	}
	if !bytes.Equal(data, []byte("replayed")) {
		t.Fatalf("GetVertex(5) = %q, want %q", data, "replayed")
	}

	edge, err := rt.GetEdge(5, 6, 2)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if !bytes.Equal(edge, []byte("e")) {
		t.Fatalf("GetEdge(5,6,2) = %q, want %q", edge, "e")
	}

	// A fresh NewVertex must not collide with the replayed ids.
	wt := s.BeginWrite()
	id, err := wt.NewVertex(false)
	if err != nil {
		t.Fatalf("NewVertex: %v", err)
	}
	if id == 5 || id == 6 {
		t.Fatalf("fresh id %d collides with a replayed id", id)
	}
	wt.Abort()
}
