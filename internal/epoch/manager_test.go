package epoch

import (
	"testing"
	"time"
)

func TestBeginWriteAssignsDistinctIDs(t *testing.T) {
	m := NewManager()

	_, t1 := m.BeginWrite()
	_, t2 := m.BeginWrite()
	if t1 == t2 {
		t.Fatalf("expected distinct local txn ids, got %d twice", t1)
	}
}

func TestFinishCommitAdvancesVisible(t *testing.T) {
	m := NewManager()

	epoch, _, err := m.RegisterCommit(nil)
	if err != nil {
		t.Fatalf("RegisterCommit: %v", err)
	}
	if got := m.BeginRead(); got != 0 {
		t.Fatalf("read_epoch should not advance before finish, got %d", got)
	}

	m.FinishCommit(epoch, 1, true)

	if got := m.BeginRead(); got != epoch {
		t.Fatalf("read_epoch = %d, want %d", got, epoch)
	}
}

func TestFinishCommitOrderingHoldsBackVisible(t *testing.T) {
	m := NewManager()

	e1, _, _ := m.RegisterCommit(nil)
	e2, _, _ := m.RegisterCommit(nil)

	done := make(chan struct{})
	go func() {
		m.FinishCommit(e2, 2, true)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("finish_commit(e2) returned before e1 finished")
	case <-time.After(20 * time.Millisecond):
	}

	m.FinishCommit(e1, 2, false)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("finish_commit(e2) never unblocked after e1 finished")
	}

	if got := m.BeginRead(); got != e2 {
		t.Fatalf("read_epoch = %d, want %d", got, e2)
	}
}

func TestRegisterCommitPersistFailurePropagates(t *testing.T) {
	m := NewManager()

	boom := errTest("boom")
	_, _, err := m.RegisterCommit(func(epoch int64) error { return boom })
	if err != boom {
		t.Fatalf("expected persist error to propagate, got %v", err)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
