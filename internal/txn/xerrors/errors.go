// Package xerrors defines the transaction engine's five error kinds,
// matched by callers via errors.Cause the way talent-plan-tinykv's tikv
// package matches MVCC errors it raises through github.com/juju/errors.
package xerrors

import "github.com/juju/errors"

// Sentinel causes. Test with errors.Cause(err) == xerrors.ErrRollback (or
// the matching Is* helper below), never by string comparison.
var (
	// ErrInvalidTransaction: operation attempted on a committed, aborted,
	// or wrong-mode transaction.
	ErrInvalidTransaction = errors.New("graphstore: invalid transaction state")

	// ErrInvalidVertexID: vertex id is negative or was never issued.
	ErrInvalidVertexID = errors.New("graphstore: invalid vertex id")

	// ErrRollback: ensure_no_conflict observed a committed write newer
	// than this transaction's read epoch. The only kind a caller is
	// expected to retry on; the transaction must be aborted first.
	ErrRollback = errors.New("graphstore: write-write conflict, rollback required")

	// ErrAllocationFailure: the block manager could not satisfy a
	// request. Fatal, surfaced unchanged.
	ErrAllocationFailure = errors.New("graphstore: block allocation failure")

	// ErrWalFailure: persistence failed during register_commit. Fatal;
	// the commit does not publish and the transaction is left aborted.
	ErrWalFailure = errors.New("graphstore: wal persistence failure")
)

// InvalidTransaction annotates ErrInvalidTransaction with context.
func InvalidTransaction(format string, args ...interface{}) error {
	return errors.Annotatef(ErrInvalidTransaction, format, args...)
}

// InvalidVertexID annotates ErrInvalidVertexID with context.
func InvalidVertexID(format string, args ...interface{}) error {
	return errors.Annotatef(ErrInvalidVertexID, format, args...)
}

// Rollback annotates ErrRollback with context.
func Rollback(format string, args ...interface{}) error {
	return errors.Annotatef(ErrRollback, format, args...)
}

// AllocationFailure annotates ErrAllocationFailure with context.
func AllocationFailure(format string, args ...interface{}) error {
	return errors.Annotatef(ErrAllocationFailure, format, args...)
}

// WalFailure annotates ErrWalFailure with context.
func WalFailure(format string, args ...interface{}) error {
	return errors.Annotatef(ErrWalFailure, format, args...)
}

// IsRollback reports whether err's cause is ErrRollback: the signal a
// caller may retry on, after calling Abort.
func IsRollback(err error) bool {
	return errors.Cause(err) == ErrRollback
}
