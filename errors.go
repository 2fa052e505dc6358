package graphstore

import (
	"github.com/juju/errors"

	"github.com/myuser/graphstore/internal/txn/xerrors"
)

// Error kinds a caller of this package can match on, re-exported at the
// API boundary from internal/txn/xerrors so callers never need to import
// an internal package to tell errors apart.
var (
	ErrInvalidTransaction = xerrors.ErrInvalidTransaction
	ErrInvalidVertexID    = xerrors.ErrInvalidVertexID
	ErrRollback           = xerrors.ErrRollback
	ErrAllocationFailure  = xerrors.ErrAllocationFailure
	ErrWalFailure         = xerrors.ErrWalFailure
)

// IsRollback reports whether err signals a write-write conflict a caller
// should retry after aborting the transaction that returned it.
func IsRollback(err error) bool {
	return errors.Cause(err) == ErrRollback
}
