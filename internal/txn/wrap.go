package txn

import "github.com/myuser/graphstore/internal/txn/xerrors"

// allocationFailure wraps a block-manager error as the engine's fatal
// AllocationFailure kind.
func allocationFailure(err error) error {
	return xerrors.AllocationFailure("%v", err)
}
