package txn

import (
	"github.com/myuser/graphstore/internal/block"
	"github.com/myuser/graphstore/internal/walog"
)

// Replay re-applies one committed transaction's decoded op log directly
// against the store, the way spec.md's recovery section describes:
// "re-execute in order under a batch loader to reconstruct graph state at
// the commit epoch." Ops run through the same batch-loader code paths a
// live bulk load would use, so the replayed vertices and edges carry the
// data the original transaction published, without re-appending to the
// WAL. Replayed blocks and entries are stamped with timestamp 0, as every
// batch-loader write is, not with the original commit epoch.
func (s *Store) Replay(ops []walog.Op) error {
	t := s.BeginBatchLoader()
	for _, op := range ops {
		switch o := op.(type) {
		case walog.NewVertexOp:
			s.Dir.SetVertexPointer(o.VertexID, block.NullPointer)
			s.Dir.SetEdgeLabelPointer(o.VertexID, block.NullPointer)
			s.IDs.ObserveIssued(o.VertexID)
		case walog.PutVertexOp:
			if err := t.PutVertex(o.VertexID, o.Data); err != nil {
				return err
			}
		case walog.DelVertexOp:
			if _, err := t.DelVertex(o.VertexID, o.Recycle); err != nil {
				return err
			}
		case walog.PutEdgeOp:
			if err := t.PutEdgeWithVersion(o.Src, o.Dst, o.Label, o.Data, o.Version, o.ForceInsert); err != nil {
				return err
			}
		case walog.DelEdgeOp:
			if _, err := t.DelEdge(o.Src, o.Dst, o.Label); err != nil {
				return err
			}
		}
	}
	return nil
}
