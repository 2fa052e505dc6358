package txn

import "github.com/myuser/graphstore/internal/block"

// EdgeView is a materialized (dst, data, version) triple returned from a
// GetEdges-family call; Data is a private copy, safe to retain past the
// transaction's lifetime.
type EdgeView struct {
	Dst     uint64
	Data    []byte
	Version int64
}

// GetEdges returns every edge out of src under label that is visible to
// this transaction's snapshot, oldest-created first unless reverse is set.
func (t *Transaction) GetEdges(src uint64, label int32, reverse bool) ([]EdgeView, error) {
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

	numEntries, _ := t.edgeCounts(eb, pointer)
	out := make([]EdgeView, 0, numEntries)
	for _, en := range eb.Entries(numEntries) {
		if !t.visible(block.LoadTimestamp(en.CreationTimePointer), block.LoadTimestamp(en.DeletionTimePointer)) {
			continue
		}
		data := make([]byte, len(en.Data))
		copy(data, en.Data)
		out = append(out, EdgeView{Dst: en.Dst, Data: data, Version: en.Version})
	}
	if reverse {
		reverseEdgeViews(out)
	}
	return out, nil
}

// GetEdgesWithVersion returns every edge out of src under label whose
// stamped version falls within [start, end], irrespective of visibility,
// found in the edge-block segment visible to this snapshot. Older
// segments of the chain are not scanned.
func (t *Transaction) GetEdgesWithVersion(src uint64, label int32, start, end int64, reverse bool) ([]EdgeView, error) {
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

	numEntries, _ := t.edgeCounts(eb, pointer)
	var out []EdgeView
	for _, en := range eb.Entries(numEntries) {
		if en.Version < start || en.Version > end {
			continue
		}
		data := make([]byte, len(en.Data))
		copy(data, en.Data)
		out = append(out, EdgeView{Dst: en.Dst, Data: data, Version: en.Version})
	}
	if reverse {
		reverseEdgeViews(out)
	}
	return out, nil
}

func reverseEdgeViews(views []EdgeView) {
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}
}
