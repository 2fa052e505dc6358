package block

// Each of these reads a block's fixed-size header first to learn its
// order, then re-derives the view over the block's whole allocated
// extent (1<<order bytes) so entries/data/bloom-filter regions that live
// past the header are all reachable. NullPointer yields the zero
// (Valid() == false) view.

// VertexBlockAt returns a VertexBlock view over the block at p.
func (a *Arena) VertexBlockAt(p Pointer) VertexBlock {
	if p == NullPointer {
		return VertexBlock{}
	}
	hdr := ViewVertexBlock(a.Bytes(p, VertexBlockHeaderSize))
	return ViewVertexBlock(a.Bytes(p, 1<<uint(hdr.Order())))
}

// EdgeLabelBlockAt returns an EdgeLabelBlock view over the block at p.
func (a *Arena) EdgeLabelBlockAt(p Pointer) EdgeLabelBlock {
	if p == NullPointer {
		return EdgeLabelBlock{}
	}
	hdr := ViewEdgeLabelBlock(a.Bytes(p, EdgeLabelBlockHeaderSize))
	return ViewEdgeLabelBlock(a.Bytes(p, 1<<uint(hdr.Order())))
}

// EdgeBlockAt returns an EdgeBlock view over the block at p.
func (a *Arena) EdgeBlockAt(p Pointer) EdgeBlock {
	if p == NullPointer {
		return EdgeBlock{}
	}
	hdr := ViewEdgeBlock(a.Bytes(p, EdgeBlockHeaderSize))
	return ViewEdgeBlock(a.Bytes(p, 1<<uint(hdr.Order())))
}
