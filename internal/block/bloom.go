package block

import (
	"encoding/binary"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
)

// Embedded Bloom filters accelerate the transaction engine's findEdge on
// edge blocks that have grown past a handful of entries: once a block's
// order reaches BloomFilterThresholdOrder, a filter is carved out of the
// block's tail sized at 1/(1<<BloomFilterPortion) of the block, doubling
// each time the block itself doubles.
const (
	BloomFilterThresholdOrder = 12 // blocks smaller than 4KiB carry no filter
	BloomFilterPortion        = 4  // filter is block_size >> BloomFilterPortion bytes
	bloomHashCount            = 4
)

// BloomFilterSize returns the number of bytes to reserve for the Bloom
// filter of an edge block at the given order, or 0 if that order is below
// the threshold.
func BloomFilterSize(order int) int32 {
	if order < BloomFilterThresholdOrder {
		return 0
	}
	return int32(1 << uint(order-BloomFilterPortion))
}

// bloomWords returns a zero-copy []uint64 view over the filter's byte
// range at the tail of buf, the way EdgeBlock's entries/data regions are
// zero-copy views over the same backing array.
func (e EdgeBlock) bloomWords() []uint64 {
	n := int(e.BloomLen())
	if n == 0 {
		return nil
	}
	start := len(e.buf) - n
	return unsafe.Slice((*uint64)(unsafe.Pointer(&e.buf[start])), n/8)
}

// bloomSet wraps the filter's backing words with bits-and-blooms/bitset
// without copying; a nil result means this block carries no filter.
func (e EdgeBlock) bloomSet() *bitset.BitSet {
	words := e.bloomWords()
	if words == nil {
		return nil
	}
	return bitset.From(words)
}

func bloomBitIndex(dst uint64, nbits uint, seed int) uint {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], dst)
	h := fnv1a64(buf[:], uint64(seed))
	return uint(h % uint64(nbits))
}

// BloomAdd records dst as present. No-op on blocks without a filter.
func (e EdgeBlock) BloomAdd(dst uint64) {
	bs := e.bloomSet()
	if bs == nil {
		return
	}
	nbits := bs.Len()
	if nbits == 0 {
		return
	}
	for i := 0; i < bloomHashCount; i++ {
		bs.Set(bloomBitIndex(dst, nbits, i))
	}
}

// BloomMaybeContains reports whether dst might be present. A block with no
// filter always answers true (nothing to rule out); the transaction
// engine's findEdge falls back to a full scan in that case.
func (e EdgeBlock) BloomMaybeContains(dst uint64) bool {
	bs := e.bloomSet()
	if bs == nil {
		return true
	}
	nbits := bs.Len()
	if nbits == 0 {
		return true
	}
	for i := 0; i < bloomHashCount; i++ {
		if !bs.Test(bloomBitIndex(dst, nbits, i)) {
			return false
		}
	}
	return true
}

// fnv1a64 is a seeded FNV-1a used to derive the k hash positions above;
// distinct seeds stand in for k independent hash functions.
func fnv1a64(data []byte, seed uint64) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset) ^ seed
	for _, b := range data {
		h ^= uint64(b)
		h *= prime
	}
	return h
}
