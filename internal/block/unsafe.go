package block

import "unsafe"

// ptr32 returns an unsafe pointer to the int32-sized field at byte offset
// off within buf, for atomic access. Every layout in this package keeps
// 4-byte fields on 4-byte boundaries so this is always well-aligned.
func ptr32(buf []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&buf[off])
}
