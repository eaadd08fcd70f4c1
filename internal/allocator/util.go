package allocator

import "unsafe"

// alignUp rounds size up to the nearest multiple of alignment, which must
// be a power of two. Used only for request rounding on entry to a region
// (fry multiple / page size); chunk sizes inside a region are already
// multiples of roundTo by construction.
func alignUp(size, alignment uintptr) uintptr {
	if alignment == 0 {
		return size
	}

	return (size + alignment - 1) &^ (alignment - 1)
}

// copyMemory copies min(len(dst view), size) bytes from src to dst. Both
// pointers must reference at least size live bytes; callers (realloc
// paths) are responsible for that invariant.
func copyMemory(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}

	dstSlice := unsafe.Slice((*byte)(dst), size)
	srcSlice := unsafe.Slice((*byte)(src), size)
	copy(dstSlice, srcSlice)
}

// zeroMemory zeroes size bytes starting at ptr, used by the fry calloc
// path, which must zero explicitly because, unlike a bigmaac chunk's
// freshly faulted-in file pages, a fry's backing file was installed once
// at bootstrap and may carry bytes from a prior allocation in the same
// fry region.
func zeroMemory(ptr unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}

	slice := unsafe.Slice((*byte)(ptr), size)
	for i := range slice {
		slice[i] = 0
	}
}
