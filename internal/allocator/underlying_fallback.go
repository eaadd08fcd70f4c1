package allocator

import (
	"sync"
	"unsafe"
)

// fallbackUnderlying implements Underlying without cgo, by tracking
// Go-managed slices keyed by their first-byte pointer. In production the
// delegate is the dlsym-resolved libc allocator (see
// cmd/bigmaac-preload); this type stands in for it in this package's
// tests.
//
// It cannot truly free memory early (Go's GC reclaims the slice once
// untracked), but that's immaterial here: this type never backs a
// process's real allocator, only the seam tests exercise.
type fallbackUnderlying struct {
	mu    sync.Mutex
	sizes map[unsafe.Pointer]uintptr
	live  map[unsafe.Pointer][]byte
}

// newFallbackUnderlying constructs a fallbackUnderlying ready for use.
func newFallbackUnderlying() *fallbackUnderlying {
	return &fallbackUnderlying{
		sizes: make(map[unsafe.Pointer]uintptr),
		live:  make(map[unsafe.Pointer][]byte),
	}
}

func (f *fallbackUnderlying) Malloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	buf := make([]byte, size)
	ptr := unsafe.Pointer(&buf[0])

	f.mu.Lock()
	f.sizes[ptr] = size
	f.live[ptr] = buf
	f.mu.Unlock()

	return ptr
}

func (f *fallbackUnderlying) Calloc(count, size uintptr) unsafe.Pointer {
	// make([]byte, n) is already zeroed, unlike this package's own fry
	// calloc path (util.go's zeroMemory), which must zero explicitly
	// because a fry's backing file can carry stale bytes.
	return f.Malloc(count * size)
}

func (f *fallbackUnderlying) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	f.mu.Lock()
	delete(f.sizes, ptr)
	delete(f.live, ptr)
	f.mu.Unlock()
}

func (f *fallbackUnderlying) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return f.Malloc(size)
	}

	if size == 0 {
		f.Free(ptr)

		return nil
	}

	oldSize := f.UsableSize(ptr)

	newPtr := f.Malloc(size)
	if newPtr == nil {
		return nil
	}

	if oldSize > 0 {
		copySize := oldSize
		if size < copySize {
			copySize = size
		}

		copyMemory(newPtr, ptr, copySize)
	}

	f.Free(ptr)

	return newPtr
}

func (f *fallbackUnderlying) UsableSize(ptr unsafe.Pointer) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sizes[ptr]
}
