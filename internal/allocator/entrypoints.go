package allocator

import (
	"fmt"
	"math/bits"
	"os"
	"sync/atomic"
	"unsafe"
)

// The five interposed entry points. Dispatcher methods here never call
// into cgo or touch errno directly; that's cmd/bigmaac-preload's job,
// wrapping these in the actual exported C symbols and translating "nil"
// into the platform's OOM errno. The shape is the same for each: classify
// the request by size or pointer range, route to a region or fall back to
// the underlying allocator.

// Malloc routes a request by size: zero-size and small requests go to the
// underlying allocator, everything above the fry threshold lands in a
// region.
func (d *Dispatcher) Malloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return d.delegateMalloc(size)
	}

	st := d.loadState()
	if !st.regionsUsable() {
		return d.delegateMalloc(size)
	}

	if size <= d.cfg.MinFrySize {
		return d.delegateMalloc(size)
	}

	ptr, err := d.allocateFromRegion(size)
	if err != nil {
		d.reportAllocFailure(size, err)

		return nil
	}

	return ptr
}

// Calloc routes like Malloc, with one stricter rule: during the
// LOADING_* window it returns null outright rather than risk touching
// region structures or an unresolved underlying pointer. The dlsym
// machinery that triggers this window tolerates a failed calloc and
// retries.
func (d *Dispatcher) Calloc(count, size uintptr) unsafe.Pointer {
	total, overflowed := mulUintptr(count, size)
	if overflowed {
		return nil
	}

	st := d.loadState()
	if st == stateLoadingMemFuncs || st == stateLoadingLibrary {
		return nil
	}

	if total == 0 || !st.regionsUsable() || total <= d.cfg.MinFrySize {
		return d.delegateCalloc(count, size)
	}

	ptr, isFry, err := d.allocateFromRegionForCalloc(total)
	if err != nil {
		d.reportAllocFailure(total, err)

		return nil
	}

	// Bigmaacs pages come from a freshly created, freshly extended temp
	// file: zero by construction. Fries share one long-lived backing
	// file across many chunks over the process's life, so a reused chunk
	// can carry a previous tenant's bytes and must be zeroed explicitly.
	if isFry {
		zeroMemory(ptr, total)
	}

	return ptr
}

// Realloc covers three cases: shrink-in-place (the pointer is returned
// unchanged), grow (allocate fresh, copy, free the old chunk), and
// growing a pointer we don't own into our territory.
func (d *Dispatcher) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return d.Malloc(size)
	}

	if size == 0 {
		d.Free(ptr)

		return nil
	}

	st := d.loadState()
	if !st.regionsUsable() {
		return d.delegateRealloc(ptr, size)
	}

	if !d.ownsAddress(uintptr(ptr)) {
		// Not ours yet, but growing it might route into our territory.
		if size <= d.cfg.MinFrySize {
			return d.delegateRealloc(ptr, size)
		}

		return d.reallocForeignIntoRegion(ptr, size)
	}

	return d.reallocOwned(ptr, size)
}

// Reallocarray is realloc(p, n*s) with overflow checking of the
// multiplication.
func (d *Dispatcher) Reallocarray(ptr unsafe.Pointer, count, size uintptr) unsafe.Pointer {
	total, overflowed := mulUintptr(count, size)
	if overflowed {
		return nil
	}

	return d.Realloc(ptr, total)
}

// Free routes by pointer range: anything outside both regions belongs to
// the underlying allocator.
func (d *Dispatcher) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	st := d.loadState()
	if !st.regionsUsable() || !d.ownsAddress(uintptr(ptr)) {
		d.delegateFree(ptr)

		return
	}

	d.mu.Lock()
	region := d.regionContaining(uintptr(ptr))
	err := region.freeChunkAt(uintptr(ptr))
	d.mu.Unlock()

	if err != nil {
		// Unknown pointer inside our range: log and ignore.
		fmt.Fprintf(os.Stderr, "bigmaac: free(%p): %v\n", ptr, err)
	}
}

// --- routing helpers ---

// regionFor selects fries or bigmaacs for a request already known to
// exceed MinFrySize.
func (d *Dispatcher) regionFor(size uintptr) *Region {
	if size > d.cfg.MinBigmaacSize {
		return d.bigmaac
	}

	return d.fries
}

func (d *Dispatcher) ownsAddress(addr uintptr) bool {
	return d.fries != nil && (d.fries.contains(addr) || d.bigmaac.contains(addr))
}

func (d *Dispatcher) regionContaining(addr uintptr) *Region {
	if d.fries.contains(addr) {
		return d.fries
	}

	return d.bigmaac
}

func (d *Dispatcher) allocateFromRegion(size uintptr) (unsafe.Pointer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	region := d.regionFor(size)

	addr, err := region.allocChunk(size)
	if err != nil {
		return nil, err
	}

	return unsafe.Pointer(addr), nil
}

// allocateFromRegionForCalloc is allocateFromRegion plus reporting
// whether the chunk landed in the fries region, which the caller needs
// to decide whether explicit zeroing is required.
func (d *Dispatcher) allocateFromRegionForCalloc(size uintptr) (unsafe.Pointer, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	region := d.regionFor(size)

	addr, err := region.allocChunk(size)
	if err != nil {
		return nil, false, err
	}

	return unsafe.Pointer(addr), region == d.fries, nil
}

// reallocOwned handles realloc on a pointer this library handed out.
// Never shrinks; grows by allocating fresh, copying min(old,new), and
// freeing the old chunk.
func (d *Dispatcher) reallocOwned(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	d.mu.Lock()
	region := d.regionContaining(uintptr(ptr))
	oldSize, ok := region.chunkSizeAt(uintptr(ptr))
	d.mu.Unlock()

	if !ok {
		fmt.Fprintf(os.Stderr, "bigmaac: realloc(%p, %d): unknown pointer\n", ptr, size)

		return nil
	}

	if oldSize >= size {
		return ptr
	}

	newPtr := d.Malloc(size)
	if newPtr == nil {
		return nil
	}

	copyMemory(newPtr, ptr, oldSize)
	d.Free(ptr)

	return newPtr
}

// reallocForeignIntoRegion handles the ownership-crossing case: ptr came
// from the underlying allocator, but the new size crosses into our
// territory. We ask the underlying allocator how big ptr's block
// actually is, allocate our own chunk, copy, and hand ptr back to the
// underlying free.
func (d *Dispatcher) reallocForeignIntoRegion(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	u := d.underlyingOrNil()

	var oldSize uintptr
	if u != nil {
		oldSize = u.UsableSize(ptr)
	}

	newPtr := d.Malloc(size)
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

	d.delegateFree(ptr)

	return newPtr
}

// --- delegation to the underlying allocator ---

func (d *Dispatcher) delegateMalloc(size uintptr) unsafe.Pointer {
	u := d.underlyingOrNil()
	if u == nil {
		return nil
	}

	return u.Malloc(size)
}

func (d *Dispatcher) delegateCalloc(count, size uintptr) unsafe.Pointer {
	u := d.underlyingOrNil()
	if u == nil {
		return nil
	}

	return u.Calloc(count, size)
}

func (d *Dispatcher) delegateRealloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	u := d.underlyingOrNil()
	if u == nil {
		return nil
	}

	return u.Realloc(ptr, size)
}

func (d *Dispatcher) delegateFree(ptr unsafe.Pointer) {
	if u := d.underlyingOrNil(); u != nil {
		u.Free(ptr)
	}
}

// mulUintptr multiplies count*size, reporting overflow the way
// reallocarray(3)/calloc(3) are required to; a silent wraparound would
// turn an intended OOM into a dangerously undersized allocation.
func mulUintptr(count, size uintptr) (uintptr, bool) {
	if count == 0 || size == 0 {
		return 0, false
	}

	hi, lo := bits.Mul64(uint64(count), uint64(size))
	if hi != 0 || lo > uint64(^uintptr(0)) {
		return 0, true
	}

	return uintptr(lo), false
}

func (d *Dispatcher) reportAllocFailure(size uintptr, err error) {
	d.mu.Lock()
	friesUsed, friesTotal := d.fries.usedBytes, d.fries.totalSize()
	bigUsed, bigTotal := d.bigmaac.usedBytes, d.bigmaac.totalSize()
	d.mu.Unlock()

	fmt.Fprintf(os.Stderr, "bigmaac: allocation of %d bytes failed: %v (active_mappings=%d, fries_used=%d/%d, bigmaacs_used=%d/%d)\n",
		size, err,
		atomic.LoadInt64(&d.activeMappings),
		friesUsed, friesTotal,
		bigUsed, bigTotal,
	)
}
