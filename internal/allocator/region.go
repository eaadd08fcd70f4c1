package allocator

import (
	"fmt"
	"sync/atomic"
)

// backingStore is the narrow interface a Region uses to make its IN_USE
// chunks' pages resolve to real memory and its FREE chunks' pages resolve
// to nothing. install and release are platform-specific (mapping_linux.go,
// mapping_darwin.go, mapping_other.go) but a Region never sees the
// difference: it calls install() after carving an IN_USE chunk and
// release() before handing one back, and trusts the implementation to
// leave [addr, addr+size) mapped either way.
type backingStore interface {
	install(addr, size uintptr) error
	release(addr, size uintptr) error
}

// Region is a contiguous virtual-address range [base, end) plus two
// views over the same set of chunks: an address-ordered doubly linked
// list (chunks field, chunk.prev/next) and a max-heap over the FREE
// subset (heap field, chunk.heapIdx). A Region owns
// its chunk arena, its heap array, and, for a lazily-backed region, the
// per-chunk file mappings; it keeps no file descriptors, since each one is
// closed right after its mmap.
type Region struct {
	name string

	base, end uintptr
	roundTo   uintptr

	chunks    []chunk
	freeSlots []chunkID
	head      chunkID

	heap []chunkID

	usedBytes uintptr

	lazy    bool
	backing backingStore

	// activeMappings is shared across both regions (and owned by the
	// Dispatcher): one process-wide counter, not one per region.
	activeMappings *int64
}

// newRegion constructs a Region covering [base, end) with a single giant
// FREE chunk. roundTo is the
// allocation-request rounding granularity (the fry multiple, or the page
// size for bigmaacs). A lazy Region installs/releases its backing per
// chunk (bigmaacs); a non-lazy Region's backing is installed once, in its
// entirety, by the caller, and is never touched again by Region methods.
func newRegion(name string, base, end, roundTo uintptr, lazy bool, backing backingStore, activeMappings *int64) *Region {
	r := &Region{
		name:           name,
		base:           base,
		end:            end,
		roundTo:        roundTo,
		lazy:           lazy,
		backing:        backing,
		activeMappings: activeMappings,
		head:           noChunk,
	}

	sentinel := r.newChunkRecord(base, 0, chunkInUse)
	whole := r.newChunkRecord(base, end-base, chunkFree)

	r.chunks[sentinel].next = whole
	r.chunks[whole].prev = sentinel
	r.head = sentinel

	r.heapInsert(whole)

	return r
}

func (r *Region) totalSize() uintptr { return r.end - r.base }

func (r *Region) contains(addr uintptr) bool { return addr >= r.base && addr < r.end }

// newChunkRecord allocates (or recycles, from a prior merge) a slot in the
// chunk arena and returns its stable handle.
func (r *Region) newChunkRecord(addr, size uintptr, state chunkState) chunkID {
	c := chunk{addr: addr, size: size, state: state, prev: noChunk, next: noChunk, heapIdx: -1}

	if n := len(r.freeSlots); n > 0 {
		id := r.freeSlots[n-1]
		r.freeSlots = r.freeSlots[:n-1]
		r.chunks[id] = c

		return id
	}

	r.chunks = append(r.chunks, c)

	return chunkID(len(r.chunks) - 1)
}

// releaseChunkRecord returns a dead arena slot (one absorbed by a merge)
// to the free list for reuse by a future split.
func (r *Region) releaseChunkRecord(id chunkID) {
	r.freeSlots = append(r.freeSlots, id)
}

// findByAddr locates the chunk whose start address equals addr by
// scanning the address-ordered list. The list is sorted, so a binary
// search would work too; a linear scan is fine at the chunk counts a
// region holds in practice.
func (r *Region) findByAddr(addr uintptr) (chunkID, bool) {
	for id := r.chunks[r.head].next; id != noChunk; id = r.chunks[id].next {
		if r.chunks[id].addr == addr {
			return id, true
		}
	}

	return noChunk, false
}

// allocChunk rounds the request up to roundTo, carves an IN_USE chunk of
// that size out of the FREE chunk heapPeekForFit selects, and for a lazy
// Region installs the chunk's backing mapping before returning. On any
// failure the Region is left exactly as it was before the call.
func (r *Region) allocChunk(size uintptr) (uintptr, error) {
	rounded := alignUp(size, r.roundTo)
	if rounded == 0 {
		return 0, fmt.Errorf("bigmaac: invalid allocation size %d", size)
	}

	idx, ok := r.heapPeekForFit(rounded)
	if !ok {
		return 0, ErrRegionExhausted
	}

	freeID := r.heap[idx]

	var useID chunkID
	if r.chunks[freeID].size == rounded {
		r.heapRemoveAt(idx)
		r.chunks[freeID].state = chunkInUse
		r.chunks[freeID].heapIdx = -1
		useID = freeID
	} else {
		useID = r.splitFreeChunk(freeID, rounded)
	}

	if r.lazy {
		if err := r.backing.install(r.chunks[useID].addr, r.chunks[useID].size); err != nil {
			r.freeAndCoalesce(useID)

			return 0, fmt.Errorf("bigmaac: install mapping for %s chunk at %#x (%d bytes): %w", r.name, r.chunks[useID].addr, r.chunks[useID].size, err)
		}

		atomic.AddInt64(r.activeMappings, 1)
	}

	r.usedBytes += r.chunks[useID].size

	return r.chunks[useID].addr, nil
}

// freeChunkAt locates the IN_USE chunk starting at addr, releases its
// backing if this Region is lazy, and coalesces it with any FREE
// neighbours. Returns ErrUnknownPointer if no chunk
// starts at addr, or if the chunk found is not IN_USE (double free).
func (r *Region) freeChunkAt(addr uintptr) error {
	id, ok := r.findByAddr(addr)
	if !ok || r.chunks[id].state != chunkInUse {
		return ErrUnknownPointer
	}

	size := r.chunks[id].size

	if r.lazy {
		if err := r.backing.release(addr, size); err != nil {
			return fmt.Errorf("bigmaac: release mapping for %s chunk at %#x (%d bytes): %w", r.name, addr, size, err)
		}

		atomic.AddInt64(r.activeMappings, -1)
	}

	r.usedBytes -= size
	r.freeAndCoalesce(id)

	return nil
}

// chunkSizeAt returns the size of the IN_USE chunk starting at addr, used
// by realloc to decide whether the existing block already satisfies a
// grow request.
func (r *Region) chunkSizeAt(addr uintptr) (uintptr, bool) {
	id, ok := r.findByAddr(addr)
	if !ok || r.chunks[id].state != chunkInUse {
		return 0, false
	}

	return r.chunks[id].size, true
}
