package allocator

import (
	"errors"
	"testing"
)

// fakeBackingStore is a no-op backingStore: install/release just bookkeep
// call counts, never touching real memory. Region-level tests only read
// and write chunk metadata, never the bytes a chunk's address range would
// actually back, so a real mmap is unnecessary weight for this layer.
type fakeBackingStore struct {
	installs, releases int
	failInstall        bool
}

func (f *fakeBackingStore) install(addr, size uintptr) error {
	f.installs++

	if f.failInstall {
		return errFakeInstall
	}

	return nil
}

func (f *fakeBackingStore) release(addr, size uintptr) error {
	f.releases++

	return nil
}

var errFakeInstall = errors.New("fake backing store: install failed")

// newTestRegion builds a Region of the given size with roundTo-byte
// rounding, backed by a fakeBackingStore, for heap/chunklist/region unit
// tests that never need real memory behind their chunks.
func newTestRegion(base, size, roundTo uintptr, lazy bool) (*Region, *fakeBackingStore) {
	backing := &fakeBackingStore{}
	mappings := new(int64)
	r := newRegion("test", base, base+size, roundTo, lazy, backing, mappings)

	return r, backing
}

// checkInvariants walks a Region's chunk list and free heap and fails t
// if any of the structural invariants are
// violated: chunks partition [base,end) with no gaps or overlaps, no two
// adjacent chunks are both FREE, every FREE chunk (and only FREE chunks)
// appears in the heap exactly once at its recorded heapIdx, and the heap
// satisfies the max-heap property throughout.
func checkInvariants(t *testing.T, r *Region) {
	t.Helper()

	addr := r.base
	seenInHeap := make(map[chunkID]bool)
	prevState := chunkInUse // sentinel counts as IN_USE

	count := 0
	for id := r.head; id != noChunk; id = r.chunks[id].next {
		count++
		if count > len(r.chunks)+1 {
			t.Fatalf("chunk list does not terminate (cycle?) after %d links", count)
		}

		c := &r.chunks[id]

		if c.addr != addr {
			t.Fatalf("chunk %d starts at %#x, expected %#x (gap or overlap)", id, c.addr, addr)
		}

		if c.state == chunkFree && prevState == chunkFree {
			t.Fatalf("two adjacent FREE chunks at %#x and before it: coalescing invariant violated", c.addr)
		}

		if c.next != noChunk && r.chunks[c.next].prev != id {
			t.Fatalf("chunk %d's next (%d) does not point back via prev", id, c.next)
		}

		if c.state == chunkFree {
			if c.heapIdx < 0 || c.heapIdx >= len(r.heap) || r.heap[c.heapIdx] != id {
				t.Fatalf("FREE chunk %d at %#x has inconsistent heapIdx %d", id, c.addr, c.heapIdx)
			}

			seenInHeap[id] = true
		} else if c.heapIdx != -1 {
			t.Fatalf("IN_USE chunk %d has non-sentinel heapIdx %d", id, c.heapIdx)
		}

		addr = c.end()
		prevState = c.state
	}

	if addr != r.end {
		t.Fatalf("chunk list ends at %#x, expected region end %#x", addr, r.end)
	}

	if len(seenInHeap) != len(r.heap) {
		t.Fatalf("heap has %d entries but only %d correspond to FREE chunks reachable from the list", len(r.heap), len(seenInHeap))
	}

	for i := range r.heap {
		left, right := 2*i+1, 2*i+2

		if left < len(r.heap) && r.heapSize(left) > r.heapSize(i) {
			t.Fatalf("max-heap property violated: heap[%d]=%d < left child heap[%d]=%d", i, r.heapSize(i), left, r.heapSize(left))
		}

		if right < len(r.heap) && r.heapSize(right) > r.heapSize(i) {
			t.Fatalf("max-heap property violated: heap[%d]=%d < right child heap[%d]=%d", i, r.heapSize(i), right, r.heapSize(right))
		}
	}
}
