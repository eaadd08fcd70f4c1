package allocator

import "testing"

func TestSplitFreeChunkCarvesFromLowEnd(t *testing.T) {
	r, _ := newTestRegion(0x100000, 4096, 1, false)
	checkInvariants(t, r)

	addr, err := r.allocChunk(1024)
	if err != nil {
		t.Fatalf("allocChunk: %v", err)
	}

	if addr != 0x100000 {
		t.Fatalf("expected carve from the region's low end, got %#x", addr)
	}

	checkInvariants(t, r)

	id, ok := r.findByAddr(addr)
	if !ok || r.chunks[id].size != 1024 {
		t.Fatalf("expected a 1024-byte IN_USE chunk at %#x", addr)
	}

	remaining, ok := r.heapPeekForFit(1)
	if !ok || r.chunks[r.heap[remaining]].size != 4096-1024 {
		t.Fatalf("expected the remainder FREE chunk to be %d bytes", 4096-1024)
	}
}

func TestFreeAndCoalesceNeitherSuccessorAndBothFree(t *testing.T) {
	r, _ := newTestRegion(0x200000, 4096, 1, false)

	a, err := r.allocChunk(1024)
	if err != nil {
		t.Fatalf("allocChunk a: %v", err)
	}

	b, err := r.allocChunk(1024)
	if err != nil {
		t.Fatalf("allocChunk b: %v", err)
	}

	c, err := r.allocChunk(1024)
	if err != nil {
		t.Fatalf("allocChunk c: %v", err)
	}

	checkInvariants(t, r)

	// Neither neighbour free: freeing the middle chunk b while a and c are
	// both still IN_USE.
	if err := r.freeChunkAt(b); err != nil {
		t.Fatalf("free b: %v", err)
	}

	checkInvariants(t, r)

	id, ok := r.findByAddr(b)
	if !ok || r.chunks[id].state != chunkFree {
		t.Fatalf("expected b to be FREE and still findable at its own address")
	}

	// a's predecessor is the head sentinel (never FREE) but its successor
	// (b) now is: freeing a exercises the successor-only-free case,
	// merging into a single run covering a+b.
	if err := r.freeChunkAt(a); err != nil {
		t.Fatalf("free a: %v", err)
	}

	checkInvariants(t, r)

	if _, ok := r.findByAddr(b); ok {
		t.Fatalf("b's chunk record should have been absorbed, not left independently findable")
	}

	merged, ok := r.findByAddr(a)
	if !ok || r.chunks[merged].size < 2048 {
		t.Fatalf("expected a merged FREE run of at least 2048 bytes at %#x", a)
	}

	// Both-neighbours-free: free c, whose predecessor is now the big merged
	// run (already free) and whose successor is the region's tail FREE
	// chunk. Freeing c should merge both ways at once.
	if err := r.freeChunkAt(c); err != nil {
		t.Fatalf("free c: %v", err)
	}

	checkInvariants(t, r)

	whole, ok := r.findByAddr(0x200000)
	if !ok || whole != r.chunks[r.head].next {
		t.Fatalf("expected the entire region to have re-coalesced into one FREE chunk")
	}

	if r.chunks[whole].size != 4096 {
		t.Fatalf("expected the fully-coalesced chunk to span the whole region (4096 bytes), got %d", r.chunks[whole].size)
	}

	if len(r.heap) != 1 {
		t.Fatalf("expected exactly one FREE chunk left in the heap, got %d", len(r.heap))
	}
}

func TestFreeAndCoalescePredecessorOnlyFree(t *testing.T) {
	r, _ := newTestRegion(0x300000, 4096, 1, false)

	a, err := r.allocChunk(1024)
	if err != nil {
		t.Fatalf("allocChunk a: %v", err)
	}

	b, err := r.allocChunk(1024)
	if err != nil {
		t.Fatalf("allocChunk b: %v", err)
	}

	c, err := r.allocChunk(1024)
	if err != nil {
		t.Fatalf("allocChunk c: %v", err)
	}

	if err := r.freeChunkAt(a); err != nil {
		t.Fatalf("free a: %v", err)
	}

	checkInvariants(t, r)

	// Now free b: its predecessor (a) is FREE and its successor (c) is
	// still IN_USE, so b is absorbed into a alone.
	if err := r.freeChunkAt(b); err != nil {
		t.Fatalf("free b: %v", err)
	}

	checkInvariants(t, r)

	merged, ok := r.findByAddr(a)
	if !ok || r.chunks[merged].state != chunkFree || r.chunks[merged].size != 2048 {
		t.Fatalf("expected b absorbed into a as one 2048-byte FREE chunk at %#x", a)
	}

	// Freeing c, now FREE on both sides, brings the region back to one chunk.
	if err := r.freeChunkAt(c); err != nil {
		t.Fatalf("free c: %v", err)
	}

	checkInvariants(t, r)

	if len(r.heap) != 1 {
		t.Fatalf("expected full coalescing back to a single FREE chunk, got %d FREE chunks", len(r.heap))
	}
}
