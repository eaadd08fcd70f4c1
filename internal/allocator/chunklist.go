package allocator

// Address-ordered doubly linked chunk list, sentinel-headed: the head
// sentinel carries size 0, is always IN_USE, and so never looks FREE to
// the coalescing logic below; the leftmost
// real chunk's predecessor-coalesce check is therefore always false
// without any special-casing. There is no tail sentinel; next == noChunk
// terminates the list.

// splitFreeChunk carves reqSize bytes off the low-address end of the FREE
// chunk freeID, inserting a new IN_USE chunk in its place in the list and
// shrinking+relocating the remainder. The remainder keeps its heap slot
// (its size only shrank) and is sifted down to restore heap order.
func (r *Region) splitFreeChunk(freeID chunkID, reqSize uintptr) chunkID {
	free := r.chunks[freeID]

	useID := r.newChunkRecord(free.addr, reqSize, chunkInUse)
	useChunk := &r.chunks[useID]
	useChunk.prev = free.prev
	useChunk.next = freeID

	if free.prev != noChunk {
		r.chunks[free.prev].next = useID
	} else {
		r.head = useID
	}

	r.chunks[freeID].prev = useID
	r.chunks[freeID].addr = free.addr + reqSize
	r.chunks[freeID].size = free.size - reqSize

	r.heapUpdateShrink(freeID)

	return useID
}

// freeAndCoalesce merges the chunk id (currently IN_USE) with whichever
// of its neighbours are FREE, restoring the "no two adjacent FREE chunks"
// invariant, and leaves the survivor's heap slot consistent with its new
// size.
func (r *Region) freeAndCoalesce(id chunkID) {
	c := r.chunks[id]

	predID, nextID := c.prev, c.next
	predFree := predID != noChunk && r.chunks[predID].state == chunkFree
	nextFree := nextID != noChunk && r.chunks[nextID].state == chunkFree

	switch {
	case predFree && nextFree:
		// The successor absorbs both the predecessor and the freed chunk.
		pred := r.chunks[predID]
		succ := &r.chunks[nextID]
		succ.addr = pred.addr
		succ.size = pred.size + c.size + succ.size
		succ.prev = pred.prev

		if pred.prev != noChunk {
			r.chunks[pred.prev].next = nextID
		} else {
			r.head = nextID
		}

		r.heapRemoveAt(r.chunks[predID].heapIdx)
		r.releaseChunkRecord(predID)
		r.releaseChunkRecord(id)
		r.heapUpdateGrow(nextID)

	case nextFree:
		succ := &r.chunks[nextID]
		succ.addr = c.addr
		succ.size += c.size
		succ.prev = predID

		if predID != noChunk {
			r.chunks[predID].next = nextID
		} else {
			r.head = nextID
		}

		r.releaseChunkRecord(id)
		r.heapUpdateGrow(nextID)

	case predFree:
		pred := &r.chunks[predID]
		pred.size += c.size
		pred.next = nextID

		if nextID != noChunk {
			r.chunks[nextID].prev = predID
		}

		r.releaseChunkRecord(id)
		r.heapUpdateGrow(predID)

	default:
		r.chunks[id].state = chunkFree
		r.heapInsert(id)
	}
}
