package allocator

// Array-backed max-heap over a Region's FREE chunks, keyed by size:
// parent of i is (i-1)/2, children are 2i+1 and 2i+2. The heap stores
// chunkIDs rather than chunk values so that a
// chunk's arena slot and its heap slot can move independently; each FREE
// chunk's heapIdx mirrors its current position here, kept in lockstep by
// every swap below.

func (r *Region) heapSize(i int) uintptr {
	return r.chunks[r.heap[i]].size
}

func (r *Region) heapSwap(i, j int) {
	r.heap[i], r.heap[j] = r.heap[j], r.heap[i]
	r.chunks[r.heap[i]].heapIdx = i
	r.chunks[r.heap[j]].heapIdx = j
}

func (r *Region) heapSiftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if r.heapSize(parent) >= r.heapSize(i) {
			break
		}

		r.heapSwap(i, parent)
		i = parent
	}
}

func (r *Region) heapSiftDown(i int) {
	n := len(r.heap)

	for {
		left, right := 2*i+1, 2*i+2
		largest := i

		if left < n && r.heapSize(left) > r.heapSize(largest) {
			largest = left
		}

		if right < n && r.heapSize(right) > r.heapSize(largest) {
			largest = right
		}

		if largest == i {
			return
		}

		r.heapSwap(i, largest)
		i = largest
	}
}

// heapInsert appends a newly-FREE chunk and restores the max-heap
// property. O(log n).
func (r *Region) heapInsert(id chunkID) {
	r.heap = append(r.heap, id)
	idx := len(r.heap) - 1
	r.chunks[id].heapIdx = idx
	r.heapSiftUp(idx)
}

// heapRemoveAt removes the element at array index i by swapping the last
// element into its place and shrinking, then reconciling the heap
// property from i in whichever direction is needed.
//
// A sift-down alone is not enough here: the replacement comes from the
// bottom of the heap, so it can never be larger than i's former parent
// when i and the last slot share an ancestor chain, but after an
// arbitrary sequence of coalescing updates it can end up larger than its
// new parent at i. heapReconcile covers both directions.
func (r *Region) heapRemoveAt(i int) {
	r.chunks[r.heap[i]].heapIdx = -1

	last := len(r.heap) - 1
	if i == last {
		r.heap = r.heap[:last]

		return
	}

	r.heap[i] = r.heap[last]
	r.chunks[r.heap[i]].heapIdx = i
	r.heap = r.heap[:last]

	r.heapReconcile(i)
}

// heapReconcile restores heap order at i after its value changed
// arbitrarily (grew, shrank, or was replaced outright), without the
// caller needing to know which direction is required.
func (r *Region) heapReconcile(i int) {
	if i >= len(r.heap) {
		return
	}

	parent := (i - 1) / 2
	if i > 0 && r.heapSize(parent) < r.heapSize(i) {
		r.heapSiftUp(i)

		return
	}

	r.heapSiftDown(i)
}

// heapUpdateGrow restores order after a FREE chunk's size increased
// (coalescing). Size only grows via coalescing, so a sift-up always
// suffices, but we route through heapReconcile for uniformity and because
// a chunk absorbing two neighbours at once can in principle need more
// than a pure sift-up if heap bookkeeping ever changes under it.
func (r *Region) heapUpdateGrow(id chunkID) {
	r.heapReconcile(r.chunks[id].heapIdx)
}

// heapUpdateShrink restores order after a FREE chunk's size decreased
// (it was chosen by peekForFit and split to carve an IN_USE chunk off its
// low end).
func (r *Region) heapUpdateShrink(id chunkID) {
	r.heapSiftDown(r.chunks[id].heapIdx)
}

// heapPeekForFit picks the FREE chunk to satisfy a request of size bytes.
// Naively popping the root always fragments the single largest hole, so
// instead we look at the root and its two children (the three largest
// FREE chunks, by the heap property) and, among those that still fit
// size, pick the smallest. That preserves whichever of the three is
// biggest for a future, even larger request. Returns the array index to
// use (not the chunkID), or ok=false if even the root doesn't fit.
func (r *Region) heapPeekForFit(size uintptr) (int, bool) {
	if len(r.heap) == 0 || r.heapSize(0) < size {
		return 0, false
	}

	best := 0
	bestSize := r.heapSize(0)

	for _, idx := range [2]int{1, 2} {
		if idx >= len(r.heap) {
			continue
		}

		s := r.heapSize(idx)
		if s >= size && s < bestSize {
			best, bestSize = idx, s
		}
	}

	return best, true
}
