package allocator

import (
	"fmt"
	"sync/atomic"
)

// RegionStats is a point-in-time snapshot of one region's occupancy:
// enough to answer "how full are we, and how fragmented", gathered in one
// walk of the region's chunk list under the allocator's lock.
type RegionStats struct {
	Name        string
	Base, End   uintptr
	UsedBytes   uintptr
	Capacity    uintptr
	ChunkCount  int
	FreeChunks  int
	LargestFree uintptr
}

// Utilization reports UsedBytes/Capacity as a fraction in [0, 1].
func (s RegionStats) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}

	return float64(s.UsedBytes) / float64(s.Capacity)
}

// Snapshot is the read-only diagnostic surface: a consistent pair of
// RegionStats for fries and bigmaacs, taken under the same lock ordinary
// allocation/free traffic uses.
type Snapshot struct {
	Fries, Bigmaacs RegionStats
	ActiveMappings  int64
	State           string
}

// Snapshot takes a consistent read of both regions. Safe to call
// concurrently with allocation traffic; it blocks briefly behind the same
// mutex Malloc/Free/Realloc use.
func (d *Dispatcher) Snapshot() Snapshot {
	st := d.loadState()

	snap := Snapshot{
		ActiveMappings: atomic.LoadInt64(&d.activeMappings),
		State:          st.String(),
	}

	if !st.regionsUsable() {
		return snap
	}

	d.mu.Lock()
	snap.Fries = d.fries.stats()
	snap.Bigmaacs = d.bigmaac.stats()
	d.mu.Unlock()

	return snap
}

// stats walks the chunk list once under the caller's lock, rather than
// the free heap, so the count includes IN_USE chunks too.
func (r *Region) stats() RegionStats {
	s := RegionStats{
		Name:      r.name,
		Base:      r.base,
		End:       r.end,
		UsedBytes: r.usedBytes,
		Capacity:  r.totalSize(),
	}

	for id := r.head; id != noChunk; id = r.chunks[id].next {
		c := &r.chunks[id]
		s.ChunkCount++

		if c.state == chunkFree {
			s.FreeChunks++

			if c.size > s.LargestFree {
				s.LargestFree = c.size
			}
		}
	}

	return s
}

func (st loadState) String() string {
	switch st {
	case stateNotLoaded:
		return "NOT_LOADED"
	case stateLoadingMemFuncs:
		return "LOADING_MEM_FUNCS"
	case stateLoadingLibrary:
		return "LOADING_LIBRARY"
	case stateLoaded:
		return "LOADED"
	case stateLibraryFail:
		return "LIBRARY_FAIL"
	default:
		return fmt.Sprintf("loadState(%d)", int32(st))
	}
}
