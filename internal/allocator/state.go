package allocator

import "sync/atomic"

// loadState is the one-shot bootstrap state machine:
//
//	NOT_LOADED -> LOADING_MEM_FUNCS -> LOADING_LIBRARY -> LOADED (happy path)
//	                                                    -> LIBRARY_FAIL (terminal failure)
//
// It exists because resolving the underlying allocator's real symbols
// (done by cmd/bigmaac-preload, outside this package) can itself
// allocate, reentrantly calling back into the very entry points being
// bootstrapped. A single atomic int32 is the
// only synchronization an entry point needs to check before deciding
// whether it's safe to touch region structures.
type loadState int32

const (
	stateNotLoaded loadState = iota
	stateLoadingMemFuncs
	stateLoadingLibrary
	stateLoaded
	stateLibraryFail
)

// stateBox wraps the atomic so Dispatcher doesn't leak the raw primitive.
type stateBox struct {
	v atomic.Int32
}

func (s *stateBox) load() loadState {
	return loadState(s.v.Load())
}

func (s *stateBox) store(v loadState) {
	s.v.Store(int32(v))
}

// claimInit attempts the NOT_LOADED -> LOADING_MEM_FUNCS transition.
// Exactly one caller across all threads ever sees ok == true for a given
// Dispatcher; every other concurrent caller (and every later one) sees
// ok == false and must not run bootstrap itself: only one thread
// performs init, the rest observe state != NOT_LOADED and bypass.
func (s *stateBox) claimInit() bool {
	return s.v.CompareAndSwap(int32(stateNotLoaded), int32(stateLoadingMemFuncs))
}

// regionsUsable reports whether an entry point may touch fries/bigmaac
// region structures. Only true once bootstrap has fully succeeded.
func (st loadState) regionsUsable() bool {
	return st == stateLoaded
}

// bypassesEntirely reports whether an entry point must ignore this
// library entirely and hand the call straight to the underlying
// allocator, with no attempt to read even a partially-resolved
// underlying pointer. LIBRARY_FAIL is the only such state; during the
// LOADING_* states Malloc, Realloc and Free still consult whatever
// underlying pointer cmd/bigmaac-preload has captured so far, which may
// still be nil mid-resolution, while Calloc returns nil outright.
func (st loadState) bypassesEntirely() bool {
	return st == stateLibraryFail
}
