package allocator

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

// platformHooks is the seam between Dispatcher.Bootstrap and the
// per-OS mmap machinery of mapping_linux.go/mapping_darwin.go/
// mapping_other.go. Bootstrap always passes defaultPlatformHooks(), and no
// caller substitutes other hooks. Region-logic tests skip the Dispatcher
// and hand newRegion a fake backingStore directly (invariants_test.go), so
// they don't depend on real temp files or a specific GOOS.
type platformHooks struct {
	pageSize   func() uintptr
	reserve    func(total uintptr) (uintptr, error)
	newBacking func(template string) backingStore
}

func defaultPlatformHooks() platformHooks {
	return platformHooks{
		pageSize:   queryPageSize,
		reserve:    reserveAddressSpace,
		newBacking: newFileBackingStore,
	}
}

// Dispatcher is the process-wide allocator instance: two Regions,
// protected by a single mutex, plus the mapping count and the load-state
// flag, which are atomics. Deliberately one lock, not one per region: a
// cross-region realloc needs atomicity across both.
// Package cmd/bigmaac-preload's cgo entry points hold exactly one
// Dispatcher for the process's lifetime.
type Dispatcher struct {
	state stateBox

	mu sync.Mutex

	cfg Tunables

	fries, bigmaac *Region

	activeMappings int64

	underlying atomic.Value // holds underlyingHolder

	initErr error
}

type underlyingHolder struct {
	u Underlying
}

// NewDispatcher returns a freshly constructed, not-yet-bootstrapped
// Dispatcher. The caller (cmd/bigmaac-preload) is responsible for driving
// ClaimInit/SetUnderlying/Bootstrap exactly once.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.underlying.Store(underlyingHolder{})

	return d
}

// ClaimInit attempts to become the single thread that runs bootstrap.
// Callers that get false must not call Bootstrap; they proceed straight
// to the entry-point methods below, which already know how to behave in
// every pre-LOADED state.
func (d *Dispatcher) ClaimInit() bool {
	return d.state.claimInit()
}

// SetUnderlying records the underlying allocator as it becomes known.
// Safe to call from the thread running bootstrap while other threads are
// concurrently calling Malloc/Realloc and reading whatever has been
// stored so far.
func (d *Dispatcher) SetUnderlying(u Underlying) {
	d.underlying.Store(underlyingHolder{u: u})
}

func (d *Dispatcher) underlyingOrNil() Underlying {
	return d.underlying.Load().(underlyingHolder).u
}

// Bootstrap performs the one-shot region setup: load tunables, reserve
// SizeFries+SizeBigmaac contiguous bytes, install the fries region's
// single eager file mapping, and construct both regions'
// single-giant-FREE-chunk initial state. Must be called by, and only by,
// whichever goroutine's ClaimInit returned true, after it has resolved
// (or given up on) the underlying allocator symbols.
func (d *Dispatcher) Bootstrap() error {
	return d.bootstrapWithHooks(defaultPlatformHooks())
}

func (d *Dispatcher) bootstrapWithHooks(hooks platformHooks) error {
	d.state.store(stateLoadingLibrary)

	if err := d.doBootstrap(hooks); err != nil {
		d.initErr = err
		reportInitFailure(err)
		d.state.store(stateLibraryFail)

		return err
	}

	d.state.store(stateLoaded)

	return nil
}

func (d *Dispatcher) doBootstrap(hooks platformHooks) error {
	cfg, err := LoadTunables(hooks.pageSize())
	if err != nil {
		return err
	}

	total := cfg.SizeFries + cfg.SizeBigmaac

	base, err := hooks.reserve(total)
	if err != nil {
		return fmt.Errorf("%w: reserve %d bytes of address space: %v", ErrInitFailed, total, err)
	}

	friesBase, friesEnd := base, base+cfg.SizeFries
	bigmaacBase, bigmaacEnd := friesEnd, friesEnd+cfg.SizeBigmaac

	friesBacking := hooks.newBacking(cfg.Template)
	if err := friesBacking.install(friesBase, cfg.SizeFries); err != nil {
		return fmt.Errorf("%w: install fries backing: %v", ErrInitFailed, err)
	}

	atomic.AddInt64(&d.activeMappings, 1)

	d.cfg = cfg
	d.fries = newRegion("fries", friesBase, friesEnd, cfg.FryRound, false, friesBacking, &d.activeMappings)
	d.bigmaac = newRegion("bigmaacs", bigmaacBase, bigmaacEnd, cfg.PageSize, true, hooks.newBacking(cfg.Template), &d.activeMappings)

	return nil
}

// loadState reports the current state, used by entry points
// (entrypoints.go) to decide routing without ever taking the mutex on the
// bypass path.
func (d *Dispatcher) loadState() loadState {
	return d.state.load()
}

// reportInitFailure writes the init-failure diagnostic directly to
// stderr. No logging library: this is a rare, non-hot-path condition and
// the allocator must not pull I/O machinery onto the malloc path.
func reportInitFailure(err error) {
	fmt.Fprintf(os.Stderr, "bigmaac: library disabled, falling back to system allocator: %v\n", err)
}
