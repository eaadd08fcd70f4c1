package allocator

import "errors"

// Sentinel errors for the region-allocation failure kinds. None of these
// ever crosses the public C ABI as a Go error value;
// cmd/bigmaac-preload translates each into a nil return (and, for
// out-of-memory conditions, an errno set to ENOMEM). They let the
// internal call chain and its tests distinguish "no room" from "mapping
// syscall failed" from "pointer isn't ours".
var (
	// ErrRegionExhausted means no FREE chunk in the region was large
	// enough to satisfy the request.
	ErrRegionExhausted = errors.New("bigmaac: region exhausted")

	// ErrUnknownPointer means a pointer inside a region's address range
	// did not match any chunk's start address: a caller bug, or a
	// corrupted invariant.
	ErrUnknownPointer = errors.New("bigmaac: pointer not recognized")

	// ErrInitFailed wraps any error encountered during bootstrap
	// (address-space reservation, tunable validation, initial mapping
	// installation); seeing it means the library has moved to
	// LIBRARY_FAIL and every entry point will pass through to the
	// underlying allocator for the rest of the process's life.
	ErrInitFailed = errors.New("bigmaac: initialization failed")
)
