//go:build !linux && !darwin

package allocator

import "fmt"

// On platforms with no mmap (or none we've wired up), reservation fails
// outright. Bootstrap treats that as an init failure and transitions to
// LIBRARY_FAIL: every entry point then passes
// through to the underlying allocator for the rest of the process's
// life, so the host program still runs correctly, just without the
// large-allocation-to-disk behavior this library exists to provide.
var errUnsupportedPlatform = fmt.Errorf("bigmaac: file-backed region allocation is not supported on this platform")

func queryPageSize() uintptr {
	return 4096
}

func reserveAddressSpace(total uintptr) (uintptr, error) {
	return 0, errUnsupportedPlatform
}

func newFileBackingStore(template string) backingStore {
	return unsupportedBackingStore{}
}

type unsupportedBackingStore struct{}

func (unsupportedBackingStore) install(addr, size uintptr) error {
	return errUnsupportedPlatform
}

func (unsupportedBackingStore) release(addr, size uintptr) error {
	return errUnsupportedPlatform
}
