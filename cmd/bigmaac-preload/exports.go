//go:build linux || darwin

package main

/*
#include <stddef.h>
*/
import "C"

import "unsafe"

// ensureLoaded drives the one-shot bootstrap on whichever
// thread's call first observes NOT_LOADED. Every exported entry point
// below calls this unconditionally; ClaimInit's CompareAndSwap makes it a
// cheap no-op on every call but the first.
func ensureLoaded() {
	if dispatcher.ClaimInit() {
		dispatcher.SetUnderlying(newDlsymUnderlying())

		// Errors are already reported to stderr and recorded in the
		// dispatcher's state by Bootstrap; there is nothing left for this
		// caller to do but proceed, now routed entirely to the underlying
		// allocator by the LIBRARY_FAIL state.
		_ = dispatcher.Bootstrap()
	}
}

//export malloc
func malloc(size C.size_t) unsafe.Pointer {
	ensureLoaded()

	ptr := dispatcher.Malloc(uintptr(size))
	if ptr == nil && size != 0 {
		setErrnoENOMEM()
	}

	return ptr
}

//export calloc
func calloc(count, size C.size_t) unsafe.Pointer {
	ensureLoaded()

	ptr := dispatcher.Calloc(uintptr(count), uintptr(size))
	if ptr == nil && count != 0 && size != 0 {
		setErrnoENOMEM()
	}

	return ptr
}

//export realloc
func realloc(ptr unsafe.Pointer, size C.size_t) unsafe.Pointer {
	ensureLoaded()

	out := dispatcher.Realloc(ptr, uintptr(size))
	if out == nil && size != 0 {
		setErrnoENOMEM()
	}

	return out
}

//export reallocarray
func reallocarray(ptr unsafe.Pointer, count, size C.size_t) unsafe.Pointer {
	ensureLoaded()

	out := dispatcher.Reallocarray(ptr, uintptr(count), uintptr(size))
	if out == nil && count != 0 && size != 0 {
		setErrnoENOMEM()
	}

	return out
}

//export free
func free(ptr unsafe.Pointer) {
	ensureLoaded()
	dispatcher.Free(ptr)
}
