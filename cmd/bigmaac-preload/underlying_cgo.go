//go:build linux || darwin

package main

/*
#include <stdlib.h>
#include <dlfcn.h>

#if defined(__APPLE__)
#include <malloc/malloc.h>
#else
#include <malloc.h>
#endif

typedef void *(*malloc_fn)(size_t);
typedef void *(*calloc_fn)(size_t, size_t);
typedef void *(*realloc_fn)(void *, size_t);
typedef void (*free_fn)(void *);

static malloc_fn  next_malloc;
static calloc_fn  next_calloc;
static realloc_fn next_realloc;
static free_fn    next_free;

// resolve_next_symbols finds the real allocator functions further down the
// dynamic linker's search order than this shared library. Called exactly
// once, from Go, before this package's exported entry points trust the
// resolved pointers for anything but a null check.
static void resolve_next_symbols(void) {
	next_malloc  = (malloc_fn)dlsym(RTLD_NEXT, "malloc");
	next_calloc  = (calloc_fn)dlsym(RTLD_NEXT, "calloc");
	next_realloc = (realloc_fn)dlsym(RTLD_NEXT, "realloc");
	next_free    = (free_fn)dlsym(RTLD_NEXT, "free");
}

static void *call_next_malloc(size_t size) {
	return next_malloc ? next_malloc(size) : NULL;
}

static void *call_next_calloc(size_t count, size_t size) {
	return next_calloc ? next_calloc(count, size) : NULL;
}

static void *call_next_realloc(void *ptr, size_t size) {
	return next_realloc ? next_realloc(ptr, size) : NULL;
}

static void call_next_free(void *ptr) {
	if (next_free) {
		next_free(ptr);
	}
}

static size_t next_usable_size(void *ptr) {
	if (ptr == NULL) {
		return 0;
	}
#if defined(__APPLE__)
	return malloc_size(ptr);
#else
	return malloc_usable_size(ptr);
#endif
}
*/
import "C"

import "unsafe"

// dlsymUnderlying implements allocator.Underlying by calling straight
// through to the dynamic-linker-resolved "next" malloc family. It is
// the real counterpart to package allocator's fallbackUnderlying, which
// exists only for that package's tests.
type dlsymUnderlying struct{}

// newDlsymUnderlying resolves the next malloc/calloc/realloc/free symbols
// via dlsym(RTLD_NEXT, ...). Must be called before any of this type's
// methods are used; cheap and idempotent, but only ever called once, by
// ensureLoaded.
func newDlsymUnderlying() *dlsymUnderlying {
	C.resolve_next_symbols()

	return &dlsymUnderlying{}
}

func (dlsymUnderlying) Malloc(size uintptr) unsafe.Pointer {
	return unsafe.Pointer(C.call_next_malloc(C.size_t(size)))
}

func (dlsymUnderlying) Calloc(count, size uintptr) unsafe.Pointer {
	return unsafe.Pointer(C.call_next_calloc(C.size_t(count), C.size_t(size)))
}

func (dlsymUnderlying) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return unsafe.Pointer(C.call_next_realloc(ptr, C.size_t(size)))
}

func (dlsymUnderlying) Free(ptr unsafe.Pointer) {
	C.call_next_free(ptr)
}

func (dlsymUnderlying) UsableSize(ptr unsafe.Pointer) uintptr {
	return uintptr(C.next_usable_size(ptr))
}
