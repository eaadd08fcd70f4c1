// Command bigmaac-preload builds as a C shared library
// (go build -buildmode=c-shared) exporting malloc/calloc/realloc/
// reallocarray/free, for LD_PRELOAD (Linux) or DYLD_INSERT_LIBRARIES
// (Darwin) interposition ahead of the platform's real allocator.
//
// This package holds the only cgo in the repository: the dlsym dance
// that resolves the real malloc/calloc/realloc/free symbols further down
// the dynamic linker's search order. Everything else (region
// bookkeeping, routing, coalescing) lives in package allocator and is
// exercised purely in Go, without cgo, by that package's own tests.
package main

import "github.com/galaxy001/bigmaac/internal/allocator"

// dispatcher is the single process-wide allocator instance. Every
// exported entry point in exports.go routes through it after
// ensureLoaded has run at least once.
var dispatcher = allocator.NewDispatcher()

// main is required by the toolchain for buildmode=c-shared but is never
// invoked; the shared library's entry points are the //export functions
// in exports.go, reached through the dynamic linker rather than an ELF
// entry point.
func main() {}
