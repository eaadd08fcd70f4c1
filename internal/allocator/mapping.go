package allocator

import (
	"path/filepath"
	"strings"
)

// platform mapping primitives implemented per-OS in mapping_linux.go,
// mapping_darwin.go, and mapping_other.go (the build-unsupported
// fallback). Every implementation exposes the same three functions so the
// rest of this package never branches on GOOS:
//
//	queryPageSize() uintptr
//	reserveAddressSpace(total uintptr) (base uintptr, err error)
//	newFileBackingStore(template string) backingStore
//
// One file per platform family behind a shared call signature, rather
// than runtime GOOS switches.

const templatePlaceholder = "XXXXXX"

// splitTemplate turns a BIGMAAC_TEMPLATE value like "/tmp/bigmaac.XXXXXX"
// (mkstemp-style, six trailing placeholder characters) into the
// (dir, pattern) pair os.CreateTemp expects, where pattern's trailing "*"
// is where the random suffix goes.
func splitTemplate(template string) (dir, pattern string) {
	dir = filepath.Dir(template)
	base := filepath.Base(template)

	if strings.HasSuffix(base, templatePlaceholder) {
		base = strings.TrimSuffix(base, templatePlaceholder) + "*"
	} else {
		base += "*"
	}

	return dir, base
}
