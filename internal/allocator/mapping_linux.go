//go:build linux

package allocator

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func queryPageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

// reserveAddressSpace makes one anonymous, PROT_NONE, private mapping
// covering both regions, so fries and bigmaacs are guaranteed
// contiguous. We let the kernel choose the base
// address; unlike install()/release() below, nothing needs to land at a
// specific spot yet.
func reserveAddressSpace(total uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(total), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("bigmaac: reserve %d bytes of address space: %w", total, err)
	}

	return uintptr(unsafe.Pointer(&b[0])), nil
}

// fileBackingStore implements backingStore by creating an unlinked,
// sized temp file and mmap'ing it MAP_FIXED over a previously-reserved
// range (install), or by mmap'ing an anonymous PROT_NONE placeholder over
// that same range (release).
type fileBackingStore struct {
	dir, pattern string
}

func newFileBackingStore(template string) backingStore {
	dir, pattern := splitTemplate(template)

	return &fileBackingStore{dir: dir, pattern: pattern}
}

func (s *fileBackingStore) install(addr, size uintptr) error {
	f, err := os.CreateTemp(s.dir, s.pattern)
	if err != nil {
		return fmt.Errorf("create backing file: %w", err)
	}

	// Unlink immediately: the file exists only via this descriptor from
	// here on, reclaimed by the kernel on close/process exit.
	name := f.Name()
	if err := os.Remove(name); err != nil {
		f.Close()

		return fmt.Errorf("unlink backing file %s: %w", name, err)
	}

	if err := f.Truncate(int64(size)); err != nil {
		f.Close()

		return fmt.Errorf("size backing file to %d bytes: %w", size, err)
	}

	err = mmapFixed(addr, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED, int(f.Fd()), 0)
	// The mapping now holds its own reference to the file; close our fd
	// either way.
	f.Close()

	if err != nil {
		return fmt.Errorf("mmap backing file at %#x (%d bytes): %w", addr, size, err)
	}

	return nil
}

func (s *fileBackingStore) release(addr, size uintptr) error {
	err := mmapFixed(addr, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_FIXED, -1, 0)
	if err != nil {
		return fmt.Errorf("mmap anonymous placeholder at %#x (%d bytes): %w", addr, size, err)
	}

	return nil
}

// mmapFixed performs the raw mmap(2) syscall directly rather than through
// unix.Mmap, because unix.Mmap never lets the caller pass a target
// address; it always asks the kernel to choose one. MAP_FIXED
// atomically replaces whatever was mapped at [addr, addr+length) before.
func mmapFixed(addr, length uintptr, prot, flags, fd int, offset int64) error {
	_, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length, uintptr(prot), uintptr(flags), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return errno
	}

	return nil
}
