//go:build darwin

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

func reserveAddressSpace(total uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(total), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("bigmaac: reserve %d bytes of address space: %w", total, err)
	}

	return uintptr(unsafe.Pointer(&b[0])), nil
}

type fileBackingStore struct {
	dir, pattern string
}

func newFileBackingStore(template string) backingStore {
	dir, pattern := splitTemplate(template)

	return &fileBackingStore{dir: dir, pattern: pattern}
}

// install mirrors mapping_linux.go's install step for step. Sizing the
// backing file is a logical ftruncate extension only (Darwin has no
// fallocate); it doesn't pre-reserve disk blocks. That's fine here:
// bigmaac cares about the file resolving page faults via the page cache,
// not about guaranteeing disk space up front.
func (s *fileBackingStore) install(addr, size uintptr) error {
	f, err := os.CreateTemp(s.dir, s.pattern)
	if err != nil {
		return fmt.Errorf("create backing file: %w", err)
	}

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

// mmapFixed issues the raw mmap(2) syscall directly: unix.Mmap never
// exposes a way to request a specific target address, and MAP_FIXED at a
// caller-chosen address is the whole point here.
func mmapFixed(addr, length uintptr, prot, flags, fd int, offset int64) error {
	_, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length, uintptr(prot), uintptr(flags), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return errno
	}

	return nil
}
