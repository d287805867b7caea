//go:build linux || darwin

package jit

import (
	"fmt"
	"unsafe"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// codeRegion is an anonymous mapping that holds a module's code.  It is
// writable until makeExecutable is called.
type codeRegion struct {
	mem mmap.MMap
}

func allocCode(size int) (*codeRegion, error) {
	mem, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("mapping %d bytes of code memory: %w", size, err)
	}

	return &codeRegion{mem: mem}, nil
}

func (cr *codeRegion) bytes() []byte {
	return cr.mem
}

func (cr *codeRegion) base() uintptr {
	return uintptr(unsafe.Pointer(&cr.mem[0]))
}

// makeExecutable flips the region from read-write to read-execute
func (cr *codeRegion) makeExecutable() error {
	if err := unix.Mprotect(cr.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("making code memory executable: %w", err)
	}

	return nil
}

func (cr *codeRegion) release() error {
	return cr.mem.Unmap()
}
