package dpst

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MMIO maps the device's register BAR (e.g.
// /sys/bus/pci/devices/0000:00:02.0/resource0) and implements RegisterIO
// over it. Reads and writes use 32-bit atomics so each access hits the
// bus exactly once.
type MMIO struct {
	fd  int
	mem []byte
}

// OpenMMIO maps size bytes of the given PCI resource file.
func OpenMMIO(resource string, size int) (*MMIO, error) {
	fd, err := unix.Open(resource, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", resource, err)
	}

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", resource, err)
	}

	return &MMIO{fd: fd, mem: mem}, nil
}

// Read32 returns the register at addr.
func (m *MMIO) Read32(addr uint32) (uint32, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&m.mem[addr]))), nil
}

// Write32 stores val into the register at addr.
func (m *MMIO) Write32(addr uint32, val uint32) error {
	if err := m.check(addr); err != nil {
		return err
	}
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&m.mem[addr])), val)
	return nil
}

func (m *MMIO) check(addr uint32) error {
	if addr%4 != 0 || int(addr)+4 > len(m.mem) {
		return fmt.Errorf("register 0x%x outside mapped BAR", addr)
	}
	return nil
}

// Close unmaps the BAR and closes the resource file.
func (m *MMIO) Close() error {
	if err := unix.Munmap(m.mem); err != nil {
		unix.Close(m.fd)
		return err
	}
	return unix.Close(m.fd)
}
