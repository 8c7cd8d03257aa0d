package display

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// VBlankWaiter blocks the calling goroutine until the next vertical-blank
// boundary of the panel's pipe. Several histogram register writes only
// latch at that boundary.
type VBlankWaiter interface {
	WaitVBlank(ctx context.Context) error
}

const (
	// DRM_IOCTL_WAIT_VBLANK = _IOWR('d', 0x3a, union drm_wait_vblank)
	drmIoctlWaitVBlank = (3 << 30) | (24 << 16) | ('d' << 8) | 0x3a

	drmVBlankRelative = 0x1
)

// drmWaitVBlank mirrors union drm_wait_vblank. Only the request half
// (type, sequence, signal) goes in, but drm_ioctl copies the ioctl's full
// declared size back out after the wait, reply timestamp included, so the
// struct must span the whole union or the copy-out lands past it.
type drmWaitVBlank struct {
	typ      uint32
	sequence uint32
	tvalSec  int64 // signal going in, vblank timestamp seconds coming back
	tvalUsec int64
}

// DRMVBlank waits on the kernel's vblank counter through the DRM node.
type DRMVBlank struct {
	fd int
}

// OpenDRMVBlank opens the DRM device node, e.g. /dev/dri/card0.
func OpenDRMVBlank(node string) (*DRMVBlank, error) {
	fd, err := unix.Open(node, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", node, err)
	}
	return &DRMVBlank{fd: fd}, nil
}

// WaitVBlank issues DRM_IOCTL_WAIT_VBLANK for one relative vblank. The
// ioctl blocks in the kernel; ctx is checked before issuing it.
func (d *DRMVBlank) WaitVBlank(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := drmWaitVBlank{typ: drmVBlankRelative, sequence: 1}
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd),
			uintptr(drmIoctlWaitVBlank), uintptr(unsafe.Pointer(&req)))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			continue
		}
		return fmt.Errorf("DRM_IOCTL_WAIT_VBLANK: %w", errno)
	}
}

// Close releases the DRM node.
func (d *DRMVBlank) Close() error {
	return unix.Close(d.fd)
}

// TickerVBlank approximates vblank by sleeping one frame period. Used when
// no DRM node is available (simulated device, headless test rigs).
type TickerVBlank struct {
	Period time.Duration
}

// NewTickerVBlank derives the frame period from a refresh rate in Hz.
func NewTickerVBlank(refreshHz int) *TickerVBlank {
	if refreshHz <= 0 {
		refreshHz = 60
	}
	return &TickerVBlank{Period: time.Second / time.Duration(refreshHz)}
}

// WaitVBlank sleeps for one frame period or until ctx is done.
func (t *TickerVBlank) WaitVBlank(ctx context.Context) error {
	timer := time.NewTimer(t.Period)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
