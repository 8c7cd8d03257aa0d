package dpst

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// IRQSource blocks until the device raises a histogram interrupt. The
// daemon runs one goroutine per source, calling Controller.HandleInterrupt
// after each Wait returns.
type IRQSource interface {
	Wait(ctx context.Context) error
	Close() error
}

// UIOIRQ delivers interrupts through a userspace-I/O device node
// (uio_pci_generic): each 4-byte read blocks until the next interrupt and
// returns the event count.
type UIOIRQ struct {
	f *os.File
}

// OpenUIOIRQ opens the UIO node, e.g. /dev/uio0.
func OpenUIOIRQ(node string) (*UIOIRQ, error) {
	f, err := os.OpenFile(node, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", node, err)
	}
	return &UIOIRQ{f: f}, nil
}

// Wait blocks on the UIO read. Cancellation happens via Close, which
// unblocks the read; ctx is checked before blocking.
func (u *UIOIRQ) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Re-arm the interrupt, then block for the next event.
	var one [4]byte
	binary.LittleEndian.PutUint32(one[:], 1)
	if _, err := u.f.Write(one[:]); err != nil {
		return fmt.Errorf("uio irq re-arm: %w", err)
	}

	var count [4]byte
	if _, err := u.f.Read(count[:]); err != nil {
		return fmt.Errorf("uio irq wait: %w", err)
	}
	return nil
}

// Close unblocks any pending Wait.
func (u *UIOIRQ) Close() error {
	return u.f.Close()
}

// TickerIRQ fakes periodic histogram interrupts for the simulated device.
type TickerIRQ struct {
	Interval time.Duration
}

// Wait sleeps one interval or until ctx is done.
func (t *TickerIRQ) Wait(ctx context.Context) error {
	timer := time.NewTimer(t.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close is a no-op.
func (t *TickerIRQ) Close() error { return nil }
