package dpst

import (
	"context"
	"fmt"
	"sync"
)

// RegWrite records one register write, for sequence assertions.
type RegWrite struct {
	Addr uint32
	Val  uint32
}

// SimDevice is an in-memory model of the histogram block: a register file
// with the bin window's auto-incrementing index, the enhancement table
// behind the function-select bit, and scriptable busy reports. It also
// implements the vblank wait, recording it in the write log so tests can
// assert ordering against the blank boundary.
type SimDevice struct {
	mu sync.Mutex

	regs RegisterSet

	ctl   uint32
	guard uint32

	bins    [HistogramBins]uint32
	ieTable [EnhancementTableEntries]uint32
	cursor  int

	binReads int
	busyAt   map[int]bool

	log []RegWrite

	vblanks int
}

// vblankMarker is a sentinel log entry separating pre- and post-blank
// register writes.
const vblankMarker = 0xffffffff

// NewSimDevice models the histogram block at the given register addresses.
func NewSimDevice(regs RegisterSet) *SimDevice {
	return &SimDevice{regs: regs, busyAt: make(map[int]bool)}
}

// SetBins loads the histogram counts the engine will report.
func (s *SimDevice) SetBins(bins []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.bins[:], bins)
}

// FailBinReads makes the given bin-read ordinals (1-based, counted across
// the device's lifetime) report the busy flag.
func (s *SimDevice) FailBinReads(ordinals ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range ordinals {
		s.busyAt[n] = true
	}
}

// Read32 implements RegisterIO.
func (s *SimDevice) Read32(addr uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch addr {
	case s.regs.HistCtl:
		return s.ctl, nil
	case s.regs.HistGuard:
		return s.guard, nil
	case s.regs.HistBin:
		return s.readBinLocked(), nil
	default:
		return 0, fmt.Errorf("sim: read of unmapped register 0x%x", addr)
	}
}

// Write32 implements RegisterIO.
func (s *SimDevice) Write32(addr uint32, val uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append(s.log, RegWrite{Addr: addr, Val: val})

	switch addr {
	case s.regs.HistCtl:
		// Clearing the index bits rewinds the window.
		if val&binRegIndexMask == 0 {
			s.cursor = 0
		}
		s.ctl = val
		return nil

	case s.regs.HistGuard:
		// Writing the event-status bit acknowledges the pending
		// interrupt; the bit itself does not stick.
		s.guard = val &^ histogramEventStatus
		return nil

	case s.regs.HistBin:
		if s.ctl&binRegFunctionIE == 0 {
			return fmt.Errorf("sim: bin window write without IE function select")
		}
		if s.cursor < len(s.ieTable) {
			s.ieTable[s.cursor] = val
		}
		s.cursor++
		return nil

	default:
		return fmt.Errorf("sim: write to unmapped register 0x%x", addr)
	}
}

func (s *SimDevice) readBinLocked() uint32 {
	s.binReads++
	if s.busyAt[s.binReads] {
		return histogramBusy
	}
	var v uint32
	if s.cursor < len(s.bins) {
		v = s.bins[s.cursor] & binCountMask
	}
	s.cursor++
	return v
}

// WaitVBlank implements display.VBlankWaiter, returning immediately and
// leaving a marker in the write log.
func (s *SimDevice) WaitVBlank(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vblanks++
	s.log = append(s.log, RegWrite{Addr: vblankMarker})
	return nil
}

// VBlankWaits returns how many vblank waits the device observed.
func (s *SimDevice) VBlankWaits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vblanks
}

// Ctl returns the live control register value.
func (s *SimDevice) Ctl() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl
}

// Guard returns the live guard register value.
func (s *SimDevice) Guard() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard
}

// EnhancementTable returns a copy of the programmed table.
func (s *SimDevice) EnhancementTable() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, len(s.ieTable))
	copy(out, s.ieTable[:])
	return out
}

// WriteLog returns a copy of all writes (and vblank markers) so far.
func (s *SimDevice) WriteLog() []RegWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RegWrite, len(s.log))
	copy(out, s.log)
	return out
}
