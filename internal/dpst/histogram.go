package dpst

import (
	"context"
	"fmt"
)

// enableHardware turns on histogram collection and its interrupt. The
// enable only latches at the next vertical blank, so the guard register
// writes must wait for it; issued earlier they would be silent no-ops.
func (c *Controller) enableHardware(ctx context.Context) error {
	// Safe default until fresh tuning arrives.
	c.luma.factor = MaxFactor

	if err := updateRegister(c.io, c.regs.HistCtl, ieHistogramEnable|hsvIntensityMode, 0); err != nil {
		return err
	}

	if err := c.vblank.WaitVBlank(ctx); err != nil {
		return fmt.Errorf("wait for vblank: %w", err)
	}

	// Clear stale pending status. This must not share a write with the
	// interrupt enable below: a combined write would drop an interrupt
	// raised between the two.
	if err := updateRegister(c.io, c.regs.HistGuard, histogramEventStatus, 0); err != nil {
		return err
	}

	return updateRegister(c.io, c.regs.HistGuard, histogramIRQEnable, 0)
}

// disableHardware masks the interrupt, stops histogram collection, turns
// the enhancement table off and puts the backlight back to its un-adjusted
// level. Clearing pending status and masking may share one write; there is
// no ordering hazard in this direction.
func (c *Controller) disableHardware() error {
	if c.backlight == nil {
		return fmt.Errorf("%w: no panel output", ErrInvalidRequest)
	}

	c.luma.factor = MaxFactor

	if err := updateRegister(c.io, c.regs.HistGuard, histogramEventStatus, histogramIRQEnable); err != nil {
		return err
	}

	if err := updateRegister(c.io, c.regs.HistCtl, 0, ieHistogramEnable|ieModTableEnable); err != nil {
		return err
	}

	return c.forceRawBacklight()
}

// clearPending acknowledges a serviced interrupt without touching enable
// state. The agent calls this after draining histogram data.
func (c *Controller) clearPending() error {
	return updateRegister(c.io, c.regs.HistGuard, histogramEventStatus, 0)
}

// readBins drains all histogram bins through the bin window. A busy report
// means the engine is mid-update and everything read so far is
// inconsistent: the scan restarts from index 0. The hardware puts no bound
// on that; maxBusyRestarts does.
func (c *Controller) readBins() ([]uint32, error) {
	// Kernel-initiated disablement is invisible to the agent and can land
	// between the interrupt and this readout, so it still permits a read.
	// User disablement makes the call invalid.
	if !c.arb.mode.hardwareActive() && !c.arb.mode.userEnabled() {
		return nil, fmt.Errorf("%w: histogram readout while disabled", ErrInvalidRequest)
	}

	// Select the bin count window starting at index 0.
	if err := updateRegister(c.io, c.regs.HistCtl, 0, binRegIndexMask|binRegFunctionIE); err != nil {
		return nil, err
	}

	bins := make([]uint32, HistogramBins)
	restarts := 0
	for i := 0; i < HistogramBins; i++ {
		v, err := c.io.Read32(c.regs.HistBin)
		if err != nil {
			return nil, err
		}

		if v&histogramBusy != 0 {
			restarts++
			c.metrics.HistogramBusyRestart()
			if restarts > c.maxBusyRestarts {
				return nil, fmt.Errorf("%w: %d restarts", ErrBusyTimeout, restarts)
			}
			// Reset the window index and rescan from the start.
			if err := updateRegister(c.io, c.regs.HistCtl, 0, binRegIndexMask); err != nil {
				return nil, err
			}
			i = -1
			continue
		}

		bins[i] = v & binCountMask
	}

	return bins, nil
}
