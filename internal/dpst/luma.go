package dpst

import (
	"fmt"
	"time"

	"github.com/smazurov/dpstd/internal/events"
)

// lumaState holds the current backlight-reduction factor and the snapshot
// preserved across kernel-initiated suspensions. Mutated only under the
// controller's command lock.
type lumaState struct {
	factor uint32
	saved  struct {
		valid  bool
		factor uint32
	}
}

// applyLuma programs the enhancement table and backlight factor. The table
// is always written: entries persist in hardware storage and are ignored
// while the table-enable bit is off. Under a kernel veto the factor is
// stashed for the later restore instead of touching the backlight.
func (c *Controller) applyLuma(p *LumaParams) error {
	if c.backlight == nil {
		return fmt.Errorf("%w: no panel output", ErrInvalidRequest)
	}
	if !c.arb.mode.userEnabled() {
		return fmt.Errorf("%w: apply-luma before enable", ErrInvalidRequest)
	}

	// Validate everything before the first register write; there is no
	// partial-success state.
	if len(p.Enhancement) != EnhancementTableEntries {
		return fmt.Errorf("%w: enhancement table needs %d entries, got %d",
			ErrInvalidRequest, EnhancementTableEntries, len(p.Enhancement))
	}
	if p.Factor > MaxFactor {
		return fmt.Errorf("%w: backlight factor %d out of range", ErrInvalidRequest, p.Factor)
	}
	for i, entry := range p.Enhancement {
		if entry > MaxFactor {
			return fmt.Errorf("%w: enhancement entry %d out of range: %d",
				ErrInvalidRequest, i, entry)
		}
	}

	// Select the enhancement table's write window starting at index 0.
	if err := updateRegister(c.io, c.regs.HistCtl, binRegFunctionIE, binRegIndexMask); err != nil {
		return err
	}

	// Program the table entry by entry; the window index auto-increments.
	for _, entry := range p.Enhancement {
		scaled := entry * enhancementScale / MaxFactor
		if err := c.io.Write32(c.regs.HistBin, scaled); err != nil {
			return err
		}
	}

	if c.arb.mode.kernelDisabled() {
		// Backlight access is suppressed; keep the factor for restore.
		c.luma.saved.valid = true
		c.luma.saved.factor = p.Factor
		c.publish(events.LumaAppliedEvent{
			Factor:    p.Factor,
			Stashed:   true,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return nil
	}

	c.luma.factor = p.Factor
	if err := c.writeScaledBacklight(); err != nil {
		return err
	}

	// Turn the table on: enable bit plus multiplicative blend mode.
	if err := updateRegister(c.io, c.regs.HistCtl, ieModTableEnable|enhancementModeMult, 0); err != nil {
		return err
	}

	c.publish(events.LumaAppliedEvent{
		Factor:    p.Factor,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return nil
}

// saveLuma snapshots the factor before a kernel-initiated disable. Nothing
// is saved unless the agent had applied valid settings, which is exactly
// when the table-enable bit reads back set. Table entries survive in
// hardware storage, so the scalar factor is all that needs preserving.
func (c *Controller) saveLuma() error {
	ctl, err := c.io.Read32(c.regs.HistCtl)
	if err != nil {
		return err
	}
	if ctl&ieModTableEnable == 0 {
		return nil
	}
	c.luma.saved.valid = true
	c.luma.saved.factor = c.luma.factor
	return nil
}

// restoreLuma reinstates the snapshot after the kernel veto clears. Without
// a valid snapshot the reset default stays in place.
func (c *Controller) restoreLuma() error {
	if !c.luma.saved.valid {
		return nil
	}
	if c.backlight == nil {
		return fmt.Errorf("%w: no panel output", ErrInvalidRequest)
	}

	c.luma.factor = c.luma.saved.factor
	if err := c.writeScaledBacklight(); err != nil {
		return err
	}
	return updateRegister(c.io, c.regs.HistCtl, ieModTableEnable|enhancementModeMult, 0)
}

// writeScaledBacklight recomputes the reduced backlight level and writes it
// under the shared backlight lock. The factor carries two implied decimal
// digits, hence the double division by 100.
func (c *Controller) writeScaledBacklight() error {
	if !c.arb.mode.hardwareActive() {
		return nil
	}

	c.backlight.Lock()
	defer c.backlight.Unlock()

	raw := c.backlight.Level()
	scaled := raw * c.luma.factor / 100 / 100
	if err := c.backlight.SetActual(scaled); err != nil {
		return err
	}
	c.metrics.SetBacklightLevel(scaled)
	return nil
}

// forceRawBacklight puts the panel back to its un-adjusted level, used when
// the feature turns off.
func (c *Controller) forceRawBacklight() error {
	c.backlight.Lock()
	defer c.backlight.Unlock()

	raw := c.backlight.Level()
	if err := c.backlight.SetActual(raw); err != nil {
		return err
	}
	c.metrics.SetBacklightLevel(raw)
	return nil
}
