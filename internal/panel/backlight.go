// Package panel provides access to the panel backlight. The DPST core
// scales this backlight, but never owns it: the driver here keeps its own
// lock, shared with any other writer of the brightness register.
package panel

import (
	"log/slog"
	"sync"
)

// Backlight is the write entry point to backlight hardware. Level returns
// the current un-adjusted brightness as last set by the user or firmware;
// SetActual writes a raw value to the hardware. Callers must hold the
// embedded lock across SetActual, and must never take it while already
// holding it (the DPST command lock may be held when acquiring this one,
// never the reverse).
type Backlight interface {
	sync.Locker
	Level() uint32
	SetActual(level uint32) error
}

// New returns the sysfs backlight when one is present on this machine,
// or nil when no panel output exists.
func New(logger *slog.Logger) Backlight {
	bl, err := newSysfs()
	if err != nil {
		logger.Warn("No sysfs backlight found", "error", err)
		return nil
	}
	logger.Info("Using sysfs backlight", "device", bl.name, "level", bl.Level())
	return bl
}
