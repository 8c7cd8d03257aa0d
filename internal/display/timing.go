// Package display discovers the panel's current mode timing and provides
// vertical-blank synchronization for register sequences that only latch at
// a blank boundary.
package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const sysfsDRMPath = "/sys/class/drm"

// Timing describes the active display mode of the panel.
type Timing struct {
	Width     int
	Height    int
	RefreshHz int
}

// PixelCount returns the number of pixels per frame.
func (t Timing) PixelCount() int {
	return t.Width * t.Height
}

// TimingSource reports the current display timing for the panel output.
type TimingSource interface {
	CurrentTiming() (Timing, error)
}

// DRMTiming reads the preferred mode of the first connected eDP connector
// from the DRM sysfs tree.
type DRMTiming struct {
	basePath  string
	refreshHz int
}

// NewDRMTiming creates a timing source backed by /sys/class/drm.
// refreshHz is used when sysfs does not expose the refresh rate.
func NewDRMTiming(refreshHz int) *DRMTiming {
	return &DRMTiming{basePath: sysfsDRMPath, refreshHz: refreshHz}
}

// CurrentTiming finds the connected panel connector and parses the first
// (preferred) entry of its modes file, e.g. "1920x1080".
func (d *DRMTiming) CurrentTiming() (Timing, error) {
	connector, err := d.findPanelConnector()
	if err != nil {
		return Timing{}, err
	}

	data, err := os.ReadFile(filepath.Join(d.basePath, connector, "modes"))
	if err != nil {
		return Timing{}, fmt.Errorf("read modes for %s: %w", connector, err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	if line == "" {
		return Timing{}, fmt.Errorf("connector %s reports no modes", connector)
	}

	var w, h int
	if _, err := fmt.Sscanf(line, "%dx%d", &w, &h); err != nil {
		return Timing{}, fmt.Errorf("parse mode %q: %w", line, err)
	}

	return Timing{Width: w, Height: h, RefreshHz: d.refreshHz}, nil
}

// findPanelConnector prefers an eDP connector, falling back to any
// connected one.
func (d *DRMTiming) findPanelConnector() (string, error) {
	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", d.basePath, err)
	}

	var fallback string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.Contains(name, "-") {
			continue // card0, card1, renderD128 etc.
		}
		status, err := os.ReadFile(filepath.Join(d.basePath, name, "status"))
		if err != nil || strings.TrimSpace(string(status)) != "connected" {
			continue
		}
		if strings.Contains(name, "eDP") {
			return name, nil
		}
		if fallback == "" {
			fallback = name
		}
	}

	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no connected panel connector under %s", d.basePath)
}

// FixedTiming returns a constant timing, used with the simulated device.
type FixedTiming struct {
	T Timing
}

// CurrentTiming returns the fixed timing.
func (f FixedTiming) CurrentTiming() (Timing, error) {
	return f.T, nil
}
