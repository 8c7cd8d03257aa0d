package panel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const sysfsBacklightPath = "/sys/class/backlight"

// sysfsBacklight drives a panel through the Linux backlight class. The
// un-adjusted level is cached because SetActual writes the same brightness
// file: a read-back matching our own last write is the scaled value, not a
// user change, and must not displace the cache. Any other value means a
// hotkey or power manager moved the brightness and becomes the new
// un-adjusted level.
type sysfsBacklight struct {
	mu   sync.Mutex
	name string
	dir  string

	level       uint32
	lastWritten uint32
	wrote       bool
}

// newSysfs picks the first device under /sys/class/backlight.
func newSysfs() (*sysfsBacklight, error) {
	return newSysfsAt(sysfsBacklightPath)
}

func newSysfsAt(basePath string) (*sysfsBacklight, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", basePath, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no backlight device under %s", basePath)
	}

	name := entries[0].Name()
	b := &sysfsBacklight{
		name: name,
		dir:  filepath.Join(basePath, name),
	}
	b.level = b.readLevel()
	return b, nil
}

func (b *sysfsBacklight) Lock()   { b.mu.Lock() }
func (b *sysfsBacklight) Unlock() { b.mu.Unlock() }

// Level returns the un-adjusted brightness. The sysfs file is re-read on
// every call so external changes are picked up before scaling.
func (b *sysfsBacklight) Level() uint32 {
	cur := b.readLevel()
	if !b.wrote || cur != b.lastWritten {
		b.level = cur
	}
	return b.level
}

func (b *sysfsBacklight) readLevel() uint32 {
	data, err := os.ReadFile(filepath.Join(b.dir, "brightness"))
	if err != nil {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// SetActual writes the raw hardware level. The caller holds the lock.
func (b *sysfsBacklight) SetActual(level uint32) error {
	path := filepath.Join(b.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.FormatUint(uint64(level), 10)), 0o644); err != nil {
		return fmt.Errorf("write backlight level: %w", err)
	}
	b.lastWritten = level
	b.wrote = true
	return nil
}
