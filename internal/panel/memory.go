package panel

import "sync"

// MemoryBacklight is an in-memory Backlight for the simulated device and
// for tests. It records every raw write.
type MemoryBacklight struct {
	mu     sync.Mutex
	level  uint32
	actual uint32
	writes []uint32
}

// NewMemory creates a memory backlight with the given un-adjusted level.
func NewMemory(level uint32) *MemoryBacklight {
	return &MemoryBacklight{level: level, actual: level}
}

func (b *MemoryBacklight) Lock()   { b.mu.Lock() }
func (b *MemoryBacklight) Unlock() { b.mu.Unlock() }

// Level returns the un-adjusted brightness.
func (b *MemoryBacklight) Level() uint32 {
	return b.level
}

// SetActual records the raw hardware write. The caller holds the lock.
func (b *MemoryBacklight) SetActual(level uint32) error {
	b.actual = level
	b.writes = append(b.writes, level)
	return nil
}

// Actual returns the last raw level written to "hardware".
func (b *MemoryBacklight) Actual() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.actual
}

// Writes returns a copy of all raw writes, oldest first.
func (b *MemoryBacklight) Writes() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint32, len(b.writes))
	copy(out, b.writes)
	return out
}
