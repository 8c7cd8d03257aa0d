package panel

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryBacklight(t *testing.T) {
	bl := NewMemory(400)

	if bl.Level() != 400 {
		t.Errorf("Level() = %d, want 400", bl.Level())
	}

	bl.Lock()
	if err := bl.SetActual(200); err != nil {
		t.Fatalf("SetActual: %v", err)
	}
	bl.Unlock()

	if bl.Actual() != 200 {
		t.Errorf("Actual() = %d, want 200", bl.Actual())
	}

	// The un-adjusted level is untouched by raw writes.
	if bl.Level() != 400 {
		t.Errorf("Level() = %d after raw write, want 400", bl.Level())
	}

	bl.Lock()
	bl.SetActual(400)
	bl.Unlock()

	writes := bl.Writes()
	if len(writes) != 2 || writes[0] != 200 || writes[1] != 400 {
		t.Errorf("Writes() = %v, want [200 400]", writes)
	}
}

func TestSysfsBacklightTracksExternalChanges(t *testing.T) {
	base := t.TempDir()
	devDir := filepath.Join(base, "intel_backlight")
	if err := os.MkdirAll(devDir, 0o755); err != nil {
		t.Fatal(err)
	}
	setBrightness := func(v string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(devDir, "brightness"), []byte(v), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	setBrightness("400\n")

	bl, err := newSysfsAt(base)
	if err != nil {
		t.Fatal(err)
	}
	if bl.Level() != 400 {
		t.Fatalf("Level() = %d, want 400", bl.Level())
	}

	// Our own scaled write lands in the same brightness file and must not
	// displace the cached un-adjusted level.
	bl.Lock()
	if err := bl.SetActual(200); err != nil {
		t.Fatal(err)
	}
	bl.Unlock()
	if bl.Level() != 400 {
		t.Errorf("Level() = %d after own scaled write, want 400", bl.Level())
	}

	// A hotkey write is adopted as the new un-adjusted level.
	setBrightness("500")
	if bl.Level() != 500 {
		t.Errorf("Level() = %d after external change, want 500", bl.Level())
	}

	// Scaling against the adopted level keeps tracking it.
	bl.Lock()
	if err := bl.SetActual(250); err != nil {
		t.Fatal(err)
	}
	bl.Unlock()
	if bl.Level() != 500 {
		t.Errorf("Level() = %d, want 500 kept through the scaled write", bl.Level())
	}
}
