package display

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConnector(t *testing.T, base, name, status, modes string) {
	t.Helper()
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "status"), []byte(status+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "modes"), []byte(modes), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDRMTimingPrefersEDP(t *testing.T) {
	base := t.TempDir()
	writeConnector(t, base, "card0-HDMI-A-1", "connected", "3840x2160\n1920x1080\n")
	writeConnector(t, base, "card0-eDP-1", "connected", "1920x1080\n1280x720\n")
	writeConnector(t, base, "card0-DP-1", "disconnected", "")

	d := &DRMTiming{basePath: base, refreshHz: 60}
	timing, err := d.CurrentTiming()
	if err != nil {
		t.Fatalf("CurrentTiming: %v", err)
	}
	if timing.Width != 1920 || timing.Height != 1080 {
		t.Errorf("timing = %dx%d, want 1920x1080 from the eDP connector", timing.Width, timing.Height)
	}
	if timing.PixelCount() != 1920*1080 {
		t.Errorf("PixelCount() = %d", timing.PixelCount())
	}
}

func TestDRMTimingFallsBackToAnyConnected(t *testing.T) {
	base := t.TempDir()
	writeConnector(t, base, "card0-HDMI-A-1", "connected", "2560x1440\n")

	d := &DRMTiming{basePath: base, refreshHz: 60}
	timing, err := d.CurrentTiming()
	if err != nil {
		t.Fatalf("CurrentTiming: %v", err)
	}
	if timing.Width != 2560 || timing.Height != 1440 {
		t.Errorf("timing = %dx%d, want 2560x1440", timing.Width, timing.Height)
	}
}

func TestDRMTimingNoConnector(t *testing.T) {
	d := &DRMTiming{basePath: t.TempDir(), refreshHz: 60}
	if _, err := d.CurrentTiming(); err == nil {
		t.Fatal("expected error with no connected connector")
	}
}

func TestFixedTiming(t *testing.T) {
	f := FixedTiming{T: Timing{Width: 1920, Height: 1080, RefreshHz: 60}}
	timing, err := f.CurrentTiming()
	if err != nil || timing.Width != 1920 {
		t.Fatalf("FixedTiming = %+v, %v", timing, err)
	}
}

func TestTickerVBlankHonorsContext(t *testing.T) {
	w := NewTickerVBlank(1) // one-second frame period
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := w.WaitVBlank(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("WaitVBlank ignored context cancellation")
	}
}

func TestTickerVBlankWaitsOnePeriod(t *testing.T) {
	w := NewTickerVBlank(100) // 10ms frame period
	start := time.Now()
	if err := w.WaitVBlank(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("WaitVBlank returned after %v, want about one frame period", elapsed)
	}
}
