package bootcomm

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/smazurov/dpstd/internal/events"
)

func decodeVariable(t *testing.T, path string) (uint32, string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read variable: %v", err)
	}
	if len(data) < 4 || len(data)%2 != 0 {
		t.Fatalf("malformed variable payload, %d bytes", len(data))
	}

	attrs := binary.LittleEndian.Uint32(data[:4])
	units := make([]uint16, (len(data)-4)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[4+2*i:])
	}
	runes := utf16.Decode(units)
	if len(runes) == 0 || runes[len(runes)-1] != 0 {
		t.Fatal("value is not NUL terminated")
	}
	return attrs, string(runes[:len(runes)-1])
}

func TestSetEntryOneShot(t *testing.T) {
	dir := t.TempDir()
	w := NewWriterAt(dir)

	if err := w.SetEntryOneShot("recovery"); err != nil {
		t.Fatalf("SetEntryOneShot: %v", err)
	}

	path := filepath.Join(dir, "LoaderEntryOneShot-"+loaderVendorGUID)
	attrs, value := decodeVariable(t, path)
	if attrs != varAttributes {
		t.Errorf("attributes = %#x, want %#x", attrs, varAttributes)
	}
	if value != "recovery" {
		t.Errorf("value = %q, want recovery", value)
	}
}

func TestSetEntryOneShotRejectsEmpty(t *testing.T) {
	w := NewWriterAt(t.TempDir())
	if err := w.SetEntryOneShot(""); err == nil {
		t.Fatal("expected error for empty entry")
	}
}

func TestClearEntryOneShot(t *testing.T) {
	dir := t.TempDir()
	w := NewWriterAt(dir)

	if err := w.SetEntryOneShot("recovery"); err != nil {
		t.Fatal(err)
	}
	if err := w.ClearEntryOneShot(); err != nil {
		t.Fatalf("ClearEntryOneShot: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "LoaderEntryOneShot-"+loaderVendorGUID)); !os.IsNotExist(err) {
		t.Error("variable still present after clear")
	}

	// Clearing an absent variable is fine.
	if err := w.ClearEntryOneShot(); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestWriterUnavailable(t *testing.T) {
	w := NewWriterAt(filepath.Join(t.TempDir(), "missing"))
	if w.Available() {
		t.Fatal("Available() on missing directory")
	}
	if err := w.SetEntryOneShot("recovery"); err == nil {
		t.Fatal("expected error when efivarfs is unavailable")
	}
}

func waitForVariable(t *testing.T, path string) (uint32, string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return decodeVariable(t, path)
		}
		select {
		case <-deadline:
			t.Fatalf("variable %s never appeared", path)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSubscribeHandlesRebootRequest(t *testing.T) {
	dir := t.TempDir()
	w := NewWriterAt(dir)
	bus := events.New()
	unsub := w.Subscribe(bus, "")
	defer unsub()

	bus.Publish(events.RebootRequestedEvent{Target: "firmware-setup"})

	path := filepath.Join(dir, "LoaderEntryOneShot-"+loaderVendorGUID)
	_, value := waitForVariable(t, path)
	if value != "firmware-setup" {
		t.Errorf("value = %q", value)
	}
}

func TestSubscribeHandlesHibernatePrepare(t *testing.T) {
	dir := t.TempDir()
	w := NewWriterAt(dir)
	bus := events.New()
	unsub := w.Subscribe(bus, "/dev/nvme0n1p3")
	defer unsub()

	bus.Publish(events.HibernatePrepareEvent{})

	path := filepath.Join(dir, "LoaderResumeHibernate-"+loaderVendorGUID)
	_, value := waitForVariable(t, path)
	if value != "/dev/nvme0n1p3" {
		t.Errorf("value = %q", value)
	}
}
