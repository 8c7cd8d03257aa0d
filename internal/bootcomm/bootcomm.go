// Package bootcomm writes boot-loader communication variables through
// efivarfs so a one-shot boot target or a hibernate resume hint survives
// the next restart.
package bootcomm

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf16"

	"github.com/smazurov/dpstd/internal/events"
	"github.com/smazurov/dpstd/internal/logging"
)

// Vendor GUID of the systemd boot loader interface.
const loaderVendorGUID = "4a67b082-0a4c-41cf-b6c7-440b29bb8c4f"

// Variable names understood by the boot loader.
const (
	varEntryOneShot    = "LoaderEntryOneShot"
	varResumeHibernate = "LoaderResumeHibernate"
)

const defaultEFIVarFS = "/sys/firmware/efi/efivars"

// Attributes: non-volatile, boot-service access, runtime access.
const varAttributes uint32 = 0x7

// Writer persists boot-loader variables. A zero basePath targets the
// real efivarfs mount.
type Writer struct {
	basePath string
	logger   logging.Logger
}

// NewWriter creates a Writer against the standard efivarfs mount.
func NewWriter() *Writer {
	return &Writer{
		basePath: defaultEFIVarFS,
		logger:   logging.GetLogger("bootcomm"),
	}
}

// NewWriterAt creates a Writer against an alternate directory, used by
// tests and non-EFI development hosts.
func NewWriterAt(basePath string) *Writer {
	return &Writer{
		basePath: basePath,
		logger:   logging.GetLogger("bootcomm"),
	}
}

// Available reports whether the efivarfs mount exists.
func (w *Writer) Available() bool {
	fi, err := os.Stat(w.basePath)
	return err == nil && fi.IsDir()
}

// SetEntryOneShot selects the boot entry for the next restart only.
func (w *Writer) SetEntryOneShot(entry string) error {
	if entry == "" {
		return fmt.Errorf("boot entry must not be empty")
	}
	return w.setVariable(varEntryOneShot, entry)
}

// SetResumeHibernate records the swap device the loader should resume
// from after hibernation.
func (w *Writer) SetResumeHibernate(device string) error {
	if device == "" {
		return fmt.Errorf("resume device must not be empty")
	}
	return w.setVariable(varResumeHibernate, device)
}

// ClearEntryOneShot removes a previously set one-shot entry.
func (w *Writer) ClearEntryOneShot() error {
	path := w.variablePath(varEntryOneShot)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear %s: %w", varEntryOneShot, err)
	}
	return nil
}

// setVariable writes attributes plus the UTF-16LE encoded,
// NUL-terminated value, the layout efivarfs expects.
func (w *Writer) setVariable(name, value string) error {
	if !w.Available() {
		return fmt.Errorf("efivarfs not available at %s", w.basePath)
	}

	encoded := utf16.Encode([]rune(value + "\x00"))
	buf := make([]byte, 4+2*len(encoded))
	binary.LittleEndian.PutUint32(buf[:4], varAttributes)
	for i, u := range encoded {
		binary.LittleEndian.PutUint16(buf[4+2*i:], u)
	}

	path := w.variablePath(name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	w.logger.Info("Boot loader variable written", "name", name, "value", value)
	return nil
}

func (w *Writer) variablePath(name string) string {
	return filepath.Join(w.basePath, name+"-"+loaderVendorGUID)
}

// Subscribe wires the writer to bus lifecycle events: reboot requests
// set a one-shot entry, hibernate preparation records the resume
// device. Returns an unsubscribe function.
func (w *Writer) Subscribe(bus *events.Bus, resumeDevice string) func() {
	unsubReboot := bus.Subscribe(func(e events.RebootRequestedEvent) {
		if err := w.SetEntryOneShot(e.Target); err != nil {
			w.logger.Error("Failed to set one-shot boot entry", "target", e.Target, "error", err)
		}
	})
	unsubHibernate := bus.Subscribe(func(e events.HibernatePrepareEvent) {
		if resumeDevice == "" {
			w.logger.Warn("Hibernate prepare received but no resume device configured")
			return
		}
		if err := w.SetResumeHibernate(resumeDevice); err != nil {
			w.logger.Error("Failed to set hibernate resume device", "error", err)
		}
	})
	return func() {
		unsubReboot()
		unsubHibernate()
	}
}
