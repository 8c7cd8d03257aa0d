package dpst

import "errors"

// Error kinds surfaced by the subsystem. Everything else wraps one of
// these so callers can classify with errors.Is.
var (
	// ErrUnsupported means the platform is not recognized or the device
	// does not advertise the feature. Fatal to the whole subsystem.
	ErrUnsupported = errors.New("dpst not supported on this platform")

	// ErrInvalidRequest means the operation was invoked in a state that
	// forbids it (apply before enable, readout while user-disabled,
	// no panel output, unknown command).
	ErrInvalidRequest = errors.New("invalid dpst request")

	// ErrBusyTimeout means the histogram readout exceeded its retry
	// ceiling while the engine kept reporting busy. Recoverable; the
	// caller may retry later.
	ErrBusyTimeout = errors.New("histogram engine busy")
)
