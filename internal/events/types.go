package events

// Event type constants for kelindar/event.
const (
	TypeHistogramReady uint32 = iota + 1
	TypeStateChanged
	TypeLumaApplied
	TypePolicyChanged
	TypeRebootRequested
	TypeHibernatePrepare
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// HistogramReadyEvent is published from the interrupt path when the
// histogram engine has fresh bin data. Listener and Tag echo whatever the
// agent registered at initialization so it can filter deliveries meant
// for it. Delivery is fire-and-forget; publishing with no subscriber is
// a no-op.
type HistogramReadyEvent struct {
	Listener  string `json:"listener" example:"dpst-agent" doc:"Registered listener identity"`
	Tag       int    `json:"tag" example:"44" doc:"Signal/event tag supplied at initialization"`
	Timestamp string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Interrupt timestamp"`
}

// Type returns the event type identifier for HistogramReadyEvent.
func (e HistogramReadyEvent) Type() uint32 { return TypeHistogramReady }

// StateChangedEvent reports an enable-arbiter mode transition.
type StateChangedEvent struct {
	From      string `json:"from" example:"disabled" doc:"Previous arbiter mode"`
	To        string `json:"to" example:"enabled" doc:"New arbiter mode"`
	Timestamp string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// LumaAppliedEvent reports a completed or stashed luma apply.
type LumaAppliedEvent struct {
	Factor    uint32 `json:"factor" example:"5000" doc:"Backlight factor, 10000 = 100.00%"`
	Stashed   bool   `json:"stashed" example:"false" doc:"True when the factor was snapshotted under kernel veto instead of applied live"`
	Timestamp string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Apply timestamp"`
}

// Type returns the event type identifier for LumaAppliedEvent.
func (e LumaAppliedEvent) Type() uint32 { return TypeLumaApplied }

// PolicyChangedEvent reports a power-policy decision affecting the kernel
// disable veto.
type PolicyChangedEvent struct {
	Profile       string `json:"profile" example:"performance" doc:"Active power profile"`
	KernelDisable bool   `json:"kernel_disable" example:"true" doc:"Whether the profile vetoes DPST"`
	Timestamp     string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Decision timestamp"`
}

// Type returns the event type identifier for PolicyChangedEvent.
func (e PolicyChangedEvent) Type() uint32 { return TypePolicyChanged }

// RebootRequestedEvent carries a one-shot boot target for the bootloader
// communication component.
type RebootRequestedEvent struct {
	Target    string `json:"target" example:"recovery" doc:"Bootloader entry to boot next"`
	Timestamp string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Request timestamp"`
}

// Type returns the event type identifier for RebootRequestedEvent.
func (e RebootRequestedEvent) Type() uint32 { return TypeRebootRequested }

// HibernatePrepareEvent signals that the system is about to hibernate and
// the bootloader must resume from swap instead of cold booting.
type HibernatePrepareEvent struct {
	Timestamp string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for HibernatePrepareEvent.
func (e HibernatePrepareEvent) Type() uint32 { return TypeHibernatePrepare }

// LogEntryEvent streams a structured log line to SSE subscribers.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-08-23T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"dpst" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
