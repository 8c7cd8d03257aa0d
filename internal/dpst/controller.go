package dpst

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/dpstd/internal/display"
	"github.com/smazurov/dpstd/internal/events"
	"github.com/smazurov/dpstd/internal/metrics"
	"github.com/smazurov/dpstd/internal/panel"
)

// DefaultGuardBandConstant matches the hardware team's debounce tuning:
// threshold = constant × width × height / 1000.
const DefaultGuardBandConstant = 30

// DefaultMaxBusyRestarts bounds the histogram readout retry loop. The
// hardware imposes no bound; this is a safety ceiling, not a tuning value.
const DefaultMaxBusyRestarts = 3

// NotificationTarget identifies the agent's registered listener. Written
// once by initialization, read from the interrupt path without the command
// lock, hence the atomic pointer in the controller.
type NotificationTarget struct {
	Listener string
	Tag      int
}

// CommandKind discriminates dispatched commands.
type CommandKind uint8

// Commands accepted by Dispatch.
const (
	CmdEnable CommandKind = iota + 1
	CmdDisable
	CmdInitialize
	CmdGetHistogram
	CmdApplyLuma
	CmdAckInterrupt
)

// String returns the command name used in logs and metrics.
func (k CommandKind) String() string {
	switch k {
	case CmdEnable:
		return "enable"
	case CmdDisable:
		return "disable"
	case CmdInitialize:
		return "initialize"
	case CmdGetHistogram:
		return "get-histogram"
	case CmdApplyLuma:
		return "apply-luma"
	case CmdAckInterrupt:
		return "ack-interrupt"
	default:
		return "unknown"
	}
}

// InitParams carries the agent's initialization request.
type InitParams struct {
	Listener       string
	Tag            int
	GuardBandDelay uint32
}

// LumaParams carries a tuning push from the agent.
type LumaParams struct {
	Enhancement []uint32 // EnhancementTableEntries values, 0..10000
	Factor      uint32   // fixed point, 10000 = 100.00%
}

// Command is the single typed request the dispatcher accepts.
type Command struct {
	Kind CommandKind
	Init *InitParams
	Luma *LumaParams
}

// Result is what a command returns beyond success.
type Result struct {
	ThresholdGuardBand uint32
	ImageResolution    uint32
	Bins               []uint32
}

// Options configures a Controller.
type Options struct {
	Platform          Platform
	IO                RegisterIO
	VBlank            display.VBlankWaiter
	Backlight         panel.Backlight // nil when no panel output exists
	Timing            display.TimingSource
	Bus               *events.Bus
	Metrics           *metrics.Set
	Logger            *slog.Logger
	GuardBandConstant uint32
	MaxBusyRestarts   int
}

// Controller owns the DPST subsystem state for one device: the enable
// arbiter, the luma store, the resolved register set and the notification
// target. Lifetime is tied to device attach/detach; every operation takes
// the controller explicitly.
type Controller struct {
	// mu is the command lock: it serializes every dispatched operation
	// end-to-end so multi-write sequences (save-then-disable,
	// enable-then-restore) are observed atomically. It may be held while
	// taking the backlight lock, never the other way around, and never
	// across the vblank wait while the backlight lock is held.
	mu sync.Mutex

	platform  Platform
	regs      RegisterSet
	supported bool

	io        RegisterIO
	vblank    display.VBlankWaiter
	backlight panel.Backlight
	timing    display.TimingSource

	bus     *events.Bus
	metrics *metrics.Set
	logger  *slog.Logger

	arb  arbiter
	luma lumaState

	notify atomic.Pointer[NotificationTarget]

	guardConst      uint32
	maxBusyRestarts int
}

// New resolves the platform's register map and builds the controller. An
// unsupported platform leaves the subsystem fully inert: the controller is
// still returned so the command surface can refuse requests uniformly, but
// every command fails with ErrUnsupported.
func New(opts Options) (*Controller, error) {
	c := &Controller{
		platform:        opts.Platform,
		io:              opts.IO,
		vblank:          opts.VBlank,
		backlight:       opts.Backlight,
		timing:          opts.Timing,
		bus:             opts.Bus,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		guardConst:      opts.GuardBandConstant,
		maxBusyRestarts: opts.MaxBusyRestarts,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.guardConst == 0 {
		c.guardConst = DefaultGuardBandConstant
	}
	if c.maxBusyRestarts <= 0 {
		c.maxBusyRestarts = DefaultMaxBusyRestarts
	}

	regs, err := ResolveRegisters(opts.Platform)
	if err != nil {
		return c, err
	}
	c.regs = regs
	c.supported = true
	return c, nil
}

// Supported reports whether the device advertises the feature.
func (c *Controller) Supported() bool {
	return c.supported
}

// Mode returns the current arbiter mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arb.mode
}

// Status is a diagnostic snapshot of the subsystem state.
type Status struct {
	Platform      Platform
	Mode          string
	Factor        uint32
	SnapshotValid bool
	Listener      string
}

// CurrentStatus returns a consistent snapshot under the command lock.
func (c *Controller) CurrentStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Platform:      c.platform,
		Mode:          c.arb.mode.String(),
		Factor:        c.luma.factor,
		SnapshotValid: c.luma.saved.valid,
	}
	if nt := c.notify.Load(); nt != nil {
		st.Listener = nt.Listener
	}
	return st
}

// Dispatch executes one command against the state machine. Commands are
// serialized: at most one executes at a time, including SetKernelDisable.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) (res *Result, err error) {
	defer func() { c.metrics.ObserveCommand(cmd.Kind.String(), err) }()

	if !c.supported {
		return nil, fmt.Errorf("%w: device does not advertise dpst", ErrUnsupported)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd.Kind {
	case CmdEnable:
		return nil, c.setUserEnableLocked(ctx, true)

	case CmdDisable:
		return nil, c.setUserEnableLocked(ctx, false)

	case CmdInitialize:
		if cmd.Init == nil {
			return nil, fmt.Errorf("%w: initialize needs parameters", ErrInvalidRequest)
		}
		return c.initializeLocked(ctx, cmd.Init)

	case CmdGetHistogram:
		bins, err := c.readBins()
		if err != nil {
			return nil, err
		}
		return &Result{Bins: bins}, nil

	case CmdApplyLuma:
		if cmd.Luma == nil {
			return nil, fmt.Errorf("%w: apply-luma needs parameters", ErrInvalidRequest)
		}
		return nil, c.applyLuma(cmd.Luma)

	case CmdAckInterrupt:
		return nil, c.clearPending()

	default:
		return nil, fmt.Errorf("%w: unknown command %d", ErrInvalidRequest, cmd.Kind)
	}
}

// SetKernelDisable is the kernel-policy entry point, callable at any time.
// Vetoing while running snapshots luma then disables as one serialized
// unit; clearing the veto re-enables and restores. Both directions are
// transparent to the agent.
func (c *Controller) SetKernelDisable(ctx context.Context, disable bool) error {
	if !c.supported {
		return fmt.Errorf("%w: device does not advertise dpst", ErrUnsupported)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.arb.mode
	action := c.arb.setKernelDisable(disable)
	if err := c.runAction(ctx, action); err != nil {
		return err
	}
	c.noteTransition(from)
	return nil
}

// setUserEnableLocked applies the agent's enable/disable request. The
// command lock is held.
func (c *Controller) setUserEnableLocked(ctx context.Context, enable bool) error {
	from := c.arb.mode

	if !enable {
		// A fresh enable must not silently reapply stale tuning.
		c.luma.saved.valid = false
	}

	action := c.arb.setUserEnable(enable)
	if err := c.runAction(ctx, action); err != nil {
		return err
	}
	c.noteTransition(from)
	return nil
}

// runAction performs the hardware side of an arbiter transition.
func (c *Controller) runAction(ctx context.Context, action hwAction) error {
	switch action {
	case actNone:
		return nil

	case actEnable:
		return c.enableHardware(ctx)

	case actDisable:
		return c.disableHardware()

	case actSaveDisable:
		if err := c.saveLuma(); err != nil {
			return err
		}
		return c.disableHardware()

	case actEnableRestore:
		if err := c.enableHardware(ctx); err != nil {
			return err
		}
		return c.restoreLuma()

	default:
		return fmt.Errorf("%w: unknown hardware action %d", ErrInvalidRequest, action)
	}
}

// initializeLocked resolves registers, programs the guard band, stores the
// notification target and enables the feature for the agent. Register
// resolution failure aborts before any state is modified.
func (c *Controller) initializeLocked(ctx context.Context, p *InitParams) (*Result, error) {
	regs, err := ResolveRegisters(c.platform)
	if err != nil {
		return nil, err
	}
	c.regs = regs

	res := &Result{}
	if c.timing != nil {
		if t, err := c.timing.CurrentTiming(); err == nil {
			res.ThresholdGuardBand = c.guardConst * uint32(t.Width) * uint32(t.Height) / 1000
			res.ImageResolution = uint32(t.PixelCount())
		} else {
			c.logger.Warn("No display timing available, guard threshold unset", "error", err)
		}
	}

	if err := updateRegister(c.io, c.regs.HistGuard,
		p.GuardBandDelay<<guardDelayShift|res.ThresholdGuardBand, 0); err != nil {
		return nil, err
	}

	c.notify.Store(&NotificationTarget{Listener: p.Listener, Tag: p.Tag})
	c.logger.Info("DPST initialized",
		"listener", p.Listener,
		"guard_delay", p.GuardBandDelay,
		"guard_threshold", res.ThresholdGuardBand)

	if err := c.setUserEnableLocked(ctx, true); err != nil {
		return nil, err
	}
	return res, nil
}

// HandleInterrupt runs on the interrupt delivery path. It must not take
// the command lock: a slow in-progress command cannot be allowed to block
// interrupt servicing. Publishing with no registered agent is a no-op.
func (c *Controller) HandleInterrupt() {
	c.metrics.InterruptDelivered()

	nt := c.notify.Load()
	if nt == nil || c.bus == nil {
		return
	}
	c.bus.Publish(events.HistogramReadyEvent{
		Listener:  nt.Listener,
		Tag:       nt.Tag,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// noteTransition logs, publishes and gauges a mode change. Lock held.
func (c *Controller) noteTransition(from Mode) {
	to := c.arb.mode
	if from == to {
		return
	}

	c.logger.Info("DPST mode transition", "from", from.String(), "to", to.String())
	c.metrics.SetMode(to.String(), allModeNames())
	c.publish(events.StateChangedEvent{
		From:      from.String(),
		To:        to.String(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// publish sends an event if a bus is attached.
func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func allModeNames() []string {
	return []string{
		ModeDisabled.String(),
		ModeEnabled.String(),
		ModeSuppressed.String(),
		ModeVetoed.String(),
	}
}
