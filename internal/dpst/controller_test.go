package dpst

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smazurov/dpstd/internal/display"
	"github.com/smazurov/dpstd/internal/events"
	"github.com/smazurov/dpstd/internal/panel"
)

const testRawLevel = 400

func newTestRig(t *testing.T) (*Controller, *SimDevice, *panel.MemoryBacklight) {
	t.Helper()

	regs, err := ResolveRegisters(PlatformHaswell)
	if err != nil {
		t.Fatalf("resolve registers: %v", err)
	}
	sim := NewSimDevice(regs)
	bl := panel.NewMemory(testRawLevel)

	c, err := New(Options{
		Platform:  PlatformHaswell,
		IO:        sim,
		VBlank:    sim,
		Backlight: bl,
		Timing:    display.FixedTiming{T: display.Timing{Width: 1920, Height: 1080, RefreshHz: 60}},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, sim, bl
}

func dispatch(t *testing.T, c *Controller, cmd Command) *Result {
	t.Helper()
	res, err := c.Dispatch(context.Background(), cmd)
	if err != nil {
		t.Fatalf("dispatch %s: %v", cmd.Kind, err)
	}
	return res
}

func flatTable(v uint32) []uint32 {
	table := make([]uint32, EnhancementTableEntries)
	for i := range table {
		table[i] = v
	}
	return table
}

func TestEnableSequenceOrdering(t *testing.T) {
	c, sim, _ := newTestRig(t)

	dispatch(t, c, Command{Kind: CmdEnable})

	log := sim.WriteLog()
	if len(log) != 4 {
		t.Fatalf("enable issued %d writes, want 4 (ctl, vblank, clear, irq-enable)", len(log))
	}

	// Histogram logic turns on first, before the blank boundary.
	if log[0].Addr != sim.regs.HistCtl || log[0].Val&ieHistogramEnable == 0 || log[0].Val&hsvIntensityMode == 0 {
		t.Errorf("first write = %+v, want histogram+HSV enable on ctl", log[0])
	}

	// The guard register writes must come after the vblank wait.
	if log[1].Addr != vblankMarker {
		t.Error("guard writes issued before the vblank boundary")
	}

	// Clearing pending status and enabling the interrupt must be two
	// separate writes.
	if log[2].Addr != sim.regs.HistGuard || log[2].Val&histogramEventStatus == 0 {
		t.Errorf("third write = %+v, want pending-status clear", log[2])
	}
	if log[2].Val&histogramIRQEnable != 0 {
		t.Error("pending-status clear and interrupt enable were combined into one write")
	}
	if log[3].Addr != sim.regs.HistGuard || log[3].Val&histogramIRQEnable == 0 {
		t.Errorf("fourth write = %+v, want interrupt enable", log[3])
	}

	if c.Mode() != ModeEnabled {
		t.Errorf("mode = %v, want enabled", c.Mode())
	}
}

func TestEnableIdempotent(t *testing.T) {
	c, sim, _ := newTestRig(t)

	dispatch(t, c, Command{Kind: CmdEnable})
	writes := len(sim.WriteLog())
	vblanks := sim.VBlankWaits()

	dispatch(t, c, Command{Kind: CmdEnable})

	if got := len(sim.WriteLog()); got != writes {
		t.Errorf("second enable issued %d extra writes", got-writes)
	}
	if sim.VBlankWaits() != vblanks {
		t.Error("second enable waited for vblank again")
	}
}

func TestDisableSequence(t *testing.T) {
	c, sim, bl := newTestRig(t)

	dispatch(t, c, Command{Kind: CmdEnable})
	mark := len(sim.WriteLog())
	dispatch(t, c, Command{Kind: CmdDisable})

	log := sim.WriteLog()[mark:]
	if len(log) != 2 {
		t.Fatalf("disable issued %d writes, want 2", len(log))
	}

	// Clear and mask may share one write in this direction.
	if log[0].Addr != sim.regs.HistGuard ||
		log[0].Val&histogramEventStatus == 0 || log[0].Val&histogramIRQEnable != 0 {
		t.Errorf("first disable write = %+v, want combined clear+mask", log[0])
	}

	if sim.Ctl()&(ieHistogramEnable|ieModTableEnable) != 0 {
		t.Error("histogram or table enable still set after disable")
	}
	if bl.Actual() != testRawLevel {
		t.Errorf("backlight = %d after disable, want un-adjusted %d", bl.Actual(), testRawLevel)
	}
}

func TestApplyLumaScalesBrightnessAndTable(t *testing.T) {
	c, sim, bl := newTestRig(t)
	dispatch(t, c, Command{Kind: CmdEnable})

	table := flatTable(10000)
	table[1] = 5000
	dispatch(t, c, Command{Kind: CmdApplyLuma, Luma: &LumaParams{Enhancement: table, Factor: 5000}})

	// displayed = raw * factor / 10000 (factor carries two implied
	// decimal digits).
	want := uint32(testRawLevel * 5000 / 100 / 100)
	if bl.Actual() != want {
		t.Errorf("backlight = %d, want %d", bl.Actual(), want)
	}

	ie := sim.EnhancementTable()
	if ie[0] != 0x200 {
		t.Errorf("table[0] = 0x%x, want 0x200 (device scale of 10000)", ie[0])
	}
	if ie[1] != 0x100 {
		t.Errorf("table[1] = 0x%x, want 0x100 (device scale of 5000)", ie[1])
	}

	if sim.Ctl()&ieModTableEnable == 0 || sim.Ctl()&enhancementModeMult == 0 {
		t.Error("table enable and multiplicative blend not set after apply")
	}
}

func TestApplyLumaDefaultFactorKeepsRawLevel(t *testing.T) {
	c, _, bl := newTestRig(t)
	dispatch(t, c, Command{Kind: CmdEnable})

	dispatch(t, c, Command{Kind: CmdApplyLuma, Luma: &LumaParams{Enhancement: flatTable(10000), Factor: MaxFactor}})

	if bl.Actual() != testRawLevel {
		t.Errorf("backlight = %d with 100%% factor, want %d", bl.Actual(), testRawLevel)
	}
}

func TestApplyLumaBeforeEnable(t *testing.T) {
	c, sim, _ := newTestRig(t)

	_, err := c.Dispatch(context.Background(), Command{
		Kind: CmdApplyLuma,
		Luma: &LumaParams{Enhancement: flatTable(10000), Factor: 5000},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if len(sim.WriteLog()) != 0 {
		t.Error("rejected apply still wrote registers")
	}
}

func TestApplyLumaValidatesBeforeFirstWrite(t *testing.T) {
	c, sim, _ := newTestRig(t)
	dispatch(t, c, Command{Kind: CmdEnable})
	mark := len(sim.WriteLog())

	bad := []*LumaParams{
		{Enhancement: make([]uint32, 5), Factor: 5000},
		{Enhancement: flatTable(10001), Factor: 5000},
		{Enhancement: flatTable(10000), Factor: 10001},
	}
	for _, p := range bad {
		if _, err := c.Dispatch(context.Background(), Command{Kind: CmdApplyLuma, Luma: p}); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("err = %v, want ErrInvalidRequest", err)
		}
	}
	if got := len(sim.WriteLog()); got != mark {
		t.Errorf("invalid apply wrote %d registers; validation must precede the table-selection write", got-mark)
	}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	c, sim, bl := newTestRig(t)
	ctx := context.Background()

	dispatch(t, c, Command{Kind: CmdEnable})

	// Kernel veto lands mid-adjustment; the agent keeps pushing tuning
	// without ever learning about it.
	if err := c.SetKernelDisable(ctx, true); err != nil {
		t.Fatalf("SetKernelDisable(true): %v", err)
	}
	if c.Mode() != ModeSuppressed {
		t.Fatalf("mode = %v, want suppressed", c.Mode())
	}

	dispatch(t, c, Command{Kind: CmdApplyLuma, Luma: &LumaParams{Enhancement: flatTable(8000), Factor: 5000}})

	// Under the veto the backlight must stay at its raw level while the
	// table entries still land in hardware storage.
	if bl.Actual() != testRawLevel {
		t.Errorf("backlight touched under kernel veto: %d", bl.Actual())
	}
	if sim.Ctl()&ieModTableEnable != 0 {
		t.Error("table enabled while hardware is suppressed")
	}
	if sim.EnhancementTable()[0] != 8000*0x200/10000 {
		t.Error("enhancement table not programmed under veto")
	}

	if err := c.SetKernelDisable(ctx, false); err != nil {
		t.Fatalf("SetKernelDisable(false): %v", err)
	}

	st := c.CurrentStatus()
	if st.Factor != 5000 {
		t.Errorf("factor = %d after restore, want 5000", st.Factor)
	}
	if sim.Ctl()&ieModTableEnable == 0 || sim.Ctl()&enhancementModeMult == 0 {
		t.Error("enhancement table not re-enabled after restore")
	}
	if want := uint32(testRawLevel * 5000 / 100 / 100); bl.Actual() != want {
		t.Errorf("backlight = %d after restore, want %d", bl.Actual(), want)
	}
}

func TestSaveIsNoopWithoutAppliedSettings(t *testing.T) {
	c, _, _ := newTestRig(t)
	ctx := context.Background()

	dispatch(t, c, Command{Kind: CmdEnable})

	// No apply happened: the table-enable bit reads back clear, so the
	// veto must not mark a snapshot valid.
	if err := c.SetKernelDisable(ctx, true); err != nil {
		t.Fatalf("SetKernelDisable(true): %v", err)
	}
	if c.CurrentStatus().SnapshotValid {
		t.Error("snapshot marked valid without applied settings")
	}

	if err := c.SetKernelDisable(ctx, false); err != nil {
		t.Fatalf("SetKernelDisable(false): %v", err)
	}
	if got := c.CurrentStatus().Factor; got != MaxFactor {
		t.Errorf("factor = %d, want reset default %d", got, MaxFactor)
	}
}

func TestUserDisableInvalidatesSnapshot(t *testing.T) {
	c, _, _ := newTestRig(t)
	ctx := context.Background()

	dispatch(t, c, Command{Kind: CmdEnable})
	if err := c.SetKernelDisable(ctx, true); err != nil {
		t.Fatal(err)
	}
	dispatch(t, c, Command{Kind: CmdApplyLuma, Luma: &LumaParams{Enhancement: flatTable(10000), Factor: 7000}})
	if !c.CurrentStatus().SnapshotValid {
		t.Fatal("apply under veto should have stashed a snapshot")
	}

	// The agent walks away and comes back; stale tuning must not be
	// silently reapplied when the veto later clears.
	dispatch(t, c, Command{Kind: CmdDisable})
	dispatch(t, c, Command{Kind: CmdEnable})

	if err := c.SetKernelDisable(ctx, false); err != nil {
		t.Fatal(err)
	}
	if got := c.CurrentStatus().Factor; got != MaxFactor {
		t.Errorf("factor = %d after stale-snapshot sequence, want reset default %d", got, MaxFactor)
	}
}

func TestHistogramReadout(t *testing.T) {
	c, sim, _ := newTestRig(t)
	dispatch(t, c, Command{Kind: CmdEnable})

	bins := make([]uint32, HistogramBins)
	for i := range bins {
		bins[i] = uint32(100 + i)
	}
	sim.SetBins(bins)

	res := dispatch(t, c, Command{Kind: CmdGetHistogram})
	if len(res.Bins) != HistogramBins {
		t.Fatalf("got %d bins, want %d", len(res.Bins), HistogramBins)
	}
	for i, v := range res.Bins {
		if v != bins[i] {
			t.Errorf("bin %d = %d, want %d", i, v, bins[i])
		}
	}
}

func TestHistogramBusyRestartsScan(t *testing.T) {
	c, sim, _ := newTestRig(t)
	dispatch(t, c, Command{Kind: CmdEnable})

	bins := make([]uint32, HistogramBins)
	for i := range bins {
		bins[i] = uint32(1000 + i)
	}
	sim.SetBins(bins)
	// Third bin read reports busy: progress is discarded and the scan
	// restarts from index 0.
	sim.FailBinReads(3)

	res := dispatch(t, c, Command{Kind: CmdGetHistogram})
	for i, v := range res.Bins {
		if v != bins[i] {
			t.Fatalf("bin %d = %d, want %d; snapshot mixed two passes", i, v, bins[i])
		}
	}
}

func TestHistogramBusyTimeout(t *testing.T) {
	c, sim, _ := newTestRig(t)
	dispatch(t, c, Command{Kind: CmdEnable})

	// Every scan's first read is busy; with the default ceiling of 3
	// restarts the fourth busy report must surface a timeout.
	sim.FailBinReads(1, 2, 3, 4)

	_, err := c.Dispatch(context.Background(), Command{Kind: CmdGetHistogram})
	if !errors.Is(err, ErrBusyTimeout) {
		t.Fatalf("err = %v, want ErrBusyTimeout", err)
	}
}

func TestHistogramReadoutPermissions(t *testing.T) {
	c, _, _ := newTestRig(t)
	ctx := context.Background()

	// User-disabled: invalid call.
	if _, err := c.Dispatch(ctx, Command{Kind: CmdGetHistogram}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("readout while disabled: err = %v, want ErrInvalidRequest", err)
	}

	dispatch(t, c, Command{Kind: CmdEnable})

	// Kernel veto is invisible to the agent and can land between the
	// interrupt and the follow-up readout; the read must still succeed.
	if err := c.SetKernelDisable(ctx, true); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Dispatch(ctx, Command{Kind: CmdGetHistogram}); err != nil {
		t.Errorf("readout under kernel veto failed: %v", err)
	}
}

func TestInitializeGuardBandThreshold(t *testing.T) {
	c, sim, _ := newTestRig(t)

	res := dispatch(t, c, Command{Kind: CmdInitialize, Init: &InitParams{
		Listener:       "dpst-agent",
		Tag:            44,
		GuardBandDelay: 2,
	}})

	want := uint32(DefaultGuardBandConstant) * 1920 * 1080 / 1000
	if res.ThresholdGuardBand != want {
		t.Errorf("threshold_gb = %d, want %d", res.ThresholdGuardBand, want)
	}
	if res.ImageResolution != 1920*1080 {
		t.Errorf("image_res = %d, want %d", res.ImageResolution, 1920*1080)
	}

	guard := sim.Guard()
	if guard&(2<<guardDelayShift) == 0 {
		t.Error("guard-band delay not programmed")
	}
	if guard&want != want {
		t.Error("guard-band threshold not programmed")
	}

	// Initialization implicitly enables.
	if c.Mode() != ModeEnabled {
		t.Errorf("mode after initialize = %v, want enabled", c.Mode())
	}
	if c.CurrentStatus().Listener != "dpst-agent" {
		t.Error("notification target not stored")
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	regs, _ := ResolveRegisters(PlatformHaswell)
	sim := NewSimDevice(regs)

	c, err := New(Options{
		Platform: Platform("cantiga"),
		IO:       sim,
		VBlank:   sim,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("New err = %v, want ErrUnsupported", err)
	}
	if c.Supported() {
		t.Error("controller claims support on unknown platform")
	}

	// Everything is refused and nothing is touched.
	if _, err := c.Dispatch(context.Background(), Command{Kind: CmdEnable}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Dispatch err = %v, want ErrUnsupported", err)
	}
	if err := c.SetKernelDisable(context.Background(), true); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetKernelDisable err = %v, want ErrUnsupported", err)
	}
	if len(sim.WriteLog()) != 0 {
		t.Error("unsupported platform still wrote registers")
	}
	if c.Mode() != ModeDisabled {
		t.Error("unsupported platform mutated enable state")
	}
}

func TestUnknownCommand(t *testing.T) {
	c, sim, _ := newTestRig(t)
	if _, err := c.Dispatch(context.Background(), Command{Kind: CommandKind(42)}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if len(sim.WriteLog()) != 0 {
		t.Error("unknown command had side effects")
	}
}

func TestAckInterruptKeepsEnableState(t *testing.T) {
	c, sim, _ := newTestRig(t)
	dispatch(t, c, Command{Kind: CmdEnable})

	dispatch(t, c, Command{Kind: CmdAckInterrupt})

	if sim.Guard()&histogramIRQEnable == 0 {
		t.Error("interrupt acknowledge cleared the enable bit")
	}
	if sim.Ctl()&ieHistogramEnable == 0 {
		t.Error("interrupt acknowledge stopped histogram collection")
	}
}

func TestHandleInterruptNotifiesRegisteredAgent(t *testing.T) {
	c, _, _ := newTestRig(t)
	bus := events.New()
	c.bus = bus

	got := make(chan events.HistogramReadyEvent, 1)
	unsub := bus.Subscribe(func(e events.HistogramReadyEvent) {
		select {
		case got <- e:
		default:
		}
	})
	defer unsub()

	// Unregistered: fire-and-forget no-op.
	c.HandleInterrupt()
	select {
	case <-got:
		t.Fatal("interrupt notified without a registered agent")
	case <-time.After(50 * time.Millisecond):
	}

	dispatch(t, c, Command{Kind: CmdInitialize, Init: &InitParams{Listener: "agent-1", Tag: 7}})

	c.HandleInterrupt()
	select {
	case e := <-got:
		if e.Listener != "agent-1" || e.Tag != 7 {
			t.Errorf("event = %+v, want listener agent-1 tag 7", e)
		}
	case <-time.After(time.Second):
		t.Fatal("interrupt notification never arrived")
	}
}
