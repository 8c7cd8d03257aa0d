package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/dpstd/internal/display"
	"github.com/smazurov/dpstd/internal/dpst"
	"github.com/smazurov/dpstd/internal/logging"
	"github.com/smazurov/dpstd/internal/panel"
)

// CreateSelftestCmd exercises the full enable / tune / readout / disable
// sequence against the simulated device. Useful for verifying a build on
// machines without supported display hardware.
func CreateSelftestCmd() *cobra.Command {
	var platformName string

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the control sequence against a simulated device",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runSelftest(dpst.Platform(platformName)); err != nil {
				fmt.Fprintf(os.Stderr, "selftest failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("selftest passed")
		},
	}
	cmd.Flags().StringVar(&platformName, "platform", string(dpst.PlatformHaswell),
		"platform register map to simulate")
	return cmd
}

func runSelftest(platform dpst.Platform) error {
	regs, err := dpst.ResolveRegisters(platform)
	if err != nil {
		return err
	}

	sim := dpst.NewSimDevice(regs)
	backlight := panel.NewMemory(400)

	controller, err := dpst.New(dpst.Options{
		Platform:  platform,
		IO:        sim,
		VBlank:    sim,
		Backlight: backlight,
		Timing:    display.FixedTiming{T: display.Timing{Width: 1920, Height: 1080, RefreshHz: 60}},
		Logger:    logging.GetLogger("selftest"),
	})
	if err != nil {
		return err
	}

	ctx := context.Background()

	res, err := controller.Dispatch(ctx, dpst.Command{
		Kind: dpst.CmdInitialize,
		Init: &dpst.InitParams{Listener: "selftest", Tag: 1, GuardBandDelay: 4},
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Printf("guard band threshold: %d (resolution %d px)\n",
		res.ThresholdGuardBand, res.ImageResolution)

	table := make([]uint32, dpst.EnhancementTableEntries)
	for i := range table {
		table[i] = uint32(i * dpst.MaxFactor / (dpst.EnhancementTableEntries - 1))
	}
	if _, err := controller.Dispatch(ctx, dpst.Command{
		Kind: dpst.CmdApplyLuma,
		Luma: &dpst.LumaParams{Enhancement: table, Factor: 8000},
	}); err != nil {
		return fmt.Errorf("apply luma: %w", err)
	}
	fmt.Printf("backlight scaled to %d (raw 400 at factor 8000)\n", backlight.Actual())

	bins := make([]uint32, dpst.HistogramBins)
	for i := range bins {
		bins[i] = uint32(100 * i)
	}
	sim.SetBins(bins)

	readout, err := controller.Dispatch(ctx, dpst.Command{Kind: dpst.CmdGetHistogram})
	if err != nil {
		return fmt.Errorf("histogram readout: %w", err)
	}
	if len(readout.Bins) != dpst.HistogramBins {
		return fmt.Errorf("histogram readout returned %d bins", len(readout.Bins))
	}

	if _, err := controller.Dispatch(ctx, dpst.Command{Kind: dpst.CmdAckInterrupt}); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	if _, err := controller.Dispatch(ctx, dpst.Command{Kind: dpst.CmdDisable}); err != nil {
		return fmt.Errorf("disable: %w", err)
	}
	if backlight.Actual() != 400 {
		return fmt.Errorf("disable left backlight at %d, want raw 400", backlight.Actual())
	}
	return nil
}
