package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/dpstd/cmd"
	"github.com/smazurov/dpstd/internal/api"
	"github.com/smazurov/dpstd/internal/bootcomm"
	"github.com/smazurov/dpstd/internal/config"
	"github.com/smazurov/dpstd/internal/display"
	"github.com/smazurov/dpstd/internal/dpst"
	"github.com/smazurov/dpstd/internal/events"
	"github.com/smazurov/dpstd/internal/logging"
	"github.com/smazurov/dpstd/internal/metrics"
	"github.com/smazurov/dpstd/internal/panel"
	"github.com/smazurov/dpstd/internal/policy"
	"github.com/smazurov/dpstd/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"dpstd.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8095" toml:"server.port" env:"SERVER_PORT"`

	// Hardware settings
	Platform     string `help:"Display platform (haswell, valleyview)" default:"haswell" toml:"dpst.platform" env:"PLATFORM"`
	Simulate     bool   `help:"Drive a simulated device instead of real hardware" default:"false" toml:"dpst.simulate" env:"SIMULATE"`
	MMIOResource string `help:"PCI resource file with the register BAR" default:"/sys/bus/pci/devices/0000:00:02.0/resource0" toml:"dpst.mmio_resource" env:"MMIO_RESOURCE"`
	MMIOSize     int    `help:"Bytes of the register BAR to map" default:"4194304" toml:"dpst.mmio_size" env:"MMIO_SIZE"`
	DRMNode      string `help:"DRM device node for vblank waits" default:"/dev/dri/card0" toml:"dpst.drm_node" env:"DRM_NODE"`
	UIODevice    string `help:"UIO node delivering histogram interrupts (empty disables)" default:"" toml:"dpst.uio_device" env:"UIO_DEVICE"`
	RefreshHz    int    `help:"Panel refresh rate fallback" default:"60" toml:"dpst.refresh_hz" env:"REFRESH_HZ"`

	// Policy settings
	PolicyFile   string `help:"Power policy file to watch" default:"/etc/dpstd/policy.toml" toml:"policy.file" env:"POLICY_FILE"`
	ResumeDevice string `help:"Swap device recorded for hibernate resume" default:"" toml:"policy.resume_device" env:"RESUME_DEVICE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-updates" default:"smazurov/dpstd" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases when checking for updates" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingDpst   string `help:"DPST core logging level" default:"info" toml:"logging.dpst" env:"LOGGING_DPST"`
	LoggingPanel  string `help:"Panel backlight logging level" default:"info" toml:"logging.panel" env:"LOGGING_PANEL"`
	LoggingPolicy string `help:"Power policy logging level" default:"info" toml:"logging.policy" env:"LOGGING_POLICY"`
	LoggingAPI    string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"dpst":   opts.LoggingDpst,
				"panel":  opts.LoggingPanel,
				"policy": opts.LoggingPolicy,
				"api":    opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Bridge new log entries onto the bus for SSE subscribers.
		var logSeq atomic.Uint64
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		metricSet := metrics.NewSet()

		// Assemble the hardware access layer: real MMIO + DRM, or the
		// simulated device for development hosts.
		var (
			regIO   dpst.RegisterIO
			vblank  display.VBlankWaiter
			timing  display.TimingSource
			irq     dpst.IRQSource
			mmio    *dpst.MMIO
			drm     *display.DRMVBlank
			simDev  *dpst.SimDevice
			hwOK    = true
			regsErr error
		)

		platform := dpst.Platform(opts.Platform)

		if opts.Simulate {
			regs, err := dpst.ResolveRegisters(platform)
			if err != nil {
				logger.Error("Cannot simulate unsupported platform", "platform", opts.Platform, "error", err)
				os.Exit(1)
			}
			simDev = dpst.NewSimDevice(regs)
			regIO = simDev
			vblank = simDev
			timing = display.FixedTiming{T: display.Timing{Width: 1920, Height: 1080, RefreshHz: opts.RefreshHz}}
			irq = &dpst.TickerIRQ{Interval: time.Second}
			logger.Info("Running against simulated device", "platform", opts.Platform)
		} else {
			mmio, regsErr = dpst.OpenMMIO(opts.MMIOResource, opts.MMIOSize)
			if regsErr != nil {
				logger.Error("Failed to map register BAR", "resource", opts.MMIOResource, "error", regsErr)
				hwOK = false
			} else {
				regIO = mmio
			}

			drm, regsErr = display.OpenDRMVBlank(opts.DRMNode)
			if regsErr != nil {
				logger.Warn("DRM vblank unavailable, falling back to frame-period sleeps",
					"node", opts.DRMNode, "error", regsErr)
				vblank = display.NewTickerVBlank(opts.RefreshHz)
			} else {
				vblank = drm
			}

			timing = display.NewDRMTiming(opts.RefreshHz)

			if opts.UIODevice != "" {
				uio, err := dpst.OpenUIOIRQ(opts.UIODevice)
				if err != nil {
					logger.Warn("UIO interrupt source unavailable", "node", opts.UIODevice, "error", err)
				} else {
					irq = uio
				}
			}
		}

		if !hwOK {
			logger.Error("No register access available; pass --simulate for development")
			os.Exit(1)
		}

		backlight := panel.New(logging.GetLogger("panel"))

		controller, err := dpst.New(dpst.Options{
			Platform:  platform,
			IO:        regIO,
			VBlank:    vblank,
			Backlight: backlight,
			Timing:    timing,
			Bus:       eventBus,
			Metrics:   metricSet,
			Logger:    logging.GetLogger("dpst"),
		})
		if err != nil {
			// The controller still serves status and uniform refusals.
			logger.Warn("Platform not supported, subsystem inert", "platform", opts.Platform, "error", err)
		}

		enforcer := policy.NewEnforcer(opts.PolicyFile, controller, eventBus)

		bootWriter := bootcomm.NewWriter()
		var unsubBoot func()
		if bootWriter.Available() {
			unsubBoot = bootWriter.Subscribe(eventBus, opts.ResumeDevice)
		} else {
			logger.Info("efivarfs not mounted, boot loader communication disabled")
		}

		updateService, err := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepository,
			Prerelease: opts.UpdatePrerelease,
		})
		if err != nil {
			logger.Warn("Update service unavailable", "error", err)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Controller:        controller,
			EventBus:          eventBus,
			UpdateService:     updateService,
			PrometheusHandler: metricSet.Handler(),
		})

		irqCtx, stopIRQ := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if startErr := enforcer.Start(); startErr != nil {
				logger.Warn("Power policy watcher not started", "file", opts.PolicyFile, "error", startErr)
			}

			if irq != nil {
				go func() {
					for {
						if waitErr := irq.Wait(irqCtx); waitErr != nil {
							if irqCtx.Err() != nil {
								return
							}
							logger.Warn("Interrupt wait failed", "error", waitErr)
							return
						}
						controller.HandleInterrupt()
					}
				}()
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			stopIRQ()
			if irq != nil {
				irq.Close()
			}
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := enforcer.Stop(); stopErr != nil {
				logger.Error("Error stopping policy watcher", "error", stopErr)
			}
			if unsubBoot != nil {
				unsubBoot()
			}

			// Leave the panel at its raw backlight level.
			if _, disErr := controller.Dispatch(context.Background(),
				dpst.Command{Kind: dpst.CmdDisable}); disErr != nil &&
				!errors.Is(disErr, dpst.ErrUnsupported) {
				logger.Warn("Failed to disable on shutdown", "error", disErr)
			}

			if mmio != nil {
				mmio.Close()
			}
			if drm != nil {
				drm.Close()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateSelftestCmd())
	cli.Root().AddCommand(cmd.CreatePlatformsCmd())

	cli.Run()
}
