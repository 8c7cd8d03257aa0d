package policy

import (
	"context"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/dpstd/internal/config"
	"github.com/smazurov/dpstd/internal/dpst"
	"github.com/smazurov/dpstd/internal/events"
	"github.com/smazurov/dpstd/internal/logging"
)

// Profile names accepted in the policy file.
const (
	ProfilePowerSave   = "power-save"
	ProfileBalanced    = "balanced"
	ProfilePerformance = "performance"
)

// Policy is the on-disk power policy. The performance profile vetoes
// display power saving; an explicit dpst-disable overrides the profile
// either way.
type Policy struct {
	Profile     string `toml:"profile"`
	DPSTDisable *bool  `toml:"dpst-disable"`
}

// KernelDisable reports whether this policy vetoes DPST.
func (p Policy) KernelDisable() bool {
	if p.DPSTDisable != nil {
		return *p.DPSTDisable
	}
	return p.Profile == ProfilePerformance
}

// Load reads and parses a policy file.
func Load(path string) (Policy, error) {
	var p Policy
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if p.Profile == "" {
		p.Profile = ProfileBalanced
	}
	return p, nil
}

// Enforcer applies the power policy to a DPST controller. It watches
// the policy file and flips the controller's kernel veto on changes.
type Enforcer struct {
	controller *dpst.Controller
	bus        *events.Bus
	watcher    *config.Watcher[Policy]
	logger     logging.Logger
	path       string
}

// NewEnforcer creates a policy enforcer for the given file. The file
// may not exist yet; Start then skips the initial apply and the watcher
// reports the error.
func NewEnforcer(path string, controller *dpst.Controller, bus *events.Bus) *Enforcer {
	logger := logging.GetLogger("policy")
	e := &Enforcer{
		controller: controller,
		bus:        bus,
		logger:     logger,
		path:       path,
	}
	e.watcher = config.NewConfigWatcher(path, Load, logging.GetLogger("policy"),
		config.WithDebounce[Policy](500*time.Millisecond))
	e.watcher.OnReload(e.apply)
	return e
}

// Start applies the current policy and begins watching for changes.
func (e *Enforcer) Start() error {
	if p, err := Load(e.path); err == nil {
		e.apply(p)
	} else if !os.IsNotExist(err) {
		e.logger.Warn("Failed to load power policy", "path", e.path, "error", err)
	}
	return e.watcher.Start()
}

// Stop stops watching the policy file.
func (e *Enforcer) Stop() error {
	return e.watcher.Stop()
}

func (e *Enforcer) apply(p Policy) {
	veto := p.KernelDisable()
	e.logger.Info("Applying power policy", "profile", p.Profile, "kernel_disable", veto)

	if err := e.controller.SetKernelDisable(context.Background(), veto); err != nil {
		e.logger.Error("Failed to apply power policy", "error", err)
		return
	}

	if e.bus != nil {
		e.bus.Publish(events.PolicyChangedEvent{
			Profile:       p.Profile,
			KernelDisable: veto,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
	}
}
