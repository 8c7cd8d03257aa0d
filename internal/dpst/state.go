package dpst

// Mode is the combined enable state of the feature. Two authorities feed
// it: the agent's enable request and the kernel policy veto. Hardware only
// runs in ModeEnabled, so the invariant "hardware on implies user-enabled
// and not kernel-vetoed" holds by construction rather than by flag checks.
type Mode uint8

const (
	// ModeDisabled: agent has not enabled the feature, no veto.
	ModeDisabled Mode = iota
	// ModeEnabled: agent enabled, no veto, histogram logic running.
	ModeEnabled
	// ModeSuppressed: agent enabled but kernel policy vetoed; hardware
	// off, the veto is invisible to the agent.
	ModeSuppressed
	// ModeVetoed: agent disabled while the kernel veto holds. Clearing
	// the veto from here must stay inert.
	ModeVetoed
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeEnabled:
		return "enabled"
	case ModeSuppressed:
		return "suppressed"
	case ModeVetoed:
		return "vetoed"
	default:
		return "unknown"
	}
}

// hardwareActive reports whether the histogram logic runs in this mode.
func (m Mode) hardwareActive() bool { return m == ModeEnabled }

// userEnabled reports whether the agent currently owns the feature.
func (m Mode) userEnabled() bool { return m == ModeEnabled || m == ModeSuppressed }

// kernelDisabled reports whether the kernel veto holds.
func (m Mode) kernelDisabled() bool { return m == ModeSuppressed || m == ModeVetoed }

// hwAction is what a transition requires of the hardware. Transitions that
// do not change the derived hardware state return actNone, which makes
// re-asserting an already-held value a hardware no-op.
type hwAction uint8

const (
	actNone          hwAction = iota
	actEnable                 // run the hardware-enable sequence
	actDisable                // run the hardware-disable sequence
	actSaveDisable            // snapshot luma, then disable (kernel veto)
	actEnableRestore          // enable, then restore the luma snapshot
)

// arbiter is the pure enable/disable state machine. It never touches
// hardware; it tells the controller what to do.
type arbiter struct {
	mode Mode
}

// setUserEnable applies the agent's request and returns the required
// hardware action.
func (a *arbiter) setUserEnable(enable bool) hwAction {
	switch {
	case enable && a.mode == ModeDisabled:
		a.mode = ModeEnabled
		return actEnable
	case enable && a.mode == ModeVetoed:
		// Enable request noted; hardware stays off until the veto clears.
		a.mode = ModeSuppressed
		return actNone
	case !enable && a.mode == ModeEnabled:
		a.mode = ModeDisabled
		return actDisable
	case !enable && a.mode == ModeSuppressed:
		a.mode = ModeVetoed
		return actNone
	default:
		return actNone
	}
}

// setKernelDisable applies the kernel policy veto and returns the required
// hardware action. Vetoing never clears the agent's enable request.
func (a *arbiter) setKernelDisable(disable bool) hwAction {
	switch {
	case disable && a.mode == ModeEnabled:
		a.mode = ModeSuppressed
		return actSaveDisable
	case disable && a.mode == ModeDisabled:
		a.mode = ModeVetoed
		return actNone
	case !disable && a.mode == ModeSuppressed:
		a.mode = ModeEnabled
		return actEnableRestore
	case !disable && a.mode == ModeVetoed:
		a.mode = ModeDisabled
		return actNone
	default:
		return actNone
	}
}
