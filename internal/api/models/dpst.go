package models

// DPST status models
type DPSTStatusData struct {
	Platform      string `json:"platform" example:"haswell" doc:"Display platform the register map was resolved for"`
	Mode          string `json:"mode" example:"enabled" doc:"Arbiter mode: disabled, enabled, suppressed, or vetoed"`
	Factor        uint32 `json:"factor" example:"10000" doc:"Current backlight factor, 10000 = 100.00%"`
	SnapshotValid bool   `json:"snapshot_valid" example:"false" doc:"Whether a luma snapshot is held under kernel veto"`
	Listener      string `json:"listener,omitempty" example:"dpst-agent" doc:"Registered notification listener, if any"`
	Supported     bool   `json:"supported" example:"true" doc:"Whether the device advertises DPST"`
}

type DPSTStatusResponse struct {
	Body DPSTStatusData
}

// Initialize models
type InitializeRequest struct {
	Body struct {
		Listener       string `json:"listener" minLength:"1" example:"dpst-agent" doc:"Identity of the agent to notify on histogram interrupts"`
		Tag            int    `json:"tag" example:"44" doc:"Opaque tag echoed back in histogram-ready events"`
		GuardBandDelay uint32 `json:"guard_band_delay" maximum:"255" example:"4" doc:"Guard band interrupt delay in frames"`
	}
}

type InitializeData struct {
	ThresholdGuardBand uint32 `json:"threshold_guard_band" example:"62208" doc:"Computed guard band threshold"`
	ImageResolution    uint32 `json:"image_resolution" example:"2073600" doc:"Panel pixel count used for the threshold"`
}

type InitializeResponse struct {
	Body InitializeData
}

// Histogram models
type HistogramData struct {
	Bins []uint32 `json:"bins" doc:"Histogram bin counts in ascending luma order"`
}

type HistogramResponse struct {
	Body HistogramData
}

// Luma models
type LumaRequest struct {
	Body struct {
		Enhancement []uint32 `json:"enhancement" minItems:"33" maxItems:"33" doc:"Image enhancement table, 33 entries, 0-10000 each"`
		Factor      uint32   `json:"factor" maximum:"10000" example:"8000" doc:"Backlight factor, 10000 = 100.00%"`
	}
}

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Body struct {
		Message string `json:"message" example:"ok" doc:"Operation result"`
	}
}
