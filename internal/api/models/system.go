package models

// RebootTargetRequest selects the boot entry for the next restart.
type RebootTargetRequest struct {
	Body struct {
		Target string `json:"target" minLength:"1" example:"firmware-setup" doc:"Boot loader entry to boot once"`
	}
}
