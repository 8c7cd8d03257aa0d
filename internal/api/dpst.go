package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dpstd/internal/api/models"
	"github.com/smazurov/dpstd/internal/dpst"
)

// registerDPSTRoutes registers the display power savings control surface.
func (s *Server) registerDPSTRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-dpst-status",
		Method:      http.MethodGet,
		Path:        "/api/dpst/status",
		Summary:     "DPST Status",
		Description: "Get the current DPST mode, backlight factor, and registered listener",
		Tags:        []string{"dpst"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.DPSTStatusResponse, error) {
		st := s.controller.CurrentStatus()
		return &models.DPSTStatusResponse{
			Body: models.DPSTStatusData{
				Platform:      string(st.Platform),
				Mode:          st.Mode,
				Factor:        st.Factor,
				SnapshotValid: st.SnapshotValid,
				Listener:      st.Listener,
				Supported:     s.controller.Supported(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "enable-dpst",
		Method:      http.MethodPost,
		Path:        "/api/dpst/enable",
		Summary:     "Enable DPST",
		Description: "Enable display power savings. A standing kernel veto defers hardware activation until the veto clears.",
		Tags:        []string{"dpst"},
		Errors:      []int{401, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
		if _, err := s.controller.Dispatch(ctx, dpst.Command{Kind: dpst.CmdEnable}); err != nil {
			return nil, mapDPSTError(err)
		}
		return message("DPST enabled"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "disable-dpst",
		Method:      http.MethodPost,
		Path:        "/api/dpst/disable",
		Summary:     "Disable DPST",
		Description: "Disable display power savings and restore the raw backlight level.",
		Tags:        []string{"dpst"},
		Errors:      []int{401, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
		if _, err := s.controller.Dispatch(ctx, dpst.Command{Kind: dpst.CmdDisable}); err != nil {
			return nil, mapDPSTError(err)
		}
		return message("DPST disabled"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "initialize-dpst",
		Method:      http.MethodPost,
		Path:        "/api/dpst/initialize",
		Summary:     "Initialize DPST",
		Description: "Register the histogram listener, program the guard band, and enable the feature.",
		Tags:        []string{"dpst"},
		Errors:      []int{401, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.InitializeRequest) (*models.InitializeResponse, error) {
		res, err := s.controller.Dispatch(ctx, dpst.Command{
			Kind: dpst.CmdInitialize,
			Init: &dpst.InitParams{
				Listener:       input.Body.Listener,
				Tag:            input.Body.Tag,
				GuardBandDelay: input.Body.GuardBandDelay,
			},
		})
		if err != nil {
			return nil, mapDPSTError(err)
		}
		return &models.InitializeResponse{
			Body: models.InitializeData{
				ThresholdGuardBand: res.ThresholdGuardBand,
				ImageResolution:    res.ImageResolution,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-dpst-histogram",
		Method:      http.MethodGet,
		Path:        "/api/dpst/histogram",
		Summary:     "Read Histogram",
		Description: "Read the luma histogram bins. Requires DPST to be enabled by the agent or active on the hardware.",
		Tags:        []string{"dpst"},
		Errors:      []int{401, 422, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.HistogramResponse, error) {
		res, err := s.controller.Dispatch(ctx, dpst.Command{Kind: dpst.CmdGetHistogram})
		if err != nil {
			return nil, mapDPSTError(err)
		}
		return &models.HistogramResponse{
			Body: models.HistogramData{Bins: res.Bins},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-dpst-luma",
		Method:      http.MethodPost,
		Path:        "/api/dpst/luma",
		Summary:     "Apply Luma Adjustment",
		Description: "Program the image enhancement table and the backlight factor. Under a kernel veto the factor is snapshotted instead of applied.",
		Tags:        []string{"dpst"},
		Errors:      []int{401, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.LumaRequest) (*models.MessageResponse, error) {
		if _, err := s.controller.Dispatch(ctx, dpst.Command{
			Kind: dpst.CmdApplyLuma,
			Luma: &dpst.LumaParams{
				Enhancement: input.Body.Enhancement,
				Factor:      input.Body.Factor,
			},
		}); err != nil {
			return nil, mapDPSTError(err)
		}
		return message("luma adjustment applied"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "ack-dpst-interrupt",
		Method:      http.MethodPost,
		Path:        "/api/dpst/ack",
		Summary:     "Acknowledge Interrupt",
		Description: "Clear the pending histogram interrupt status after processing bin data.",
		Tags:        []string{"dpst"},
		Errors:      []int{401, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
		if _, err := s.controller.Dispatch(ctx, dpst.Command{Kind: dpst.CmdAckInterrupt}); err != nil {
			return nil, mapDPSTError(err)
		}
		return message("interrupt acknowledged"), nil
	})
}

func message(msg string) *models.MessageResponse {
	r := &models.MessageResponse{}
	r.Body.Message = msg
	return r
}

// mapDPSTError converts controller errors to Huma HTTP errors.
func mapDPSTError(err error) error {
	switch {
	case errors.Is(err, dpst.ErrUnsupported):
		return huma.Error422UnprocessableEntity("DPST is not supported on this device", err)
	case errors.Is(err, dpst.ErrInvalidRequest):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, dpst.ErrBusyTimeout):
		return huma.Error504GatewayTimeout("histogram engine stayed busy past the retry ceiling", err)
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
