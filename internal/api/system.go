package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dpstd/internal/api/models"
	"github.com/smazurov/dpstd/internal/events"
)

// registerSystemRoutes registers boot-loader communication endpoints.
// The requests are published on the bus; the bootcomm subscriber does
// the efivarfs writes.
func (s *Server) registerSystemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "set-reboot-target",
		Method:      http.MethodPost,
		Path:        "/api/system/reboot-target",
		Summary:     "Set Reboot Target",
		Description: "Request a one-shot boot entry for the next restart",
		Tags:        []string{"system"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.RebootTargetRequest) (*models.MessageResponse, error) {
		s.eventBus.Publish(events.RebootRequestedEvent{
			Target:    input.Body.Target,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return message("reboot target requested"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "hibernate-prepare",
		Method:      http.MethodPost,
		Path:        "/api/system/hibernate-prepare",
		Summary:     "Prepare Hibernate",
		Description: "Signal that the system is about to hibernate so the boot loader resumes from swap",
		Tags:        []string{"system"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
		s.eventBus.Publish(events.HibernatePrepareEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return message("hibernate prepare signalled"), nil
	})
}
