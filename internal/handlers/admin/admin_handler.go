// Package admin exposes operator endpoints: forced event reprocessing and
// the JSON counter snapshot.
package admin

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/handlers/httperr"
	webhookapi "github.com/hookpay/webhook-service/internal/handlers/webhook"
	webhooksvc "github.com/hookpay/webhook-service/internal/services/webhook"
	"github.com/hookpay/webhook-service/pkg/observability"
)

// Handler serves the admin endpoints
type Handler struct {
	processor *webhooksvc.Processor
	logger    *zap.Logger
}

// NewHandler creates an admin HTTP handler
func NewHandler(processor *webhooksvc.Processor, logger *zap.Logger) *Handler {
	return &Handler{processor: processor, logger: logger}
}

// Reprocess handles POST /v1/admin/webhooks/{event_id}/reprocess. A handler
// failure during reprocessing still returns 200 with the failed event record;
// only an unknown event id is an error.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("event_id")

	event, err := h.processor.Reprocess(r.Context(), eventID)
	if err != nil {
		if !domain.IsNotFoundError(err) && !domain.IsInvalidPayloadError(err) {
			h.logger.Error("reprocess failed",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		}
		httperr.Write(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, webhookapi.NewEventResponse(event))
}

// Metrics handles GET /v1/admin/metrics
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	httperr.JSON(w, http.StatusOK, observability.Snapshot())
}
