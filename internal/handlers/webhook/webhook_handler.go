// Package webhook exposes the provider-facing ingestion endpoint and the
// event inspection endpoints.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/handlers/httperr"
	"github.com/hookpay/webhook-service/internal/services/gatekeeper"
	webhooksvc "github.com/hookpay/webhook-service/internal/services/webhook"
)

// maxBodyBytes bounds webhook request bodies. Providers send small JSON
// documents; anything larger is abuse.
const maxBodyBytes = 1 << 20

// EventResponse is the API view of a webhook event record. Payload is the
// stored raw body re-emitted verbatim.
type EventResponse struct {
	ID                 int64           `json:"id"`
	Provider           string          `json:"provider"`
	EventID            string          `json:"event_id"`
	EventType          string          `json:"event_type"`
	Payload            json.RawMessage `json:"payload"`
	SignatureTimestamp int64           `json:"signature_timestamp"`
	ReceivedAt         time.Time       `json:"received_at"`
	ProcessedAt        *time.Time      `json:"processed_at"`
	ProcessingStatus   string          `json:"processing_status"`
	AttemptCount       int             `json:"attempt_count"`
	NextRetryAt        *time.Time      `json:"next_retry_at"`
	NeedsAttention     bool            `json:"needs_attention"`
	ErrorMessage       *string         `json:"error_message"`
}

// NewEventResponse converts an event model for the API
func NewEventResponse(event *models.WebhookEvent) EventResponse {
	return EventResponse{
		ID:                 event.ID,
		Provider:           event.Provider,
		EventID:            event.EventID,
		EventType:          event.EventType,
		Payload:            json.RawMessage(event.PayloadRaw),
		SignatureTimestamp: event.SignatureTimestamp,
		ReceivedAt:         event.ReceivedAt,
		ProcessedAt:        event.ProcessedAt,
		ProcessingStatus:   string(event.ProcessingStatus),
		AttemptCount:       event.AttemptCount,
		NextRetryAt:        event.NextRetryAt,
		NeedsAttention:     event.NeedsAttention,
		ErrorMessage:       event.ErrorMessage,
	}
}

// Handler serves the webhook ingestion and inspection endpoints
type Handler struct {
	gatekeeper *gatekeeper.Gatekeeper
	processor  *webhooksvc.Processor
	logger     *zap.Logger
}

// NewHandler creates a webhook HTTP handler
func NewHandler(gk *gatekeeper.Gatekeeper, processor *webhooksvc.Processor, logger *zap.Logger) *Handler {
	return &Handler{
		gatekeeper: gk,
		processor:  processor,
		logger:     logger,
	}
}

// Receive handles POST /v1/webhooks/{provider}. The body is read once and
// those exact bytes flow through verification, parsing and storage.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httperr.Write(w, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "unable to read request body"))
		return
	}

	verified, err := h.gatekeeper.Verify(r.Context(), provider, r, body)
	if err != nil {
		h.logger.Warn("webhook rejected",
			zap.String("provider", provider),
			zap.String("code", string(domain.GetErrorCode(err))),
		)
		httperr.Write(w, err)
		return
	}

	envelope, err := webhooksvc.ParseEnvelope(verified.RawBody)
	if err != nil {
		httperr.Write(w, err)
		return
	}

	event, err := h.processor.Process(r.Context(), provider, envelope, verified)
	if err != nil {
		if !domain.IsDomainError(err, domain.ErrorCodeReplayAttack) && !domain.IsInvalidPayloadError(err) {
			h.logger.Error("webhook processing error",
				zap.String("provider", provider),
				zap.String("event_id", envelope.EventID),
				zap.Error(err),
			)
		}
		httperr.Write(w, err)
		return
	}

	httperr.JSON(w, http.StatusOK, NewEventResponse(event))
}

// List handles GET /v1/webhooks
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.processor.ListEvents(r.Context())
	if err != nil {
		h.logger.Error("failed to list webhook events", zap.Error(err))
		httperr.Write(w, err)
		return
	}

	responses := make([]EventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, NewEventResponse(event))
	}
	httperr.JSON(w, http.StatusOK, responses)
}

// Get handles GET /v1/webhooks/{event_id}. The optional provider query
// parameter disambiguates when two providers reused one event id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("event_id")
	provider := r.URL.Query().Get("provider")

	event, err := h.processor.GetEvent(r.Context(), eventID, provider)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, NewEventResponse(event))
}
