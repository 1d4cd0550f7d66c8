// Package cron exposes the sweep jobs as HTTP endpoints for an external
// scheduler.
package cron

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/handlers/httperr"
	subsvc "github.com/hookpay/webhook-service/internal/services/subscription"
	webhooksvc "github.com/hookpay/webhook-service/internal/services/webhook"
)

// defaultRetryLimit bounds one retry sweep when the caller does not say
const defaultRetryLimit = 50

// Handler serves the scheduled job endpoints
type Handler struct {
	subscriptions *subsvc.Service
	processor     *webhooksvc.Processor
	logger        *zap.Logger
}

// NewHandler creates a cron job HTTP handler
func NewHandler(subscriptions *subsvc.Service, processor *webhooksvc.Processor, logger *zap.Logger) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		processor:     processor,
		logger:        logger,
	}
}

// EnforceGrace handles POST /v1/jobs/enforce-grace
func (h *Handler) EnforceGrace(w http.ResponseWriter, r *http.Request) {
	summary, err := h.subscriptions.EnforceGracePeriod(r.Context())
	if err != nil {
		h.logger.Error("grace period sweep failed", zap.Error(err))
		httperr.Write(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, summary)
}

// ExpireSubscriptions handles POST /v1/jobs/expire-subscriptions
func (h *Handler) ExpireSubscriptions(w http.ResponseWriter, r *http.Request) {
	summary, err := h.subscriptions.ExpireSubscriptions(r.Context())
	if err != nil {
		h.logger.Error("expiry sweep failed", zap.Error(err))
		httperr.Write(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, summary)
}

// RetryFailedWebhooks handles POST /v1/jobs/retry-failed-webhooks. The
// optional limit query parameter caps the batch, defaulting to 50.
func (h *Handler) RetryFailedWebhooks(w http.ResponseWriter, r *http.Request) {
	limit := defaultRetryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httperr.Write(w, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	summary, err := h.processor.RetryFailed(r.Context(), limit)
	if err != nil {
		h.logger.Error("retry sweep failed", zap.Error(err))
		httperr.Write(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, summary)
}
