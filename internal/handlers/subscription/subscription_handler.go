// Package subscription exposes the subscription management endpoints.
package subscription

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/handlers/httperr"
	subsvc "github.com/hookpay/webhook-service/internal/services/subscription"
)

// SubscriptionResponse is the API view of a subscription
type SubscriptionResponse struct {
	ID                     int64      `json:"id"`
	CustomerID             int64      `json:"customer_id"`
	PlanID                 int64      `json:"plan_id"`
	Status                 string     `json:"status"`
	CurrentPeriodEnd       time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
	PastDueSince           *time.Time `json:"past_due_since"`
	CanceledAt             *time.Time `json:"canceled_at"`
	ExpiredAt              *time.Time `json:"expired_at"`
	ProviderSubscriptionID string     `json:"provider_subscription_id"`
	AccessRevoked          bool       `json:"access_revoked"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// CreateResponse augments the subscription with the provider customer id so
// callers can construct signed webhook simulations against it.
type CreateResponse struct {
	SubscriptionResponse
	ProviderCustomerID string `json:"provider_customer_id"`
}

func newSubscriptionResponse(sub *models.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                     sub.ID,
		CustomerID:             sub.CustomerID,
		PlanID:                 sub.PlanID,
		Status:                 string(sub.Status),
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		PastDueSince:           sub.PastDueSince,
		CanceledAt:             sub.CanceledAt,
		ExpiredAt:              sub.ExpiredAt,
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		AccessRevoked:          sub.AccessRevoked,
		CreatedAt:              sub.CreatedAt,
		UpdatedAt:              sub.UpdatedAt,
	}
}

// Handler serves the subscription endpoints
type Handler struct {
	service *subsvc.Service
	logger  *zap.Logger
}

// NewHandler creates a subscription HTTP handler
func NewHandler(service *subsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Create handles POST /v1/subscriptions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input subsvc.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httperr.Write(w, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "invalid request body"))
		return
	}

	result, err := h.service.Create(r.Context(), input)
	if err != nil {
		if !domain.IsNotFoundError(err) && !domain.IsInvalidPayloadError(err) {
			h.logger.Error("failed to create subscription", zap.Error(err))
		}
		httperr.Write(w, err)
		return
	}

	httperr.JSON(w, http.StatusOK, CreateResponse{
		SubscriptionResponse: newSubscriptionResponse(result.Subscription),
		ProviderCustomerID:   result.ProviderCustomerID,
	})
}

// cancelRequest is the optional body for the cancellation toggle. Absent or
// empty bodies mean cancel=true.
type cancelRequest struct {
	CancelAtPeriodEnd *bool `json:"cancel_at_period_end"`
}

// CancelAtPeriodEnd handles POST /v1/subscriptions/{id}/cancel-at-period-end
func (h *Handler) CancelAtPeriodEnd(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httperr.Write(w, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "invalid subscription id"))
		return
	}

	cancel := true
	var req cancelRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr == nil && req.CancelAtPeriodEnd != nil {
		cancel = *req.CancelAtPeriodEnd
	}

	sub, err := h.service.SetCancelAtPeriodEnd(r.Context(), id, cancel)
	if err != nil {
		if !domain.IsNotFoundError(err) {
			h.logger.Error("failed to set cancel_at_period_end",
				zap.Int64("subscription_id", id),
				zap.Error(err),
			)
		}
		httperr.Write(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, newSubscriptionResponse(sub))
}
