package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/domain/ports"
)

// Event types with dedicated handlers. Everything else is recorded and
// ignored.
const (
	EventTypePaymentSucceeded     = "payment.succeeded"
	EventTypeInvoicePaymentFailed = "invoice.payment_failed"
)

const defaultCurrency = "USD"

// paymentEventPayload is the handler-facing payload for both payment event
// types. current_period_end stays raw until parsed: providers send either an
// epoch number or an ISO-8601 string.
type paymentEventPayload struct {
	ProviderCustomerID     string          `json:"provider_customer_id"`
	ProviderSubscriptionID string          `json:"provider_subscription_id"`
	Amount                 int64           `json:"amount"`
	Currency               string          `json:"currency"`
	CurrentPeriodEnd       json.RawMessage `json:"current_period_end"`
	PaymentID              string          `json:"payment_id"`
	InvoiceID              string          `json:"invoice_id"`
}

func parsePaymentPayload(raw json.RawMessage) (*paymentEventPayload, error) {
	var payload paymentEventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInvalidPayload, "invalid payment event payload", err)
	}
	if payload.ProviderCustomerID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "provider_customer_id is required")
	}
	if payload.ProviderSubscriptionID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "provider_subscription_id is required")
	}
	if payload.Currency == "" {
		payload.Currency = defaultCurrency
	}
	return &payload, nil
}

// parsePeriodEnd normalizes current_period_end to naive UTC. Accepted forms:
// unix epoch seconds (number) or ISO-8601 string (zoned or naive, zoned
// values converted to UTC). Absent values and any other JSON type fall back
// to now; only an unparseable string is a payload error.
func parsePeriodEnd(raw json.RawMessage, now time.Time) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return now, nil
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		return time.Unix(int64(epoch), 0).UTC(), nil
	}

	var iso string
	if err := json.Unmarshal(raw, &iso); err == nil {
		if t, err := time.Parse(time.RFC3339, iso); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse("2006-01-02T15:04:05", iso); err == nil {
			return t, nil
		}
		return time.Time{}, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "current_period_end is not a valid timestamp")
	}

	return now, nil
}

// resolveSubscription maps the provider identifiers in a payload to the local
// customer and subscription, enforcing that the subscription belongs to the
// referenced customer.
func (p *Processor) resolveSubscription(ctx context.Context, tx ports.DBTX, payload *paymentEventPayload) (*models.Customer, *models.Subscription, error) {
	customer, err := p.customers.GetByProviderCustomerID(ctx, tx, payload.ProviderCustomerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "provider_customer_id not found")
		}
		return nil, nil, err
	}

	subscription, err := p.subscriptions.GetByProviderSubscriptionID(ctx, tx, payload.ProviderSubscriptionID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "provider_subscription_id not found")
		}
		return nil, nil, err
	}
	if subscription.CustomerID != customer.ID {
		return nil, nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "provider_subscription_id belongs to a different customer_id")
	}
	return customer, subscription, nil
}

// handlePaymentSucceeded activates the subscription for the paid period and
// appends an approved payment. Out-of-order deliveries for an already-later
// period are recorded as ignored rather than regressing the period end.
func (p *Processor) handlePaymentSucceeded(ctx context.Context, tx ports.DBTX, event *models.WebhookEvent, raw json.RawMessage, now time.Time) error {
	payload, err := parsePaymentPayload(raw)
	if err != nil {
		return err
	}
	customer, subscription, err := p.resolveSubscription(ctx, tx, payload)
	if err != nil {
		return err
	}
	periodEnd, err := parsePeriodEnd(payload.CurrentPeriodEnd, now)
	if err != nil {
		return err
	}

	if periodEnd.Before(subscription.CurrentPeriodEnd) {
		event.MarkIgnored("stale event ignored", now)
		return nil
	}

	subscription.MarkActive(periodEnd, now)
	if err := p.subscriptions.Update(ctx, tx, subscription); err != nil {
		return err
	}

	return p.payments.Create(ctx, tx, &models.Payment{
		CustomerID:        customer.ID,
		SubscriptionID:    subscription.ID,
		Status:            models.PaymentStatusApproved,
		Amount:            payload.Amount,
		Currency:          payload.Currency,
		ProviderPaymentID: paymentReference(payload.PaymentID, event.EventID),
		ProviderInvoiceID: payload.InvoiceID,
		ProcessedAt:       &now,
		Provider:          event.Provider,
	})
}

// handleInvoicePaymentFailed moves an active subscription into its dunning
// grace period and appends a refused payment. Subscriptions in any other
// state keep their status; the refused payment is still recorded.
func (p *Processor) handleInvoicePaymentFailed(ctx context.Context, tx ports.DBTX, event *models.WebhookEvent, raw json.RawMessage, now time.Time) error {
	payload, err := parsePaymentPayload(raw)
	if err != nil {
		return err
	}
	customer, subscription, err := p.resolveSubscription(ctx, tx, payload)
	if err != nil {
		return err
	}
	periodEnd, err := parsePeriodEnd(payload.CurrentPeriodEnd, now)
	if err != nil {
		return err
	}

	if periodEnd.Before(subscription.CurrentPeriodEnd) {
		event.MarkIgnored("stale event ignored", now)
		return nil
	}

	// MarkPastDue is a no-op for non-active statuses; the row is still
	// touched so updated_at reflects the delivery.
	subscription.MarkPastDue(now)
	if err := p.subscriptions.Update(ctx, tx, subscription); err != nil {
		return err
	}

	return p.payments.Create(ctx, tx, &models.Payment{
		CustomerID:        customer.ID,
		SubscriptionID:    subscription.ID,
		Status:            models.PaymentStatusRefused,
		Amount:            payload.Amount,
		Currency:          payload.Currency,
		ProviderPaymentID: paymentReference(payload.PaymentID, event.EventID),
		ProviderInvoiceID: payload.InvoiceID,
		ProcessedAt:       &now,
		Provider:          event.Provider,
	})
}

// paymentReference prefers the provider's payment id, falling back to the
// event id so every payment row stays traceable.
func paymentReference(paymentID, eventID string) string {
	if paymentID != "" {
		return paymentID
	}
	return eventID
}
