package ports

import (
	"context"
	"time"

	"github.com/hookpay/webhook-service/internal/domain/models"
)

// CustomerRepository persists customers
type CustomerRepository interface {
	Create(ctx context.Context, db DBTX, customer *models.Customer) error
	GetByID(ctx context.Context, db DBTX, id int64) (*models.Customer, error)
	GetByEmail(ctx context.Context, db DBTX, email string) (*models.Customer, error)
	GetByProviderCustomerID(ctx context.Context, db DBTX, providerCustomerID string) (*models.Customer, error)
	SetProviderCustomerID(ctx context.Context, db DBTX, id int64, providerCustomerID string) error
}

// SubscriptionRepository persists subscriptions
type SubscriptionRepository interface {
	Create(ctx context.Context, db DBTX, subscription *models.Subscription) error
	GetByID(ctx context.Context, db DBTX, id int64) (*models.Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, db DBTX, providerSubscriptionID string) (*models.Subscription, error)
	Update(ctx context.Context, db DBTX, subscription *models.Subscription) error

	// ListPastDue returns subscriptions in past_due, oldest first
	ListPastDue(ctx context.Context, db DBTX) ([]*models.Subscription, error)

	// ListActiveExpiredBy returns active subscriptions whose current period
	// ended at or before the cutoff, oldest first
	ListActiveExpiredBy(ctx context.Context, db DBTX, cutoff time.Time) ([]*models.Subscription, error)
}

// PaymentRepository persists payment attempts. Payments are append-only;
// there is deliberately no update operation.
type PaymentRepository interface {
	Create(ctx context.Context, db DBTX, payment *models.Payment) error
	ListBySubscription(ctx context.Context, db DBTX, subscriptionID int64) ([]*models.Payment, error)
}

// WebhookEventRepository persists webhook event records
type WebhookEventRepository interface {
	// Create inserts a new event row. Returns a domain error with code
	// IDEMPOTENCY_CONFLICT when (provider, event_id) already exists.
	Create(ctx context.Context, db DBTX, event *models.WebhookEvent) error

	GetByComposite(ctx context.Context, db DBTX, provider, eventID string) (*models.WebhookEvent, error)

	// GetByEventID fetches by event id alone, optionally filtered by
	// provider. Returns EVENT_NOT_FOUND when absent and
	// WEBHOOK_INVALID_PAYLOAD when multiple providers match and no filter
	// was given.
	GetByEventID(ctx context.Context, db DBTX, eventID, provider string) (*models.WebhookEvent, error)

	Update(ctx context.Context, db DBTX, event *models.WebhookEvent) error

	// ListAllDesc lists events in reverse insertion order
	ListAllDesc(ctx context.Context, db DBTX) ([]*models.WebhookEvent, error)

	// ListRetryCandidates returns failed events eligible for automatic
	// retry, oldest insertion first, up to limit rows
	ListRetryCandidates(ctx context.Context, db DBTX, now time.Time, limit int) ([]*models.WebhookEvent, error)
}
