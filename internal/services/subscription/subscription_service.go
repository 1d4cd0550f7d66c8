// Package subscription owns the customer and subscription lifecycle outside
// of webhook dispatch: creation, cancellation scheduling and the periodic
// sweep jobs.
package subscription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/domain/ports"
)

// gracePeriod is how long a subscription may sit in past_due before the
// sweep cancels it.
const gracePeriod = 24 * time.Hour

// CreateInput describes a subscription creation request. Exactly one of
// CustomerID and CustomerEmail selects the customer; a new customer is
// created when the email is unknown.
type CreateInput struct {
	CustomerID    int64  `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	PlanID        int64  `json:"plan_id"`
}

// CreateResult pairs the new subscription with the provider-facing
// identifiers a caller needs to simulate webhooks against it.
type CreateResult struct {
	Subscription       *models.Subscription
	CustomerID         int64
	ProviderCustomerID string
}

// GraceSummary reports one grace-period enforcement sweep
type GraceSummary struct {
	CheckedAt               time.Time `json:"checked_at"`
	CanceledCount           int       `json:"canceled_count"`
	CanceledSubscriptionIDs []int64   `json:"canceled_subscription_ids"`
}

// ExpireSummary reports one period-end expiry sweep
type ExpireSummary struct {
	CheckedAt   time.Time `json:"checked_at"`
	ExpiredIDs  []int64   `json:"expired_ids"`
	CanceledIDs []int64   `json:"canceled_ids"`
}

// Service implements the subscription lifecycle operations
type Service struct {
	db            ports.DBPort
	customers     ports.CustomerRepository
	subscriptions ports.SubscriptionRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates a subscription service
func NewService(
	db ports.DBPort,
	customers ports.CustomerRepository,
	subscriptions ports.SubscriptionRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:            db,
		customers:     customers,
		subscriptions: subscriptions,
		logger:        logger,
		now:           time.Now,
	}
}

// Create makes a subscription in pending_activation with the period end at
// creation time. Activation and the real period end arrive later by webhook.
func (s *Service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.CustomerID == 0 && input.CustomerEmail == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "customer_id or customer_email is required")
	}

	var result CreateResult
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
		customer, err := s.resolveCustomer(ctx, tx, input)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		sub := &models.Subscription{
			CustomerID:             customer.ID,
			PlanID:                 input.PlanID,
			Status:                 models.SubStatusPendingActivation,
			CurrentPeriodEnd:       now,
			ProviderSubscriptionID: "sub_" + shortID(),
		}
		if err := s.subscriptions.Create(ctx, tx, sub); err != nil {
			return err
		}

		result = CreateResult{
			Subscription:       sub,
			CustomerID:         customer.ID,
			ProviderCustomerID: customer.ProviderCustomerID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription created",
		zap.Int64("subscription_id", result.Subscription.ID),
		zap.Int64("customer_id", result.CustomerID),
		zap.String("provider_subscription_id", result.Subscription.ProviderSubscriptionID),
	)
	return &result, nil
}

// resolveCustomer finds the customer by id or email, creating one for an
// unknown email and ensuring a provider customer id is assigned either way.
func (s *Service) resolveCustomer(ctx context.Context, tx ports.DBTX, input CreateInput) (*models.Customer, error) {
	if input.CustomerID != 0 {
		customer, err := s.customers.GetByID(ctx, tx, input.CustomerID)
		if err != nil {
			return nil, err
		}
		return s.ensureProviderID(ctx, tx, customer)
	}

	customer, err := s.customers.GetByEmail(ctx, tx, input.CustomerEmail)
	if err == nil {
		return s.ensureProviderID(ctx, tx, customer)
	}
	if !domain.IsNotFoundError(err) {
		return nil, err
	}

	customer = &models.Customer{
		Email:              input.CustomerEmail,
		Status:             "active",
		ProviderCustomerID: "cus_" + shortID(),
	}
	if err := s.customers.Create(ctx, tx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// ensureProviderID lazily assigns a provider customer id the first time the
// customer is referenced by a subscription.
func (s *Service) ensureProviderID(ctx context.Context, tx ports.DBTX, customer *models.Customer) (*models.Customer, error) {
	if customer.ProviderCustomerID != "" {
		return customer, nil
	}
	customer.ProviderCustomerID = "cus_" + shortID()
	if err := s.customers.SetProviderCustomerID(ctx, tx, customer.ID, customer.ProviderCustomerID); err != nil {
		return nil, err
	}
	return customer, nil
}

// SetCancelAtPeriodEnd schedules or unschedules cancellation at the current
// period boundary. The expiry sweep applies it.
func (s *Service) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID int64, cancel bool) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
		var err error
		sub, err = s.subscriptions.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		sub.CancelAtPeriodEnd = cancel
		sub.UpdatedAt = s.now().UTC()
		return s.subscriptions.Update(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// EnforceGracePeriod cancels subscriptions that have sat in past_due for the
// full grace period. Rows without a past_due_since marker are skipped.
func (s *Service) EnforceGracePeriod(ctx context.Context) (*GraceSummary, error) {
	now := s.now().UTC()
	cutoff := now.Add(-gracePeriod)

	summary := &GraceSummary{
		CheckedAt:               now,
		CanceledSubscriptionIDs: []int64{},
	}
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
		pastDue, err := s.subscriptions.ListPastDue(ctx, tx)
		if err != nil {
			return err
		}
		for _, sub := range pastDue {
			if sub.PastDueSince == nil || sub.PastDueSince.After(cutoff) {
				continue
			}
			sub.MarkCanceled(now)
			if err := s.subscriptions.Update(ctx, tx, sub); err != nil {
				return err
			}
			summary.CanceledSubscriptionIDs = append(summary.CanceledSubscriptionIDs, sub.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary.CanceledCount = len(summary.CanceledSubscriptionIDs)
	s.logger.Info("grace period sweep",
		zap.Int("canceled", summary.CanceledCount),
	)
	return summary, nil
}

// ExpireSubscriptions closes active subscriptions whose paid period has
// ended: scheduled cancellations become canceled, the rest become expired.
func (s *Service) ExpireSubscriptions(ctx context.Context) (*ExpireSummary, error) {
	now := s.now().UTC()

	summary := &ExpireSummary{
		CheckedAt:   now,
		ExpiredIDs:  []int64{},
		CanceledIDs: []int64{},
	}
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
		lapsed, err := s.subscriptions.ListActiveExpiredBy(ctx, tx, now)
		if err != nil {
			return err
		}
		for _, sub := range lapsed {
			if sub.CancelAtPeriodEnd {
				sub.MarkCanceled(now)
				summary.CanceledIDs = append(summary.CanceledIDs, sub.ID)
			} else {
				sub.MarkExpired(now)
				summary.ExpiredIDs = append(summary.ExpiredIDs, sub.ID)
			}
			if err := s.subscriptions.Update(ctx, tx, sub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("expiry sweep",
		zap.Int("expired", len(summary.ExpiredIDs)),
		zap.Int("canceled", len(summary.CanceledIDs)),
	)
	return summary, nil
}

// shortID returns 16 hex characters for provider-facing identifiers
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
