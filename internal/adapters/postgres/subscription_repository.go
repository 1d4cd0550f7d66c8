package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/domain/ports"
)

// SubscriptionRepository implements ports.SubscriptionRepository on PostgreSQL
type SubscriptionRepository struct{}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{}
}

// Create inserts a subscription and backfills the generated id and timestamps
func (r *SubscriptionRepository) Create(ctx context.Context, db ports.DBTX, subscription *models.Subscription) error {
	err := db.QueryRow(ctx, `
		INSERT INTO subscriptions (
			customer_id, plan_id, status, current_period_end, cancel_at_period_end,
			past_due_since, canceled_at, expired_at, provider_subscription_id,
			access_revoked, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			(now() AT TIME ZONE 'utc'), (now() AT TIME ZONE 'utc'))
		RETURNING id, created_at, updated_at
	`,
		subscription.CustomerID,
		subscription.PlanID,
		string(subscription.Status),
		subscription.CurrentPeriodEnd.UTC(),
		subscription.CancelAtPeriodEnd,
		toNullableTimestamp(subscription.PastDueSince),
		toNullableTimestamp(subscription.CanceledAt),
		toNullableTimestamp(subscription.ExpiredAt),
		subscription.ProviderSubscriptionID,
		subscription.AccessRevoked,
	).Scan(&subscription.ID, &subscription.CreatedAt, &subscription.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by internal id
func (r *SubscriptionRepository) GetByID(ctx context.Context, db ports.DBTX, id int64) (*models.Subscription, error) {
	return scanSubscription(db.QueryRow(ctx, subscriptionSelect+` WHERE id = $1`, id))
}

// GetByProviderSubscriptionID retrieves a subscription by its provider-facing id
func (r *SubscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, db ports.DBTX, providerSubscriptionID string) (*models.Subscription, error) {
	return scanSubscription(db.QueryRow(ctx, subscriptionSelect+` WHERE provider_subscription_id = $1`, providerSubscriptionID))
}

// Update persists mutable subscription fields. The customer link and
// provider id are immutable and deliberately not part of the statement.
func (r *SubscriptionRepository) Update(ctx context.Context, db ports.DBTX, subscription *models.Subscription) error {
	tag, err := db.Exec(ctx, `
		UPDATE subscriptions SET
			plan_id = $2,
			status = $3,
			current_period_end = $4,
			cancel_at_period_end = $5,
			past_due_since = $6,
			canceled_at = $7,
			expired_at = $8,
			access_revoked = $9,
			updated_at = $10
		WHERE id = $1
	`,
		subscription.ID,
		subscription.PlanID,
		string(subscription.Status),
		subscription.CurrentPeriodEnd.UTC(),
		subscription.CancelAtPeriodEnd,
		toNullableTimestamp(subscription.PastDueSince),
		toNullableTimestamp(subscription.CanceledAt),
		toNullableTimestamp(subscription.ExpiredAt),
		subscription.AccessRevoked,
		subscription.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// ListPastDue returns subscriptions in past_due, oldest first
func (r *SubscriptionRepository) ListPastDue(ctx context.Context, db ports.DBTX) ([]*models.Subscription, error) {
	rows, err := db.Query(ctx, subscriptionSelect+` WHERE status = $1 ORDER BY id`, string(models.SubStatusPastDue))
	if err != nil {
		return nil, fmt.Errorf("list past due subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

// ListActiveExpiredBy returns active subscriptions whose period ended at or
// before the cutoff, oldest first
func (r *SubscriptionRepository) ListActiveExpiredBy(ctx context.Context, db ports.DBTX, cutoff time.Time) ([]*models.Subscription, error) {
	rows, err := db.Query(ctx,
		subscriptionSelect+` WHERE status = $1 AND current_period_end <= $2 ORDER BY id`,
		string(models.SubStatusActive), cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("list expired subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

const subscriptionSelect = `
	SELECT id, customer_id, plan_id, status, current_period_end, cancel_at_period_end,
		past_due_since, canceled_at, expired_at, provider_subscription_id,
		access_revoked, created_at, updated_at
	FROM subscriptions`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var (
		sub          models.Subscription
		status       string
		pastDueSince, canceledAt, expiredAt *time.Time
	)
	err := row.Scan(
		&sub.ID, &sub.CustomerID, &sub.PlanID, &status, &sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd, &pastDueSince, &canceledAt, &expiredAt,
		&sub.ProviderSubscriptionID, &sub.AccessRevoked, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Status = models.SubscriptionStatus(status)
	sub.PastDueSince = pastDueSince
	sub.CanceledAt = canceledAt
	sub.ExpiredAt = expiredAt
	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]*models.Subscription, error) {
	defer rows.Close()
	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}
