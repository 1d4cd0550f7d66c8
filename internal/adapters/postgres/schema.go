package postgres

import (
	"context"
	"fmt"

	"github.com/hookpay/webhook-service/internal/domain/ports"
)

// Timestamps are TIMESTAMP WITHOUT TIME ZONE: all values are naive UTC and
// normalized before insert.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		provider_customer_id TEXT UNIQUE,
		email TEXT NOT NULL UNIQUE,
		status TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc')
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL REFERENCES customers(id),
		plan_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		current_period_end TIMESTAMP NOT NULL,
		cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
		past_due_since TIMESTAMP,
		canceled_at TIMESTAMP,
		expired_at TIMESTAMP,
		provider_subscription_id TEXT NOT NULL UNIQUE,
		access_revoked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
		updated_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc')
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL REFERENCES customers(id),
		subscription_id BIGINT NOT NULL REFERENCES subscriptions(id),
		status TEXT NOT NULL,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		provider_payment_id TEXT NOT NULL,
		provider_invoice_id TEXT NOT NULL,
		processed_at TIMESTAMP,
		provider TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_subscription ON payments(subscription_id)`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id BIGSERIAL PRIMARY KEY,
		provider TEXT NOT NULL,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload_raw BYTEA NOT NULL,
		signature TEXT NOT NULL,
		signature_timestamp BIGINT NOT NULL,
		received_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
		processed_at TIMESTAMP,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		next_retry_at TIMESTAMP,
		needs_attention BOOLEAN NOT NULL DEFAULT FALSE,
		processing_status TEXT NOT NULL DEFAULT 'received',
		error_message TEXT,
		CONSTRAINT uq_webhook_provider_event UNIQUE (provider, event_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_events_event_id ON webhook_events(event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_events_retry
		ON webhook_events(processing_status, needs_attention, next_retry_at)`,
}

// Migrate applies the schema idempotently
func Migrate(ctx context.Context, db ports.DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
