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

// WebhookEventRepository implements ports.WebhookEventRepository on PostgreSQL
type WebhookEventRepository struct{}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository() *WebhookEventRepository {
	return &WebhookEventRepository{}
}

// Create inserts a new event row. The uq_webhook_provider_event constraint
// guarantees at most one row per (provider, event_id); a violation surfaces
// as IDEMPOTENCY_CONFLICT so concurrent first deliveries collapse.
func (r *WebhookEventRepository) Create(ctx context.Context, db ports.DBTX, event *models.WebhookEvent) error {
	err := db.QueryRow(ctx, `
		INSERT INTO webhook_events (
			provider, event_id, event_type, payload_raw, signature,
			signature_timestamp, received_at, processed_at, attempt_count,
			next_retry_at, needs_attention, processing_status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, (now() AT TIME ZONE 'utc'), $7, $8, $9, $10, $11, $12)
		RETURNING id, received_at
	`,
		event.Provider,
		event.EventID,
		event.EventType,
		event.PayloadRaw,
		event.Signature,
		event.SignatureTimestamp,
		toNullableTimestamp(event.ProcessedAt),
		event.AttemptCount,
		toNullableTimestamp(event.NextRetryAt),
		event.NeedsAttention,
		string(event.ProcessingStatus),
		toNullableText(event.ErrorMessage),
	).Scan(&event.ID, &event.ReceivedAt)
	if isUniqueViolation(err) {
		return domain.ErrEventAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

// GetByComposite retrieves an event by its (provider, event_id) key
func (r *WebhookEventRepository) GetByComposite(ctx context.Context, db ports.DBTX, provider, eventID string) (*models.WebhookEvent, error) {
	return scanWebhookEvent(db.QueryRow(ctx,
		webhookEventSelect+` WHERE provider = $1 AND event_id = $2`, provider, eventID))
}

// GetByEventID retrieves an event by event id alone. A provider filter
// disambiguates ids shared between providers; without one, multiple matches
// are rejected.
func (r *WebhookEventRepository) GetByEventID(ctx context.Context, db ports.DBTX, eventID, provider string) (*models.WebhookEvent, error) {
	query := webhookEventSelect + ` WHERE event_id = $1`
	args := []any{eventID}
	if provider != "" {
		query += ` AND provider = $2`
		args = append(args, provider)
	}
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	events, err := collectWebhookEvents(rows)
	if err != nil {
		return nil, err
	}
	switch len(events) {
	case 0:
		return nil, domain.ErrEventNotFound
	case 1:
		return events[0], nil
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "multiple events found; specify provider")
	}
}

// Update persists the mutable processing fields of an event record
func (r *WebhookEventRepository) Update(ctx context.Context, db ports.DBTX, event *models.WebhookEvent) error {
	tag, err := db.Exec(ctx, `
		UPDATE webhook_events SET
			processed_at = $2,
			attempt_count = $3,
			next_retry_at = $4,
			needs_attention = $5,
			processing_status = $6,
			error_message = $7
		WHERE id = $1
	`,
		event.ID,
		toNullableTimestamp(event.ProcessedAt),
		event.AttemptCount,
		toNullableTimestamp(event.NextRetryAt),
		event.NeedsAttention,
		string(event.ProcessingStatus),
		toNullableText(event.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// ListAllDesc lists events in reverse insertion order
func (r *WebhookEventRepository) ListAllDesc(ctx context.Context, db ports.DBTX) ([]*models.WebhookEvent, error) {
	rows, err := db.Query(ctx, webhookEventSelect+` ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	return collectWebhookEvents(rows)
}

// ListRetryCandidates returns failed events eligible for automatic retry.
// Insertion-id ordering guarantees FIFO retry under contention; rows flagged
// needs_attention wait for an operator instead.
func (r *WebhookEventRepository) ListRetryCandidates(ctx context.Context, db ports.DBTX, now time.Time, limit int) ([]*models.WebhookEvent, error) {
	rows, err := db.Query(ctx, webhookEventSelect+`
		WHERE processing_status = $1
			AND needs_attention = FALSE
			AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY id
		LIMIT $3
	`, string(models.ProcessingStatusFailed), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list retry candidates: %w", err)
	}
	return collectWebhookEvents(rows)
}

const webhookEventSelect = `
	SELECT id, provider, event_id, event_type, payload_raw, signature,
		signature_timestamp, received_at, processed_at, attempt_count,
		next_retry_at, needs_attention, processing_status, error_message
	FROM webhook_events`

func scanWebhookEvent(row pgx.Row) (*models.WebhookEvent, error) {
	var (
		event  models.WebhookEvent
		status string
	)
	err := row.Scan(
		&event.ID, &event.Provider, &event.EventID, &event.EventType,
		&event.PayloadRaw, &event.Signature, &event.SignatureTimestamp,
		&event.ReceivedAt, &event.ProcessedAt, &event.AttemptCount,
		&event.NextRetryAt, &event.NeedsAttention, &status, &event.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan webhook event: %w", err)
	}
	event.ProcessingStatus = models.ProcessingStatus(status)
	return &event, nil
}

func collectWebhookEvents(rows pgx.Rows) ([]*models.WebhookEvent, error) {
	defer rows.Close()
	var events []*models.WebhookEvent
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook events: %w", err)
	}
	return events, nil
}
