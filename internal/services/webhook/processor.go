// Package webhook applies verified provider notifications to subscription
// and payment state: idempotent event recording, typed dispatch, failure
// classification with backoff retry.
package webhook

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/domain/ports"
	"github.com/hookpay/webhook-service/internal/services/gatekeeper"
	"github.com/hookpay/webhook-service/pkg/observability"
)

// EventEnvelope is the top level of a webhook body. Unrecognized top-level
// fields are permitted and ignored.
type EventEnvelope struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	PayloadJSON json.RawMessage `json:"payload_json"`
}

// ParseEnvelope decodes and validates the webhook body
func ParseEnvelope(raw []byte) (*EventEnvelope, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInvalidPayload, "invalid webhook body", err)
	}
	if envelope.EventID == "" || envelope.EventType == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "event_id and event_type are required")
	}
	if !isJSONObject(envelope.PayloadJSON) {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "payload_json must be an object")
	}
	return &envelope, nil
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// RetrySummary reports the outcome of one retry sweep
type RetrySummary struct {
	Checked      int     `json:"checked"`
	ProcessedIDs []int64 `json:"processed_ids"`
	FailedIDs    []int64 `json:"failed_ids"`
}

// Processor owns the webhook event lifecycle: insert-or-lookup, dispatch,
// outcome recording. The event insert and every handler mutation share one
// transaction; a failed handler rolls back its effects and the event is then
// recorded as failed on its own.
type Processor struct {
	db            ports.DBPort
	events        ports.WebhookEventRepository
	customers     ports.CustomerRepository
	subscriptions ports.SubscriptionRepository
	payments      ports.PaymentRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewProcessor creates a webhook processor
func NewProcessor(
	db ports.DBPort,
	events ports.WebhookEventRepository,
	customers ports.CustomerRepository,
	subscriptions ports.SubscriptionRepository,
	payments ports.PaymentRepository,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:            db,
		events:        events,
		customers:     customers,
		subscriptions: subscriptions,
		payments:      payments,
		logger:        logger,
		now:           time.Now,
	}
}

// Process applies one verified webhook delivery. Exactly one event row ever
// exists per (provider, event_id): concurrent first deliveries collapse on
// the unique constraint, with the loser re-reading and taking the
// existing-row path.
func (p *Processor) Process(ctx context.Context, provider string, envelope *EventEnvelope, verified *gatekeeper.VerifiedWebhook) (*models.WebhookEvent, error) {
	existing, err := p.events.GetByComposite(ctx, p.db.GetDB(), provider, envelope.EventID)
	if err == nil {
		return p.handleExisting(ctx, existing, verified)
	}
	if !domain.IsDomainError(err, domain.ErrorCodeEventNotFound) {
		return nil, err
	}

	event := &models.WebhookEvent{
		Provider:           provider,
		EventID:            envelope.EventID,
		EventType:          envelope.EventType,
		PayloadRaw:         verified.RawBody,
		Signature:          verified.Signature,
		SignatureTimestamp: verified.Timestamp,
		AttemptCount:       1,
		ProcessingStatus:   models.ProcessingStatusReceived,
	}

	txErr := p.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
		if err := p.events.Create(ctx, tx, event); err != nil {
			return err
		}
		return p.dispatch(ctx, tx, event)
	})
	if txErr == nil {
		p.recordSuccess(event)
		return event, nil
	}

	if domain.IsDomainError(txErr, domain.ErrorCodeIdempotencyConflict) {
		existing, err := p.events.GetByComposite(ctx, p.db.GetDB(), provider, envelope.EventID)
		if err != nil {
			return nil, err
		}
		return p.handleExisting(ctx, existing, verified)
	}

	// The transaction rolled back, taking the insert with it: persist the
	// event as failed with no handler side effects.
	return nil, p.persistFirstFailure(ctx, event, txErr)
}

// handleExisting treats a repeat delivery of a known (provider, event_id).
// A mismatched timestamp or signature is a replay attack; terminal statuses
// are idempotent; failed events are re-dispatched; received rows pass
// through untouched (a prior crash between insert and handler — the retry
// path drives them forward on operator action).
func (p *Processor) handleExisting(ctx context.Context, event *models.WebhookEvent, verified *gatekeeper.VerifiedWebhook) (*models.WebhookEvent, error) {
	if verified.Timestamp != event.SignatureTimestamp {
		p.failExisting(ctx, event, "replay timestamp mismatch")
		return nil, domain.NewDomainError(domain.ErrorCodeReplayAttack, "replay timestamp mismatch")
	}
	if verified.Signature != event.Signature {
		p.failExisting(ctx, event, "replay signature mismatch")
		return nil, domain.NewDomainError(domain.ErrorCodeReplayAttack, "replay signature mismatch")
	}

	switch {
	case event.IsTerminallyHandled():
		observability.WebhookReplayed.Inc()
		return event, nil

	case event.ProcessingStatus == models.ProcessingStatusFailed:
		err := p.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
			return p.dispatch(ctx, tx, event)
		})
		if err != nil {
			p.failExisting(ctx, event, domain.ErrorMessage(err))
			return nil, err
		}
		p.recordSuccess(event)
		return event, nil

	default:
		return event, nil
	}
}

// dispatch parses the stored payload, routes by event type and records the
// outcome on the event row. Runs inside the caller's transaction.
func (p *Processor) dispatch(ctx context.Context, tx ports.DBTX, event *models.WebhookEvent) error {
	payload, err := payloadObject(event.PayloadRaw)
	if err != nil {
		return err
	}

	now := p.now().UTC()
	switch event.EventType {
	case EventTypePaymentSucceeded:
		err = p.handlePaymentSucceeded(ctx, tx, event, payload, now)
	case EventTypeInvoicePaymentFailed:
		err = p.handleInvoicePaymentFailed(ctx, tx, event, payload, now)
	default:
		event.MarkIgnored("", now)
	}
	if err != nil {
		return err
	}

	if event.ProcessingStatus == models.ProcessingStatusIgnored {
		// Keep the ignore reason; the event will not be retried.
		event.NextRetryAt = nil
		event.NeedsAttention = false
	} else {
		event.MarkProcessed(now)
	}
	return p.events.Update(ctx, tx, event)
}

// payloadObject extracts the handler payload from the stored raw body:
// the payload_json member when present, the whole object otherwise.
func payloadObject(raw []byte) (json.RawMessage, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInvalidPayload, "payload_json must be an object", err)
	}
	if len(envelope.PayloadJSON) == 0 {
		return raw, nil
	}
	if !isJSONObject(envelope.PayloadJSON) {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPayload, "payload_json must be an object")
	}
	return envelope.PayloadJSON, nil
}

// persistFirstFailure records a first delivery whose handler failed. The
// original insert rolled back, so the row is inserted fresh in failed state;
// losing a race against a concurrent delivery falls back to updating the
// winner's row.
func (p *Processor) persistFirstFailure(ctx context.Context, event *models.WebhookEvent, cause error) error {
	event.MarkFailed(domain.ErrorMessage(cause), p.now().UTC())
	err := p.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
		createErr := p.events.Create(ctx, tx, event)
		if domain.IsDomainError(createErr, domain.ErrorCodeIdempotencyConflict) {
			existing, getErr := p.events.GetByComposite(ctx, tx, event.Provider, event.EventID)
			if getErr != nil {
				return getErr
			}
			event.ID = existing.ID
			return p.events.Update(ctx, tx, event)
		}
		return createErr
	})
	if err != nil {
		p.logger.Error("failed to persist webhook failure",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return err
	}
	p.recordFailure(event)
	return cause
}

// failExisting marks an already-persisted event failed outside any handler
// transaction.
func (p *Processor) failExisting(ctx context.Context, event *models.WebhookEvent, message string) {
	event.MarkFailed(message, p.now().UTC())
	if err := p.events.Update(ctx, p.db.GetDB(), event); err != nil {
		p.logger.Error("failed to mark webhook event failed",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
	p.recordFailure(event)
}

func (p *Processor) recordSuccess(event *models.WebhookEvent) {
	if event.ProcessingStatus == models.ProcessingStatusIgnored {
		observability.WebhookIgnored.Inc()
	} else {
		observability.WebhookProcessed.Inc()
	}
	p.logger.Info("webhook processed",
		zap.String("provider", event.Provider),
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("status", string(event.ProcessingStatus)),
	)
}

func (p *Processor) recordFailure(event *models.WebhookEvent) {
	observability.WebhookFailed.Inc()
	message := ""
	if event.ErrorMessage != nil {
		message = *event.ErrorMessage
	}
	p.logger.Warn("webhook failed",
		zap.String("provider", event.Provider),
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("error", message),
	)
}

// RetryFailed re-dispatches up to limit retry-eligible failed events in
// insertion order. A failing event does not abort the sweep.
func (p *Processor) RetryFailed(ctx context.Context, limit int) (*RetrySummary, error) {
	candidates, err := p.events.ListRetryCandidates(ctx, p.db.GetDB(), p.now().UTC(), limit)
	if err != nil {
		return nil, err
	}

	summary := &RetrySummary{
		Checked:      len(candidates),
		ProcessedIDs: []int64{},
		FailedIDs:    []int64{},
	}
	for _, event := range candidates {
		err := p.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
			return p.dispatch(ctx, tx, event)
		})
		if err != nil {
			p.failExisting(ctx, event, domain.ErrorMessage(err))
			summary.FailedIDs = append(summary.FailedIDs, event.ID)
			continue
		}
		p.recordSuccess(event)
		summary.ProcessedIDs = append(summary.ProcessedIDs, event.ID)
	}
	return summary, nil
}

// Reprocess force-dispatches a single event on operator request, regardless
// of retry eligibility. A handler failure is recorded on the event and the
// failed record is returned rather than an error; only an unknown event id
// is an error.
func (p *Processor) Reprocess(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	event, err := p.events.GetByEventID(ctx, p.db.GetDB(), eventID, "")
	if err != nil {
		return nil, err
	}

	dispatchErr := p.db.WithTransaction(ctx, func(ctx context.Context, tx ports.DBTX) error {
		return p.dispatch(ctx, tx, event)
	})
	if dispatchErr != nil {
		p.failExisting(ctx, event, domain.ErrorMessage(dispatchErr))
		return event, nil
	}
	p.recordSuccess(event)
	return event, nil
}

// ListEvents returns all events, newest first
func (p *Processor) ListEvents(ctx context.Context) ([]*models.WebhookEvent, error) {
	return p.events.ListAllDesc(ctx, p.db.GetDB())
}

// GetEvent fetches a single event by event id, optionally filtered by
// provider
func (p *Processor) GetEvent(ctx context.Context, eventID, provider string) (*models.WebhookEvent, error) {
	return p.events.GetByEventID(ctx, p.db.GetDB(), eventID, provider)
}
