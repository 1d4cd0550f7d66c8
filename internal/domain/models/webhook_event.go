package models

import "time"

// ProcessingStatus represents the lifecycle of a webhook event record
type ProcessingStatus string

const (
	ProcessingStatusReceived  ProcessingStatus = "received"
	ProcessingStatusProcessed ProcessingStatus = "processed"
	ProcessingStatusFailed    ProcessingStatus = "failed"
	ProcessingStatusIgnored   ProcessingStatus = "ignored"
)

// needsAttentionThreshold is the attempt count at which an event leaves the
// automatic retry queue and waits for an operator.
const needsAttentionThreshold = 3

// maxRetryDelay caps the linear backoff schedule.
const maxRetryDelay = time.Hour

// retryDelayStep is the per-attempt backoff increment.
const retryDelayStep = 5 * time.Minute

// WebhookEvent is the authoritative processing record for one provider
// notification. Unique by (provider, event_id). PayloadRaw holds the exact
// bytes verified by HMAC; Signature and SignatureTimestamp are preserved to
// detect forged re-deliveries.
type WebhookEvent struct {
	ID                 int64
	Provider           string
	EventID            string
	EventType          string
	PayloadRaw         []byte
	Signature          string
	SignatureTimestamp int64
	ReceivedAt         time.Time
	ProcessedAt        *time.Time
	AttemptCount       int
	NextRetryAt        *time.Time
	NeedsAttention     bool
	ProcessingStatus   ProcessingStatus
	ErrorMessage       *string
}

// MarkFailed records a dispatch failure: the attempt counter advances, a
// retry slot is scheduled with capped linear backoff, and the event is
// flagged for operator attention once the attempt threshold is reached.
func (e *WebhookEvent) MarkFailed(message string, now time.Time) {
	e.AttemptCount++
	delay := time.Duration(e.AttemptCount) * retryDelayStep
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	retryAt := now.Add(delay)
	e.NextRetryAt = &retryAt
	e.NeedsAttention = e.AttemptCount >= needsAttentionThreshold
	e.ProcessingStatus = ProcessingStatusFailed
	processedAt := now
	e.ProcessedAt = &processedAt
	e.ErrorMessage = &message
}

// MarkProcessed records a successful dispatch and clears any retry state
// left over from earlier failures.
func (e *WebhookEvent) MarkProcessed(now time.Time) {
	e.ProcessingStatus = ProcessingStatusProcessed
	processedAt := now
	e.ProcessedAt = &processedAt
	e.NextRetryAt = nil
	e.NeedsAttention = false
	e.ErrorMessage = nil
}

// MarkIgnored records that the event was recognized but deliberately not
// applied, with an optional reason.
func (e *WebhookEvent) MarkIgnored(reason string, now time.Time) {
	e.ProcessingStatus = ProcessingStatusIgnored
	processedAt := now
	e.ProcessedAt = &processedAt
	if reason != "" {
		e.ErrorMessage = &reason
	}
}

// IsTerminallyHandled reports whether a repeat delivery of this event should
// be treated as an idempotent replay rather than re-dispatched.
func (e *WebhookEvent) IsTerminallyHandled() bool {
	return e.ProcessingStatus == ProcessingStatusProcessed ||
		e.ProcessingStatus == ProcessingStatusIgnored
}
