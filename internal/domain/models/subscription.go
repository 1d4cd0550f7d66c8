package models

import "time"

// SubscriptionStatus represents the current state of a subscription
type SubscriptionStatus string

const (
	SubStatusPendingActivation SubscriptionStatus = "pending_activation"
	SubStatusActive            SubscriptionStatus = "active"
	SubStatusPastDue           SubscriptionStatus = "past_due"
	SubStatusCanceled          SubscriptionStatus = "canceled"
	SubStatusExpired           SubscriptionStatus = "expired"
)

// Subscription represents a customer's recurring service window.
// CurrentPeriodEnd is monotonic non-decreasing: stale webhook deliveries
// asserting an earlier period end are ignored, never applied.
type Subscription struct {
	ID                     int64
	CustomerID             int64
	PlanID                 int64
	Status                 SubscriptionStatus
	CurrentPeriodEnd       time.Time
	CancelAtPeriodEnd      bool
	PastDueSince           *time.Time
	CanceledAt             *time.Time
	ExpiredAt              *time.Time
	ProviderSubscriptionID string // "sub_<16 hex>"
	AccessRevoked          bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// legalTransitions is the closed set of status transitions. canceled and
// expired are terminal.
var legalTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubStatusPendingActivation: {SubStatusActive},
	SubStatusActive:            {SubStatusPastDue, SubStatusExpired, SubStatusCanceled},
	SubStatusPastDue:           {SubStatusActive, SubStatusCanceled},
	SubStatusCanceled:          {},
	SubStatusExpired:           {},
}

// CanTransition reports whether moving from one subscription status to
// another is legal.
func CanTransition(from, to SubscriptionStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(status SubscriptionStatus) bool {
	return len(legalTransitions[status]) == 0
}

// MarkActive applies a successful payment: pending_activation and past_due
// advance to active, cancellation and expiry markers are cleared and access
// is restored.
func (s *Subscription) MarkActive(periodEnd, now time.Time) {
	if s.Status == SubStatusPendingActivation || s.Status == SubStatusPastDue {
		s.Status = SubStatusActive
	}
	s.CanceledAt = nil
	s.ExpiredAt = nil
	s.PastDueSince = nil
	s.AccessRevoked = false
	s.CurrentPeriodEnd = periodEnd
	s.UpdatedAt = now
}

// MarkPastDue applies a failed payment. Only active subscriptions move to
// past_due; other statuses are left alone.
func (s *Subscription) MarkPastDue(now time.Time) {
	if s.Status == SubStatusActive {
		s.Status = SubStatusPastDue
		since := now
		s.PastDueSince = &since
	}
	s.UpdatedAt = now
}

// MarkCanceled cancels the subscription and revokes access.
func (s *Subscription) MarkCanceled(now time.Time) {
	s.Status = SubStatusCanceled
	canceledAt := now
	s.CanceledAt = &canceledAt
	s.AccessRevoked = true
	s.UpdatedAt = now
}

// MarkExpired expires the subscription after its period elapsed.
func (s *Subscription) MarkExpired(now time.Time) {
	s.Status = SubStatusExpired
	expiredAt := now
	s.ExpiredAt = &expiredAt
	s.UpdatedAt = now
}
