package models

import "time"

// PaymentStatus represents the outcome of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRefused  PaymentStatus = "refused"
)

// Payment is an append-only record of one approved or refused attempt
// carried by a webhook event. Rows are never updated after insert.
type Payment struct {
	ID                int64
	CustomerID        int64
	SubscriptionID    int64
	Status            PaymentStatus
	Amount            int64 // integer minor units
	Currency          string
	ProviderPaymentID string
	ProviderInvoiceID string
	ProcessedAt       *time.Time
	Provider          string
}
