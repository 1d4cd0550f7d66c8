package postgres

import (
	"context"
	"fmt"

	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/domain/ports"
)

// PaymentRepository implements ports.PaymentRepository on PostgreSQL.
// Payment rows are append-only; there is no update statement.
type PaymentRepository struct{}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

// Create appends a payment attempt record
func (r *PaymentRepository) Create(ctx context.Context, db ports.DBTX, payment *models.Payment) error {
	err := db.QueryRow(ctx, `
		INSERT INTO payments (
			customer_id, subscription_id, status, amount, currency,
			provider_payment_id, provider_invoice_id, processed_at, provider
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		payment.CustomerID,
		payment.SubscriptionID,
		string(payment.Status),
		payment.Amount,
		payment.Currency,
		payment.ProviderPaymentID,
		payment.ProviderInvoiceID,
		toNullableTimestamp(payment.ProcessedAt),
		payment.Provider,
	).Scan(&payment.ID)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ListBySubscription returns payment attempts for a subscription in
// insertion order
func (r *PaymentRepository) ListBySubscription(ctx context.Context, db ports.DBTX, subscriptionID int64) ([]*models.Payment, error) {
	rows, err := db.Query(ctx, `
		SELECT id, customer_id, subscription_id, status, amount, currency,
			provider_payment_id, provider_invoice_id, processed_at, provider
		FROM payments
		WHERE subscription_id = $1
		ORDER BY id
	`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		var (
			payment models.Payment
			status  string
		)
		if err := rows.Scan(
			&payment.ID, &payment.CustomerID, &payment.SubscriptionID, &status,
			&payment.Amount, &payment.Currency, &payment.ProviderPaymentID,
			&payment.ProviderInvoiceID, &payment.ProcessedAt, &payment.Provider,
		); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payment.Status = models.PaymentStatus(status)
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}
