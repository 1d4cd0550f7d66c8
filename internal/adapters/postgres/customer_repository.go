package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/domain/ports"
)

// CustomerRepository implements ports.CustomerRepository on PostgreSQL
type CustomerRepository struct{}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{}
}

// Create inserts a customer and backfills the generated id and created_at
func (r *CustomerRepository) Create(ctx context.Context, db ports.DBTX, customer *models.Customer) error {
	var providerID *string
	if customer.ProviderCustomerID != "" {
		providerID = &customer.ProviderCustomerID
	}
	err := db.QueryRow(ctx, `
		INSERT INTO customers (provider_customer_id, email, status, created_at)
		VALUES ($1, $2, $3, (now() AT TIME ZONE 'utc'))
		RETURNING id, created_at
	`, toNullableText(providerID), customer.Email, customer.Status).
		Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// GetByID retrieves a customer by internal id
func (r *CustomerRepository) GetByID(ctx context.Context, db ports.DBTX, id int64) (*models.Customer, error) {
	return r.scanOne(db.QueryRow(ctx, customerSelect+` WHERE id = $1`, id))
}

// GetByEmail retrieves a customer by email
func (r *CustomerRepository) GetByEmail(ctx context.Context, db ports.DBTX, email string) (*models.Customer, error) {
	return r.scanOne(db.QueryRow(ctx, customerSelect+` WHERE email = $1`, email))
}

// GetByProviderCustomerID retrieves a customer by its provider-facing id
func (r *CustomerRepository) GetByProviderCustomerID(ctx context.Context, db ports.DBTX, providerCustomerID string) (*models.Customer, error) {
	return r.scanOne(db.QueryRow(ctx, customerSelect+` WHERE provider_customer_id = $1`, providerCustomerID))
}

// SetProviderCustomerID assigns the provider-facing id. The column is only
// ever written once per customer.
func (r *CustomerRepository) SetProviderCustomerID(ctx context.Context, db ports.DBTX, id int64, providerCustomerID string) error {
	tag, err := db.Exec(ctx, `
		UPDATE customers SET provider_customer_id = $1
		WHERE id = $2 AND provider_customer_id IS NULL
	`, providerCustomerID, id)
	if err != nil {
		return fmt.Errorf("set provider customer id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

const customerSelect = `
	SELECT id, provider_customer_id, email, status, created_at
	FROM customers`

func (r *CustomerRepository) scanOne(row pgx.Row) (*models.Customer, error) {
	var (
		customer   models.Customer
		providerID *string
		status     *string
	)
	err := row.Scan(&customer.ID, &providerID, &customer.Email, &status, &customer.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	if providerID != nil {
		customer.ProviderCustomerID = *providerID
	}
	if status != nil {
		customer.Status = *status
	}
	return &customer, nil
}
