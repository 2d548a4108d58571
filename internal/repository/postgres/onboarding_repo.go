// internal/repository/postgres/onboarding_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OnboardingRepository inserts an organization's starter data. All methods
// take an explicit transaction; onboarding is all-or-nothing.
type OnboardingRepository struct {
	db *pgxpool.Pool
}

func NewOnboardingRepository(db *pgxpool.Pool) *OnboardingRepository {
	return &OnboardingRepository{db: db}
}

// CreateUnitWithTx inserts the organization's default unit
func (r *OnboardingRepository) CreateUnitWithTx(ctx context.Context, tx pgx.Tx, orgID int64, name string) (int64, error) {
	query := `
		INSERT INTO units (organization_id, name)
		VALUES ($1, $2)
		RETURNING id
	`

	var id int64
	if err := tx.QueryRow(ctx, query, orgID, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create unit: %w", err)
	}
	return id, nil
}

// CreateProductWithTx inserts a sample product
func (r *OnboardingRepository) CreateProductWithTx(ctx context.Context, tx pgx.Tx, orgID, unitID int64, name string, price float64) (int64, error) {
	query := `
		INSERT INTO products (organization_id, unit_id, name, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	if err := tx.QueryRow(ctx, query, orgID, unitID, name, price).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	return id, nil
}

// CreateCustomerWithTx inserts a sample customer
func (r *OnboardingRepository) CreateCustomerWithTx(ctx context.Context, tx pgx.Tx, orgID, unitID int64, name, email string) (int64, error) {
	query := `
		INSERT INTO customers (organization_id, unit_id, name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	if err := tx.QueryRow(ctx, query, orgID, unitID, name, email).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create customer: %w", err)
	}
	return id, nil
}

// CreateInvoiceWithTx inserts a sample draft invoice
func (r *OnboardingRepository) CreateInvoiceWithTx(ctx context.Context, tx pgx.Tx, orgID, unitID, customerID int64, number string, total float64) (int64, error) {
	query := `
		INSERT INTO invoices (organization_id, unit_id, customer_id, invoice_number, total, status)
		VALUES ($1, $2, $3, $4, $5, 'draft')
		RETURNING id
	`

	var id int64
	if err := tx.QueryRow(ctx, query, orgID, unitID, customerID, number, total).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create invoice: %w", err)
	}
	return id, nil
}
