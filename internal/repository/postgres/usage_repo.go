// internal/repository/postgres/usage_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository computes current resource usage for quota checks.
// Counts are always recomputed from the entity tables, never materialized,
// to avoid counter drift.
type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

// CountUnits counts live units owned by the organization
func (r *UsageRepository) CountUnits(ctx context.Context, orgID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM units WHERE organization_id = $1 AND deleted_at IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count units: %w", err)
	}
	return count, nil
}

// CountProducts counts live products in a unit
func (r *UsageRepository) CountProducts(ctx context.Context, orgID, unitID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM products WHERE organization_id = $1 AND unit_id = $2 AND deleted_at IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query, orgID, unitID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// CountCustomers counts live customers in a unit
func (r *UsageRepository) CountCustomers(ctx context.Context, orgID, unitID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM customers WHERE organization_id = $1 AND unit_id = $2 AND deleted_at IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query, orgID, unitID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return count, nil
}

// CountInvoicesThisMonth counts invoices issued in a unit during the
// current calendar month
func (r *UsageRepository) CountInvoicesThisMonth(ctx context.Context, orgID, unitID int64) (int64, error) {
	query := `
		SELECT COUNT(*) FROM invoices
		WHERE organization_id = $1 AND unit_id = $2
		  AND created_at >= date_trunc('month', NOW())
	`

	var count int64
	if err := r.db.QueryRow(ctx, query, orgID, unitID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}
