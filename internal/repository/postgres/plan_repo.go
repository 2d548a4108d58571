// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerly-service/internal/domain/plan"
	xerrors "ledgerly-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, plan_code, name, monthly_price, currency, provider_plan_id,
	       max_units, max_products, max_customers, max_invoices,
	       status, created_at, updated_at`

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	err := row.Scan(
		&p.ID, &p.PlanCode, &p.Name, &p.MonthlyPrice, &p.Currency, &p.ProviderPlanID,
		&p.MaxUnits, &p.MaxProducts, &p.MaxCustomers, &p.MaxInvoices,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	return &p, nil
}

// Create creates a new plan
func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (
			plan_code, name, monthly_price, currency, provider_plan_id,
			max_units, max_products, max_customers, max_invoices, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.PlanCode, p.Name, p.MonthlyPrice, p.Currency, p.ProviderPlanID,
		p.MaxUnits, p.MaxProducts, p.MaxCustomers, p.MaxInvoices, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return nil
}

// FindByCode retrieves a plan by its plan code
func (r *PlanRepository) FindByCode(ctx context.Context, planCode string) (*plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE plan_code = $1`, planColumns)
	return scanPlan(r.db.QueryRow(ctx, query, planCode))
}

// FindByProviderPlanID retrieves a plan by the provider-side plan identifier
func (r *PlanRepository) FindByProviderPlanID(ctx context.Context, providerPlanID string) (*plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE provider_plan_id = $1`, planColumns)
	return scanPlan(r.db.QueryRow(ctx, query, providerPlanID))
}

// ListActive retrieves all subscribable plans ordered by price
func (r *PlanRepository) ListActive(ctx context.Context) ([]plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE status = 'active' ORDER BY monthly_price ASC`, planColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []plan.Plan{}
	for rows.Next() {
		var p plan.Plan
		err := rows.Scan(
			&p.ID, &p.PlanCode, &p.Name, &p.MonthlyPrice, &p.Currency, &p.ProviderPlanID,
			&p.MaxUnits, &p.MaxProducts, &p.MaxCustomers, &p.MaxInvoices,
			&p.Status, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}

	return plans, nil
}

// Update updates plan pricing and limits. Plan code and provider plan id
// are immutable once referenced by a live subscription and are not
// touched here.
func (r *PlanRepository) Update(ctx context.Context, id int64, p *plan.Plan) error {
	query := `
		UPDATE plans
		SET name = $1, monthly_price = $2,
		    max_units = $3, max_products = $4, max_customers = $5, max_invoices = $6,
		    updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.Exec(
		ctx, query,
		p.Name, p.MonthlyPrice,
		p.MaxUnits, p.MaxProducts, p.MaxCustomers, p.MaxInvoices,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// ExistsByCode checks if a plan with the given code exists
func (r *PlanRepository) ExistsByCode(ctx context.Context, planCode string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM plans WHERE plan_code = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, planCode).Scan(&exists)
	return exists, err
}
