// internal/domain/plan/entity.go
package plan

import (
	"database/sql"
	"time"
)

type PlanStatus string

const (
	StatusActive  PlanStatus = "active"
	StatusRetired PlanStatus = "retired"
)

// Plan is a subscription tier mirrored by a provider-side billing plan.
// Quota limits use NULL as the unlimited sentinel.
type Plan struct {
	ID       int64  `json:"id" db:"id"`
	PlanCode string `json:"plan_code" db:"plan_code"`
	Name     string `json:"name" db:"name"`

	// Pricing
	MonthlyPrice float64 `json:"monthly_price" db:"monthly_price"`
	Currency     string  `json:"currency" db:"currency"`

	// Provider-side identifier; empty for the free tier, unique otherwise.
	// Immutable once any live subscription references it.
	ProviderPlanID sql.NullString `json:"provider_plan_id,omitempty" db:"provider_plan_id"`

	// Quota limits
	MaxUnits     sql.NullInt32 `json:"max_units,omitempty" db:"max_units"`
	MaxProducts  sql.NullInt32 `json:"max_products,omitempty" db:"max_products"`
	MaxCustomers sql.NullInt32 `json:"max_customers,omitempty" db:"max_customers"`
	MaxInvoices  sql.NullInt32 `json:"max_invoices,omitempty" db:"max_invoices"`

	Status PlanStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsFree reports whether the plan bypasses the payment provider entirely.
func (p *Plan) IsFree() bool {
	return !p.ProviderPlanID.Valid || p.ProviderPlanID.String == ""
}
