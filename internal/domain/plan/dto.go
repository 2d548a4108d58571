// internal/domain/plan/dto.go
package plan

type CreatePlanRequest struct {
	PlanCode       string  `json:"plan_code" binding:"required"`
	Name           string  `json:"name" binding:"required"`
	MonthlyPrice   float64 `json:"monthly_price" binding:"min=0"`
	Currency       string  `json:"currency" binding:"required,len=3"`
	ProviderPlanID string  `json:"provider_plan_id"`

	// nil means unlimited
	MaxUnits     *int32 `json:"max_units"`
	MaxProducts  *int32 `json:"max_products"`
	MaxCustomers *int32 `json:"max_customers"`
	MaxInvoices  *int32 `json:"max_invoices"`
}

type UpdatePlanRequest struct {
	Name         *string  `json:"name"`
	MonthlyPrice *float64 `json:"monthly_price"`

	MaxUnits     *int32 `json:"max_units"`
	MaxProducts  *int32 `json:"max_products"`
	MaxCustomers *int32 `json:"max_customers"`
	MaxInvoices  *int32 `json:"max_invoices"`
}
