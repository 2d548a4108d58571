// internal/service/plans/plan_service.go
package plans

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"ledgerly-service/internal/domain/plan"
	xerrors "ledgerly-service/internal/pkg/errors"
	"ledgerly-service/internal/repository/postgres"

	"go.uber.org/zap"
)

var planCodePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,31}$`)

// PlanService manages the administrator-maintained plan catalog.
type PlanService struct {
	planRepo *postgres.PlanRepository
	logger   *zap.Logger
}

func NewPlanService(planRepo *postgres.PlanRepository, logger *zap.Logger) *PlanService {
	return &PlanService{
		planRepo: planRepo,
		logger:   logger,
	}
}

// ListPlans returns all subscribable plans
func (s *PlanService) ListPlans(ctx context.Context) ([]plan.Plan, error) {
	return s.planRepo.ListActive(ctx)
}

// GetPlan retrieves a plan by code
func (s *PlanService) GetPlan(ctx context.Context, planCode string) (*plan.Plan, error) {
	return s.planRepo.FindByCode(ctx, planCode)
}

// CreatePlan creates a new plan (admin only)
func (s *PlanService) CreatePlan(ctx context.Context, req *plan.CreatePlanRequest) (*plan.Plan, error) {
	if !planCodePattern.MatchString(req.PlanCode) {
		return nil, fmt.Errorf("invalid plan code %q: %w", req.PlanCode, xerrors.ErrInvalidInput)
	}

	exists, err := s.planRepo.ExistsByCode(ctx, req.PlanCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check plan code: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("plan code already exists: %w", xerrors.ErrDuplicateEntry)
	}

	p := &plan.Plan{
		PlanCode:     req.PlanCode,
		Name:         req.Name,
		MonthlyPrice: req.MonthlyPrice,
		Currency:     strings.ToUpper(req.Currency),
		Status:       plan.StatusActive,
	}
	if req.ProviderPlanID != "" {
		p.ProviderPlanID = sql.NullString{String: req.ProviderPlanID, Valid: true}
	}
	p.MaxUnits = toNullInt32(req.MaxUnits)
	p.MaxProducts = toNullInt32(req.MaxProducts)
	p.MaxCustomers = toNullInt32(req.MaxCustomers)
	p.MaxInvoices = toNullInt32(req.MaxInvoices)

	if err := s.planRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("plan created",
		zap.String("plan_code", p.PlanCode),
		zap.Float64("monthly_price", p.MonthlyPrice),
	)

	return p, nil
}

// UpdatePlan updates plan pricing and limits (admin only). The provider
// plan id is immutable once referenced by a live subscription and cannot
// be changed here.
func (s *PlanService) UpdatePlan(ctx context.Context, planCode string, req *plan.UpdatePlanRequest) (*plan.Plan, error) {
	p, err := s.planRepo.FindByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.MonthlyPrice != nil {
		p.MonthlyPrice = *req.MonthlyPrice
	}
	if req.MaxUnits != nil {
		p.MaxUnits = toNullInt32(req.MaxUnits)
	}
	if req.MaxProducts != nil {
		p.MaxProducts = toNullInt32(req.MaxProducts)
	}
	if req.MaxCustomers != nil {
		p.MaxCustomers = toNullInt32(req.MaxCustomers)
	}
	if req.MaxInvoices != nil {
		p.MaxInvoices = toNullInt32(req.MaxInvoices)
	}

	if err := s.planRepo.Update(ctx, p.ID, p); err != nil {
		return nil, err
	}

	s.logger.Info("plan updated", zap.String("plan_code", planCode))

	return p, nil
}

func toNullInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *v, Valid: true}
}
