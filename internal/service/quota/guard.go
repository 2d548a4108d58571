// internal/service/quota/guard.go
package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledgerly-service/internal/domain/plan"
	"ledgerly-service/internal/domain/quota"
	"ledgerly-service/internal/domain/subscription"
	xerrors "ledgerly-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type SubscriptionStore interface {
	FindByOrganization(ctx context.Context, orgID int64) (*subscription.Subscription, error)
}

type PlanStore interface {
	FindByCode(ctx context.Context, planCode string) (*plan.Plan, error)
}

type UsageCounter interface {
	CountUnits(ctx context.Context, orgID int64) (int64, error)
	CountProducts(ctx context.Context, orgID, unitID int64) (int64, error)
	CountCustomers(ctx context.Context, orgID, unitID int64) (int64, error)
	CountInvoicesThisMonth(ctx context.Context, orgID, unitID int64) (int64, error)
}

// Guard gates every resource-creating operation behind the organization's
// subscription status and plan limits. It never performs the creation
// itself.
type Guard struct {
	subscriptionRepo SubscriptionStore
	planRepo         PlanStore
	usage            UsageCounter
	logger           *zap.Logger
}

func NewGuard(subscriptionRepo SubscriptionStore, planRepo PlanStore, usage UsageCounter, logger *zap.Logger) *Guard {
	return &Guard{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		usage:            usage,
		logger:           logger,
	}
}

// Check compares current usage against the active plan's limit for the
// resource kind. unitID is ignored for org-scoped resources (units).
// The returned outcome is a business result, not an error; the error
// return is reserved for infrastructure failures.
func (g *Guard) Check(ctx context.Context, orgID, unitID int64, kind quota.ResourceKind) (quota.CheckResult, error) {
	result := quota.CheckResult{Kind: kind, Limit: quota.Unlimited}

	if !kind.Valid() {
		return result, fmt.Errorf("unknown resource kind %q: %w", kind, xerrors.ErrInvalidInput)
	}

	sub, err := g.subscriptionRepo.FindByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			result.Outcome = quota.OutcomeNoSubscription
			return result, nil
		}
		return result, fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.Status != subscription.StatusActive {
		result.Outcome = quota.OutcomeNotActive
		return result, nil
	}

	p, err := g.planRepo.FindByCode(ctx, sub.PlanCode)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			// Operator error, not user-fixable; surfaced distinctly.
			g.logger.Error("subscription references missing plan",
				zap.Int64("org_id", orgID),
				zap.String("plan_code", sub.PlanCode),
			)
			result.Outcome = quota.OutcomePlanMisconfig
			return result, nil
		}
		return result, fmt.Errorf("failed to load plan: %w", err)
	}

	used, err := g.countUsage(ctx, orgID, unitID, kind)
	if err != nil {
		return result, err
	}
	result.Used = used

	limit := limitFor(p, kind)
	if !limit.Valid {
		result.Outcome = quota.OutcomeAllowed
		return result, nil
	}
	result.Limit = int64(limit.Int32)

	if used >= result.Limit {
		result.Outcome = quota.OutcomeQuotaExceeded
		return result, nil
	}

	result.Outcome = quota.OutcomeAllowed
	return result, nil
}

func (g *Guard) countUsage(ctx context.Context, orgID, unitID int64, kind quota.ResourceKind) (int64, error) {
	switch kind {
	case quota.ResourceUnit:
		return g.usage.CountUnits(ctx, orgID)
	case quota.ResourceProduct:
		return g.usage.CountProducts(ctx, orgID, unitID)
	case quota.ResourceCustomer:
		return g.usage.CountCustomers(ctx, orgID, unitID)
	case quota.ResourceInvoice:
		return g.usage.CountInvoicesThisMonth(ctx, orgID, unitID)
	}
	return 0, fmt.Errorf("unknown resource kind %q: %w", kind, xerrors.ErrInvalidInput)
}

func limitFor(p *plan.Plan, kind quota.ResourceKind) sql.NullInt32 {
	switch kind {
	case quota.ResourceUnit:
		return p.MaxUnits
	case quota.ResourceProduct:
		return p.MaxProducts
	case quota.ResourceCustomer:
		return p.MaxCustomers
	case quota.ResourceInvoice:
		return p.MaxInvoices
	}
	return sql.NullInt32{}
}
