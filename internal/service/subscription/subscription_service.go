// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerly-service/internal/domain/plan"
	"ledgerly-service/internal/domain/subscription"
	"ledgerly-service/internal/paypal"
	xerrors "ledgerly-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DefaultFreePlanCode is the unbilled starter tier.
const DefaultFreePlanCode = "starter"

// ProviderGateway is the capability surface of the payment provider.
// The concrete HTTP client is swappable and mockable.
type ProviderGateway interface {
	CreateSubscription(ctx context.Context, providerPlanID string, orgID int64, returnURL, cancelURL string) (*paypal.CreateSubscriptionResult, error)
	GetSubscription(ctx context.Context, externalID string) (*paypal.SubscriptionDetail, error)
	CancelSubscription(ctx context.Context, externalID, reason string) error
	ReviseSubscription(ctx context.Context, externalID, newProviderPlanID string) (*paypal.ReviseResult, error)
}

type SubscriptionStore interface {
	FindByOrganization(ctx context.Context, orgID int64) (*subscription.Subscription, error)
	Upsert(ctx context.Context, s *subscription.Subscription) error
	MarkCancelRequested(ctx context.Context, orgID int64, at time.Time) error
	SwitchPlan(ctx context.Context, orgID int64, planCode string, status subscription.SubscriptionStatus) error
}

type PlanStore interface {
	FindByCode(ctx context.Context, planCode string) (*plan.Plan, error)
}

type SubscriptionService struct {
	subscriptionRepo SubscriptionStore
	planRepo         PlanStore
	gateway          ProviderGateway
	appBaseURL       string
	logger           *zap.Logger
}

func NewSubscriptionService(
	subscriptionRepo SubscriptionStore,
	planRepo PlanStore,
	gateway ProviderGateway,
	appBaseURL string,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		gateway:          gateway,
		appBaseURL:       appBaseURL,
		logger:           logger,
	}
}

// Subscribe turns a "subscribe to plan X" intent into a provider
// subscription plus a locally-durable pending record, and returns the
// provider approval URL for redirect.
func (s *SubscriptionService) Subscribe(ctx context.Context, orgID int64, planCode string) (*subscription.SubscribeResponse, error) {
	target, err := s.planRepo.FindByCode(ctx, planCode)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("unknown plan %q: %w", planCode, xerrors.ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if target.Status != plan.StatusActive {
		return nil, fmt.Errorf("plan %q is not subscribable: %w", planCode, xerrors.ErrInvalidInput)
	}

	// The free tier has no billing; nothing to create provider-side.
	if target.IsFree() {
		sub, err := s.switchToPlan(ctx, orgID, target)
		if err != nil {
			return nil, err
		}
		return &subscription.SubscribeResponse{Subscription: sub}, nil
	}

	if err := s.checkUpgradeEligibility(ctx, orgID); err != nil {
		return nil, err
	}

	returnURL := fmt.Sprintf("%s/billing/return?org=%d", s.appBaseURL, orgID)
	cancelURL := fmt.Sprintf("%s/billing/cancelled?org=%d", s.appBaseURL, orgID)

	created, err := s.gateway.CreateSubscription(ctx, target.ProviderPlanID.String, orgID, returnURL, cancelURL)
	if err != nil {
		return nil, fmt.Errorf("provider subscription create failed: %w", err)
	}

	sub := &subscription.Subscription{
		SubscriptionReference: newReference(),
		OrganizationID:        orgID,
		PlanCode:              target.PlanCode,
		Status:                subscription.StatusCreated,
		PaymentProvider:       subscription.ProviderPayPal,
		StartedAt:             time.Now(),
	}
	sub.ExternalID.String = created.ID
	sub.ExternalID.Valid = true

	if err := s.subscriptionRepo.Upsert(ctx, sub); err != nil {
		// The provider already holds the subscription; the webhook carries
		// the correlation token and will recreate the row. Do not fail the
		// user out of the approval redirect.
		s.logger.Error("local subscription persist failed after provider create; awaiting webhook self-heal",
			zap.Int64("org_id", orgID),
			zap.String("external_id", created.ID),
			zap.Error(err),
		)
		return &subscription.SubscribeResponse{ApprovalURL: created.ApprovalURL}, nil
	}

	s.logger.Info("subscription pending approval",
		zap.Int64("org_id", orgID),
		zap.String("plan_code", target.PlanCode),
		zap.String("external_id", created.ID),
	)

	return &subscription.SubscribeResponse{
		Subscription: sub,
		ApprovalURL:  created.ApprovalURL,
	}, nil
}

// Cancel requests immediate provider-side cancellation. The local record
// only gets a pending-cancellation marker; the terminal status is applied
// authoritatively by the webhook.
func (s *SubscriptionService) Cancel(ctx context.Context, orgID int64, reason string) error {
	sub, err := s.subscriptionRepo.FindByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return xerrors.ErrNoSubscription
		}
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.Status.IsTerminal() {
		return xerrors.ErrSubscriptionTerminal
	}
	if !sub.ExternalID.Valid {
		return fmt.Errorf("subscription has no billing to cancel: %w", xerrors.ErrInvalidInput)
	}

	if err := s.gateway.CancelSubscription(ctx, sub.ExternalID.String, reason); err != nil {
		return fmt.Errorf("provider cancellation failed: %w", err)
	}

	if err := s.subscriptionRepo.MarkCancelRequested(ctx, orgID, time.Now()); err != nil {
		// Provider cancel succeeded; the CANCELLED webhook will land the
		// terminal status regardless.
		s.logger.Warn("failed to mark cancel requested; awaiting webhook",
			zap.Int64("org_id", orgID),
			zap.Error(err),
		)
		return nil
	}

	s.logger.Info("subscription cancellation requested",
		zap.Int64("org_id", orgID),
		zap.String("external_id", sub.ExternalID.String),
		zap.String("reason", reason),
	)

	return nil
}

// SwitchToFree moves the organization to the starter tier without any
// provider interaction.
func (s *SubscriptionService) SwitchToFree(ctx context.Context, orgID int64) (*subscription.Subscription, error) {
	free, err := s.planRepo.FindByCode(ctx, DefaultFreePlanCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load free plan: %w", err)
	}
	return s.switchToPlan(ctx, orgID, free)
}

// ChangePlan revises an active paid subscription to another paid plan
// in place via the provider.
func (s *SubscriptionService) ChangePlan(ctx context.Context, orgID int64, newPlanCode string) (*subscription.ChangePlanResponse, error) {
	target, err := s.planRepo.FindByCode(ctx, newPlanCode)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("unknown plan %q: %w", newPlanCode, xerrors.ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if target.IsFree() {
		return nil, fmt.Errorf("downgrade to the free tier uses switch-to-free: %w", xerrors.ErrInvalidInput)
	}

	sub, err := s.subscriptionRepo.FindByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrNoSubscription
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub.Status != subscription.StatusActive {
		return nil, xerrors.ErrSubscriptionInactive
	}
	if !sub.ExternalID.Valid {
		return nil, fmt.Errorf("subscription has no provider billing to revise: %w", xerrors.ErrInvalidInput)
	}

	revised, err := s.gateway.ReviseSubscription(ctx, sub.ExternalID.String, target.ProviderPlanID.String)
	if err != nil {
		return nil, fmt.Errorf("provider plan revision failed: %w", err)
	}

	if revised.Applied {
		if err := s.subscriptionRepo.SwitchPlan(ctx, orgID, target.PlanCode, subscription.StatusActive); err != nil {
			return nil, fmt.Errorf("failed to record plan change: %w", err)
		}
	}

	s.logger.Info("plan change requested",
		zap.Int64("org_id", orgID),
		zap.String("new_plan_code", target.PlanCode),
		zap.Bool("applied", revised.Applied),
	)

	return &subscription.ChangePlanResponse{
		Applied:     revised.Applied,
		ApprovalURL: revised.ApprovalURL,
	}, nil
}

// Current returns the local subscription plus, best-effort, the
// provider's view for display. Webhooks remain the sole status authority.
func (s *SubscriptionService) Current(ctx context.Context, orgID int64) (*subscription.SubscriptionDetail, error) {
	sub, err := s.subscriptionRepo.FindByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrNoSubscription
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	detail := &subscription.SubscriptionDetail{
		Subscription:  sub,
		CancelPending: sub.CancelPending(),
	}

	if sub.ExternalID.Valid {
		provider, err := s.gateway.GetSubscription(ctx, sub.ExternalID.String)
		if err != nil {
			s.logger.Warn("failed to fetch provider subscription detail",
				zap.Int64("org_id", orgID),
				zap.Error(err),
			)
		} else {
			detail.ProviderStatus = provider.Status
			detail.ProviderDetail = provider.Raw
		}
	}

	return detail, nil
}

// checkUpgradeEligibility rejects a new provider subscription when the
// organization already has an active paid one. Starter-tier organizations
// may always upgrade.
func (s *SubscriptionService) checkUpgradeEligibility(ctx context.Context, orgID int64) error {
	current, err := s.subscriptionRepo.FindByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	if current.Status != subscription.StatusActive {
		return nil
	}

	currentPlan, err := s.planRepo.FindByCode(ctx, current.PlanCode)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			// Plan misconfiguration must not block leaving it.
			s.logger.Warn("active subscription references unknown plan",
				zap.Int64("org_id", orgID),
				zap.String("plan_code", current.PlanCode),
			)
			return nil
		}
		return fmt.Errorf("failed to load current plan: %w", err)
	}

	if !currentPlan.IsFree() {
		return fmt.Errorf("organization already has an active paid subscription: %w", xerrors.ErrConflict)
	}

	return nil
}

func (s *SubscriptionService) switchToPlan(ctx context.Context, orgID int64, target *plan.Plan) (*subscription.Subscription, error) {
	err := s.subscriptionRepo.SwitchPlan(ctx, orgID, target.PlanCode, subscription.StatusActive)
	if errors.Is(err, xerrors.ErrNotFound) {
		sub := &subscription.Subscription{
			SubscriptionReference: newReference(),
			OrganizationID:        orgID,
			PlanCode:              target.PlanCode,
			Status:                subscription.StatusActive,
			PaymentProvider:       subscription.ProviderPayPal,
			StartedAt:             time.Now(),
		}
		if err := s.subscriptionRepo.Upsert(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
		return sub, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to switch plan: %w", err)
	}

	s.logger.Info("switched plan without provider billing",
		zap.Int64("org_id", orgID),
		zap.String("plan_code", target.PlanCode),
	)

	return s.subscriptionRepo.FindByOrganization(ctx, orgID)
}

// newReference generates a unique local subscription reference.
func newReference() string {
	return "SUB-" + ulid.Make().String()
}
