// internal/service/onboarding/onboarding_service.go
package onboarding

import (
	"context"
	"fmt"
	"time"

	"ledgerly-service/internal/domain/subscription"
	"ledgerly-service/internal/repository/postgres"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const defaultFreePlanCode = "starter"

// OnboardingService provisions a new organization's sample data and its
// default free-tier subscription in a single transaction. Partial
// onboarding state must never be visible.
type OnboardingService struct {
	onboardingRepo   *postgres.OnboardingRepository
	subscriptionRepo *postgres.SubscriptionRepository
	planRepo         *postgres.PlanRepository
	db               *postgres.DB
	logger           *zap.Logger
}

func NewOnboardingService(
	onboardingRepo *postgres.OnboardingRepository,
	subscriptionRepo *postgres.SubscriptionRepository,
	planRepo *postgres.PlanRepository,
	db *postgres.DB,
	logger *zap.Logger,
) *OnboardingService {
	return &OnboardingService{
		onboardingRepo:   onboardingRepo,
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		db:               db,
		logger:           logger,
	}
}

// ProvisionDefaults creates the default unit, a sample product, customer
// and draft invoice, plus the starter subscription. All-or-nothing.
func (s *OnboardingService) ProvisionDefaults(ctx context.Context, orgID int64) (*subscription.Subscription, error) {
	if _, err := s.planRepo.FindByCode(ctx, defaultFreePlanCode); err != nil {
		return nil, fmt.Errorf("free plan not available: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	unitID, err := s.onboardingRepo.CreateUnitWithTx(ctx, tx, orgID, "Main unit")
	if err != nil {
		return nil, err
	}

	if _, err := s.onboardingRepo.CreateProductWithTx(ctx, tx, orgID, unitID, "Sample product", 10.0); err != nil {
		return nil, err
	}

	customerID, err := s.onboardingRepo.CreateCustomerWithTx(ctx, tx, orgID, unitID, "Sample customer", "customer@example.com")
	if err != nil {
		return nil, err
	}

	invoiceNumber := "INV-" + ulid.Make().String()
	if _, err := s.onboardingRepo.CreateInvoiceWithTx(ctx, tx, orgID, unitID, customerID, invoiceNumber, 10.0); err != nil {
		return nil, err
	}

	sub := &subscription.Subscription{
		SubscriptionReference: "SUB-" + ulid.Make().String(),
		OrganizationID:        orgID,
		PlanCode:              defaultFreePlanCode,
		Status:                subscription.StatusActive,
		PaymentProvider:       subscription.ProviderPayPal,
		StartedAt:             time.Now(),
	}
	if err := s.subscriptionRepo.CreateWithTx(ctx, tx, sub); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("organization onboarded",
		zap.Int64("org_id", orgID),
		zap.Int64("unit_id", unitID),
		zap.String("subscription_reference", sub.SubscriptionReference),
	)

	return sub, nil
}
