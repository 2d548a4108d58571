// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledgerly-service/internal/domain/subscription"
	xerrors "ledgerly-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, subscription_reference, organization_id, plan_code,
	       status, payment_provider, external_id,
	       started_at, cancelled_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.ID, &s.SubscriptionReference, &s.OrganizationID, &s.PlanCode,
		&s.Status, &s.PaymentProvider, &s.ExternalID,
		&s.StartedAt, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &s, nil
}

// FindByOrganization retrieves the subscription owned by an organization
func (r *SubscriptionRepository) FindByOrganization(ctx context.Context, orgID int64) (*subscription.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE organization_id = $1`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, orgID))
}

// FindByExternalID retrieves a subscription by the provider-side id
func (r *SubscriptionRepository) FindByExternalID(ctx context.Context, externalID string) (*subscription.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE external_id = $1`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, externalID))
}

// Upsert inserts or replaces the organization's subscription row. Keyed by
// organization_id; an organization owns at most one subscription.
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			subscription_reference, organization_id, plan_code,
			status, payment_provider, external_id, started_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (organization_id) DO UPDATE
		SET plan_code = EXCLUDED.plan_code,
		    status = EXCLUDED.status,
		    payment_provider = EXCLUDED.payment_provider,
		    external_id = EXCLUDED.external_id,
		    started_at = EXCLUDED.started_at,
		    cancelled_at = EXCLUDED.cancelled_at,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		s.SubscriptionReference, s.OrganizationID, s.PlanCode,
		s.Status, s.PaymentProvider, s.ExternalID, s.StartedAt, s.CancelledAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// CreateWithTx creates a subscription within a transaction
func (r *SubscriptionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, s *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			subscription_reference, organization_id, plan_code,
			status, payment_provider, external_id, started_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(
		ctx, query,
		s.SubscriptionReference, s.OrganizationID, s.PlanCode,
		s.Status, s.PaymentProvider, s.ExternalID, s.StartedAt, s.CancelledAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// ApplyEventByOrganization upserts the subscription from a provider
// creation/activation event. The external id from the event always wins;
// the provider is the source of truth for the billing relationship. Any
// pending cancel request is cleared: the provider just (re)confirmed the
// subscription, so a stale cancelled_at must not linger on an active row.
func (r *SubscriptionRepository) ApplyEventByOrganization(ctx context.Context, orgID int64, reference, planCode string, status subscription.SubscriptionStatus, externalID string) error {
	query := `
		INSERT INTO subscriptions (
			subscription_reference, organization_id, plan_code,
			status, payment_provider, external_id, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (organization_id) DO UPDATE
		SET plan_code = EXCLUDED.plan_code,
		    status = EXCLUDED.status,
		    external_id = EXCLUDED.external_id,
		    cancelled_at = NULL,
		    updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query, reference, orgID, planCode, status, subscription.ProviderPayPal, externalID)
	if err != nil {
		return fmt.Errorf("failed to apply subscription event: %w", err)
	}

	return nil
}

// UpdateStatusByExternalID overwrites the status of the subscription
// identified by the provider-side id. Last write wins.
func (r *SubscriptionRepository) UpdateStatusByExternalID(ctx context.Context, externalID string, status subscription.SubscriptionStatus) error {
	query := `UPDATE subscriptions SET status = $1, updated_at = $2 WHERE external_id = $3`

	result, err := r.db.Exec(ctx, query, status, time.Now(), externalID)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// MarkCancelRequested records a user-initiated cancellation request.
// Status is left untouched; the webhook applies the terminal status.
func (r *SubscriptionRepository) MarkCancelRequested(ctx context.Context, orgID int64, at time.Time) error {
	query := `UPDATE subscriptions SET cancelled_at = $1, updated_at = $1 WHERE organization_id = $2`

	result, err := r.db.Exec(ctx, query, at, orgID)
	if err != nil {
		return fmt.Errorf("failed to mark cancel requested: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// SwitchPlan updates plan and status directly, bypassing the provider.
// Used for the free tier, which has no billing relationship.
func (r *SubscriptionRepository) SwitchPlan(ctx context.Context, orgID int64, planCode string, status subscription.SubscriptionStatus) error {
	query := `
		UPDATE subscriptions
		SET plan_code = $1, status = $2, cancelled_at = $3, updated_at = NOW()
		WHERE organization_id = $4
	`

	result, err := r.db.Exec(ctx, query, planCode, status, sql.NullTime{}, orgID)
	if err != nil {
		return fmt.Errorf("failed to switch plan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
