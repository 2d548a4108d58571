package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"ledgerly-service/internal/domain/subscription"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subscriptionsSchema = `
	CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGSERIAL PRIMARY KEY,
		subscription_reference TEXT NOT NULL,
		organization_id BIGINT NOT NULL UNIQUE,
		plan_code TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_provider TEXT NOT NULL,
		external_id TEXT UNIQUE,
		started_at TIMESTAMPTZ NOT NULL,
		cancelled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), subscriptionsSchema)
	require.NoError(t, err)
	return pool
}

func TestApplyEventByOrganizationClearsCancelRequest(t *testing.T) {
	pool := testPool(t)
	repo := NewSubscriptionRepository(pool)
	ctx := context.Background()

	const orgID = int64(910001)
	_, err := pool.Exec(ctx, `DELETE FROM subscriptions WHERE organization_id = $1`, orgID)
	require.NoError(t, err)

	sub := &subscription.Subscription{
		SubscriptionReference: "SUB-01TESTREINSTATE00000000",
		OrganizationID:        orgID,
		PlanCode:              "pro",
		Status:                subscription.StatusActive,
		PaymentProvider:       subscription.ProviderPayPal,
		StartedAt:             time.Now(),
	}
	sub.ExternalID.String = "I-REINSTATE-1"
	sub.ExternalID.Valid = true
	require.NoError(t, repo.Upsert(ctx, sub))
	require.NoError(t, repo.MarkCancelRequested(ctx, orgID, time.Now()))

	// An ACTIVATED event lands after the cancel request. The provider
	// reconfirmed the subscription, so the pending cancel marker must go.
	err = repo.ApplyEventByOrganization(ctx, orgID, "SUB-01TESTREINSTATE00000001", "pro", subscription.StatusActive, "I-REINSTATE-1")
	require.NoError(t, err)

	got, err := repo.FindByOrganization(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, got.Status)
	assert.False(t, got.CancelledAt.Valid, "activation clears the stale cancel request")
	assert.False(t, got.CancelPending())
}
