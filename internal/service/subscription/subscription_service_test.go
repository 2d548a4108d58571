package subscription

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"ledgerly-service/internal/domain/plan"
	"ledgerly-service/internal/domain/subscription"
	"ledgerly-service/internal/paypal"
	xerrors "ledgerly-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	createResult *paypal.CreateSubscriptionResult
	createErr    error
	createCalls  int
	lastPlanID   string
	lastOrgID    int64

	cancelErr   error
	cancelCalls int
	lastReason  string

	reviseResult *paypal.ReviseResult
	reviseErr    error
	reviseCalls  int

	getResult *paypal.SubscriptionDetail
	getErr    error
}

func (f *fakeGateway) CreateSubscription(ctx context.Context, providerPlanID string, orgID int64, returnURL, cancelURL string) (*paypal.CreateSubscriptionResult, error) {
	f.createCalls++
	f.lastPlanID = providerPlanID
	f.lastOrgID = orgID
	return f.createResult, f.createErr
}

func (f *fakeGateway) GetSubscription(ctx context.Context, externalID string) (*paypal.SubscriptionDetail, error) {
	return f.getResult, f.getErr
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, externalID, reason string) error {
	f.cancelCalls++
	f.lastReason = reason
	return f.cancelErr
}

func (f *fakeGateway) ReviseSubscription(ctx context.Context, externalID, newProviderPlanID string) (*paypal.ReviseResult, error) {
	f.reviseCalls++
	return f.reviseResult, f.reviseErr
}

type switchCall struct {
	planCode string
	status   subscription.SubscriptionStatus
}

type fakeSubStore struct {
	sub     *subscription.Subscription
	findErr error

	upserted  *subscription.Subscription
	upsertErr error

	cancelMarked bool
	markErr      error

	switches  []switchCall
	switchErr error
}

func (f *fakeSubStore) FindByOrganization(ctx context.Context, orgID int64) (*subscription.Subscription, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.sub, nil
}

func (f *fakeSubStore) Upsert(ctx context.Context, s *subscription.Subscription) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = s
	f.sub = s
	return nil
}

func (f *fakeSubStore) MarkCancelRequested(ctx context.Context, orgID int64, at time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.cancelMarked = true
	return nil
}

func (f *fakeSubStore) SwitchPlan(ctx context.Context, orgID int64, planCode string, status subscription.SubscriptionStatus) error {
	if f.switchErr != nil {
		return f.switchErr
	}
	f.switches = append(f.switches, switchCall{planCode, status})
	if f.sub != nil {
		f.sub.PlanCode = planCode
		f.sub.Status = status
	}
	return nil
}

type fakePlanStore struct {
	plans map[string]*plan.Plan
}

func (f *fakePlanStore) FindByCode(ctx context.Context, planCode string) (*plan.Plan, error) {
	p, ok := f.plans[planCode]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return p, nil
}

func paidPlan(code, providerPlanID string) *plan.Plan {
	return &plan.Plan{
		PlanCode:       code,
		Status:         plan.StatusActive,
		MonthlyPrice:   29.0,
		Currency:       "USD",
		ProviderPlanID: sql.NullString{String: providerPlanID, Valid: true},
	}
}

func freePlan() *plan.Plan {
	return &plan.Plan{PlanCode: DefaultFreePlanCode, Status: plan.StatusActive}
}

func starterSub(orgID int64) *subscription.Subscription {
	return &subscription.Subscription{
		OrganizationID:  orgID,
		PlanCode:        DefaultFreePlanCode,
		Status:          subscription.StatusActive,
		PaymentProvider: subscription.ProviderPayPal,
	}
}

func newTestService(subs *fakeSubStore, plans *fakePlanStore, gateway *fakeGateway) *SubscriptionService {
	return NewSubscriptionService(subs, plans, gateway, "https://app.example.com", zap.NewNop())
}

func TestSubscribePaidPlanReturnsApprovalURL(t *testing.T) {
	subs := &fakeSubStore{sub: starterSub(42)}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{
		DefaultFreePlanCode: freePlan(),
		"pro":               paidPlan("pro", "P-PRO"),
	}}
	gateway := &fakeGateway{createResult: &paypal.CreateSubscriptionResult{
		ID:          "I-NEW",
		Status:      paypal.SubStatusApprovalPending,
		ApprovalURL: "https://paypal.example/approve/I-NEW",
	}}
	svc := newTestService(subs, plans, gateway)

	resp, err := svc.Subscribe(context.Background(), 42, "pro")

	require.NoError(t, err)
	assert.Equal(t, "https://paypal.example/approve/I-NEW", resp.ApprovalURL)
	assert.Equal(t, "P-PRO", gateway.lastPlanID)
	assert.Equal(t, int64(42), gateway.lastOrgID)

	require.NotNil(t, subs.upserted)
	assert.Equal(t, subscription.StatusCreated, subs.upserted.Status)
	assert.Equal(t, "pro", subs.upserted.PlanCode)
	assert.Equal(t, "I-NEW", subs.upserted.ExternalID.String)
	assert.True(t, strings.HasPrefix(subs.upserted.SubscriptionReference, "SUB-"))
}

func TestSubscribeFreePlanSkipsProvider(t *testing.T) {
	subs := &fakeSubStore{sub: starterSub(42)}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{DefaultFreePlanCode: freePlan()}}
	gateway := &fakeGateway{}
	svc := newTestService(subs, plans, gateway)

	resp, err := svc.Subscribe(context.Background(), 42, DefaultFreePlanCode)

	require.NoError(t, err)
	assert.Zero(t, gateway.createCalls, "free tier never touches the provider")
	assert.Empty(t, resp.ApprovalURL)
	require.NotNil(t, resp.Subscription)
	assert.Equal(t, subscription.StatusActive, resp.Subscription.Status)
}

func TestSubscribeRejectsUnknownPlan(t *testing.T) {
	svc := newTestService(&fakeSubStore{}, &fakePlanStore{plans: map[string]*plan.Plan{}}, &fakeGateway{})

	_, err := svc.Subscribe(context.Background(), 42, "nonexistent")

	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestSubscribeRejectsRetiredPlan(t *testing.T) {
	retired := paidPlan("legacy", "P-LEGACY")
	retired.Status = plan.StatusRetired
	svc := newTestService(&fakeSubStore{}, &fakePlanStore{plans: map[string]*plan.Plan{"legacy": retired}}, &fakeGateway{})

	_, err := svc.Subscribe(context.Background(), 42, "legacy")

	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestSubscribeBlocksActivePaidSubscription(t *testing.T) {
	current := starterSub(42)
	current.PlanCode = "pro"
	subs := &fakeSubStore{sub: current}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{
		"pro":      paidPlan("pro", "P-PRO"),
		"business": paidPlan("business", "P-BIZ"),
	}}
	gateway := &fakeGateway{}
	svc := newTestService(subs, plans, gateway)

	_, err := svc.Subscribe(context.Background(), 42, "business")

	assert.ErrorIs(t, err, xerrors.ErrConflict)
	assert.Zero(t, gateway.createCalls)
}

func TestSubscribeAllowedAfterTerminalSubscription(t *testing.T) {
	current := starterSub(42)
	current.PlanCode = "pro"
	current.Status = subscription.StatusCancelled
	subs := &fakeSubStore{sub: current}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{"pro": paidPlan("pro", "P-PRO")}}
	gateway := &fakeGateway{createResult: &paypal.CreateSubscriptionResult{ID: "I-NEW", ApprovalURL: "https://paypal.example/a"}}
	svc := newTestService(subs, plans, gateway)

	resp, err := svc.Subscribe(context.Background(), 42, "pro")

	require.NoError(t, err)
	assert.Equal(t, 1, gateway.createCalls)
	assert.NotEmpty(t, resp.ApprovalURL)
}

func TestSubscribePersistFailureStillReturnsApprovalURL(t *testing.T) {
	subs := &fakeSubStore{findErr: xerrors.ErrNotFound, upsertErr: errors.New("connection refused")}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{"pro": paidPlan("pro", "P-PRO")}}
	gateway := &fakeGateway{createResult: &paypal.CreateSubscriptionResult{ID: "I-NEW", ApprovalURL: "https://paypal.example/a"}}
	svc := newTestService(subs, plans, gateway)

	resp, err := svc.Subscribe(context.Background(), 42, "pro")

	require.NoError(t, err, "the webhook recreates the row from custom_id; do not fail the redirect")
	assert.Equal(t, "https://paypal.example/a", resp.ApprovalURL)
	assert.Nil(t, resp.Subscription)
}

func TestCancelCallsProviderThenMarksPending(t *testing.T) {
	sub := starterSub(42)
	sub.PlanCode = "pro"
	sub.ExternalID = sql.NullString{String: "I-SUB-1", Valid: true}
	subs := &fakeSubStore{sub: sub}
	gateway := &fakeGateway{}
	svc := newTestService(subs, &fakePlanStore{}, gateway)

	err := svc.Cancel(context.Background(), 42, "too expensive")

	require.NoError(t, err)
	assert.Equal(t, 1, gateway.cancelCalls)
	assert.Equal(t, "too expensive", gateway.lastReason)
	assert.True(t, subs.cancelMarked)
	assert.Equal(t, subscription.StatusActive, subs.sub.Status, "terminal status is the webhook's to write")
}

func TestCancelWithoutSubscription(t *testing.T) {
	svc := newTestService(&fakeSubStore{findErr: xerrors.ErrNotFound}, &fakePlanStore{}, &fakeGateway{})

	err := svc.Cancel(context.Background(), 42, "")

	assert.ErrorIs(t, err, xerrors.ErrNoSubscription)
}

func TestCancelTerminalSubscription(t *testing.T) {
	sub := starterSub(42)
	sub.Status = subscription.StatusCancelled
	gateway := &fakeGateway{}
	svc := newTestService(&fakeSubStore{sub: sub}, &fakePlanStore{}, gateway)

	err := svc.Cancel(context.Background(), 42, "")

	assert.ErrorIs(t, err, xerrors.ErrSubscriptionTerminal)
	assert.Zero(t, gateway.cancelCalls)
}

func TestCancelProviderFailureLeavesLocalStateUntouched(t *testing.T) {
	sub := starterSub(42)
	sub.ExternalID = sql.NullString{String: "I-SUB-1", Valid: true}
	subs := &fakeSubStore{sub: sub}
	gateway := &fakeGateway{cancelErr: &paypal.ProviderError{StatusCode: 500, Code: "INTERNAL_SERVER_ERROR"}}
	svc := newTestService(subs, &fakePlanStore{}, gateway)

	err := svc.Cancel(context.Background(), 42, "")

	require.Error(t, err)
	assert.False(t, subs.cancelMarked)
}

func TestCancelMarkFailureIsNotFatal(t *testing.T) {
	sub := starterSub(42)
	sub.ExternalID = sql.NullString{String: "I-SUB-1", Valid: true}
	subs := &fakeSubStore{sub: sub, markErr: errors.New("connection refused")}
	svc := newTestService(subs, &fakePlanStore{}, &fakeGateway{})

	err := svc.Cancel(context.Background(), 42, "")

	assert.NoError(t, err, "provider cancel succeeded; the webhook lands the terminal status")
}

func TestSwitchToFreeMakesNoProviderCall(t *testing.T) {
	sub := starterSub(42)
	sub.PlanCode = "pro"
	subs := &fakeSubStore{sub: sub}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{DefaultFreePlanCode: freePlan()}}
	gateway := &fakeGateway{}
	svc := newTestService(subs, plans, gateway)

	result, err := svc.SwitchToFree(context.Background(), 42)

	require.NoError(t, err)
	assert.Zero(t, gateway.createCalls)
	assert.Zero(t, gateway.cancelCalls)
	assert.Zero(t, gateway.reviseCalls)
	require.Len(t, subs.switches, 1)
	assert.Equal(t, DefaultFreePlanCode, subs.switches[0].planCode)
	assert.Equal(t, subscription.StatusActive, subs.switches[0].status)
	assert.Equal(t, DefaultFreePlanCode, result.PlanCode)
}

func TestSwitchToFreeCreatesRowWhenNoneExists(t *testing.T) {
	subs := &fakeSubStore{switchErr: xerrors.ErrNotFound}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{DefaultFreePlanCode: freePlan()}}
	svc := newTestService(subs, plans, &fakeGateway{})

	result, err := svc.SwitchToFree(context.Background(), 42)

	require.NoError(t, err)
	require.NotNil(t, subs.upserted)
	assert.Equal(t, DefaultFreePlanCode, result.PlanCode)
	assert.Equal(t, subscription.StatusActive, result.Status)
}

func TestChangePlanAppliedImmediately(t *testing.T) {
	sub := starterSub(42)
	sub.PlanCode = "pro"
	sub.ExternalID = sql.NullString{String: "I-SUB-1", Valid: true}
	subs := &fakeSubStore{sub: sub}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{"business": paidPlan("business", "P-BIZ")}}
	gateway := &fakeGateway{reviseResult: &paypal.ReviseResult{Applied: true}}
	svc := newTestService(subs, plans, gateway)

	resp, err := svc.ChangePlan(context.Background(), 42, "business")

	require.NoError(t, err)
	assert.True(t, resp.Applied)
	require.Len(t, subs.switches, 1)
	assert.Equal(t, "business", subs.switches[0].planCode)
}

func TestChangePlanDeferredToApproval(t *testing.T) {
	sub := starterSub(42)
	sub.PlanCode = "pro"
	sub.ExternalID = sql.NullString{String: "I-SUB-1", Valid: true}
	subs := &fakeSubStore{sub: sub}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{"business": paidPlan("business", "P-BIZ")}}
	gateway := &fakeGateway{reviseResult: &paypal.ReviseResult{Applied: false, ApprovalURL: "https://paypal.example/approve"}}
	svc := newTestService(subs, plans, gateway)

	resp, err := svc.ChangePlan(context.Background(), 42, "business")

	require.NoError(t, err)
	assert.False(t, resp.Applied)
	assert.Equal(t, "https://paypal.example/approve", resp.ApprovalURL)
	assert.Empty(t, subs.switches, "local plan change waits for the provider to apply it")
}

func TestChangePlanToFreeIsRejected(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]*plan.Plan{DefaultFreePlanCode: freePlan()}}
	svc := newTestService(&fakeSubStore{}, plans, &fakeGateway{})

	_, err := svc.ChangePlan(context.Background(), 42, DefaultFreePlanCode)

	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestChangePlanRequiresActiveSubscription(t *testing.T) {
	sub := starterSub(42)
	sub.Status = subscription.StatusSuspended
	sub.ExternalID = sql.NullString{String: "I-SUB-1", Valid: true}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{"business": paidPlan("business", "P-BIZ")}}
	svc := newTestService(&fakeSubStore{sub: sub}, plans, &fakeGateway{})

	_, err := svc.ChangePlan(context.Background(), 42, "business")

	assert.ErrorIs(t, err, xerrors.ErrSubscriptionInactive)
}

func TestCurrentWithoutSubscription(t *testing.T) {
	svc := newTestService(&fakeSubStore{findErr: xerrors.ErrNotFound}, &fakePlanStore{}, &fakeGateway{})

	_, err := svc.Current(context.Background(), 42)

	assert.ErrorIs(t, err, xerrors.ErrNoSubscription)
}

func TestCurrentEnrichesWithProviderDetail(t *testing.T) {
	sub := starterSub(42)
	sub.ExternalID = sql.NullString{String: "I-SUB-1", Valid: true}
	gateway := &fakeGateway{getResult: &paypal.SubscriptionDetail{
		ID:     "I-SUB-1",
		Status: paypal.SubStatusActive,
		Raw:    map[string]any{"id": "I-SUB-1"},
	}}
	svc := newTestService(&fakeSubStore{sub: sub}, &fakePlanStore{}, gateway)

	detail, err := svc.Current(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, paypal.SubStatusActive, detail.ProviderStatus)
	assert.NotNil(t, detail.ProviderDetail)
}

func TestCurrentToleratesProviderOutage(t *testing.T) {
	sub := starterSub(42)
	sub.ExternalID = sql.NullString{String: "I-SUB-1", Valid: true}
	sub.CancelledAt = sql.NullTime{Time: time.Now(), Valid: true}
	gateway := &fakeGateway{getErr: &paypal.ProviderError{StatusCode: 503}}
	svc := newTestService(&fakeSubStore{sub: sub}, &fakePlanStore{}, gateway)

	detail, err := svc.Current(context.Background(), 42)

	require.NoError(t, err, "local state answers even when the provider is down")
	assert.Empty(t, detail.ProviderStatus)
	assert.True(t, detail.CancelPending)
}
