package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ledgerly-service/internal/domain/plan"
	"ledgerly-service/internal/domain/subscription"
	"ledgerly-service/internal/paypal"
	xerrors "ledgerly-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVerifier struct {
	verified bool
	err      error
	calls    int
}

func (f *fakeVerifier) VerifyWebhookSignature(ctx context.Context, headers paypal.WebhookHeaders, body []byte) (bool, error) {
	f.calls++
	return f.verified, f.err
}

type orgApply struct {
	orgID      int64
	planCode   string
	status     subscription.SubscriptionStatus
	externalID string
}

type externalApply struct {
	externalID string
	status     subscription.SubscriptionStatus
}

type fakeSubStore struct {
	orgApplies      []orgApply
	externalApplies []externalApply
	orgErr          error
	externalErr     error
}

func (f *fakeSubStore) ApplyEventByOrganization(ctx context.Context, orgID int64, reference, planCode string, status subscription.SubscriptionStatus, externalID string) error {
	if f.orgErr != nil {
		return f.orgErr
	}
	f.orgApplies = append(f.orgApplies, orgApply{orgID, planCode, status, externalID})
	return nil
}

func (f *fakeSubStore) UpdateStatusByExternalID(ctx context.Context, externalID string, status subscription.SubscriptionStatus) error {
	if f.externalErr != nil {
		return f.externalErr
	}
	f.externalApplies = append(f.externalApplies, externalApply{externalID, status})
	return nil
}

type fakePlanStore struct {
	plans map[string]*plan.Plan
}

func (f *fakePlanStore) FindByProviderPlanID(ctx context.Context, providerPlanID string) (*plan.Plan, error) {
	p, ok := f.plans[providerPlanID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return p, nil
}

type fakeDedup struct {
	seen    map[string]bool
	seenErr error
	markErr error
}

func (f *fakeDedup) Seen(ctx context.Context, transmissionID string) (bool, error) {
	if f.seenErr != nil {
		return false, f.seenErr
	}
	return f.seen[transmissionID], nil
}

func (f *fakeDedup) Mark(ctx context.Context, transmissionID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[transmissionID] = true
	return nil
}

func validHeaders() paypal.WebhookHeaders {
	return paypal.WebhookHeaders{
		AuthAlgo:         "SHA256withRSA",
		TransmissionID:   "tx-1",
		CertURL:          "https://api.sandbox.paypal.com/cert.pem",
		TransmissionSig:  "sig",
		TransmissionTime: "2026-08-31T10:00:00Z",
	}
}

func eventBody(eventType, externalID, customID, planID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "WH-1",
		"event_type": %q,
		"create_time": "2026-08-31T10:00:00Z",
		"resource": {"id": %q, "custom_id": %q, "plan_id": %q, "status": "ACTIVE"}
	}`, eventType, externalID, customID, planID))
}

func newTestReconciler(subs *fakeSubStore, plans *fakePlanStore, verifier *fakeVerifier, dedup DedupStore) *Reconciler {
	return NewReconciler(subs, plans, verifier, dedup, zap.NewNop())
}

func TestProcessRejectsMissingAuthHeaders(t *testing.T) {
	subs := &fakeSubStore{}
	verifier := &fakeVerifier{verified: true}
	r := newTestReconciler(subs, &fakePlanStore{}, verifier, nil)

	headers := validHeaders()
	headers.TransmissionSig = ""

	err := r.Process(context.Background(), headers, eventBody(EventSubscriptionActivated, "I-1", "42", "P-1"))

	require.ErrorIs(t, err, ErrMissingAuthHeaders)
	assert.Zero(t, verifier.calls, "must not reach the verifier")
	assert.Empty(t, subs.orgApplies)
	assert.Empty(t, subs.externalApplies)
}

func TestProcessRejectsInvalidSignature(t *testing.T) {
	subs := &fakeSubStore{}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: false}, nil)

	err := r.Process(context.Background(), validHeaders(), eventBody(EventSubscriptionActivated, "I-1", "42", "P-1"))

	require.ErrorIs(t, err, ErrSignatureInvalid)
	assert.Empty(t, subs.orgApplies)
}

func TestProcessPropagatesVerifierOutage(t *testing.T) {
	subs := &fakeSubStore{}
	verifier := &fakeVerifier{err: errors.New("verification endpoint down")}
	r := newTestReconciler(subs, &fakePlanStore{}, verifier, nil)

	err := r.Process(context.Background(), validHeaders(), eventBody(EventSubscriptionActivated, "I-1", "42", "P-1"))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSignatureInvalid, "outage must be retryable, not a rejection")
	assert.Empty(t, subs.orgApplies)
}

func TestProcessRejectsMalformedBody(t *testing.T) {
	r := newTestReconciler(&fakeSubStore{}, &fakePlanStore{}, &fakeVerifier{verified: true}, nil)

	assert.ErrorIs(t, r.Process(context.Background(), validHeaders(), []byte("{not json")), ErrMalformedEvent)
	assert.ErrorIs(t, r.Process(context.Background(), validHeaders(), []byte(`{"id":"WH-1"}`)), ErrMalformedEvent)
}

func TestProcessAcksUnmodeledEventTypes(t *testing.T) {
	subs := &fakeSubStore{}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, nil)

	err := r.Process(context.Background(), validHeaders(), eventBody("PAYMENT.SALE.COMPLETED", "I-1", "42", "P-1"))

	require.NoError(t, err)
	assert.Empty(t, subs.orgApplies)
	assert.Empty(t, subs.externalApplies)
}

func TestProcessActivatedUpsertsByOrganization(t *testing.T) {
	subs := &fakeSubStore{}
	plans := &fakePlanStore{plans: map[string]*plan.Plan{
		"P-PRO": {PlanCode: "pro"},
	}}
	r := newTestReconciler(subs, plans, &fakeVerifier{verified: true}, nil)

	err := r.Process(context.Background(), validHeaders(), eventBody(EventSubscriptionActivated, "I-SUB-1", "42", "P-PRO"))

	require.NoError(t, err)
	require.Len(t, subs.orgApplies, 1)
	applied := subs.orgApplies[0]
	assert.Equal(t, int64(42), applied.orgID)
	assert.Equal(t, "pro", applied.planCode)
	assert.Equal(t, subscription.StatusActive, applied.status)
	assert.Equal(t, "I-SUB-1", applied.externalID)
}

func TestProcessActivatedWithoutCorrelationTokenIsNoOp(t *testing.T) {
	subs := &fakeSubStore{}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, nil)

	err := r.Process(context.Background(), validHeaders(), eventBody(EventSubscriptionActivated, "I-SUB-1", "not-an-org", "P-PRO"))

	require.NoError(t, err, "redelivery cannot fix a missing token, so ack it")
	assert.Empty(t, subs.orgApplies)
}

func TestProcessActivatedWithUnknownProviderPlanIsNoOp(t *testing.T) {
	subs := &fakeSubStore{}
	r := newTestReconciler(subs, &fakePlanStore{plans: map[string]*plan.Plan{}}, &fakeVerifier{verified: true}, nil)

	err := r.Process(context.Background(), validHeaders(), eventBody(EventSubscriptionActivated, "I-SUB-1", "42", "P-UNKNOWN"))

	require.NoError(t, err)
	assert.Empty(t, subs.orgApplies)
}

func TestProcessLifecycleEventUpdatesByExternalID(t *testing.T) {
	cases := []struct {
		eventType string
		want      subscription.SubscriptionStatus
	}{
		{EventSubscriptionCancelled, subscription.StatusCancelled},
		{EventSubscriptionSuspended, subscription.StatusSuspended},
		{EventSubscriptionExpired, subscription.StatusExpired},
	}

	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			subs := &fakeSubStore{}
			r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, nil)

			err := r.Process(context.Background(), validHeaders(), eventBody(tc.eventType, "I-SUB-1", "", ""))

			require.NoError(t, err)
			require.Len(t, subs.externalApplies, 1)
			assert.Equal(t, "I-SUB-1", subs.externalApplies[0].externalID)
			assert.Equal(t, tc.want, subs.externalApplies[0].status)
		})
	}
}

func TestProcessLifecycleEventForUnknownSubscriptionIsNoOp(t *testing.T) {
	subs := &fakeSubStore{externalErr: xerrors.ErrNotFound}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, nil)

	err := r.Process(context.Background(), validHeaders(), eventBody(EventSubscriptionCancelled, "I-GONE", "", ""))

	require.NoError(t, err)
}

func TestProcessPropagatesPersistenceFailure(t *testing.T) {
	subs := &fakeSubStore{externalErr: errors.New("connection refused")}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, nil)

	err := r.Process(context.Background(), validHeaders(), eventBody(EventSubscriptionCancelled, "I-SUB-1", "", ""))

	require.Error(t, err, "persistence failures must surface so the provider redelivers")
}

func TestProcessSuppressesDuplicateTransmission(t *testing.T) {
	subs := &fakeSubStore{}
	dedup := &fakeDedup{}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, dedup)

	body := eventBody(EventSubscriptionCancelled, "I-SUB-1", "", "")
	require.NoError(t, r.Process(context.Background(), validHeaders(), body))
	require.NoError(t, r.Process(context.Background(), validHeaders(), body))

	assert.Len(t, subs.externalApplies, 1, "second delivery of the same transmission id is a no-op")
}

func TestProcessAppliesWhenDedupStoreIsDown(t *testing.T) {
	subs := &fakeSubStore{}
	dedup := &fakeDedup{seenErr: errors.New("redis down"), markErr: errors.New("redis down")}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, dedup)

	err := r.Process(context.Background(), validHeaders(), eventBody(EventSubscriptionCancelled, "I-SUB-1", "", ""))

	require.NoError(t, err)
	assert.Len(t, subs.externalApplies, 1, "dedup is best-effort, not a gate")
}

func TestProcessRedeliveryAfterFailedWriteApplies(t *testing.T) {
	subs := &fakeSubStore{externalErr: errors.New("connection refused")}
	dedup := &fakeDedup{}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, dedup)

	body := eventBody(EventSubscriptionCancelled, "I-SUB-1", "", "")
	require.Error(t, r.Process(context.Background(), validHeaders(), body))
	assert.Empty(t, dedup.seen, "a failed write must not consume the transmission id")

	// The provider redelivers with the same transmission id once the
	// store recovers; the event must still land.
	subs.externalErr = nil
	require.NoError(t, r.Process(context.Background(), validHeaders(), body))
	require.Len(t, subs.externalApplies, 1)
	assert.Equal(t, subscription.StatusCancelled, subs.externalApplies[0].status)
}

func TestProcessOutOfOrderDeliveryOverwritesTerminalStatus(t *testing.T) {
	subs := &fakeSubStore{}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, nil)

	// A stale SUSPENDED delivered after CANCELLED reopens the record.
	// Known limitation of the last-write-wins design; this test documents
	// the behavior rather than endorsing it.
	cancelled := validHeaders()
	cancelled.TransmissionID = "tx-cancel"
	require.NoError(t, r.Process(context.Background(), cancelled, eventBody(EventSubscriptionCancelled, "I-SUB-1", "", "")))

	stale := validHeaders()
	stale.TransmissionID = "tx-suspend"
	require.NoError(t, r.Process(context.Background(), stale, eventBody(EventSubscriptionSuspended, "I-SUB-1", "", "")))

	require.Len(t, subs.externalApplies, 2)
	assert.Equal(t, subscription.StatusSuspended, subs.externalApplies[1].status)
}

func TestProcessRedeliveryWithoutDedupIsIdempotent(t *testing.T) {
	subs := &fakeSubStore{}
	r := newTestReconciler(subs, &fakePlanStore{}, &fakeVerifier{verified: true}, nil)

	body := eventBody(EventSubscriptionCancelled, "I-SUB-1", "", "")
	require.NoError(t, r.Process(context.Background(), validHeaders(), body))
	require.NoError(t, r.Process(context.Background(), validHeaders(), body))

	// Both applies write the same terminal status; the transition is
	// idempotent even without the dedup layer.
	require.Len(t, subs.externalApplies, 2)
	assert.Equal(t, subs.externalApplies[0], subs.externalApplies[1])
}
