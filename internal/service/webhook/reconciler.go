// internal/service/webhook/reconciler.go
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"ledgerly-service/internal/domain/plan"
	"ledgerly-service/internal/domain/subscription"
	"ledgerly-service/internal/paypal"
	xerrors "ledgerly-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Provider event types this system models. Anything else is acknowledged
// and ignored so the provider never retries event types we do not handle.
const (
	EventSubscriptionCreated   = "BILLING.SUBSCRIPTION.CREATED"
	EventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	EventSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	EventSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
)

var (
	// ErrMissingAuthHeaders rejects notifications without the full set of
	// authenticity headers. Never retryable.
	ErrMissingAuthHeaders = errors.New("missing webhook authenticity headers")

	// ErrSignatureInvalid rejects notifications that fail signature
	// verification. Never retryable.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")

	// ErrMalformedEvent rejects unparseable bodies so the provider
	// redelivers a hopefully-intact payload.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

type SignatureVerifier interface {
	VerifyWebhookSignature(ctx context.Context, headers paypal.WebhookHeaders, body []byte) (bool, error)
}

type SubscriptionStore interface {
	ApplyEventByOrganization(ctx context.Context, orgID int64, reference, planCode string, status subscription.SubscriptionStatus, externalID string) error
	UpdateStatusByExternalID(ctx context.Context, externalID string, status subscription.SubscriptionStatus) error
}

type PlanStore interface {
	FindByProviderPlanID(ctx context.Context, providerPlanID string) (*plan.Plan, error)
}

// DedupStore suppresses duplicate deliveries by transmission id.
// Best-effort: the transitions are idempotent either way. Seen must stay
// read-only; Mark is called only after the delivery is fully applied, so
// a delivery that failed to persist remains eligible for redelivery.
type DedupStore interface {
	Seen(ctx context.Context, transmissionID string) (bool, error)
	Mark(ctx context.Context, transmissionID string) error
}

type event struct {
	ID         string `json:"id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Resource   struct {
		ID       string `json:"id"`
		CustomID string `json:"custom_id"`
		PlanID   string `json:"plan_id"`
		Status   string `json:"status"`
	} `json:"resource"`
}

// Reconciler is the single authoritative writer of subscription status,
// driven by at-least-once, possibly out-of-order provider notifications.
type Reconciler struct {
	subscriptionRepo SubscriptionStore
	planRepo         PlanStore
	verifier         SignatureVerifier
	dedup            DedupStore
	logger           *zap.Logger
}

func NewReconciler(
	subscriptionRepo SubscriptionStore,
	planRepo PlanStore,
	verifier SignatureVerifier,
	dedup DedupStore,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		verifier:         verifier,
		dedup:            dedup,
		logger:           logger,
	}
}

// Process verifies and applies a single notification. A nil return means
// the delivery is acknowledged, including no-op cases. Persistence
// failures propagate so the HTTP layer signals the provider to redeliver.
func (r *Reconciler) Process(ctx context.Context, headers paypal.WebhookHeaders, body []byte) error {
	if !headers.Complete() {
		return ErrMissingAuthHeaders
	}

	verified, err := r.verifier.VerifyWebhookSignature(ctx, headers, body)
	if err != nil {
		// Verification itself failed, not the signature; let the provider
		// retry rather than dropping a possibly-genuine event.
		return fmt.Errorf("signature verification unavailable: %w", err)
	}
	if !verified {
		return ErrSignatureInvalid
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil || ev.EventType == "" {
		return ErrMalformedEvent
	}

	status, known := statusFor(ev.EventType)
	if !known {
		r.logger.Info("ignoring unmodeled webhook event",
			zap.String("event_type", ev.EventType),
			zap.String("event_id", ev.ID),
		)
		return nil
	}

	if r.dedup != nil {
		seen, err := r.dedup.Seen(ctx, headers.TransmissionID)
		if err != nil {
			r.logger.Warn("webhook dedup store unavailable, applying anyway", zap.Error(err))
		} else if seen {
			r.logger.Info("duplicate webhook delivery suppressed",
				zap.String("transmission_id", headers.TransmissionID),
				zap.String("event_type", ev.EventType),
			)
			return nil
		}
	}

	var applyErr error
	switch ev.EventType {
	case EventSubscriptionCreated, EventSubscriptionActivated:
		applyErr = r.applyByOrganization(ctx, &ev, status)
	default:
		applyErr = r.applyByExternalID(ctx, &ev, status)
	}
	if applyErr != nil {
		return applyErr
	}

	// Record the transmission id only now that the write landed. Marking
	// before the apply would suppress the redelivery of a failed write.
	if r.dedup != nil {
		if err := r.dedup.Mark(ctx, headers.TransmissionID); err != nil {
			r.logger.Warn("failed to record webhook transmission id",
				zap.String("transmission_id", headers.TransmissionID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// applyByOrganization handles creation/activation events, which carry the
// organization-id correlation token. The row is upserted: an event
// arriving before the orchestrator's local write self-heals the record.
func (r *Reconciler) applyByOrganization(ctx context.Context, ev *event, status subscription.SubscriptionStatus) error {
	orgID, err := strconv.ParseInt(ev.Resource.CustomID, 10, 64)
	if err != nil {
		// No usable correlation token; redelivery cannot fix this.
		r.logger.Warn("webhook event without usable correlation token",
			zap.String("event_type", ev.EventType),
			zap.String("custom_id", ev.Resource.CustomID),
		)
		return nil
	}

	p, err := r.planRepo.FindByProviderPlanID(ctx, ev.Resource.PlanID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			r.logger.Warn("webhook event references unknown provider plan",
				zap.String("event_type", ev.EventType),
				zap.String("provider_plan_id", ev.Resource.PlanID),
				zap.Int64("org_id", orgID),
			)
			return nil
		}
		return fmt.Errorf("failed to resolve plan: %w", err)
	}

	reference := "SUB-" + ulid.Make().String()
	if err := r.subscriptionRepo.ApplyEventByOrganization(ctx, orgID, reference, p.PlanCode, status, ev.Resource.ID); err != nil {
		return fmt.Errorf("failed to apply %s: %w", ev.EventType, err)
	}

	r.logger.Info("subscription reconciled from webhook",
		zap.String("event_type", ev.EventType),
		zap.Int64("org_id", orgID),
		zap.String("external_id", ev.Resource.ID),
		zap.String("status", string(status)),
	)

	return nil
}

// applyByExternalID handles lifecycle events that carry only the provider
// subscription id. Status is an unconditional last-write-wins overwrite;
// a missing local record is an expected race, not an error.
func (r *Reconciler) applyByExternalID(ctx context.Context, ev *event, status subscription.SubscriptionStatus) error {
	err := r.subscriptionRepo.UpdateStatusByExternalID(ctx, ev.Resource.ID, status)
	if errors.Is(err, xerrors.ErrNotFound) {
		r.logger.Info("webhook event for unknown subscription, ignoring",
			zap.String("event_type", ev.EventType),
			zap.String("external_id", ev.Resource.ID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", ev.EventType, err)
	}

	r.logger.Info("subscription status reconciled from webhook",
		zap.String("event_type", ev.EventType),
		zap.String("external_id", ev.Resource.ID),
		zap.String("status", string(status)),
	)

	return nil
}

func statusFor(eventType string) (subscription.SubscriptionStatus, bool) {
	switch eventType {
	case EventSubscriptionCreated:
		return subscription.StatusCreated, true
	case EventSubscriptionActivated:
		return subscription.StatusActive, true
	case EventSubscriptionCancelled:
		return subscription.StatusCancelled, true
	case EventSubscriptionSuspended:
		return subscription.StatusSuspended, true
	case EventSubscriptionExpired:
		return subscription.StatusExpired, true
	}
	return "", false
}
