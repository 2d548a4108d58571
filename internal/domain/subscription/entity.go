// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"
)

type SubscriptionStatus string

const (
	StatusCreated   SubscriptionStatus = "created"
	StatusActive    SubscriptionStatus = "active"
	StatusSuspended SubscriptionStatus = "suspended"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// IsTerminal reports whether no further lifecycle transitions are expected.
// A new subscription must be created instead.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

const ProviderPayPal = "paypal"

// Subscription is the local record of an organization's billing
// relationship. One row per organization; never hard-deleted.
type Subscription struct {
	ID                    int64  `json:"id" db:"id"`
	SubscriptionReference string `json:"subscription_reference" db:"subscription_reference"`

	OrganizationID int64  `json:"organization_id" db:"organization_id"`
	PlanCode       string `json:"plan_code" db:"plan_code"`

	Status          SubscriptionStatus `json:"status" db:"status"`
	PaymentProvider string             `json:"payment_provider" db:"payment_provider"`

	// Provider-side subscription id. Nullable until the provider confirms,
	// immutable and unique once set; join key for webhook correlation.
	ExternalID sql.NullString `json:"external_id,omitempty" db:"external_id"`

	StartedAt   time.Time    `json:"started_at" db:"started_at"`
	CancelledAt sql.NullTime `json:"cancelled_at,omitempty" db:"cancelled_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CancelPending reports whether the user asked to cancel but the webhook
// has not confirmed the terminal status yet.
func (s *Subscription) CancelPending() bool {
	return s.CancelledAt.Valid && !s.Status.IsTerminal()
}
