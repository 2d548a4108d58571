// internal/paypal/types.go
package paypal

import "encoding/json"

// Provider-side subscription statuses we care about.
const (
	SubStatusApprovalPending = "APPROVAL_PENDING"
	SubStatusActive          = "ACTIVE"
	SubStatusSuspended       = "SUSPENDED"
	SubStatusCancelled       = "CANCELLED"
	SubStatusExpired         = "EXPIRED"
)

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type apiError struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// CreateSubscriptionResult is the outcome of a provider-side create.
type CreateSubscriptionResult struct {
	ID          string
	Status      string
	ApprovalURL string
}

// SubscriptionDetail is the provider's view of a subscription, used for
// display and out-of-band reconciliation. Webhooks remain authoritative
// for status changes.
type SubscriptionDetail struct {
	ID       string
	Status   string
	PlanID   string
	CustomID string
	Raw      map[string]any
}

// ReviseResult reports whether a plan change was applied immediately or
// requires subscriber approval.
type ReviseResult struct {
	Applied     bool
	ApprovalURL string
}

// WebhookHeaders carries the five authenticity headers PayPal attaches to
// every webhook delivery.
type WebhookHeaders struct {
	AuthAlgo         string
	TransmissionID   string
	CertURL          string
	TransmissionSig  string
	TransmissionTime string
}

// Complete reports whether every required header is present.
func (h WebhookHeaders) Complete() bool {
	return h.AuthAlgo != "" && h.TransmissionID != "" && h.CertURL != "" &&
		h.TransmissionSig != "" && h.TransmissionTime != ""
}

type verifyWebhookRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyWebhookResponse struct {
	VerificationStatus string `json:"verification_status"`
}
