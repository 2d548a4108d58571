// internal/domain/subscription/dto.go
package subscription

type SubscribeRequest struct {
	PlanCode string `json:"plan_code" binding:"required"`
}

type SubscribeResponse struct {
	Subscription *Subscription `json:"subscription,omitempty"`
	ApprovalURL  string        `json:"approval_url,omitempty"`
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

type ChangePlanRequest struct {
	PlanCode string `json:"plan_code" binding:"required"`
}

type ChangePlanResponse struct {
	// ApprovalURL is set when the provider requires the user to approve
	// the plan change before it takes effect.
	ApprovalURL string `json:"approval_url,omitempty"`
	Applied     bool   `json:"applied"`
}

type SubscriptionDetail struct {
	Subscription   *Subscription  `json:"subscription"`
	CancelPending  bool           `json:"cancel_pending"`
	ProviderStatus string         `json:"provider_status,omitempty"`
	ProviderDetail map[string]any `json:"provider_detail,omitempty"`
}
