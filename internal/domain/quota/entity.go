// internal/domain/quota/entity.go
package quota

// ResourceKind identifies a resource gated by plan limits.
type ResourceKind string

const (
	ResourceUnit     ResourceKind = "unit"
	ResourceProduct  ResourceKind = "product"
	ResourceCustomer ResourceKind = "customer"
	ResourceInvoice  ResourceKind = "invoice"
)

// Valid reports whether the kind names a gated resource.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceUnit, ResourceProduct, ResourceCustomer, ResourceInvoice:
		return true
	}
	return false
}

// Outcome is the structured result of a quota check. Each block outcome
// maps to a distinct call-to-action in the UI, never a generic failure.
type Outcome string

const (
	OutcomeAllowed        Outcome = "allowed"
	OutcomeNoSubscription Outcome = "no_subscription"
	OutcomeNotActive      Outcome = "subscription_not_active"
	OutcomePlanMisconfig  Outcome = "plan_misconfigured"
	OutcomeQuotaExceeded  Outcome = "quota_exceeded"
)

// CheckResult is returned to callers so UI code can branch without
// exception-based control flow.
type CheckResult struct {
	Outcome Outcome      `json:"outcome"`
	Kind    ResourceKind `json:"resource"`

	// Used is the current count whenever the subscription is active;
	// Limit of -1 means unlimited.
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// Allowed reports whether the caller may proceed with the creation.
func (r CheckResult) Allowed() bool {
	return r.Outcome == OutcomeAllowed
}

// Unlimited is the Limit value reported when the plan imposes no cap.
const Unlimited int64 = -1
