// internal/paypal/errors.go
package paypal

import (
	"errors"
	"fmt"
)

// ProviderError is any non-success outcome of a provider call. StatusCode
// is 0 when the request never produced an HTTP response (timeout,
// connection failure), which is always classified transient.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("paypal: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("paypal: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsAuthFailure reports a credential problem with our own API access.
func (e *ProviderError) IsAuthFailure() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func (e *ProviderError) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *ProviderError) IsValidation() bool {
	return e.StatusCode == 400 || e.StatusCode == 422
}

// IsTransient reports errors worth retrying: timeouts, rate limiting and
// provider-side failures.
func (e *ProviderError) IsTransient() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// AsProviderError unwraps err into a *ProviderError if there is one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
