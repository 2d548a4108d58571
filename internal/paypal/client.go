// internal/paypal/client.go
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the provider credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	APIBase      string
	WebhookID    string

	// VerifyWebhooks is fail-closed: when true and WebhookID is empty,
	// VerifyWebhookSignature rejects everything.
	VerifyWebhooks bool
}

// Client is a thin typed wrapper over the PayPal billing REST API.
// Every call is independently authenticated; nothing mutates local state.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// authenticate obtains a short-lived bearer token via client-credential
// exchange. Callers must not cache it beyond a single logical operation.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ProviderError{Code: "TRANSPORT", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Code: "TRANSPORT", Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", newAPIError(resp.StatusCode, body)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", &ProviderError{StatusCode: resp.StatusCode, Code: "EMPTY_TOKEN", Message: "no access token in response"}
	}

	return token.AccessToken, nil
}

// CreateSubscription creates a provider-side subscription with the
// organization id embedded as the custom_id correlation token.
func (c *Client) CreateSubscription(ctx context.Context, providerPlanID string, orgID int64, returnURL, cancelURL string) (*CreateSubscriptionResult, error) {
	payload := map[string]any{
		"plan_id":   providerPlanID,
		"custom_id": fmt.Sprintf("%d", orgID),
		"application_context": map[string]any{
			"return_url":  returnURL,
			"cancel_url":  cancelURL,
			"user_action": "SUBSCRIBE_NOW",
		},
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []link `json:"links"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/billing/subscriptions", payload, &out); err != nil {
		return nil, err
	}

	result := &CreateSubscriptionResult{ID: out.ID, Status: out.Status}
	for _, l := range out.Links {
		if l.Rel == "approve" {
			result.ApprovalURL = l.Href
		}
	}

	c.logger.Info("provider subscription created",
		zap.String("external_id", out.ID),
		zap.String("provider_status", out.Status),
		zap.Int64("org_id", orgID),
	)

	return result, nil
}

// GetSubscription fetches the provider-side subscription
func (c *Client) GetSubscription(ctx context.Context, externalID string) (*SubscriptionDetail, error) {
	var raw map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/v1/billing/subscriptions/"+externalID, nil, &raw); err != nil {
		return nil, err
	}

	detail := &SubscriptionDetail{Raw: raw}
	if v, ok := raw["id"].(string); ok {
		detail.ID = v
	}
	if v, ok := raw["status"].(string); ok {
		detail.Status = v
	}
	if v, ok := raw["plan_id"].(string); ok {
		detail.PlanID = v
	}
	if v, ok := raw["custom_id"].(string); ok {
		detail.CustomID = v
	}

	return detail, nil
}

// CancelSubscription requests immediate cancellation. Success is the
// provider's explicit 204 only.
func (c *Client) CancelSubscription(ctx context.Context, externalID, reason string) error {
	if reason == "" {
		reason = "cancelled by subscriber"
	}
	payload := map[string]any{"reason": reason}

	token, err := c.authenticate(ctx)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIBase+"/v1/billing/subscriptions/"+externalID+"/cancel", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build cancel request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &ProviderError{Code: "TRANSPORT", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, respBody)
	}

	c.logger.Info("provider subscription cancelled", zap.String("external_id", externalID))
	return nil
}

// ReviseSubscription requests an in-place plan change and reports whether
// the provider applied it immediately or deferred it to approval.
func (c *Client) ReviseSubscription(ctx context.Context, externalID, newProviderPlanID string) (*ReviseResult, error) {
	payload := map[string]any{"plan_id": newProviderPlanID}

	var out struct {
		PlanID string `json:"plan_id"`
		Links  []link `json:"links"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/billing/subscriptions/"+externalID+"/revise", payload, &out); err != nil {
		return nil, err
	}

	result := &ReviseResult{Applied: true}
	for _, l := range out.Links {
		if l.Rel == "approve" {
			result.Applied = false
			result.ApprovalURL = l.Href
		}
	}

	return result, nil
}

// VerifyWebhookSignature verifies an inbound notification against the
// provider's verification endpoint. With verification disabled by
// configuration the check passes explicitly; with verification enabled
// and no webhook id configured the check fails closed.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, body []byte) (bool, error) {
	if !c.cfg.VerifyWebhooks {
		c.logger.Warn("webhook signature verification is disabled by configuration")
		return true, nil
	}
	if c.cfg.WebhookID == "" {
		return false, &ProviderError{Code: "WEBHOOK_ID_MISSING", Message: "verification required but no webhook id configured"}
	}

	payload := verifyWebhookRequest{
		AuthAlgo:         headers.AuthAlgo,
		CertURL:          headers.CertURL,
		TransmissionID:   headers.TransmissionID,
		TransmissionSig:  headers.TransmissionSig,
		TransmissionTime: headers.TransmissionTime,
		WebhookID:        c.cfg.WebhookID,
		WebhookEvent:     json.RawMessage(body),
	}

	var out verifyWebhookResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &out); err != nil {
		return false, err
	}

	return out.VerificationStatus == "SUCCESS", nil
}

// doJSON authenticates, sends a JSON request and decodes a JSON response.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	token, err := c.authenticate(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBase+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &ProviderError{Code: "TRANSPORT", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{Code: "TRANSPORT", Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func newAPIError(status int, body []byte) *ProviderError {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	code := apiErr.Name
	message := apiErr.Message
	if code == "" {
		code = apiErr.Error
		message = apiErr.ErrorDescription
	}
	if code == "" {
		code = http.StatusText(status)
	}

	return &ProviderError{StatusCode: status, Code: code, Message: message}
}
