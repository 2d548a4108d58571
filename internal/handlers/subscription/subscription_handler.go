// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"errors"
	"net/http"

	"ledgerly-service/internal/domain/subscription"
	"ledgerly-service/internal/middleware"
	"ledgerly-service/internal/paypal"
	xerrors "ledgerly-service/internal/pkg/errors"
	"ledgerly-service/internal/pkg/response"
	service "ledgerly-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// GetSubscription returns the organization's subscription with provider detail
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	detail, err := h.subscriptionService.Current(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNoSubscription) {
			response.NotFound(c, "no subscription found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", detail)
}

// Subscribe starts a new subscription and returns the approval redirect
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	var req subscription.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.Subscribe(c.Request.Context(), orgID, req.PlanCode)
	if err != nil {
		writeServiceError(c, "failed to create subscription", err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription created, approval required", result)
}

// CancelSubscription requests provider-side cancellation
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	var req subscription.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.subscriptionService.Cancel(c.Request.Context(), orgID, req.Reason); err != nil {
		writeServiceError(c, "failed to cancel subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "cancellation pending confirmation", nil)
}

// SwitchToFree moves the organization to the starter tier without billing
func (h *SubscriptionHandler) SwitchToFree(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	sub, err := h.subscriptionService.SwitchToFree(c.Request.Context(), orgID)
	if err != nil {
		writeServiceError(c, "failed to switch to free plan", err)
		return
	}

	response.Success(c, http.StatusOK, "switched to free plan", sub)
}

// ChangePlan revises the active paid subscription to another paid plan
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	var req subscription.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.ChangePlan(c.Request.Context(), orgID, req.PlanCode)
	if err != nil {
		writeServiceError(c, "failed to change plan", err)
		return
	}

	response.Success(c, http.StatusOK, "plan change requested", result)
}

// writeServiceError maps service errors onto the response envelope.
// Provider errors surface the provider's message; business errors map to
// 4xx statuses so the UI can render the right prompt.
func writeServiceError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNoSubscription):
		response.NotFound(c, "no subscription found")
	case errors.Is(err, xerrors.ErrSubscriptionTerminal), errors.Is(err, xerrors.ErrConflict):
		response.Error(c, http.StatusConflict, message, err)
	case errors.Is(err, xerrors.ErrSubscriptionInactive), errors.Is(err, xerrors.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, message, err)
	default:
		if pe, ok := paypal.AsProviderError(err); ok && !pe.IsTransient() {
			response.Error(c, http.StatusBadGateway, message, err)
			return
		}
		response.Error(c, http.StatusInternalServerError, message, err)
	}
}
