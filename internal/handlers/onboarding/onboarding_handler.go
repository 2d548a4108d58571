// internal/handlers/onboarding/onboarding_handler.go
package onboarding

import (
	"net/http"

	"ledgerly-service/internal/middleware"
	"ledgerly-service/internal/pkg/response"
	service "ledgerly-service/internal/service/onboarding"

	"github.com/gin-gonic/gin"
)

type OnboardingHandler struct {
	onboardingService *service.OnboardingService
}

func NewOnboardingHandler(onboardingService *service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{
		onboardingService: onboardingService,
	}
}

// ProvisionDefaults seeds the organization's sample data and starter
// subscription in one transaction
func (h *OnboardingHandler) ProvisionDefaults(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	sub, err := h.onboardingService.ProvisionDefaults(c.Request.Context(), orgID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to onboard organization", err)
		return
	}

	response.Success(c, http.StatusCreated, "organization onboarded", sub)
}
