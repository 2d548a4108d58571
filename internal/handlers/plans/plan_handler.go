// internal/handlers/plans/plan_handler.go
package plans

import (
	"errors"
	"net/http"

	"ledgerly-service/internal/domain/plan"
	xerrors "ledgerly-service/internal/pkg/errors"
	"ledgerly-service/internal/pkg/response"
	service "ledgerly-service/internal/service/plans"

	"github.com/gin-gonic/gin"
)

type PlanHandler struct {
	planService *service.PlanService
}

func NewPlanHandler(planService *service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
	}
}

// ListPlans retrieves the subscribable plan catalog
func (h *PlanHandler) ListPlans(c *gin.Context) {
	result, err := h.planService.ListPlans(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", result)
}

// GetPlan retrieves a single plan by code
func (h *PlanHandler) GetPlan(c *gin.Context) {
	result, err := h.planService.GetPlan(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "plan not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load plan", err)
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", result)
}

// ========== Admin Endpoints ==========

// CreatePlan creates a new plan
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req plan.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.planService.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) || errors.Is(err, xerrors.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, "failed to create plan", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to create plan", err)
		return
	}

	response.Success(c, http.StatusCreated, "plan created", result)
}

// UpdatePlan updates plan pricing and limits
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	var req plan.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.planService.UpdatePlan(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "plan not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to update plan", err)
		return
	}

	response.Success(c, http.StatusOK, "plan updated", result)
}
