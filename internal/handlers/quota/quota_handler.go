// internal/handlers/quota/quota_handler.go
package quota

import (
	"net/http"
	"strconv"

	"ledgerly-service/internal/domain/quota"
	"ledgerly-service/internal/middleware"
	"ledgerly-service/internal/pkg/response"
	service "ledgerly-service/internal/service/quota"

	"github.com/gin-gonic/gin"
)

type QuotaHandler struct {
	guard *service.Guard
}

func NewQuotaHandler(guard *service.Guard) *QuotaHandler {
	return &QuotaHandler{
		guard: guard,
	}
}

// CheckQuota reports whether the organization may create another resource
// of the given kind. The outcome is a business result: blocked checks
// still answer 200 so the UI can render the matching upgrade prompt.
func (h *QuotaHandler) CheckQuota(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	kind := quota.ResourceKind(c.Param("kind"))
	if !kind.Valid() {
		response.Error(c, http.StatusBadRequest, "unknown resource kind", nil)
		return
	}

	var unitID int64
	if raw := c.Query("unit_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid unit_id", err)
			return
		}
		unitID = parsed
	}

	result, err := h.guard.Check(c.Request.Context(), orgID, unitID, kind)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to check quota", err)
		return
	}

	response.Success(c, http.StatusOK, "quota checked", result)
}
