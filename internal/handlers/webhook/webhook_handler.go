// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"errors"
	"io"
	"net/http"

	"ledgerly-service/internal/paypal"
	"ledgerly-service/internal/pkg/response"
	service "ledgerly-service/internal/service/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	reconciler *service.Reconciler
	logger     *zap.Logger
}

func NewWebhookHandler(reconciler *service.Reconciler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandlePayPal receives provider webhook notifications. Acknowledges with
// 200 once the body is parsed and dispatched (including no-ops); 401 on
// authenticity failure; 400 on malformed bodies and 500 on processing
// failure, both of which make the provider redeliver.
func (h *WebhookHandler) HandlePayPal(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to read webhook body", err)
		return
	}

	headers := paypal.WebhookHeaders{
		AuthAlgo:         c.GetHeader("Paypal-Auth-Algo"),
		TransmissionID:   c.GetHeader("Paypal-Transmission-Id"),
		CertURL:          c.GetHeader("Paypal-Cert-Url"),
		TransmissionSig:  c.GetHeader("Paypal-Transmission-Sig"),
		TransmissionTime: c.GetHeader("Paypal-Transmission-Time"),
	}

	err = h.reconciler.Process(c.Request.Context(), headers, body)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, "event processed", nil)
	case errors.Is(err, service.ErrMissingAuthHeaders), errors.Is(err, service.ErrSignatureInvalid):
		h.logger.Warn("webhook rejected",
			zap.String("transmission_id", headers.TransmissionID),
			zap.Error(err),
		)
		response.Error(c, http.StatusUnauthorized, "webhook authentication failed", err)
	case errors.Is(err, service.ErrMalformedEvent):
		response.Error(c, http.StatusBadRequest, "malformed webhook event", err)
	default:
		h.logger.Error("webhook processing failed",
			zap.String("transmission_id", headers.TransmissionID),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "failed to process webhook", err)
	}
}
