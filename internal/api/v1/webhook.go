package v1

import (
	"io"
	"net/http"

	"github.com/flexprice/collections/internal/api/dto"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/integration/qrpay/webhook"
	"github.com/flexprice/collections/internal/logger"
	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	qrpayHandler *webhook.Handler
	log          *logger.Logger
}

func NewWebhookHandler(qrpayHandler *webhook.Handler, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		qrpayHandler: qrpayHandler,
		log:          log,
	}
}

// HandleQRPayWebhook godoc
// POST /v1/webhooks/qrpay
// The signature is computed over the raw body, so it is read before any binding.
func (h *WebhookHandler) HandleQRPayWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Could not read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader(webhook.SignatureHeader)
	if err := h.qrpayHandler.HandleWebhookEvent(c.Request.Context(), payload, signature); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.WebhookResponse{Received: true})
}
