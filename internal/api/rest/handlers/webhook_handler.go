package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/internal/service"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// WebhookHandler receives asynchronous payment notifications from the
// gateway
type WebhookHandler struct {
	paymentSvc service.PaymentService
	log        *logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(paymentSvc service.PaymentService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		paymentSvc: paymentSvc,
		log:        log,
	}
}

// HandleMidtransNotification processes one gateway notification. The
// gateway retries on non-2xx, so only genuinely retryable failures return
// an error status.
func (h *WebhookHandler) HandleMidtransNotification(c *gin.Context) {
	var n domain.PaymentNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		h.log.Warn("Invalid notification payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.paymentSvc.HandleNotification(c.Request.Context(), n)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			h.log.Warn("Rejected notification with invalid signature for order %s", n.OrderID)
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature key"})
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}

		h.log.Error("Failed to process notification for order %s: %v", n.OrderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
