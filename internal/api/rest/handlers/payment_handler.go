package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/internal/service"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// PaymentHandler serves the payment endpoints
type PaymentHandler struct {
	paymentSvc service.PaymentService
	log        *logger.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentSvc service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentSvc: paymentSvc,
		log:        log,
	}
}

// CreatePayment starts a payment for a subscription plan
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req domain.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid payment request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.paymentSvc.CreatePayment(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription plan not found"})
			return
		}
		if errors.Is(err, repository.ErrInvalidData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data in request"})
			return
		}
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			// Retryable from the client's side
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable, please retry"})
			return
		}

		h.log.Error("Failed to create payment: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	h.log.Info("Created payment with order ID: %s", payment.OrderID)
	c.JSON(http.StatusCreated, payment)
}

// GetPaymentStatus proxies the gateway transaction status for an order
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	orderID := c.Param("orderId")

	status, err := h.paymentSvc.GetPaymentStatus(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable, please retry"})
			return
		}

		h.log.Error("Failed to get payment status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get payment status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListUserPayments returns the payment history of a user
func (h *PaymentHandler) ListUserPayments(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	payments, err := h.paymentSvc.GetUserPayments(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
			return
		}

		h.log.Error("Failed to list user payments: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
