package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/internal/service"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// SubscriptionHandler serves the subscription endpoints
type SubscriptionHandler struct {
	subSvc service.SubscriptionService
	log    *logger.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(subSvc service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subSvc: subSvc,
		log:    log,
	}
}

// GetSubscriptionStatus returns the user's current subscription status
func (h *SubscriptionHandler) GetSubscriptionStatus(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	status, err := h.subSvc.GetSubscriptionStatus(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
			return
		}

		h.log.Error("Failed to get subscription status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetSubscriptionHistory returns the user's subscription history
func (h *SubscriptionHandler) GetSubscriptionHistory(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	history, err := h.subSvc.GetUserSubscriptionHistory(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
			return
		}

		h.log.Error("Failed to get subscription history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// cancelRequest is the cancel endpoint body
type cancelRequest struct {
	UserID string `json:"user_id" binding:"required,uuid4"`
}

// CancelSubscription cancels the user's active subscription. Succeeds
// even when there is nothing to cancel.
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid cancel request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.subSvc.CancelSubscription(c.Request.Context(), req.UserID); err != nil {
		if errors.Is(err, repository.ErrInvalidData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
			return
		}

		h.log.Error("Failed to cancel subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
