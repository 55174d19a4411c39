package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// PlanHandler serves the subscription plan catalog
type PlanHandler struct {
	planRepo repository.PlanRepository
	log      *logger.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(planRepo repository.PlanRepository, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		planRepo: planRepo,
		log:      log,
	}
}

// ListPlans returns all subscription plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.planRepo.GetAll(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list plans: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list plans"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetPlan returns one subscription plan by ID
func (h *PlanHandler) GetPlan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID format"})
		return
	}

	plan, err := h.planRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription plan not found"})
			return
		}

		h.log.Error("Failed to get plan: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get plan"})
		return
	}

	c.JSON(http.StatusOK, plan)
}
