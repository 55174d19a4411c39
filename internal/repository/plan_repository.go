package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// PlanRepository reads subscription plan reference data
type PlanRepository interface {
	GetAll(ctx context.Context) ([]domain.SubscriptionPlan, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.SubscriptionPlan, error)
	Create(ctx context.Context, plan domain.SubscriptionPlan) (domain.SubscriptionPlan, error)
}

// InMemoryPlanRepository keeps plans in a map, used by tests
type InMemoryPlanRepository struct {
	plans map[uuid.UUID]domain.SubscriptionPlan
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryPlanRepository creates a new in-memory plan repository
func NewInMemoryPlanRepository(log *logger.Logger) *InMemoryPlanRepository {
	return &InMemoryPlanRepository{
		plans: make(map[uuid.UUID]domain.SubscriptionPlan),
		log:   log,
	}
}

// GetAll returns all plans
func (r *InMemoryPlanRepository) GetAll(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plans := make([]domain.SubscriptionPlan, 0, len(r.plans))
	for _, plan := range r.plans {
		plans = append(plans, plan)
	}

	return plans, nil
}

// GetByID returns a plan by ID
func (r *InMemoryPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.SubscriptionPlan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plan, exists := r.plans[id]
	if !exists {
		return domain.SubscriptionPlan{}, ErrNotFound
	}

	return plan, nil
}

// Create stores a new plan
func (r *InMemoryPlanRepository) Create(ctx context.Context, plan domain.SubscriptionPlan) (domain.SubscriptionPlan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.plans[plan.ID]; exists {
		return domain.SubscriptionPlan{}, ErrDuplicate
	}

	plan.CreatedAt = time.Now()
	plan.UpdatedAt = time.Now()

	r.plans[plan.ID] = plan

	return plan, nil
}
