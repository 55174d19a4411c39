package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// CachedPlanRepository implements PlanRepository with a Redis read-through
// cache in front of the backing repository. Cache failures degrade to the
// backing store, never to an error.
type CachedPlanRepository struct {
	repo  PlanRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedPlanRepository creates a new caching plan repository
func NewCachedPlanRepository(repo PlanRepository, cache *RedisCacheRepository, log *logger.Logger) PlanRepository {
	return &CachedPlanRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetAll returns the plan catalog, from cache when possible
func (r *CachedPlanRepository) GetAll(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	cached, err := r.cache.GetCachedPlanList(ctx)
	if err != nil {
		r.log.Warnw("Error reading plan list from cache", "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	plans, err := r.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CachePlanList(ctx, plans); err != nil {
		r.log.Warnw("Failed to cache plan list", "error", err)
	}

	return plans, nil
}

// GetByID returns a plan, from cache when possible
func (r *CachedPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.SubscriptionPlan, error) {
	cached, err := r.cache.GetCachedPlan(ctx, id)
	if err != nil {
		r.log.Warnw("Error reading plan from cache", "error", err, "planID", id)
	}
	if cached != nil {
		return *cached, nil
	}

	plan, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.SubscriptionPlan{}, err
	}

	if err := r.cache.CachePlan(ctx, plan); err != nil {
		r.log.Warnw("Failed to cache plan", "error", err, "planID", id)
	}

	return plan, nil
}

// Create stores the plan and invalidates the cached catalog
func (r *CachedPlanRepository) Create(ctx context.Context, plan domain.SubscriptionPlan) (domain.SubscriptionPlan, error) {
	created, err := r.repo.Create(ctx, plan)
	if err != nil {
		return domain.SubscriptionPlan{}, err
	}

	if err := r.cache.InvalidatePlanList(ctx); err != nil {
		r.log.Warnw("Failed to invalidate plan list cache after create", "error", err)
	}

	return created, nil
}
