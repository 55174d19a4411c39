package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/pkg/logger"
)

const (
	planKeyPrefix   = "plan:"
	planListKey     = "plans:all"
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository caches plan reference data in Redis. Plans are
// immutable once created, so a TTL is only a safety net.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close closes the Redis connection
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CachePlan caches a plan in Redis
func (r *RedisCacheRepository) CachePlan(ctx context.Context, plan domain.SubscriptionPlan) error {
	key := fmt.Sprintf("%s%s", planKeyPrefix, plan.ID)

	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache plan in Redis", "error", err, "planID", plan.ID)
		return fmt.Errorf("failed to cache plan: %w", err)
	}

	return nil
}

// GetCachedPlan returns a plan from the cache, or nil on a miss
func (r *RedisCacheRepository) GetCachedPlan(ctx context.Context, id uuid.UUID) (*domain.SubscriptionPlan, error) {
	key := fmt.Sprintf("%s%s", planKeyPrefix, id)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.log.Errorw("Error getting plan from Redis", "error", err, "planID", id)
		return nil, fmt.Errorf("failed to get plan from cache: %w", err)
	}

	var plan domain.SubscriptionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached plan: %w", err)
	}

	return &plan, nil
}

// CachePlanList caches the full plan catalog
func (r *RedisCacheRepository) CachePlanList(ctx context.Context, plans []domain.SubscriptionPlan) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return fmt.Errorf("failed to marshal plan list: %w", err)
	}

	if err := r.client.Set(ctx, planListKey, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache plan list in Redis", "error", err)
		return fmt.Errorf("failed to cache plan list: %w", err)
	}

	return nil
}

// GetCachedPlanList returns the cached plan catalog, or nil on a miss
func (r *RedisCacheRepository) GetCachedPlanList(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	data, err := r.client.Get(ctx, planListKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.log.Errorw("Error getting plan list from Redis", "error", err)
		return nil, fmt.Errorf("failed to get plan list from cache: %w", err)
	}

	var plans []domain.SubscriptionPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached plan list: %w", err)
	}

	return plans, nil
}

// InvalidatePlanList drops the cached catalog after a plan is created
func (r *RedisCacheRepository) InvalidatePlanList(ctx context.Context) error {
	if err := r.client.Del(ctx, planListKey).Err(); err != nil {
		r.log.Errorw("Failed to invalidate plan list cache", "error", err)
		return fmt.Errorf("failed to invalidate plan list cache: %w", err)
	}
	return nil
}
