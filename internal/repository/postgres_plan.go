package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// postgresPlanRepo implements PlanRepository for PostgreSQL
type postgresPlanRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresPlanRepository creates a new plan repository for PostgreSQL
func NewPostgresPlanRepository(db *sqlx.DB, log *logger.Logger) PlanRepository {
	return &postgresPlanRepo{
		db:  db,
		log: log,
	}
}

// GetAll returns all subscription plans
func (r *postgresPlanRepo) GetAll(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	var plans []domain.SubscriptionPlan
	query := `
        SELECT id, plan_name, price, duration_months, features, created_at, updated_at
        FROM subscription_plans
        ORDER BY price ASC`

	err := r.db.SelectContext(ctx, &plans, query)
	if err != nil {
		r.log.Errorw("Failed to get plans from DB", "error", err)
		return nil, fmt.Errorf("repository: failed to get plans: %w", err)
	}

	return plans, nil
}

// GetByID returns a subscription plan by ID
func (r *postgresPlanRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.SubscriptionPlan, error) {
	var plan domain.SubscriptionPlan
	query := `
        SELECT id, plan_name, price, duration_months, features, created_at, updated_at
        FROM subscription_plans
        WHERE id = $1`

	err := r.db.GetContext(ctx, &plan, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnw("Plan not found", "planID", id)
			return domain.SubscriptionPlan{}, ErrNotFound
		}
		r.log.Errorw("Failed to get plan from DB", "error", err, "planID", id)
		return domain.SubscriptionPlan{}, fmt.Errorf("repository: failed to get plan: %w", err)
	}

	return plan, nil
}

// Create stores a new subscription plan
func (r *postgresPlanRepo) Create(ctx context.Context, plan domain.SubscriptionPlan) (domain.SubscriptionPlan, error) {
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	query := `
        INSERT INTO subscription_plans (id, plan_name, price, duration_months, features, created_at, updated_at)
        VALUES (:id, :plan_name, :price, :duration_months, :features, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, plan)
	if err != nil {
		r.log.Errorw("Failed to create plan in DB", "error", err, "planID", plan.ID)
		return domain.SubscriptionPlan{}, fmt.Errorf("repository: failed to create plan: %w", err)
	}

	return plan, nil
}
