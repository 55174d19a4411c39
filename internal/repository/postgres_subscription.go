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

// postgresSubscriptionRepo implements SubscriptionRepository for PostgreSQL
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository creates a new subscription repository for PostgreSQL
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
	}
}

// Activate supersedes any active subscription of the user and inserts the
// new row. Both statements run in one transaction so there is no window
// where the user has zero or two active subscriptions.
func (r *postgresSubscriptionRepo) Activate(ctx context.Context, sub domain.UserSubscription) (domain.UserSubscription, error) {
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.log.Errorw("Failed to begin activation transaction", "error", err, "userID", sub.UserID)
		return domain.UserSubscription{}, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	supersede := `
        UPDATE user_subscriptions SET status = 'expired', updated_at = $1
        WHERE user_id = $2 AND status = 'active'`

	if _, err := tx.ExecContext(ctx, supersede, now, sub.UserID); err != nil {
		r.log.Errorw("Failed to supersede active subscription", "error", err, "userID", sub.UserID)
		return domain.UserSubscription{}, fmt.Errorf("repository: failed to supersede active subscription: %w", err)
	}

	insert := `
        INSERT INTO user_subscriptions (
            id, user_id, subscription_plan_id, payment_id, status,
            start_date, end_date, created_at, updated_at
        ) VALUES (
            :id, :user_id, :subscription_plan_id, :payment_id, :status,
            :start_date, :end_date, :created_at, :updated_at
        )`

	if _, err := tx.NamedExecContext(ctx, insert, sub); err != nil {
		r.log.Errorw("Failed to insert subscription", "error", err, "userID", sub.UserID)
		return domain.UserSubscription{}, fmt.Errorf("repository: failed to insert subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		r.log.Errorw("Failed to commit activation transaction", "error", err, "userID", sub.UserID)
		return domain.UserSubscription{}, fmt.Errorf("repository: failed to commit transaction: %w", err)
	}

	r.log.Debugw("Activated subscription in DB", "subscriptionID", sub.ID, "userID", sub.UserID)
	return sub, nil
}

// CancelActive transitions the user's active subscriptions to cancelled.
// Conditional on status so a concurrent sweep cannot be clobbered.
func (r *postgresSubscriptionRepo) CancelActive(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
        UPDATE user_subscriptions SET status = 'cancelled', updated_at = $1
        WHERE user_id = $2 AND status = 'active'`

	result, err := r.db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		r.log.Errorw("Failed to cancel subscription in DB", "error", err, "userID", userID)
		return 0, fmt.Errorf("repository: failed to cancel subscription: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// ExpireDue transitions every active subscription past its end date to expired
func (r *postgresSubscriptionRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
        UPDATE user_subscriptions SET status = 'expired', updated_at = $1
        WHERE status = 'active' AND end_date <= $2`

	result, err := r.db.ExecContext(ctx, query, now, now)
	if err != nil {
		r.log.Errorw("Failed to expire due subscriptions", "error", err)
		return 0, fmt.Errorf("repository: failed to expire due subscriptions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// GetActive returns the active unexpired subscription joined with plan fields
func (r *postgresSubscriptionRepo) GetActive(ctx context.Context, userID uuid.UUID, now time.Time) (domain.SubscriptionStatusResult, error) {
	var row struct {
		SubscriptionPlanID *uuid.UUID                `db:"subscription_plan_id"`
		PlanName           *string                   `db:"plan_name"`
		Status             domain.SubscriptionStatus `db:"status"`
		StartDate          *time.Time                `db:"start_date"`
		EndDate            *time.Time                `db:"end_date"`
	}

	query := `
        SELECT us.subscription_plan_id, sp.plan_name, us.status, us.start_date, us.end_date
        FROM user_subscriptions us
        LEFT JOIN subscription_plans sp ON sp.id = us.subscription_plan_id
        WHERE us.user_id = $1 AND us.status = 'active' AND us.end_date >= $2
        ORDER BY us.end_date ASC
        LIMIT 1`

	err := r.db.GetContext(ctx, &row, query, userID, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SubscriptionStatusResult{}, ErrNotFound
		}
		r.log.Errorw("Failed to get active subscription from DB", "error", err, "userID", userID)
		return domain.SubscriptionStatusResult{}, fmt.Errorf("repository: failed to get active subscription: %w", err)
	}

	return domain.SubscriptionStatusResult{
		IsActive:           true,
		SubscriptionPlanID: row.SubscriptionPlanID,
		PlanName:           row.PlanName,
		Status:             row.Status,
		StartDate:          row.StartDate,
		EndDate:            row.EndDate,
	}, nil
}

// GetByPaymentID returns the subscription created from the payment
func (r *postgresSubscriptionRepo) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (domain.UserSubscription, error) {
	var sub domain.UserSubscription
	query := `
        SELECT id, user_id, subscription_plan_id, payment_id, status,
               start_date, end_date, created_at, updated_at
        FROM user_subscriptions
        WHERE payment_id = $1`

	err := r.db.GetContext(ctx, &sub, query, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserSubscription{}, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription by payment ID from DB", "error", err, "paymentID", paymentID)
		return domain.UserSubscription{}, fmt.Errorf("repository: failed to get subscription by payment ID: %w", err)
	}

	return sub, nil
}

// GetHistory returns all subscription rows of the user joined with plan
// fields, oldest first
func (r *postgresSubscriptionRepo) GetHistory(ctx context.Context, userID uuid.UUID) ([]domain.SubscriptionHistoryEntry, error) {
	var entries []domain.SubscriptionHistoryEntry
	query := `
        SELECT us.id, us.status, us.start_date, us.end_date, us.created_at,
               sp.plan_name, sp.price, sp.duration_months
        FROM user_subscriptions us
        LEFT JOIN subscription_plans sp ON sp.id = us.subscription_plan_id
        WHERE us.user_id = $1
        ORDER BY us.created_at ASC`

	err := r.db.SelectContext(ctx, &entries, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.SubscriptionHistoryEntry{}, nil
		}
		r.log.Errorw("Failed to get subscription history from DB", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to get subscription history: %w", err)
	}

	return entries, nil
}
