package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// postgresPaymentRepo implements PaymentRepository for PostgreSQL
type postgresPaymentRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresPaymentRepository creates a new payment repository for PostgreSQL
func NewPostgresPaymentRepository(db *sqlx.DB, log *logger.Logger) PaymentRepository {
	return &postgresPaymentRepo{
		db:  db,
		log: log,
	}
}

// Create stores a new payment. The unique index on order_id turns a
// collision into ErrDuplicate instead of a silent overwrite.
func (r *postgresPaymentRepo) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	query := `
        INSERT INTO payments (
            id, user_id, subscription_plan_id, order_id, amount,
            payment_method, payment_status, gateway_id, created_at, updated_at
        ) VALUES (
            :id, :user_id, :subscription_plan_id, :order_id, :amount,
            :payment_method, :payment_status, :gateway_id, :created_at, :updated_at
        )`

	_, err := r.db.NamedExecContext(ctx, query, payment)
	if err != nil {
		if isUniqueViolation(err) {
			r.log.Errorw("Order ID collision on payment insert", "orderID", payment.OrderID)
			return domain.Payment{}, ErrDuplicate
		}
		r.log.Errorw("Failed to create payment in DB", "error", err, "orderID", payment.OrderID)
		return domain.Payment{}, fmt.Errorf("repository: failed to create payment: %w", err)
	}

	r.log.Debugw("Created payment in DB", "orderID", payment.OrderID, "userID", payment.UserID)
	return payment, nil
}

// GetByID returns a payment by ID
func (r *postgresPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	var payment domain.Payment
	query := `
        SELECT id, user_id, subscription_plan_id, order_id, amount,
               payment_method, payment_status, gateway_id, created_at, updated_at
        FROM payments
        WHERE id = $1`

	err := r.db.GetContext(ctx, &payment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, ErrNotFound
		}
		r.log.Errorw("Failed to get payment by ID from DB", "error", err, "paymentID", id)
		return domain.Payment{}, fmt.Errorf("repository: failed to get payment by ID: %w", err)
	}

	return payment, nil
}

// GetByOrderID returns a payment by its order ID
func (r *postgresPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	var payment domain.Payment
	query := `
        SELECT id, user_id, subscription_plan_id, order_id, amount,
               payment_method, payment_status, gateway_id, created_at, updated_at
        FROM payments
        WHERE order_id = $1`

	err := r.db.GetContext(ctx, &payment, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnw("Payment not found by order ID", "orderID", orderID)
			return domain.Payment{}, ErrNotFound
		}
		r.log.Errorw("Failed to get payment by order ID from DB", "error", err, "orderID", orderID)
		return domain.Payment{}, fmt.Errorf("repository: failed to get payment by order ID: %w", err)
	}

	return payment, nil
}

// GetByUserID returns the user's payments joined with plan names, oldest first
func (r *postgresPaymentRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.UserPayment, error) {
	var rows []domain.UserPayment
	query := `
        SELECT p.id, p.order_id, p.amount, p.payment_status, p.payment_method,
               p.subscription_plan_id, sp.plan_name, p.created_at
        FROM payments p
        LEFT JOIN subscription_plans sp ON sp.id = p.subscription_plan_id
        WHERE p.user_id = $1
        ORDER BY p.created_at ASC`

	err := r.db.SelectContext(ctx, &rows, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.UserPayment{}, nil
		}
		r.log.Errorw("Failed to get payments by user ID from DB", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to get payments by user ID: %w", err)
	}

	return rows, nil
}

// UpdateStatusByOrderID transitions a pending payment to the given status.
// The WHERE clause keeps terminal payments immutable, so redelivered
// notifications simply affect zero rows.
func (r *postgresPaymentRepo) UpdateStatusByOrderID(ctx context.Context, orderID string, status domain.PaymentStatus, method *string) (int64, error) {
	query := `
        UPDATE payments SET
            payment_status = $1,
            payment_method = COALESCE($2, payment_method),
            updated_at = $3
        WHERE order_id = $4 AND payment_status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, status, method, time.Now(), orderID)
	if err != nil {
		r.log.Errorw("Failed to update payment status in DB", "error", err, "orderID", orderID)
		return 0, fmt.Errorf("repository: failed to update payment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: failed to get rows affected: %w", err)
	}

	r.log.Debugw("Updated payment status in DB", "orderID", orderID, "status", status, "rowsAffected", rowsAffected)
	return rowsAffected, nil
}

// LinkGateway attaches a gateway transaction record to the payment
func (r *postgresPaymentRepo) LinkGateway(ctx context.Context, orderID string, gatewayID uuid.UUID) error {
	query := `
        UPDATE payments SET gateway_id = $1, updated_at = $2
        WHERE order_id = $3`

	result, err := r.db.ExecContext(ctx, query, gatewayID, time.Now(), orderID)
	if err != nil {
		r.log.Errorw("Failed to link gateway record to payment", "error", err, "orderID", orderID)
		return fmt.Errorf("repository: failed to link gateway record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkStalePendingFailed fails orphaned pending payments older than the cutoff
func (r *postgresPaymentRepo) MarkStalePendingFailed(ctx context.Context, before time.Time) (int64, error) {
	query := `
        UPDATE payments SET payment_status = 'failed', updated_at = $1
        WHERE payment_status = 'pending' AND gateway_id IS NULL AND created_at < $2`

	result, err := r.db.ExecContext(ctx, query, time.Now(), before)
	if err != nil {
		r.log.Errorw("Failed to fail stale pending payments", "error", err)
		return 0, fmt.Errorf("repository: failed to fail stale pending payments: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// isUniqueViolation reports whether the error is a Postgres unique
// constraint violation (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
