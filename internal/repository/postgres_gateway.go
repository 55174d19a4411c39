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

// postgresGatewayRepo implements GatewayRepository for PostgreSQL
type postgresGatewayRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresGatewayRepository creates a new gateway record repository for PostgreSQL
func NewPostgresGatewayRepository(db *sqlx.DB, log *logger.Logger) GatewayRepository {
	return &postgresGatewayRepo{
		db:  db,
		log: log,
	}
}

// Create stores a new gateway transaction record
func (r *postgresGatewayRepo) Create(ctx context.Context, record domain.GatewayTransactionRecord) (domain.GatewayTransactionRecord, error) {
	record.CreatedAt = time.Now()

	query := `
        INSERT INTO payment_gateway (id, gateway_name, transaction_id, snap_token, gateway_response, created_at)
        VALUES (:id, :gateway_name, :transaction_id, :snap_token, :gateway_response, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		r.log.Errorw("Failed to create gateway record in DB", "error", err, "transactionID", record.TransactionID)
		return domain.GatewayTransactionRecord{}, fmt.Errorf("repository: failed to create gateway record: %w", err)
	}

	return record, nil
}

// GetByID returns a gateway transaction record by ID
func (r *postgresGatewayRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.GatewayTransactionRecord, error) {
	var record domain.GatewayTransactionRecord
	query := `
        SELECT id, gateway_name, transaction_id, snap_token, gateway_response, created_at
        FROM payment_gateway
        WHERE id = $1`

	err := r.db.GetContext(ctx, &record, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GatewayTransactionRecord{}, ErrNotFound
		}
		r.log.Errorw("Failed to get gateway record from DB", "error", err, "gatewayID", id)
		return domain.GatewayTransactionRecord{}, fmt.Errorf("repository: failed to get gateway record: %w", err)
	}

	return record, nil
}
