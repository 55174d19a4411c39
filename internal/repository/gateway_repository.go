package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// GatewayRepository stores gateway transaction records. One record per
// payment attempt, written once, kept verbatim for audit.
type GatewayRepository interface {
	Create(ctx context.Context, record domain.GatewayTransactionRecord) (domain.GatewayTransactionRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.GatewayTransactionRecord, error)
}

// InMemoryGatewayRepository keeps gateway records in a map, used by tests
type InMemoryGatewayRepository struct {
	records map[uuid.UUID]domain.GatewayTransactionRecord
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewInMemoryGatewayRepository creates a new in-memory gateway record repository
func NewInMemoryGatewayRepository(log *logger.Logger) *InMemoryGatewayRepository {
	return &InMemoryGatewayRepository{
		records: make(map[uuid.UUID]domain.GatewayTransactionRecord),
		log:     log,
	}
}

// Create stores a new gateway transaction record
func (r *InMemoryGatewayRepository) Create(ctx context.Context, record domain.GatewayTransactionRecord) (domain.GatewayTransactionRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record.CreatedAt = time.Now()
	r.records[record.ID] = record

	return record, nil
}

// GetByID returns a gateway transaction record by ID
func (r *InMemoryGatewayRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.GatewayTransactionRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return domain.GatewayTransactionRecord{}, ErrNotFound
	}

	return record, nil
}
