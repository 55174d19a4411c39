package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// PaymentRepository is the durable ledger of payment attempts. Status
// transitions are conditional on the row still being pending so that a
// terminal payment can never regress, even under concurrent webhook
// redelivery.
type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) (domain.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (domain.Payment, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.UserPayment, error)

	// UpdateStatusByOrderID applies a forward-only transition out of
	// pending. Returns the number of rows updated: zero means the payment
	// was already terminal.
	UpdateStatusByOrderID(ctx context.Context, orderID string, status domain.PaymentStatus, method *string) (int64, error)

	// LinkGateway attaches the gateway transaction record to the payment
	LinkGateway(ctx context.Context, orderID string, gatewayID uuid.UUID) error

	// MarkStalePendingFailed fails pending payments created before the
	// cutoff that never got a gateway record (the outbound call died
	// between the two writes)
	MarkStalePendingFailed(ctx context.Context, before time.Time) (int64, error)
}

// InMemoryPaymentRepository keeps payments in a map, used by tests.
// The plan repository is consulted for the joined history projection and
// may be nil.
type InMemoryPaymentRepository struct {
	payments map[uuid.UUID]domain.Payment
	byOrder  map[string]uuid.UUID
	plans    PlanRepository
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewInMemoryPaymentRepository creates a new in-memory payment repository
func NewInMemoryPaymentRepository(plans PlanRepository, log *logger.Logger) *InMemoryPaymentRepository {
	return &InMemoryPaymentRepository{
		payments: make(map[uuid.UUID]domain.Payment),
		byOrder:  make(map[string]uuid.UUID),
		plans:    plans,
		log:      log,
	}
}

// Create stores a new payment; a reused order ID is a hard error
func (r *InMemoryPaymentRepository) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byOrder[payment.OrderID]; exists {
		return domain.Payment{}, ErrDuplicate
	}

	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()

	r.payments[payment.ID] = payment
	r.byOrder[payment.OrderID] = payment.ID

	return payment, nil
}

// GetByID returns a payment by ID
func (r *InMemoryPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	payment, exists := r.payments[id]
	if !exists {
		return domain.Payment{}, ErrNotFound
	}

	return payment, nil
}

// GetByOrderID returns a payment by its order ID
func (r *InMemoryPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, exists := r.byOrder[orderID]
	if !exists {
		return domain.Payment{}, ErrNotFound
	}

	return r.payments[id], nil
}

// GetByUserID returns the user's payments joined with plan names, oldest first
func (r *InMemoryPaymentRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.UserPayment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var rows []domain.UserPayment
	for _, payment := range r.payments {
		if payment.UserID != userID {
			continue
		}

		row := domain.UserPayment{
			ID:                 payment.ID,
			OrderID:            payment.OrderID,
			Amount:             payment.Amount,
			PaymentStatus:      payment.PaymentStatus,
			PaymentMethod:      payment.PaymentMethod,
			SubscriptionPlanID: payment.SubscriptionPlanID,
			CreatedAt:          payment.CreatedAt,
		}

		if r.plans != nil && payment.SubscriptionPlanID != nil {
			if plan, err := r.plans.GetByID(ctx, *payment.SubscriptionPlanID); err == nil {
				name := plan.PlanName
				row.PlanName = &name
			}
		}

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})

	return rows, nil
}

// UpdateStatusByOrderID transitions a pending payment to the given status
func (r *InMemoryPaymentRepository) UpdateStatusByOrderID(ctx context.Context, orderID string, status domain.PaymentStatus, method *string) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id, exists := r.byOrder[orderID]
	if !exists {
		return 0, ErrNotFound
	}

	payment := r.payments[id]
	if payment.PaymentStatus != domain.PaymentStatusPending {
		return 0, nil
	}

	payment.PaymentStatus = status
	if method != nil {
		payment.PaymentMethod = method
	}
	payment.UpdatedAt = time.Now()

	r.payments[id] = payment

	return 1, nil
}

// LinkGateway attaches a gateway record ID to the payment
func (r *InMemoryPaymentRepository) LinkGateway(ctx context.Context, orderID string, gatewayID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id, exists := r.byOrder[orderID]
	if !exists {
		return ErrNotFound
	}

	payment := r.payments[id]
	payment.GatewayID = &gatewayID
	payment.UpdatedAt = time.Now()

	r.payments[id] = payment

	return nil
}

// MarkStalePendingFailed fails orphaned pending payments older than the cutoff
func (r *InMemoryPaymentRepository) MarkStalePendingFailed(ctx context.Context, before time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var updated int64
	for id, payment := range r.payments {
		if payment.PaymentStatus != domain.PaymentStatusPending {
			continue
		}
		if payment.GatewayID != nil || !payment.CreatedAt.Before(before) {
			continue
		}

		payment.PaymentStatus = domain.PaymentStatusFailed
		payment.UpdatedAt = time.Now()
		r.payments[id] = payment
		updated++
	}

	return updated, nil
}
