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

// SubscriptionRepository owns user subscription rows. All lifecycle
// invariants are enforced here with conditional updates so that multiple
// service instances can run against the same store:
//   - Activate supersedes any existing active row and inserts the new one
//     inside a single transaction
//   - CancelActive and ExpireDue only ever touch rows still marked active
type SubscriptionRepository interface {
	Activate(ctx context.Context, sub domain.UserSubscription) (domain.UserSubscription, error)
	CancelActive(ctx context.Context, userID uuid.UUID) (int64, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// GetActive returns the active, unexpired subscription for the user
	// joined with plan fields. If more than one exists the one expiring
	// soonest wins. ErrNotFound when there is none.
	GetActive(ctx context.Context, userID uuid.UUID, now time.Time) (domain.SubscriptionStatusResult, error)
	GetHistory(ctx context.Context, userID uuid.UUID) ([]domain.SubscriptionHistoryEntry, error)

	// GetByPaymentID returns the subscription created from the payment,
	// ErrNotFound when none exists. At most one subscription is ever
	// created per payment.
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (domain.UserSubscription, error)
}

// InMemorySubscriptionRepository keeps subscriptions in a map, used by
// tests. The plan repository is consulted for joined projections and may
// be nil.
type InMemorySubscriptionRepository struct {
	subs  map[uuid.UUID]domain.UserSubscription
	plans PlanRepository
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemorySubscriptionRepository creates a new in-memory subscription repository
func NewInMemorySubscriptionRepository(plans PlanRepository, log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subs:  make(map[uuid.UUID]domain.UserSubscription),
		plans: plans,
		log:   log,
	}
}

// Activate expires any active subscription of the user and inserts the new
// row. Both steps happen under one lock, mirroring the transactional
// boundary of the Postgres implementation.
func (r *InMemorySubscriptionRepository) Activate(ctx context.Context, sub domain.UserSubscription) (domain.UserSubscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	for id, existing := range r.subs {
		if existing.UserID == sub.UserID && existing.Status == domain.SubscriptionStatusActive {
			existing.Status = domain.SubscriptionStatusExpired
			existing.UpdatedAt = now
			r.subs[id] = existing
		}
	}

	sub.CreatedAt = now
	sub.UpdatedAt = now
	r.subs[sub.ID] = sub

	return sub, nil
}

// CancelActive transitions the user's active subscriptions to cancelled
func (r *InMemorySubscriptionRepository) CancelActive(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var updated int64
	now := time.Now()
	for id, sub := range r.subs {
		if sub.UserID == userID && sub.Status == domain.SubscriptionStatusActive {
			sub.Status = domain.SubscriptionStatusCancelled
			sub.UpdatedAt = now
			r.subs[id] = sub
			updated++
		}
	}

	return updated, nil
}

// ExpireDue transitions every active subscription past its end date to expired
func (r *InMemorySubscriptionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var updated int64
	for id, sub := range r.subs {
		if sub.Status == domain.SubscriptionStatusActive && !sub.EndDate.After(now) {
			sub.Status = domain.SubscriptionStatusExpired
			sub.UpdatedAt = now
			r.subs[id] = sub
			updated++
		}
	}

	return updated, nil
}

// GetActive returns the active unexpired subscription joined with plan fields
func (r *InMemorySubscriptionRepository) GetActive(ctx context.Context, userID uuid.UUID, now time.Time) (domain.SubscriptionStatusResult, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var found *domain.UserSubscription
	for _, sub := range r.subs {
		if sub.UserID != userID || sub.Status != domain.SubscriptionStatusActive || sub.EndDate.Before(now) {
			continue
		}
		if found == nil || sub.EndDate.Before(found.EndDate) {
			s := sub
			found = &s
		}
	}

	if found == nil {
		return domain.SubscriptionStatusResult{}, ErrNotFound
	}

	planID := found.SubscriptionPlanID
	start := found.StartDate
	end := found.EndDate
	result := domain.SubscriptionStatusResult{
		IsActive:           true,
		SubscriptionPlanID: &planID,
		Status:             found.Status,
		StartDate:          &start,
		EndDate:            &end,
	}

	if r.plans != nil {
		if plan, err := r.plans.GetByID(ctx, planID); err == nil {
			name := plan.PlanName
			result.PlanName = &name
		}
	}

	return result, nil
}

// GetByPaymentID returns the subscription created from the payment
func (r *InMemorySubscriptionRepository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (domain.UserSubscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, sub := range r.subs {
		if sub.PaymentID == paymentID {
			return sub, nil
		}
	}

	return domain.UserSubscription{}, ErrNotFound
}

// GetHistory returns all subscription rows of the user joined with plan
// fields, oldest first
func (r *InMemorySubscriptionRepository) GetHistory(ctx context.Context, userID uuid.UUID) ([]domain.SubscriptionHistoryEntry, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var entries []domain.SubscriptionHistoryEntry
	for _, sub := range r.subs {
		if sub.UserID != userID {
			continue
		}

		entry := domain.SubscriptionHistoryEntry{
			ID:        sub.ID,
			Status:    sub.Status,
			StartDate: sub.StartDate,
			EndDate:   sub.EndDate,
			CreatedAt: sub.CreatedAt,
		}

		if r.plans != nil {
			if plan, err := r.plans.GetByID(ctx, sub.SubscriptionPlanID); err == nil {
				name := plan.PlanName
				price := plan.Price
				months := plan.DurationMonths
				entry.PlanName = &name
				entry.Price = &price
				entry.DurationMonths = &months
			}
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}
