package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/internal/kafka"
	"github.com/learnhub/subscription-service/internal/metrics"
	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// SubscriptionService owns the user subscription lifecycle
type SubscriptionService interface {
	// ActivateSubscription converts a successful payment into an active
	// subscription, superseding any previous active one
	ActivateSubscription(ctx context.Context, userID, paymentID uuid.UUID) (domain.UserSubscription, error)

	// GetSubscriptionStatus returns the active subscription projection, or
	// an inactive result when the user has none
	GetSubscriptionStatus(ctx context.Context, userID string) (domain.SubscriptionStatusResult, error)

	// GetUserSubscriptionHistory returns all subscription rows of the user
	// joined with plan fields, oldest first
	GetUserSubscriptionHistory(ctx context.Context, userID string) ([]domain.SubscriptionHistoryEntry, error)

	// CancelSubscription cancels the user's active subscription; a no-op
	// when there is none
	CancelSubscription(ctx context.Context, userID string) error

	// ExpireDueSubscriptions expires every active subscription past its end
	// date and returns how many rows it touched
	ExpireDueSubscriptions(ctx context.Context) (int64, error)
}

type subscriptionService struct {
	subRepo     repository.SubscriptionRepository
	paymentRepo repository.PaymentRepository
	planRepo    repository.PlanRepository
	producer    kafka.Producer
	metrics     metrics.PaymentMetrics
	log         *logger.Logger
}

// NewSubscriptionService creates a new subscription lifecycle service
func NewSubscriptionService(
	subRepo repository.SubscriptionRepository,
	paymentRepo repository.PaymentRepository,
	planRepo repository.PlanRepository,
	producer kafka.Producer,
	m metrics.PaymentMetrics,
	log *logger.Logger,
) SubscriptionService {
	return &subscriptionService{
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		planRepo:    planRepo,
		producer:    producer,
		metrics:     m,
		log:         log,
	}
}

// ActivateSubscription activates a subscription from a successful payment.
// Idempotent per payment: a repeated call for an already converted payment
// returns the existing subscription untouched, so a redelivered
// notification can complete an activation that failed mid-flight without
// ever creating a second one. The end date is calendar-month arithmetic
// from the activation time and is never recomputed afterwards.
func (s *subscriptionService) ActivateSubscription(ctx context.Context, userID, paymentID uuid.UUID) (domain.UserSubscription, error) {
	s.log.Debugw("Activating subscription", "userID", userID, "paymentID", paymentID)

	existing, err := s.subRepo.GetByPaymentID(ctx, paymentID)
	if err == nil {
		s.log.Debugw("Subscription already exists for payment", "subscriptionID", existing.ID, "paymentID", paymentID)
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.UserSubscription{}, err
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.UserSubscription{}, domain.NewNotFoundError("payment", paymentID.String())
		}
		return domain.UserSubscription{}, err
	}

	if payment.SubscriptionPlanID == nil {
		s.log.Warnw("Payment has no linked plan, cannot activate", "paymentID", paymentID)
		return domain.UserSubscription{}, domain.ErrPlanNotLinked
	}

	plan, err := s.planRepo.GetByID(ctx, *payment.SubscriptionPlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.UserSubscription{}, domain.NewNotFoundError("subscription plan", payment.SubscriptionPlanID.String())
		}
		return domain.UserSubscription{}, err
	}

	startDate := time.Now()
	endDate := startDate.AddDate(0, plan.DurationMonths, 0)

	sub := domain.UserSubscription{
		ID:                 uuid.New(),
		UserID:             userID,
		SubscriptionPlanID: plan.ID,
		PaymentID:          paymentID,
		Status:             domain.SubscriptionStatusActive,
		StartDate:          startDate,
		EndDate:            endDate,
	}

	sub, err = s.subRepo.Activate(ctx, sub)
	if err != nil {
		return domain.UserSubscription{}, err
	}

	s.metrics.IncSubscriptionEvent("activated")
	if err := s.producer.PublishEvent(ctx, kafka.TopicSubscriptionActivated, userID.String(), sub); err != nil {
		// Event publishing is best-effort, the activation already committed
		s.log.Warnw("Failed to publish subscription activated event", "error", err, "subscriptionID", sub.ID)
	}

	s.log.Infow("Subscription activated", "subscriptionID", sub.ID, "userID", userID, "planID", plan.ID, "endDate", endDate)
	return sub, nil
}

// GetSubscriptionStatus returns the status projection for display
func (s *subscriptionService) GetSubscriptionStatus(ctx context.Context, userID string) (domain.SubscriptionStatusResult, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		s.log.Warnw("Invalid UUID format for user ID", "userID", userID)
		return domain.SubscriptionStatusResult{}, repository.ErrInvalidData
	}

	result, err := s.subRepo.GetActive(ctx, uid, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.SubscriptionStatusResult{IsActive: false}, nil
		}
		return domain.SubscriptionStatusResult{}, err
	}

	return result, nil
}

// GetUserSubscriptionHistory returns the history projection
func (s *subscriptionService) GetUserSubscriptionHistory(ctx context.Context, userID string) ([]domain.SubscriptionHistoryEntry, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		s.log.Warnw("Invalid UUID format for user ID", "userID", userID)
		return nil, repository.ErrInvalidData
	}

	return s.subRepo.GetHistory(ctx, uid)
}

// CancelSubscription cancels the user's active subscription if any
func (s *subscriptionService) CancelSubscription(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		s.log.Warnw("Invalid UUID format for user ID", "userID", userID)
		return repository.ErrInvalidData
	}

	cancelled, err := s.subRepo.CancelActive(ctx, uid)
	if err != nil {
		return err
	}

	if cancelled == 0 {
		s.log.Debugw("No active subscription to cancel", "userID", userID)
		return nil
	}

	s.metrics.IncSubscriptionEvent("cancelled")
	if err := s.producer.PublishEvent(ctx, kafka.TopicSubscriptionCancelled, userID, map[string]string{"user_id": userID}); err != nil {
		s.log.Warnw("Failed to publish subscription cancelled event", "error", err, "userID", userID)
	}

	s.log.Infow("Subscription cancelled", "userID", userID)
	return nil
}

// ExpireDueSubscriptions runs the conditional expiry update
func (s *subscriptionService) ExpireDueSubscriptions(ctx context.Context) (int64, error) {
	now := time.Now()

	expired, err := s.subRepo.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}

	s.metrics.ObserveSweepExpired(float64(expired))
	if expired > 0 {
		s.metrics.IncSubscriptionEvent("expired")
		payload := map[string]interface{}{"expired_count": expired, "at": now}
		if err := s.producer.PublishEvent(ctx, kafka.TopicSubscriptionExpired, now.Format(time.RFC3339), payload); err != nil {
			s.log.Warnw("Failed to publish subscription expired event", "error", err)
		}
	}

	return expired, nil
}
