package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/internal/service"
	"github.com/learnhub/subscription-service/pkg/logger"
)

const runTimeout = 5 * time.Minute

// Sweeper runs the recurring maintenance passes on a cron schedule:
// expiring subscriptions past their end date and failing pending payments
// that never got a gateway record. A failed run logs and waits for the
// next tick, it never crashes the process.
type Sweeper struct {
	cron        *cron.Cron
	subSvc      service.SubscriptionService
	paymentRepo repository.PaymentRepository
	schedule    string
	staleAfter  time.Duration
	log         *logger.Logger
}

// NewSweeper creates a new sweeper. The schedule is a standard cron
// expression, staleAfter is how old an orphaned pending payment must be
// before reconciliation fails it.
func NewSweeper(
	subSvc service.SubscriptionService,
	paymentRepo repository.PaymentRepository,
	schedule string,
	staleAfter time.Duration,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		cron:        cron.New(),
		subSvc:      subSvc,
		paymentRepo: paymentRepo,
		schedule:    schedule,
		staleAfter:  staleAfter,
		log:         log,
	}
}

// Start registers the sweep job and starts the cron scheduler
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Run); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Infow("Subscription expiry sweeper started", "schedule", s.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Infow("Subscription expiry sweeper stopped")
}

// Run executes one sweep pass. Exported so the wiring can trigger an
// immediate pass at startup.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s.log.Infow("Running subscription expiry sweep")

	expired, err := s.subSvc.ExpireDueSubscriptions(ctx)
	if err != nil {
		s.log.Errorw("Subscription expiry sweep failed", "error", err)
	} else {
		s.log.Infow("Subscription expiry sweep completed", "expired", expired)
	}

	cutoff := time.Now().Add(-s.staleAfter)
	failed, err := s.paymentRepo.MarkStalePendingFailed(ctx, cutoff)
	if err != nil {
		s.log.Errorw("Stale payment reconciliation failed", "error", err)
		return
	}
	if failed > 0 {
		s.log.Infow("Failed orphaned pending payments", "count", failed, "olderThan", s.staleAfter)
	}
}
