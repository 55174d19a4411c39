package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/internal/gateway/midtrans"
	"github.com/learnhub/subscription-service/internal/kafka"
	"github.com/learnhub/subscription-service/internal/metrics"
	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/pkg/logger"
)

const testServerKey = "test-server-key"

// mutablePlanStore is a PlanRepository whose rows can be rewritten after
// creation and whose reads can be made to fail, so tests can change a
// plan underneath an existing payment or simulate a store outage.
type mutablePlanStore struct {
	mu     sync.RWMutex
	plans  map[uuid.UUID]domain.SubscriptionPlan
	getErr error
}

func newMutablePlanStore() *mutablePlanStore {
	return &mutablePlanStore{plans: make(map[uuid.UUID]domain.SubscriptionPlan)}
}

func (s *mutablePlanStore) GetAll(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plans := make([]domain.SubscriptionPlan, 0, len(s.plans))
	for _, plan := range s.plans {
		plans = append(plans, plan)
	}
	return plans, nil
}

func (s *mutablePlanStore) GetByID(ctx context.Context, id uuid.UUID) (domain.SubscriptionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.getErr != nil {
		return domain.SubscriptionPlan{}, s.getErr
	}
	plan, ok := s.plans[id]
	if !ok {
		return domain.SubscriptionPlan{}, repository.ErrNotFound
	}
	return plan, nil
}

func (s *mutablePlanStore) Create(ctx context.Context, plan domain.SubscriptionPlan) (domain.SubscriptionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[plan.ID]; ok {
		return domain.SubscriptionPlan{}, repository.ErrDuplicate
	}
	s.plans[plan.ID] = plan
	return plan, nil
}

func (s *mutablePlanStore) put(plan domain.SubscriptionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
}

func (s *mutablePlanStore) setGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// fakeGateway replaces the outbound Midtrans client
type fakeGateway struct {
	createCalls int
	createErr   error
	statusResp  *midtrans.StatusResponse
}

func (f *fakeGateway) CreateTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, []byte, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	resp := &midtrans.SnapResponse{
		Token:       fmt.Sprintf("snap-token-%d", f.createCalls),
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v4/redirection/" + req.TransactionDetails.OrderID,
	}
	return resp, []byte(`{"token":"` + resp.Token + `"}`), nil
}

func (f *fakeGateway) TransactionStatus(ctx context.Context, orderID string) (*midtrans.StatusResponse, error) {
	if f.statusResp != nil {
		return f.statusResp, nil
	}
	return nil, domain.NewNotFoundError("transaction", orderID)
}

type paymentEnv struct {
	plans      *mutablePlanStore
	payments   *repository.InMemoryPaymentRepository
	gateways   *repository.InMemoryGatewayRepository
	subs       *repository.InMemorySubscriptionRepository
	gateway    *fakeGateway
	subSvc     SubscriptionService
	paymentSvc PaymentService
}

func newPaymentEnv(t *testing.T) *paymentEnv {
	t.Helper()

	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)

	plans := newMutablePlanStore()
	payments := repository.NewInMemoryPaymentRepository(plans, log)
	gateways := repository.NewInMemoryGatewayRepository(log)
	subs := repository.NewInMemorySubscriptionRepository(plans, log)

	subSvc := NewSubscriptionService(subs, payments, plans, kafka.NoOpProducer{}, metrics.NoOpMetrics{}, log)

	gw := &fakeGateway{}
	cfg := PaymentConfig{ServerKey: testServerKey, FrontendURL: "https://learnhub.example.com"}
	paymentSvc := NewPaymentService(cfg, payments, gateways, plans, subSvc, gw, kafka.NoOpProducer{}, metrics.NoOpMetrics{}, log)

	return &paymentEnv{
		plans:      plans,
		payments:   payments,
		gateways:   gateways,
		subs:       subs,
		gateway:    gw,
		subSvc:     subSvc,
		paymentSvc: paymentSvc,
	}
}

func (e *paymentEnv) seedPlan(t *testing.T, price int64, months int) domain.SubscriptionPlan {
	t.Helper()
	plan := domain.SubscriptionPlan{
		ID:             uuid.New(),
		PlanName:       "Premium",
		Price:          decimal.NewFromInt(price),
		DurationMonths: months,
	}
	created, err := e.plans.Create(context.Background(), plan)
	require.NoError(t, err)
	return created
}

// signedNotification builds a notification whose signature verifies against
// the test server key
func signedNotification(orderID string, amount decimal.Decimal, transactionStatus, fraudStatus string) domain.PaymentNotification {
	gross := amount.StringFixed(2)
	statusCode := "200"
	return domain.PaymentNotification{
		OrderID:           orderID,
		StatusCode:        statusCode,
		GrossAmount:       gross,
		SignatureKey:      midtrans.ComputeSignature(orderID, statusCode, gross, testServerKey),
		TransactionStatus: transactionStatus,
		FraudStatus:       fraudStatus,
		PaymentType:       "credit_card",
		TransactionID:     uuid.NewString(),
	}
}

func TestCreatePayment(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "snap-token-1", resp.SnapToken)
	assert.NotEmpty(t, resp.RedirectURL)
	assert.True(t, resp.Amount.Equal(plan.Price))
	assert.Equal(t, plan.ID, resp.SubscriptionPlanID)

	payment, err := env.payments.GetByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.PaymentStatus)
	assert.True(t, payment.Amount.Equal(plan.Price))
	require.NotNil(t, payment.GatewayID)

	record, err := env.gateways.GetByID(ctx, *payment.GatewayID)
	require.NoError(t, err)
	assert.Equal(t, midtrans.GatewayName, record.GatewayName)
	assert.Equal(t, "snap-token-1", record.SnapToken)
}

func TestCreatePaymentOrderIDsUnique(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
			UserID:             userID.String(),
			SubscriptionPlanID: plan.ID.String(),
		})
		require.NoError(t, err)
		assert.False(t, seen[resp.OrderID], "order ID %s repeated", resp.OrderID)
		seen[resp.OrderID] = true
	}
}

func TestCreatePaymentSnapshotsPlanPrice(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	// A later price change must not affect the already recorded amount
	plan.Price = decimal.NewFromInt(149000)
	env.plans.put(plan)

	payment, err := env.payments.GetByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(99000)))
}

func TestCreatePaymentUnknownPlan(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()

	_, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             uuid.NewString(),
		SubscriptionPlanID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreatePaymentGatewayFailureLeavesPendingRow(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	ctx := context.Background()

	env.gateway.createErr = domain.NewGatewayError(midtrans.GatewayName, "503", "service unavailable", nil)

	_, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             uuid.NewString(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	// The pending row without a gateway record stays for reconciliation
	// and is failed once it ages past the cutoff
	failed, err := env.payments.MarkStalePendingFailed(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed)
}

func TestHandleNotificationRejectsTamperedSignature(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	ctx := context.Background()

	resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             uuid.NewString(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	n := signedNotification(resp.OrderID, plan.Price, "settlement", "")
	n.GrossAmount = "1.00"

	err = env.paymentSvc.HandleNotification(ctx, n)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	// No state change was applied
	payment, err := env.payments.GetByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.PaymentStatus)
}

func TestHandleNotificationUnknownOrder(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()

	n := signedNotification("ORDER-0-unknown", decimal.NewFromInt(99000), "settlement", "")
	err := env.paymentSvc.HandleNotification(ctx, n)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandleNotificationSettlementActivatesSubscription(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	before := time.Now()
	err = env.paymentSvc.HandleNotification(ctx, signedNotification(resp.OrderID, plan.Price, "settlement", ""))
	require.NoError(t, err)

	payment, err := env.payments.GetByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.PaymentStatus)
	require.NotNil(t, payment.PaymentMethod)
	assert.Equal(t, "credit_card", *payment.PaymentMethod)

	status, err := env.subSvc.GetSubscriptionStatus(ctx, userID.String())
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	require.NotNil(t, status.SubscriptionPlanID)
	assert.Equal(t, plan.ID, *status.SubscriptionPlanID)
	require.NotNil(t, status.EndDate)
	assert.WithinDuration(t, before.AddDate(0, plan.DurationMonths, 0), *status.EndDate, 5*time.Second)
}

func TestHandleNotificationCaptureChallengeStaysPending(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	err = env.paymentSvc.HandleNotification(ctx, signedNotification(resp.OrderID, plan.Price, "capture", "challenge"))
	require.NoError(t, err)

	payment, err := env.payments.GetByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.PaymentStatus)

	status, err := env.subSvc.GetSubscriptionStatus(ctx, userID.String())
	require.NoError(t, err)
	assert.False(t, status.IsActive)
}

func TestHandleNotificationRedeliveryIsNoOp(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	n := signedNotification(resp.OrderID, plan.Price, "settlement", "")
	require.NoError(t, env.paymentSvc.HandleNotification(ctx, n))
	require.NoError(t, env.paymentSvc.HandleNotification(ctx, n))
	require.NoError(t, env.paymentSvc.HandleNotification(ctx, n))

	history, err := env.subSvc.GetUserSubscriptionHistory(ctx, userID.String())
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, domain.SubscriptionStatusActive, history[0].Status)
}

func TestHandleNotificationRedeliveryCompletesFailedActivation(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	// The plan store dies between the status flip and the activation
	env.plans.setGetErr(errors.New("connection refused"))

	n := signedNotification(resp.OrderID, plan.Price, "settlement", "")
	err = env.paymentSvc.HandleNotification(ctx, n)
	require.Error(t, err)

	// The payment is already terminal but the user has no subscription yet
	payment, err := env.payments.GetByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.PaymentStatus)

	status, err := env.subSvc.GetSubscriptionStatus(ctx, userID.String())
	require.NoError(t, err)
	require.False(t, status.IsActive)

	// Once the store recovers, the gateway's redelivery finishes the job
	env.plans.setGetErr(nil)
	require.NoError(t, env.paymentSvc.HandleNotification(ctx, n))

	status, err = env.subSvc.GetSubscriptionStatus(ctx, userID.String())
	require.NoError(t, err)
	assert.True(t, status.IsActive)

	// And a further redelivery still creates no second subscription
	require.NoError(t, env.paymentSvc.HandleNotification(ctx, n))

	history, err := env.subSvc.GetUserSubscriptionHistory(ctx, userID.String())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreatePaymentRejectsFractionalPlanPrice(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()

	plan, err := env.plans.Create(ctx, domain.SubscriptionPlan{
		ID:             uuid.New(),
		PlanName:       "Premium",
		Price:          decimal.RequireFromString("99000.50"),
		DurationMonths: 1,
	})
	require.NoError(t, err)

	userID := uuid.New()
	_, err = env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.ErrorIs(t, err, repository.ErrInvalidData)

	// Nothing was charged and nothing was written
	assert.Equal(t, 0, env.gateway.createCalls)

	rows, err := env.payments.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHandleNotificationFailureRedeliveryCannotRevive(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	resp, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	require.NoError(t, env.paymentSvc.HandleNotification(ctx, signedNotification(resp.OrderID, plan.Price, "deny", "")))

	// A late settlement delivery must not flip a failed payment back
	require.NoError(t, env.paymentSvc.HandleNotification(ctx, signedNotification(resp.OrderID, plan.Price, "settlement", "")))

	payment, err := env.payments.GetByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, payment.PaymentStatus)

	status, err := env.subSvc.GetSubscriptionStatus(ctx, userID.String())
	require.NoError(t, err)
	assert.False(t, status.IsActive)
}

func TestResolvePaymentStatus(t *testing.T) {
	cases := []struct {
		transactionStatus string
		fraudStatus       string
		want              domain.PaymentStatus
	}{
		{"capture", "accept", domain.PaymentStatusSuccess},
		{"capture", "challenge", domain.PaymentStatusPending},
		{"capture", "", domain.PaymentStatusPending},
		{"settlement", "", domain.PaymentStatusSuccess},
		{"settlement", "accept", domain.PaymentStatusSuccess},
		{"pending", "", domain.PaymentStatusPending},
		{"cancel", "", domain.PaymentStatusFailed},
		{"deny", "", domain.PaymentStatusFailed},
		{"expire", "", domain.PaymentStatusFailed},
		{"refund", "", domain.PaymentStatusPending},
		{"", "", domain.PaymentStatusPending},
	}

	for _, tc := range cases {
		name := tc.transactionStatus + "/" + tc.fraudStatus
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolvePaymentStatus(tc.transactionStatus, tc.fraudStatus))
		})
	}
}

func TestGetUserPayments(t *testing.T) {
	env := newPaymentEnv(t)
	plan := env.seedPlan(t, 99000, 1)
	userID := uuid.New()
	ctx := context.Background()

	first, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	second, err := env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             userID.String(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	// Another user's payment must not leak into the listing
	_, err = env.paymentSvc.CreatePayment(ctx, domain.CreatePaymentRequest{
		UserID:             uuid.NewString(),
		SubscriptionPlanID: plan.ID.String(),
	})
	require.NoError(t, err)

	rows, err := env.paymentSvc.GetUserPayments(ctx, userID.String())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.OrderID, rows[0].OrderID)
	assert.Equal(t, second.OrderID, rows[1].OrderID)
	require.NotNil(t, rows[0].PlanName)
	assert.Equal(t, plan.PlanName, *rows[0].PlanName)
}

func TestGetUserPaymentsInvalidUserID(t *testing.T) {
	env := newPaymentEnv(t)

	_, err := env.paymentSvc.GetUserPayments(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrInvalidData)
}

func TestGetPaymentStatusProxiesGateway(t *testing.T) {
	env := newPaymentEnv(t)
	env.gateway.statusResp = &midtrans.StatusResponse{
		OrderID:           "ORDER-1-abc",
		TransactionStatus: "settlement",
		StatusCode:        "200",
	}

	resp, err := env.paymentSvc.GetPaymentStatus(context.Background(), "ORDER-1-abc")
	require.NoError(t, err)
	assert.Equal(t, "settlement", resp.TransactionStatus)

	env.gateway.statusResp = nil
	_, err = env.paymentSvc.GetPaymentStatus(context.Background(), "ORDER-2-def")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

var _ GatewayClient = (*fakeGateway)(nil)
var _ repository.PlanRepository = (*mutablePlanStore)(nil)
