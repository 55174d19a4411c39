package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/internal/gateway/midtrans"
	"github.com/learnhub/subscription-service/internal/kafka"
	"github.com/learnhub/subscription-service/internal/metrics"
	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// GatewayClient is the outbound surface of the payment gateway
type GatewayClient interface {
	CreateTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, []byte, error)
	TransactionStatus(ctx context.Context, orderID string) (*midtrans.StatusResponse, error)
}

// PaymentService owns payment creation and gateway notification handling
type PaymentService interface {
	CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (domain.PaymentResponse, error)

	// HandleNotification verifies, resolves and applies an asynchronous
	// gateway notification. Redelivery for an already-terminal payment is
	// a verified no-op.
	HandleNotification(ctx context.Context, n domain.PaymentNotification) error

	GetPaymentStatus(ctx context.Context, orderID string) (*midtrans.StatusResponse, error)
	GetUserPayments(ctx context.Context, userID string) ([]domain.UserPayment, error)
}

// PaymentConfig carries the gateway credentials and callback base URL the
// payment flow needs
type PaymentConfig struct {
	ServerKey   string
	FrontendURL string
}

type paymentService struct {
	cfg         PaymentConfig
	paymentRepo repository.PaymentRepository
	gatewayRepo repository.GatewayRepository
	planRepo    repository.PlanRepository
	subSvc      SubscriptionService
	gateway     GatewayClient
	producer    kafka.Producer
	metrics     metrics.PaymentMetrics
	log         *logger.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	cfg PaymentConfig,
	paymentRepo repository.PaymentRepository,
	gatewayRepo repository.GatewayRepository,
	planRepo repository.PlanRepository,
	subSvc SubscriptionService,
	gateway GatewayClient,
	producer kafka.Producer,
	m metrics.PaymentMetrics,
	log *logger.Logger,
) PaymentService {
	return &paymentService{
		cfg:         cfg,
		paymentRepo: paymentRepo,
		gatewayRepo: gatewayRepo,
		planRepo:    planRepo,
		subSvc:      subSvc,
		gateway:     gateway,
		producer:    producer,
		metrics:     m,
		log:         log,
	}
}

// newOrderID generates the externally visible order identifier. The
// timestamp keeps it sortable, the random suffix makes it unguessable;
// the unique index on order_id catches the astronomically unlikely
// collision as a hard error.
func newOrderID() string {
	return fmt.Sprintf("ORDER-%d-%.8s", time.Now().UnixMilli(), uuid.NewString())
}

// CreatePayment persists a pending payment with the plan price snapshotted
// and opens a gateway transaction for it
func (s *paymentService) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (domain.PaymentResponse, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		s.log.Warnw("Invalid UUID format for user ID", "userID", req.UserID)
		return domain.PaymentResponse{}, repository.ErrInvalidData
	}

	planID, err := uuid.Parse(req.SubscriptionPlanID)
	if err != nil {
		s.log.Warnw("Invalid UUID format for plan ID", "planID", req.SubscriptionPlanID)
		return domain.PaymentResponse{}, repository.ErrInvalidData
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PaymentResponse{}, domain.NewNotFoundError("subscription plan", req.SubscriptionPlanID)
		}
		return domain.PaymentResponse{}, err
	}

	// Snap bills gross_amount in whole rupiah. A fractional plan price
	// cannot be charged faithfully, so it is rejected before any state is
	// written rather than silently truncated.
	if !plan.Price.Equal(plan.Price.Truncate(0)) {
		s.log.Errorw("Plan price is not a whole amount, cannot charge it via the gateway",
			"planID", plan.ID, "price", plan.Price)
		return domain.PaymentResponse{}, fmt.Errorf("plan %s has non-integer price %s: %w",
			plan.ID, plan.Price, repository.ErrInvalidData)
	}

	orderID := newOrderID()

	payment := domain.Payment{
		ID:                 uuid.New(),
		UserID:             userID,
		SubscriptionPlanID: &plan.ID,
		OrderID:            orderID,
		Amount:             plan.Price,
		PaymentStatus:      domain.PaymentStatusPending,
	}

	payment, err = s.paymentRepo.Create(ctx, payment)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.log.Errorw("Order ID collision", "orderID", orderID)
			return domain.PaymentResponse{}, fmt.Errorf("order ID collision for %s: %w", orderID, err)
		}
		return domain.PaymentResponse{}, err
	}

	grossAmount := plan.Price.IntPart()
	snapReq := midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:     orderID,
			GrossAmount: grossAmount,
		},
		ItemDetails: []midtrans.ItemDetail{
			{
				ID:       plan.ID.String(),
				Price:    grossAmount,
				Quantity: 1,
				Name:     fmt.Sprintf("%s Subscription", plan.PlanName),
			},
		},
		CustomerDetails: &midtrans.CustomerDetails{
			FirstName: "User",
		},
		Callbacks: &midtrans.Callbacks{
			Finish:  s.cfg.FrontendURL + "/payment/success",
			Error:   s.cfg.FrontendURL + "/payment/error",
			Pending: s.cfg.FrontendURL + "/payment/pending",
		},
	}

	// If the gateway call fails the pending row stays without a linked
	// gateway record; the reconciliation sweep fails it after the cutoff
	snapResp, rawResp, err := s.gateway.CreateTransaction(ctx, snapReq)
	if err != nil {
		s.log.Errorw("Gateway transaction creation failed", "error", err, "orderID", orderID)
		return domain.PaymentResponse{}, err
	}

	record := domain.GatewayTransactionRecord{
		ID:              uuid.New(),
		GatewayName:     midtrans.GatewayName,
		TransactionID:   snapResp.TransactionID,
		SnapToken:       snapResp.Token,
		GatewayResponse: string(rawResp),
	}

	record, err = s.gatewayRepo.Create(ctx, record)
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	if err := s.paymentRepo.LinkGateway(ctx, orderID, record.ID); err != nil {
		return domain.PaymentResponse{}, err
	}

	s.metrics.IncPaymentCreated()
	s.metrics.ObservePaymentAmount(plan.Price.InexactFloat64(), string(domain.PaymentStatusPending))

	s.log.Infow("Payment created", "orderID", orderID, "userID", userID, "planID", plan.ID, "amount", plan.Price)

	return domain.PaymentResponse{
		OrderID:            orderID,
		SnapToken:          snapResp.Token,
		RedirectURL:        snapResp.RedirectURL,
		Amount:             plan.Price,
		SubscriptionPlanID: plan.ID,
	}, nil
}

// HandleNotification applies one gateway notification. The signature check
// short-circuits before any state is touched.
func (s *paymentService) HandleNotification(ctx context.Context, n domain.PaymentNotification) error {
	if !midtrans.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, s.cfg.ServerKey, n.SignatureKey) {
		s.log.Warnw("Notification signature verification failed", "orderID", n.OrderID)
		s.metrics.IncNotificationRejected("invalid_signature")
		return domain.ErrInvalidSignature
	}

	payment, err := s.paymentRepo.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.IncNotificationRejected("unknown_order")
			return domain.NewNotFoundError("payment", n.OrderID)
		}
		return err
	}

	// At-least-once delivery: a redelivered notification for a terminal
	// payment must not re-transition anything. A successful payment still
	// re-runs activation, which is idempotent per payment, so a delivery
	// whose activation failed after the status flip gets completed by the
	// retry instead of being lost.
	if payment.PaymentStatus.IsTerminal() {
		if payment.PaymentStatus == domain.PaymentStatusSuccess {
			if _, err := s.subSvc.ActivateSubscription(ctx, payment.UserID, payment.ID); err != nil {
				return fmt.Errorf("failed to activate subscription for order %s: %w", n.OrderID, err)
			}
		}
		s.log.Infow("Notification redelivered for terminal payment, ignoring",
			"orderID", n.OrderID, "status", payment.PaymentStatus, "transactionStatus", n.TransactionStatus)
		return nil
	}

	status := resolvePaymentStatus(n.TransactionStatus, n.FraudStatus)

	var method *string
	if n.PaymentType != "" {
		method = &n.PaymentType
	}

	updated, err := s.paymentRepo.UpdateStatusByOrderID(ctx, n.OrderID, status, method)
	if err != nil {
		return err
	}
	if updated == 0 {
		// A concurrent delivery finished the transition first
		s.log.Infow("Payment already transitioned by concurrent notification", "orderID", n.OrderID)
		return nil
	}

	s.metrics.IncPaymentStatus(string(status))
	s.log.Infow("Payment status resolved", "orderID", n.OrderID,
		"transactionStatus", n.TransactionStatus, "fraudStatus", n.FraudStatus, "resolved", status)

	switch status {
	case domain.PaymentStatusSuccess:
		if _, err := s.subSvc.ActivateSubscription(ctx, payment.UserID, payment.ID); err != nil {
			return fmt.Errorf("failed to activate subscription for order %s: %w", n.OrderID, err)
		}
		if err := s.producer.PublishEvent(ctx, kafka.TopicPaymentSucceeded, n.OrderID, payment); err != nil {
			s.log.Warnw("Failed to publish payment succeeded event", "error", err, "orderID", n.OrderID)
		}
	case domain.PaymentStatusFailed:
		if err := s.producer.PublishEvent(ctx, kafka.TopicPaymentFailed, n.OrderID, payment); err != nil {
			s.log.Warnw("Failed to publish payment failed event", "error", err, "orderID", n.OrderID)
		}
	}

	return nil
}

// GetPaymentStatus proxies the gateway status query for an order
func (s *paymentService) GetPaymentStatus(ctx context.Context, orderID string) (*midtrans.StatusResponse, error) {
	return s.gateway.TransactionStatus(ctx, orderID)
}

// GetUserPayments returns the user's payment history projection
func (s *paymentService) GetUserPayments(ctx context.Context, userID string) ([]domain.UserPayment, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		s.log.Warnw("Invalid UUID format for user ID", "userID", userID)
		return nil, repository.ErrInvalidData
	}

	return s.paymentRepo.GetByUserID(ctx, uid)
}

// resolvePaymentStatus maps the gateway (transaction status, fraud status)
// pair onto the internal payment status. capture is only a success once
// the fraud check accepted it; anything unknown stays pending.
func resolvePaymentStatus(transactionStatus, fraudStatus string) domain.PaymentStatus {
	if transactionStatus == "capture" {
		if fraudStatus == "accept" {
			return domain.PaymentStatusSuccess
		}
		return domain.PaymentStatusPending
	}

	switch transactionStatus {
	case "settlement":
		return domain.PaymentStatusSuccess
	case "pending":
		return domain.PaymentStatusPending
	case "cancel", "deny", "expire":
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusPending
	}
}
