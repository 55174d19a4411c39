package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/internal/gateway/midtrans"
	"github.com/learnhub/subscription-service/internal/kafka"
	"github.com/learnhub/subscription-service/internal/metrics"
	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/internal/service"
	"github.com/learnhub/subscription-service/pkg/logger"
)

const testServerKey = "test-server-key"

type stubGateway struct{}

func (stubGateway) CreateTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, []byte, error) {
	return &midtrans.SnapResponse{
		Token:       "snap-token",
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v4/redirection/" + req.TransactionDetails.OrderID,
	}, []byte(`{"token":"snap-token"}`), nil
}

func (stubGateway) TransactionStatus(ctx context.Context, orderID string) (*midtrans.StatusResponse, error) {
	return &midtrans.StatusResponse{OrderID: orderID, TransactionStatus: "pending", StatusCode: "201"}, nil
}

type routerEnv struct {
	router *gin.Engine
	plan   domain.SubscriptionPlan
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)

	plans := repository.NewInMemoryPlanRepository(log)
	payments := repository.NewInMemoryPaymentRepository(plans, log)
	gateways := repository.NewInMemoryGatewayRepository(log)
	subs := repository.NewInMemorySubscriptionRepository(plans, log)

	plan, err := plans.Create(context.Background(), domain.SubscriptionPlan{
		ID:             uuid.New(),
		PlanName:       "Premium",
		Price:          decimal.NewFromInt(99000),
		DurationMonths: 1,
	})
	require.NoError(t, err)

	subSvc := service.NewSubscriptionService(subs, payments, plans, kafka.NoOpProducer{}, metrics.NoOpMetrics{}, log)
	paymentSvc := service.NewPaymentService(
		service.PaymentConfig{ServerKey: testServerKey, FrontendURL: "https://learnhub.example.com"},
		payments, gateways, plans, subSvc, stubGateway{}, kafka.NoOpProducer{}, metrics.NoOpMetrics{}, log,
	)

	return &routerEnv{
		router: SetupRouter(paymentSvc, subSvc, plans, prometheus.NewRegistry(), log),
		plan:   plan,
	}
}

func (e *routerEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListPlansEndpoint(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Plans []domain.SubscriptionPlan `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Plans, 1)
	assert.Equal(t, "Premium", body.Plans[0].PlanName)
}

func TestCreatePaymentEndpoint(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/payments", gin.H{
		"user_id":              uuid.NewString(),
		"subscription_plan_id": env.plan.ID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp domain.PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "snap-token", resp.SnapToken)
}

func TestCreatePaymentEndpointValidation(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/payments", gin.H{
		"user_id": "not-a-uuid",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePaymentEndpointUnknownPlan(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/payments", gin.H{
		"user_id":              uuid.NewString(),
		"subscription_plan_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookEndpoint(t *testing.T) {
	env := newRouterEnv(t)
	userID := uuid.NewString()

	w := env.do(t, http.MethodPost, "/api/v1/payments", gin.H{
		"user_id":              userID,
		"subscription_plan_id": env.plan.ID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	gross := env.plan.Price.StringFixed(2)
	notification := gin.H{
		"order_id":           created.OrderID,
		"status_code":        "200",
		"gross_amount":       gross,
		"signature_key":      midtrans.ComputeSignature(created.OrderID, "200", gross, testServerKey),
		"transaction_status": "settlement",
		"payment_type":       "qris",
	}

	w = env.do(t, http.MethodPost, "/webhooks/midtrans", notification)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/subscriptions/status?user_id="+userID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status domain.SubscriptionStatusResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.IsActive)
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/payments", gin.H{
		"user_id":              uuid.NewString(),
		"subscription_plan_id": env.plan.ID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(t, http.MethodPost, "/webhooks/midtrans", gin.H{
		"order_id":           created.OrderID,
		"status_code":        "200",
		"gross_amount":       "99000.00",
		"signature_key":      "forged",
		"transaction_status": "settlement",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookEndpointUnknownOrder(t *testing.T) {
	env := newRouterEnv(t)

	orderID := "ORDER-0-unknown"
	w := env.do(t, http.MethodPost, "/webhooks/midtrans", gin.H{
		"order_id":           orderID,
		"status_code":        "200",
		"gross_amount":       "99000.00",
		"signature_key":      midtrans.ComputeSignature(orderID, "200", "99000.00", testServerKey),
		"transaction_status": "settlement",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelSubscriptionEndpoint(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/subscriptions/cancel", gin.H{
		"user_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusOK, w.Code)
}
