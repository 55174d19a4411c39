package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learnhub/subscription-service/internal/api/rest/handlers"
	"github.com/learnhub/subscription-service/internal/api/rest/middleware"
	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/internal/service"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// SetupRouter configures the Gin router with routes and middleware
func SetupRouter(
	paymentSvc service.PaymentService,
	subSvc service.SubscriptionService,
	planRepo repository.PlanRepository,
	registry *prometheus.Registry,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	paymentHandler := handlers.NewPaymentHandler(paymentSvc, log)
	subscriptionHandler := handlers.NewSubscriptionHandler(subSvc, log)
	webhookHandler := handlers.NewWebhookHandler(paymentSvc, log)
	planHandler := handlers.NewPlanHandler(planRepo, log)

	v1 := r.Group("/api/v1")
	{
		plans := v1.Group("/plans")
		{
			plans.GET("", planHandler.ListPlans)
			plans.GET("/:id", planHandler.GetPlan)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.CreatePayment)
			payments.GET("", paymentHandler.ListUserPayments)
			payments.GET("/:orderId/status", paymentHandler.GetPaymentStatus)
		}

		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.GET("/status", subscriptionHandler.GetSubscriptionStatus)
			subscriptions.GET("/history", subscriptionHandler.GetSubscriptionHistory)
			subscriptions.POST("/cancel", subscriptionHandler.CancelSubscription)
		}
	}

	// Webhooks live at the router root, outside the versioned API
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/midtrans", webhookHandler.HandleMidtransNotification)
	}

	return r
}
