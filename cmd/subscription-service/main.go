package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/learnhub/subscription-service/internal/api/rest"
	"github.com/learnhub/subscription-service/internal/config"
	sweep "github.com/learnhub/subscription-service/internal/cron"
	"github.com/learnhub/subscription-service/internal/gateway/midtrans"
	"github.com/learnhub/subscription-service/internal/kafka"
	"github.com/learnhub/subscription-service/internal/metrics"
	"github.com/learnhub/subscription-service/internal/repository"
	"github.com/learnhub/subscription-service/internal/service"
	"github.com/learnhub/subscription-service/pkg/logger"
)

func main() {
	log := initLogger()

	log.Infow("Subscription service starting up...")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if cfg.Midtrans.ServerKey == "" {
		log.Warnw("Midtrans server key is not set, notification signatures cannot be verified")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := repository.NewPostgresDB(cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorw("Error closing database connection", "error", err)
		}
	}()
	log.Infow("Database connection established")

	// Plan reference data is immutable, a Redis read-through cache in
	// front of it is safe. Missing Redis degrades to the plain repository.
	basePlanRepo := repository.NewPostgresPlanRepository(db, log)
	var planRepo repository.PlanRepository = basePlanRepo
	redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
	} else {
		planRepo = repository.NewCachedPlanRepository(basePlanRepo, redisCache, log)
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Errorw("Error closing Redis connection", "error", err)
			}
		}()
	}

	paymentRepo := repository.NewPostgresPaymentRepository(db, log)
	gatewayRepo := repository.NewPostgresGatewayRepository(db, log)
	subRepo := repository.NewPostgresSubscriptionRepository(db, log)

	gatewayClient := midtrans.NewClient(midtrans.Config{
		ServerKey:  cfg.Midtrans.ServerKey,
		ClientKey:  cfg.Midtrans.ClientKey,
		Production: cfg.Midtrans.Production,
	}, log)

	var producer kafka.Producer
	producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		log.Warnw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		producer = kafka.NoOpProducer{}
	} else {
		defer func() {
			if err := producer.Close(); err != nil {
				log.Errorw("Error closing Kafka producer", "error", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry, log)

	subSvc := service.NewSubscriptionService(subRepo, paymentRepo, planRepo, producer, paymentMetrics, log)
	paymentSvc := service.NewPaymentService(
		service.PaymentConfig{
			ServerKey:   cfg.Midtrans.ServerKey,
			FrontendURL: cfg.Frontend.BaseURL,
		},
		paymentRepo, gatewayRepo, planRepo, subSvc, gatewayClient, producer, paymentMetrics, log,
	)

	sweeper := sweep.NewSweeper(
		subSvc,
		paymentRepo,
		cfg.Sweep.Schedule,
		time.Duration(cfg.Sweep.StaleAfterHours)*time.Hour,
		log,
	)
	if err := sweeper.Start(); err != nil {
		log.Fatalw("Failed to start expiry sweeper", "error", err)
	}

	router := rest.SetupRouter(paymentSvc, subSvc, planRepo, registry, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	sweeper.Stop()

	log.Infow("Cleanup finished. Goodbye!")
}

// initLogger initializes the logger with the level from the environment
func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}
