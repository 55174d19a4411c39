package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/learnhub/subscription-service/pkg/logger"
)

// PaymentMetrics counts payment and subscription lifecycle events
type PaymentMetrics interface {
	IncPaymentCreated()
	IncPaymentStatus(status string)
	IncNotificationRejected(reason string)
	IncSubscriptionEvent(event string)
	ObserveSweepExpired(count float64)
	ObservePaymentAmount(amount float64, status string)
}

type paymentMetrics struct {
	log                   *logger.Logger
	paymentsCreated       prometheus.Counter
	paymentsStatus        *prometheus.CounterVec
	notificationsRejected *prometheus.CounterVec
	subscriptionEvents    *prometheus.CounterVec
	sweepExpired          prometheus.Histogram
	paymentsAmount        *prometheus.HistogramVec
}

// NewPaymentMetrics creates new payment metrics
func NewPaymentMetrics(registry *prometheus.Registry, log *logger.Logger) PaymentMetrics {
	paymentsCreated := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "The total number of created payments",
		},
	)

	paymentsStatus := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_status_total",
			Help: "The total number of payment status transitions",
		},
		[]string{"status"},
	)

	notificationsRejected := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_notifications_rejected_total",
			Help: "The total number of rejected gateway notifications",
		},
		[]string{"reason"},
	)

	subscriptionEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_events_total",
			Help: "The total number of subscription lifecycle events",
		},
		[]string{"event"},
	)

	sweepExpired := promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subscription_sweep_expired",
			Help:    "Subscriptions expired per sweep run",
			Buckets: prometheus.ExponentialBuckets(1, 10, 5),
		},
	)

	paymentsAmount := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payments_amount",
			Help:    "Payment amounts distribution",
			Buckets: prometheus.ExponentialBuckets(10000, 10, 5),
		},
		[]string{"status"},
	)

	return &paymentMetrics{
		log:                   log,
		paymentsCreated:       paymentsCreated,
		paymentsStatus:        paymentsStatus,
		notificationsRejected: notificationsRejected,
		subscriptionEvents:    subscriptionEvents,
		sweepExpired:          sweepExpired,
		paymentsAmount:        paymentsAmount,
	}
}

// IncPaymentCreated increments the created payments counter
func (m *paymentMetrics) IncPaymentCreated() {
	m.paymentsCreated.Inc()
}

// IncPaymentStatus increments the status transition counter
func (m *paymentMetrics) IncPaymentStatus(status string) {
	m.paymentsStatus.WithLabelValues(status).Inc()
}

// IncNotificationRejected increments the rejected notification counter
func (m *paymentMetrics) IncNotificationRejected(reason string) {
	m.notificationsRejected.WithLabelValues(reason).Inc()
}

// IncSubscriptionEvent increments the subscription event counter
func (m *paymentMetrics) IncSubscriptionEvent(event string) {
	m.subscriptionEvents.WithLabelValues(event).Inc()
}

// ObserveSweepExpired records how many subscriptions one sweep run expired
func (m *paymentMetrics) ObserveSweepExpired(count float64) {
	m.sweepExpired.Observe(count)
}

// ObservePaymentAmount records the payment amount
func (m *paymentMetrics) ObservePaymentAmount(amount float64, status string) {
	m.paymentsAmount.WithLabelValues(status).Observe(amount)
}

// NoOpMetrics discards all observations, used in tests
type NoOpMetrics struct{}

func (NoOpMetrics) IncPaymentCreated()                                 {}
func (NoOpMetrics) IncPaymentStatus(status string)                     {}
func (NoOpMetrics) IncNotificationRejected(reason string)              {}
func (NoOpMetrics) IncSubscriptionEvent(event string)                  {}
func (NoOpMetrics) ObserveSweepExpired(count float64)                  {}
func (NoOpMetrics) ObservePaymentAmount(amount float64, status string) {}
