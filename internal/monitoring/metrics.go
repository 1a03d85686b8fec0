package monitoring

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_booking_operations_total",
			Help: "Total booking workflow operations",
		},
		[]string{"operation", "status"},
	)

	paymentConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_payment_confirmations_total",
			Help: "Payment confirmations by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	reconciliationFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_payment_reconciliation_flags_total",
			Help: "Completed payments that could not be turned into a ticket",
		},
		[]string{"provider", "reason"},
	)

	reconciliationBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventify_payment_reconciliation_backlog",
			Help: "Payments currently waiting for manual reconciliation",
		},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_notification_failures_total",
			Help: "Notifications that failed after all retries",
		},
		[]string{"kind"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventify_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventify_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

type Monitor struct {
	logger *slog.Logger
}

func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{logger: logger}
}

// Track booking workflow operations
func (m *Monitor) TrackBooking(operation, status string) {
	bookingOperations.WithLabelValues(operation, status).Inc()
}

func (m *Monitor) TrackPaymentConfirmation(provider, outcome string) {
	paymentConfirmations.WithLabelValues(provider, outcome).Inc()
}

func (m *Monitor) TrackReconciliation(provider, reason string) {
	reconciliationFlags.WithLabelValues(provider, reason).Inc()
}

func (m *Monitor) TrackNotificationFailure(kind string) {
	notificationFailures.WithLabelValues(kind).Inc()
}

func (m *Monitor) TrackGatewayCall(provider, operation string, duration time.Duration) {
	gatewayDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func (m *Monitor) TrackHTTPRequest(method, route string, status int, duration time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// WatchReconciliation refreshes the reconciliation backlog gauge until ctx is done.
func (m *Monitor) WatchReconciliation(ctx context.Context, interval time.Duration, count func(context.Context) (int64, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.collectReconciliation(ctx, count)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collectReconciliation(ctx context.Context, count func(context.Context) (int64, error)) {
	n, err := count(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("Failed to collect reconciliation backlog", "error", err)
		}
		return
	}
	reconciliationBacklog.Set(float64(n))
}
