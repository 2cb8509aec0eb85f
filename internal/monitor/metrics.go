package monitor

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/pkg/breaker"
	"storefront/pkg/queue"
)

// MetricsCollector owns a private registry so tests and multiple servers
// never collide on the global one
type MetricsCollector struct {
	registry *prometheus.Registry

	// business
	priceChecksTotal       *prometheus.CounterVec
	priceCheckEvaluated    *prometheus.CounterVec
	notificationsCreated   *prometheus.CounterVec
	notificationsSkipped   *prometheus.CounterVec
	notificationWriteFails *prometheus.CounterVec
	ordersTotal            *prometheus.CounterVec
	userLoginTotal         *prometheus.CounterVec

	// http
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// database pool
	dbConnectionsInUse prometheus.Gauge
	dbConnectionsIdle  prometheus.Gauge
	dbConnectionsOpen  prometheus.Gauge

	// queue
	queueMessagesSent   prometheus.Gauge
	queueMessagesRecv   prometheus.Gauge
	queueHandlerFailure prometheus.Gauge

	// circuit breakers
	breakerState               *prometheus.GaugeVec
	breakerConsecutiveFailures *prometheus.GaugeVec

	// runtime
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
}

// NewMetricsCollector registers every metric under namespace
func NewMetricsCollector(namespace string) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,

		priceChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_checks_total",
			Help:      "Price-drop evaluations by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		priceCheckEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_check_favorites_evaluated_total",
			Help:      "Favorites evaluated by the price-drop detector",
		}, []string{"trigger"}),
		notificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Price-drop notifications persisted",
		}, []string{"trigger"}),
		notificationsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_skipped_total",
			Help:      "Favorites that did not owe a notification",
		}, []string{"trigger"}),
		notificationWriteFails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_write_failures_total",
			Help:      "Notifications lost to store write failures",
		}, []string{"trigger"}),
		ordersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Checkout attempts by outcome",
		}, []string{"status"}),
		userLoginTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_login_total",
			Help:      "Login attempts by outcome",
		}, []string{"status"}),

		httpRequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpResponseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path"}),

		dbConnectionsInUse: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Database connections currently in use",
		}),
		dbConnectionsIdle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Idle database connections",
		}),
		dbConnectionsOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Open database connections",
		}),

		queueMessagesSent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_messages_sent",
			Help:      "Messages accepted by the event queue",
		}),
		queueMessagesRecv: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_messages_received",
			Help:      "Messages delivered to subscribers",
		}),
		queueHandlerFailure: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_handler_failures",
			Help:      "Deliveries whose handler returned an error",
		}),

		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Breaker state: 0 closed, 1 open, 2 half-open",
		}, []string{"name"}),
		breakerConsecutiveFailures: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_consecutive_failures",
			Help:      "Consecutive failures in the breaker's current window",
		}, []string{"name"}),

		memoryUsage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Heap bytes allocated",
		}),
		goroutineCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		}),
	}
}

// RecordPriceCheck records one detector batch
func (mc *MetricsCollector) RecordPriceCheck(trigger string, evaluated, created, skipped, failed int) {
	outcome := "ok"
	if failed > 0 {
		outcome = "write_failed"
	}
	mc.priceChecksTotal.WithLabelValues(trigger, outcome).Inc()
	mc.priceCheckEvaluated.WithLabelValues(trigger).Add(float64(evaluated))
	mc.notificationsCreated.WithLabelValues(trigger).Add(float64(created))
	mc.notificationsSkipped.WithLabelValues(trigger).Add(float64(skipped))
	mc.notificationWriteFails.WithLabelValues(trigger).Add(float64(failed))
}

// RecordOrder records a checkout outcome
func (mc *MetricsCollector) RecordOrder(status string) {
	mc.ordersTotal.WithLabelValues(status).Inc()
}

// RecordUserLogin records a login outcome
func (mc *MetricsCollector) RecordUserLogin(status string) {
	mc.userLoginTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records one served request
func (mc *MetricsCollector) RecordHTTPRequest(method, path string, status int, duration time.Duration, size int) {
	mc.httpRequestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	mc.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if size > 0 {
		mc.httpResponseSize.WithLabelValues(method, path).Observe(float64(size))
	}
}

// Middleware records every request against its route template, so
// /products/1 and /products/2 share one series
func (mc *MetricsCollector) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		mc.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start), c.Writer.Size())
	}
}

// UpdateDBStats copies the pool counters
func (mc *MetricsCollector) UpdateDBStats(stats sql.DBStats) {
	mc.dbConnectionsInUse.Set(float64(stats.InUse))
	mc.dbConnectionsIdle.Set(float64(stats.Idle))
	mc.dbConnectionsOpen.Set(float64(stats.OpenConnections))
}

// UpdateQueueStats copies the queue counters
func (mc *MetricsCollector) UpdateQueueStats(stats queue.Stats) {
	mc.queueMessagesSent.Set(float64(stats.MessagesSent))
	mc.queueMessagesRecv.Set(float64(stats.MessagesRecv))
	mc.queueHandlerFailure.Set(float64(stats.HandlerFails))
}

// UpdateBreakerStats copies a breaker's state and failure streak
func (mc *MetricsCollector) UpdateBreakerStats(cb *breaker.CircuitBreaker) {
	mc.breakerState.WithLabelValues(cb.Name()).Set(float64(cb.State()))
	mc.breakerConsecutiveFailures.WithLabelValues(cb.Name()).Set(float64(cb.Counts().ConsecutiveFailures))
}

// UpdateSystemMetrics samples the runtime
func (mc *MetricsCollector) UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.memoryUsage.Set(float64(m.Alloc))
	mc.goroutineCount.Set(float64(runtime.NumGoroutine()))
}

// Sources feeds the periodic gauges; nil entries are skipped
type Sources struct {
	DB       func() sql.DBStats
	Queue    func() queue.Stats
	Breakers []*breaker.CircuitBreaker
}

// StartCollection samples the gauges every interval until ctx ends
func (mc *MetricsCollector) StartCollection(ctx context.Context, interval time.Duration, src Sources) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.UpdateSystemMetrics()
			if src.DB != nil {
				mc.UpdateDBStats(src.DB())
			}
			if src.Queue != nil {
				mc.UpdateQueueStats(src.Queue())
			}
			for _, cb := range src.Breakers {
				mc.UpdateBreakerStats(cb)
			}
		}
	}
}

// Handler serves the registry in the Prometheus text format
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}
