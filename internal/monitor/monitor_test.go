package monitor

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"storefront/pkg/breaker"
	"storefront/pkg/queue"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func scrape(t *testing.T, mc *MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	mc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsCollector_Business(t *testing.T) {
	mc := NewMetricsCollector("storefront")

	mc.RecordPriceCheck("manual", 3, 1, 2, 0)
	mc.RecordPriceCheck("price_change", 4, 0, 0, 4)
	mc.RecordOrder("created")
	mc.RecordOrder("insufficient_stock")
	mc.RecordUserLogin("success")

	body := scrape(t, mc)
	assert.Contains(t, body, `storefront_price_checks_total{outcome="ok",trigger="manual"} 1`)
	assert.Contains(t, body, `storefront_price_checks_total{outcome="write_failed",trigger="price_change"} 1`)
	assert.Contains(t, body, `storefront_notifications_created_total{trigger="manual"} 1`)
	assert.Contains(t, body, `storefront_notifications_skipped_total{trigger="manual"} 2`)
	assert.Contains(t, body, `storefront_notification_write_failures_total{trigger="price_change"} 4`)
	assert.Contains(t, body, `storefront_orders_total{status="insufficient_stock"} 1`)
	assert.Contains(t, body, `storefront_user_login_total{status="success"} 1`)
}

func TestMetricsCollector_PrivateRegistries(t *testing.T) {
	// two collectors with the same namespace must not panic on registration
	a := NewMetricsCollector("storefront")
	b := NewMetricsCollector("storefront")

	a.RecordOrder("created")
	assert.Contains(t, scrape(t, a), `storefront_orders_total{status="created"} 1`)
	assert.NotContains(t, scrape(t, b), `storefront_orders_total{status="created"}`)
}

func TestMetricsCollector_Middleware(t *testing.T) {
	mc := NewMetricsCollector("storefront")
	r := gin.New()
	r.Use(mc.Middleware())
	r.GET("/products/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for _, path := range []string{"/products/1", "/products/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, mc)
	assert.Contains(t, body, `storefront_http_requests_total{method="GET",path="/products/:id",status="200"} 2`)
	assert.Contains(t, body, `storefront_http_requests_total{method="GET",path="unmatched",status="404"} 1`)
}

func TestMetricsCollector_Gauges(t *testing.T) {
	mc := NewMetricsCollector("storefront")

	mc.UpdateDBStats(sql.DBStats{OpenConnections: 7, InUse: 3, Idle: 4})
	mc.UpdateQueueStats(queue.Stats{MessagesSent: 10, MessagesRecv: 9, HandlerFails: 2})
	mc.UpdateSystemMetrics()

	body := scrape(t, mc)
	assert.Contains(t, body, "storefront_db_connections_open 7")
	assert.Contains(t, body, "storefront_db_connections_in_use 3")
	assert.Contains(t, body, "storefront_queue_messages_sent 10")
	assert.Contains(t, body, "storefront_queue_handler_failures 2")
	assert.Contains(t, body, "storefront_goroutines")
}

func TestMetricsCollector_BreakerStats(t *testing.T) {
	mc := NewMetricsCollector("storefront")
	cb := breaker.NewCircuitBreaker("price_drop_publish", breaker.Config{
		ReadyToTrip: func(c breaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
	})
	fail := func(context.Context) error { return errors.New("queue full") }

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	mc.UpdateBreakerStats(cb)

	body := scrape(t, mc)
	assert.Contains(t, body, `storefront_circuit_breaker_state{name="price_drop_publish"} 0`)
	assert.Contains(t, body, `storefront_circuit_breaker_consecutive_failures{name="price_drop_publish"} 2`)

	_ = cb.Execute(context.Background(), fail)
	mc.UpdateBreakerStats(cb)

	assert.Contains(t, scrape(t, mc), `storefront_circuit_breaker_state{name="price_drop_publish"} 1`)
}

func TestMetricsCollector_StartCollection(t *testing.T) {
	mc := NewMetricsCollector("storefront")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		mc.StartCollection(ctx, time.Millisecond, Sources{
			Queue: func() queue.Stats { return queue.Stats{MessagesSent: 5} },
		})
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(scrape(t, mc), "storefront_queue_messages_sent 5")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(DefaultTracerConfig())
	require.NoError(t, err)

	r := gin.New()
	r.Use(tracer.Middleware())
	r.GET("/ping", func(c *gin.Context) {
		assert.Empty(t, TraceID(c.Request.Context()))
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestTracer_Middleware(t *testing.T) {
	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	cfg := DefaultTracerConfig()
	cfg.Enabled = true
	tracer := install(cfg, provider)

	r := gin.New()
	r.Use(tracer.Middleware())
	var traceID string
	r.GET("/products/:id", func(c *gin.Context) {
		traceID = TraceID(c.Request.Context())
		c.String(http.StatusOK, "ok")
	})
	r.GET("/boom", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /products/:id", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "GET /boom", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	assert.NoError(t, tracer.Shutdown(context.Background()))
}
