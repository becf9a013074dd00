package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the device API.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	placements      prometheus.Counter
	ordersCompleted prometheus.Counter
	imports         *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feapi",
			Name:      "http_requests_total",
			Help:      "Device API requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "feapi",
			Name:      "http_request_duration_seconds",
			Help:      "Device API latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		placements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feapi",
			Name:      "placements_total",
			Help:      "Items marked placed.",
		}),
		ordersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feapi",
			Name:      "orders_completed_total",
			Help:      "Orders that reached completion.",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feapi",
			Name:      "plan_imports_total",
			Help:      "Device initialisations by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.placements, m.ordersCompleted, m.imports)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeImport(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.imports.WithLabelValues(result).Inc()
}

func (m *Metrics) observePlacement() {
	if m == nil {
		return
	}
	m.placements.Inc()
}

// CompletionNotifier logs and counts completed orders.
type CompletionNotifier struct {
	metrics *Metrics
	logger  *slog.Logger
}

// NewCompletionNotifier creates a CompletionNotifier. metrics may be nil.
func NewCompletionNotifier(metrics *Metrics, logger *slog.Logger) *CompletionNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CompletionNotifier{metrics: metrics, logger: logger}
}

// OrderCompleted implements fulfillment.Notifier.
func (n *CompletionNotifier) OrderCompleted(_ context.Context, deviceID, orderID string) {
	n.logger.Info("order complete", "device_id", deviceID, "order_id", orderID)
	if n.metrics != nil {
		n.metrics.ordersCompleted.Inc()
	}
}
