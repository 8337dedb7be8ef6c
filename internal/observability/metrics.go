package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the batch ingestion flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	batchesCreatedTotal     *prometheus.CounterVec
	validationOutcomesTotal *prometheus.CounterVec
	rowsValidatedTotal      *prometheus.CounterVec
	finalizeDuration        *prometheus.HistogramVec
	submissionsCreatedTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bulk_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bulk_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bulk_engine",
				Name:      "batches_created_total",
				Help:      "Total number of batches created grouped by kind.",
			},
			[]string{"kind"},
		),
		validationOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bulk_engine",
				Name:      "validation_outcomes_total",
				Help:      "Total number of validation passes grouped by kind and resulting status.",
			},
			[]string{"kind", "result"},
		),
		rowsValidatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bulk_engine",
				Name:      "rows_validated_total",
				Help:      "Total number of CSV rows accepted as valid records grouped by kind.",
			},
			[]string{"kind"},
		),
		finalizeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bulk_engine",
				Name:      "finalize_duration_seconds",
				Help:      "Batch finalize duration in seconds grouped by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		submissionsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bulk_engine",
				Name:      "submissions_created_total",
				Help:      "Total number of individual submissions created from finalized batches.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesCreatedTotal,
		m.validationOutcomesTotal,
		m.rowsValidatedTotal,
		m.finalizeDuration,
		m.submissionsCreatedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchCreated(kind string) {
	if m == nil {
		return
	}
	m.batchesCreatedTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) IncValidationOutcome(kind string, result string) {
	if m == nil {
		return
	}
	resultLabel := normalizeLabel(result)
	m.validationOutcomesTotal.WithLabelValues(normalizeLabel(kind), resultLabel).Inc()
}

func (m *Metrics) AddRowsValidated(kind string, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.rowsValidatedTotal.WithLabelValues(normalizeLabel(kind)).Add(float64(rows))
}

func (m *Metrics) ObserveFinalizeDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.finalizeDuration.WithLabelValues(normalizeLabel(kind)).Observe(seconds)
}

func (m *Metrics) AddSubmissionsCreated(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.submissionsCreatedTotal.WithLabelValues(normalizeLabel(kind)).Add(float64(count))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(v string) string {
	normalized := strings.ToLower(strings.TrimSpace(v))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
