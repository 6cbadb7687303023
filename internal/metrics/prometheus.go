// Package metrics provides Prometheus metrics for the organ services and the
// orchestrator.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metrics of one service.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	responseSize     *prometheus.HistogramVec

	readingsGenerated    *prometheus.CounterVec
	conditionActivations *prometheus.CounterVec
	telemetryFailures    *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	organHealth      *prometheus.GaugeVec

	healthStatus prometheus.Gauge
}

// NewMetrics creates the metrics of service on a private registry.
func NewMetrics(service string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, reg))

	return &Metrics{
		registry: reg,
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "organsim_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "organsim_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: durationBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "organsim_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		responseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "organsim_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),
		readingsGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "organsim_readings_generated_total",
				Help: "Total number of synthetic readings generated",
			},
			[]string{"organ", "condition", "status"},
		),
		conditionActivations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "organsim_condition_activations_total",
				Help: "Total number of condition activations",
			},
			[]string{"organ", "condition"},
		),
		telemetryFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "organsim_telemetry_failures_total",
				Help: "Total number of readings that could not be published",
			},
			[]string{"organ"},
		),
		upstreamRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "organsim_upstream_requests_total",
				Help: "Total number of orchestrator calls to organ services",
			},
			[]string{"organ", "operation", "outcome"},
		),
		upstreamDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "organsim_upstream_request_duration_seconds",
				Help:    "Orchestrator call duration in seconds",
				Buckets: durationBuckets,
			},
			[]string{"organ", "operation"},
		),
		organHealth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "organsim_organ_healthy",
				Help: "Last observed organ health (1 = healthy, 0 = not healthy)",
			},
			[]string{"organ"},
		),
		healthStatus: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "organsim_health_status",
				Help: "Health status of the service (1 = healthy, 0 = unhealthy)",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize records the response size.
func (m *Metrics) RecordResponseSize(method, path string, size int) {
	m.responseSize.WithLabelValues(method, path).Observe(float64(size))
}

// RecordReading counts a generated reading.
func (m *Metrics) RecordReading(organ, condition, status string) {
	m.readingsGenerated.WithLabelValues(organ, condition, status).Inc()
}

// RecordConditionActivation counts a successful simulate call.
func (m *Metrics) RecordConditionActivation(organ, condition string) {
	m.conditionActivations.WithLabelValues(organ, condition).Inc()
}

// RecordTelemetryFailure counts a reading that was not published.
func (m *Metrics) RecordTelemetryFailure(organ string) {
	m.telemetryFailures.WithLabelValues(organ).Inc()
}

// RecordUpstreamRequest records one orchestrator call to an organ.
func (m *Metrics) RecordUpstreamRequest(organ, operation, outcome string, duration time.Duration) {
	m.upstreamRequests.WithLabelValues(organ, operation, outcome).Inc()
	m.upstreamDuration.WithLabelValues(organ, operation).Observe(duration.Seconds())
}

// SetOrganHealth records the last health check result for an organ.
func (m *Metrics) SetOrganHealth(organ string, healthy bool) {
	m.organHealth.WithLabelValues(organ).Set(boolToFloat(healthy))
}

// SetHealthStatus sets the health status.
func (m *Metrics) SetHealthStatus(healthy bool) {
	m.healthStatus.Set(boolToFloat(healthy))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(m *Metrics, port int, path string, logger *zap.Logger) *MetricsServer {
	router := http.NewServeMux()
	router.Handle(path, m.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the metrics server.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	if err := ms.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware records HTTP metrics labelled by route template. It must
// be installed with mux.Router.Use so the matched route is known.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := routeTemplate(r)
			m.RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
			m.RecordResponseSize(r.Method, path, rw.size)
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// metricsResponseWriter wraps http.ResponseWriter to capture metrics.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}
