package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API, LLM and lifecycle collectors on a private registry.
// Every method is safe on a nil receiver so callers never branch on whether metrics are on.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge
	apiErrors   prometheus.Counter

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec
	llmAttempts *prometheus.CounterVec
	evalScore   *prometheus.HistogramVec

	aggregateOps       *prometheus.CounterVec
	aggregateLatency   *prometheus.HistogramVec
	aggregateConflicts *prometheus.CounterVec
	aggregateRetries   *prometheus.CounterVec

	stakeResolutions *prometheus.CounterVec
	sweepExpired     prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ps_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "ps_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		apiErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "ps_api_server_errors_total",
			Help: "API responses with a 5xx status.",
		}),

		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_llm_requests_total",
			Help: "LLM completion calls by model/status.",
		}, []string{"model", "status"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ps_llm_request_duration_seconds",
			Help:    "LLM completion latency in seconds by model/status.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"model", "status"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_llm_tokens_total",
			Help: "LLM tokens by model/kind.",
		}, []string{"model", "kind"}),
		llmAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_llm_attempts_total",
			Help: "LLM attempts by operation/outcome.",
		}, []string{"operation", "outcome"}),
		evalScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ps_grading_score",
			Help:    "Per-answer grading scores.",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}, []string{"operation"}),

		aggregateOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_aggregate_operations_total",
			Help: "Aggregate writes by operation/status.",
		}, []string{"operation", "status"}),
		aggregateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ps_aggregate_operation_duration_seconds",
			Help:    "Aggregate write latency by operation/status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		aggregateConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_aggregate_conflicts_total",
			Help: "Aggregate CAS conflicts by operation.",
		}, []string{"operation"}),
		aggregateRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_aggregate_retryable_total",
			Help: "Aggregate retryable failures by operation.",
		}, []string{"operation"}),

		stakeResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_stake_resolutions_total",
			Help: "Stake resolutions by action/reason.",
		}, []string{"action", "reason"}),
		sweepExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "ps_sweep_expired_total",
			Help: "Commitments expired by the batch sweep.",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
	if strings.HasPrefix(status, "5") {
		m.apiErrors.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.llmRequests.WithLabelValues(model, status).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, status).Observe(dur.Seconds())
	}
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) IncLLMAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.llmAttempts.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveEvaluationScore(operation string, score float64) {
	if m == nil {
		return
	}
	m.evalScore.WithLabelValues(operation).Observe(score)
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.WithLabelValues(name, status).Inc()
	m.aggregateLatency.WithLabelValues(name, status).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.WithLabelValues(name).Inc()
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	m.aggregateRetries.WithLabelValues(name).Inc()
}

func (m *Metrics) IncStakeResolution(action, reason string) {
	if m == nil {
		return
	}
	m.stakeResolutions.WithLabelValues(action, reason).Inc()
}

func (m *Metrics) AddSweepExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepExpired.Add(float64(n))
}
