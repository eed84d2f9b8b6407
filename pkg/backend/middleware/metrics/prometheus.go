package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports observations as Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal      *prometheus.CounterVec
	tokensTotal        *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	generationsTotal   *prometheus.CounterVec
	generationAttempts *prometheus.HistogramVec
	violationsTotal    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	throttleTotal      *prometheus.CounterVec
	queueWaitTime      *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the metrics on reg under namespace.
func NewPrometheusRecorder(namespace string, reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend calls by model, infographic type, status and error type.",
		}, []string{"model", "type", "status", "error_type"}),
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_tokens_total",
			Help:      "Tokens used by backend calls.",
		}, []string{"model", "type", "kind"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"model", "type"}),
		generationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Finished generations by infographic type and outcome.",
		}, []string{"type", "outcome"}),
		generationAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_attempts",
			Help:      "Content attempts used per generation.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}, []string{"type"}),
		violationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraint_violations_total",
			Help:      "Field length violations left in returned results.",
		}, []string{"type"}),
		generationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end generation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		throttleTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_throttle_total",
			Help:      "Rate limiting events.",
		}, []string{"model", "reason"}),
		queueWaitTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_queue_wait_duration_seconds",
			Help:      "Time spent waiting for rate limit availability.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
	}
}

func (p *PrometheusRecorder) ObserveRequest(model, infographicType string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, infographicType, status, errorType).Inc()
	if success {
		p.tokensTotal.WithLabelValues(model, infographicType, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, infographicType, "completion").Add(float64(completionTokens))
	}
	p.requestDuration.WithLabelValues(model, infographicType).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveGeneration(infographicType, outcome string, attempts, violations int, duration time.Duration) {
	p.generationsTotal.WithLabelValues(infographicType, outcome).Inc()
	if attempts > 0 {
		p.generationAttempts.WithLabelValues(infographicType).Observe(float64(attempts))
	}
	if violations > 0 {
		p.violationsTotal.WithLabelValues(infographicType).Add(float64(violations))
	}
	p.generationDuration.WithLabelValues(infographicType).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncThrottle(model, reason string) {
	p.throttleTotal.WithLabelValues(model, reason).Inc()
}

func (p *PrometheusRecorder) ObserveQueueWait(model string, duration time.Duration) {
	p.queueWaitTime.WithLabelValues(model).Observe(duration.Seconds())
}
