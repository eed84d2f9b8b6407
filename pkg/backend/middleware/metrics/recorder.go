// Package metrics records backend-call and generation metrics.
package metrics

import (
	"context"
	"time"
)

type contextKey struct{}

// WithType labels ctx with the infographic type being generated so backend calls made
// under it are attributed to that type.
func WithType(ctx context.Context, infographicType string) context.Context {
	return context.WithValue(ctx, contextKey{}, infographicType)
}

// TypeFromContext returns the type label set by WithType, or "unknown".
func TypeFromContext(ctx context.Context) string {
	if ctx != nil {
		if t, ok := ctx.Value(contextKey{}).(string); ok && t != "" {
			return t
		}
	}
	return "unknown"
}

// Recorder receives backend and generation observations.
type Recorder interface {
	// ObserveRequest records one backend call.
	ObserveRequest(model, infographicType string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration)

	// ObserveGeneration records one finished generation: outcome is "accepted",
	// "exhausted" or a failure label.
	ObserveGeneration(infographicType, outcome string, attempts, violations int, duration time.Duration)

	// IncThrottle counts a rate limiting event.
	IncThrottle(model, reason string)

	// ObserveQueueWait records time spent waiting on the rate limiter.
	ObserveQueueWait(model string, duration time.Duration)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

// Nop returns a recorder that discards all observations.
func Nop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveRequest(_, _ string, _, _ int, _ bool, _ string, _ time.Duration) {}

func (n *NoopRecorder) ObserveGeneration(_, _ string, _, _ int, _ time.Duration) {}

func (n *NoopRecorder) IncThrottle(_, _ string) {}

func (n *NoopRecorder) ObserveQueueWait(_ string, _ time.Duration) {}

// multiRecorder fans observations out to several recorders.
type multiRecorder []Recorder

// Multi returns a recorder forwarding to every non-nil recorder given.
func Multi(recorders ...Recorder) Recorder {
	var out multiRecorder
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) ObserveRequest(model, infographicType string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration) {
	for _, r := range m {
		r.ObserveRequest(model, infographicType, promptTokens, completionTokens, success, errorType, duration)
	}
}

func (m multiRecorder) ObserveGeneration(infographicType, outcome string, attempts, violations int, duration time.Duration) {
	for _, r := range m {
		r.ObserveGeneration(infographicType, outcome, attempts, violations, duration)
	}
}

func (m multiRecorder) IncThrottle(model, reason string) {
	for _, r := range m {
		r.IncThrottle(model, reason)
	}
}

func (m multiRecorder) ObserveQueueWait(model string, duration time.Duration) {
	for _, r := range m {
		r.ObserveQueueWait(model, duration)
	}
}
