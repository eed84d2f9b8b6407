// Package retry retries failed backend calls with exponential backoff. It is the
// backend-level budget and is independent of the content retry loop in the generator.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"illustrator/pkg/backend/llmerrors"
	"illustrator/pkg/backend/middleware/resilience/circuit"
)

// Config controls retry behavior. MaxAttempts includes the first call.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	Jitter        bool          `json:"jitter"`
}

//nolint:gochecknoglobals // default config value
var DefaultConfig = Config{
	MaxAttempts:   3,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Classifier reports whether err is worth another attempt.
type Classifier func(error) bool

// ShouldRetry retries classified retryable errors. It never retries caller
// cancellation, open circuits, or errors it cannot classify.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var circuitErr *circuit.Error
	if errors.As(err, &circuitErr) {
		return false
	}
	var classified *llmerrors.Error
	if !errors.As(err, &classified) {
		return false
	}
	switch classified.Type {
	case llmerrors.ErrorTypeRateLimit, llmerrors.ErrorTypeTransient,
		llmerrors.ErrorTypeEmptyResponse, llmerrors.ErrorTypeMalformedResponse:
		return true
	}
	return false
}

// Policy pairs a Config with a Classifier.
type Policy struct {
	Config     Config
	Classifier Classifier
}

// NewPolicy returns a policy; a nil classifier means ShouldRetry.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Policy{Config: config, Classifier: classifier}
}

// CalculateDelay returns the wait before attempt (1-based). Attempt 1 never waits.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := time.Duration(float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2)))
	if p.Config.MaxDelay > 0 && delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}
	if p.Config.Jitter && delay > 0 {
		// +/-10%
		spread := float64(delay) * 0.1
		delay += time.Duration((rand.Float64()*2 - 1) * spread) //nolint:gosec // jitter only
	}
	return delay
}

func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
