package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
	"illustrator/pkg/backend/middleware/resilience/circuit"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"circuit open", &circuit.Error{State: circuit.Open}, false},
		{"rate limit", llmerrors.NewError(llmerrors.ErrorTypeRateLimit, ""), true},
		{"transient", llmerrors.NewError(llmerrors.ErrorTypeTransient, ""), true},
		{"empty", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, ""), true},
		{"malformed", llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse, ""), true},
		{"auth", llmerrors.NewError(llmerrors.ErrorTypeAuth, ""), false},
		{"bad prompt", llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, ""), false},
		{"unclassified", errors.New("weird"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err); got != tt.want {
				t.Errorf("ShouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateDelay(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}, nil)
	want := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := p.CalculateDelay(i + 1); got != w {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: time.Minute, BackoffFactor: 2, Jitter: true}, nil)
	for i := 0; i < 50; i++ {
		d := p.CalculateDelay(2)
		if d < 900*time.Millisecond || d > 1100*time.Millisecond {
			t.Fatalf("jittered delay %v outside +/-10%%", d)
		}
	}
}

func TestNewPolicyClampsAttempts(t *testing.T) {
	if NewPolicy(Config{}, nil).Config.MaxAttempts != 1 {
		t.Error("MaxAttempts should be at least 1")
	}
}

type scriptedClient struct {
	errs  []error
	calls int
}

func (s *scriptedClient) Complete(_ context.Context, _ backend.CompletionRequest) (backend.CompletionResponse, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return backend.CompletionResponse{}, err
		}
	}
	return backend.CompletionResponse{Content: "done"}, nil
}

func (s *scriptedClient) Stream(ctx context.Context, in backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	return backend.StreamFromComplete(ctx, s, in), nil
}

func (s *scriptedClient) GetModelName() string { return "scripted" }

func fastPolicy(attempts int) *Policy {
	return NewPolicy(Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}, nil)
}

func TestMiddlewareRecovers(t *testing.T) {
	base := &scriptedClient{errs: []error{llmerrors.NewError(llmerrors.ErrorTypeTransient, "503"), nil}}
	client := backend.Chain(base, Middleware(fastPolicy(3), nil))

	resp, err := client.Complete(context.Background(), backend.CompletionRequest{})
	if err != nil || resp.Content != "done" {
		t.Fatalf("expected recovery, got %v / %q", err, resp.Content)
	}
	if base.calls != 2 {
		t.Errorf("expected 2 calls, got %d", base.calls)
	}
}

func TestMiddlewareExhausts(t *testing.T) {
	transient := llmerrors.NewError(llmerrors.ErrorTypeTransient, "503")
	base := &scriptedClient{errs: []error{transient, transient, transient}}
	client := backend.Chain(base, Middleware(fastPolicy(3), nil))

	_, err := client.Complete(context.Background(), backend.CompletionRequest{})
	if !llmerrors.Is(err, llmerrors.ErrorTypeServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if !errors.Is(err, transient) {
		t.Error("last failure should be wrapped")
	}
	if base.calls != 3 {
		t.Errorf("expected 3 calls, got %d", base.calls)
	}
}

func TestMiddlewareStopsOnPermanentError(t *testing.T) {
	auth := llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")
	base := &scriptedClient{errs: []error{auth}}
	client := backend.Chain(base, Middleware(fastPolicy(3), nil))

	_, err := client.Complete(context.Background(), backend.CompletionRequest{})
	if !errors.Is(err, auth) || base.calls != 1 {
		t.Errorf("expected one call returning auth error, got %d calls, %v", base.calls, err)
	}
}

func TestMiddlewareHonorsCancellation(t *testing.T) {
	transient := llmerrors.NewError(llmerrors.ErrorTypeTransient, "503")
	base := &scriptedClient{errs: []error{transient, transient}}
	policy := NewPolicy(Config{MaxAttempts: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 1}, nil)
	client := backend.Chain(base, Middleware(policy, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Complete(ctx, backend.CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}
