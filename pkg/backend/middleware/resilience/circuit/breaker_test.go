package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

type failingClient struct {
	err   error
	calls int
}

func (f *failingClient) Complete(_ context.Context, _ backend.CompletionRequest) (backend.CompletionResponse, error) {
	f.calls++
	return backend.CompletionResponse{Content: "ok"}, f.err
}

func (f *failingClient) Stream(ctx context.Context, in backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	return backend.StreamFromComplete(ctx, f, in), nil
}

func (f *failingClient) GetModelName() string { return "m" }

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute}).(*breaker)
	b.now = func() time.Time { return now }

	b.Record(false)
	if b.GetState() != Closed {
		t.Fatal("one failure should not open the breaker")
	}
	b.Record(false)
	if b.GetState() != Open || b.Allow() {
		t.Fatal("breaker should be open and reject calls")
	}

	now = now.Add(time.Minute)
	if !b.Allow() || b.GetState() != HalfOpen {
		t.Fatal("breaker should half-open after the timeout")
	}
	b.Record(true)
	if b.GetState() != Closed {
		t.Errorf("expected closed after a half-open success, got %s", b.GetState())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second}).(*breaker)
	b.now = func() time.Time { return now }

	b.Record(false)
	now = now.Add(time.Second)
	b.Allow()
	b.Record(false)
	if b.GetState() != Open {
		t.Errorf("half-open failure should reopen, got %s", b.GetState())
	}
	b.Reset()
	if b.GetState() != Closed {
		t.Error("Reset should close the breaker")
	}
}

func TestMiddlewareRejectsWhenOpen(t *testing.T) {
	base := &failingClient{err: llmerrors.NewError(llmerrors.ErrorTypeTransient, "503")}
	client := backend.Chain(base, Middleware(New(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour})))

	for i := 0; i < 2; i++ {
		_, _ = client.Complete(context.Background(), backend.CompletionRequest{})
	}
	_, err := client.Complete(context.Background(), backend.CompletionRequest{})
	var open *Error
	if !errors.As(err, &open) || open.State != Open {
		t.Fatalf("expected open circuit error, got %v", err)
	}
	if base.calls != 2 {
		t.Errorf("expected backend to be called twice, got %d", base.calls)
	}
}

func TestMiddlewareIgnoresCallerErrors(t *testing.T) {
	base := &failingClient{err: llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")}
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour})
	client := backend.Chain(base, Middleware(b))

	for i := 0; i < 3; i++ {
		_, _ = client.Complete(context.Background(), backend.CompletionRequest{})
	}
	if b.GetState() != Closed {
		t.Errorf("auth errors must not trip the breaker, got %s", b.GetState())
	}
}
