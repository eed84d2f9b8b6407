package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

type slowClient struct {
	delay time.Duration
}

func (s *slowClient) Complete(ctx context.Context, _ backend.CompletionRequest) (backend.CompletionResponse, error) {
	select {
	case <-time.After(s.delay):
		return backend.CompletionResponse{Content: "late"}, nil
	case <-ctx.Done():
		return backend.CompletionResponse{}, ctx.Err()
	}
}

func (s *slowClient) Stream(ctx context.Context, in backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	return backend.StreamFromComplete(ctx, s, in), nil
}

func (s *slowClient) GetModelName() string { return "slow" }

func TestTimeoutClassifiedAsTransient(t *testing.T) {
	client := backend.Chain(&slowClient{delay: time.Second}, Middleware(10*time.Millisecond))

	_, err := client.Complete(context.Background(), backend.CompletionRequest{})
	if !llmerrors.Is(err, llmerrors.ErrorTypeTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("deadline should remain visible through the classified error")
	}
}

func TestFastCallPasses(t *testing.T) {
	client := backend.Chain(&slowClient{delay: time.Millisecond}, Middleware(time.Second))
	resp, err := client.Complete(context.Background(), backend.CompletionRequest{})
	if err != nil || resp.Content != "late" {
		t.Errorf("expected success, got %v / %q", err, resp.Content)
	}
}

func TestCallerCancellationNotReclassified(t *testing.T) {
	client := backend.Chain(&slowClient{delay: time.Second}, Middleware(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, backend.CompletionRequest{})
	if !errors.Is(err, context.Canceled) || llmerrors.Is(err, llmerrors.ErrorTypeTransient) {
		t.Errorf("expected bare cancellation, got %v", err)
	}
}
