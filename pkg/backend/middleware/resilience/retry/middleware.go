package retry

import (
	"context"
	"fmt"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
	"illustrator/pkg/logx"
)

// Middleware retries failed calls per policy. A retryable failure that survives every
// attempt is reported as ErrorTypeServiceUnavailable.
func Middleware(policy *Policy, logger *logx.Logger) backend.Middleware {
	return func(next backend.LLMClient) backend.LLMClient {
		return backend.WrapClient(
			func(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
				var resp backend.CompletionResponse
				err := run(ctx, policy, logger, next.GetModelName(), func() error {
					var callErr error
					resp, callErr = next.Complete(ctx, req)
					return callErr
				})
				return resp, err
			},
			func(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
				var ch <-chan backend.StreamChunk
				err := run(ctx, policy, logger, next.GetModelName(), func() error {
					var callErr error
					ch, callErr = next.Stream(ctx, req)
					return callErr
				})
				return ch, err
			},
			next.GetModelName,
		)
	}
}

func run(ctx context.Context, policy *Policy, logger *logx.Logger, model string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.Config.MaxAttempts; attempt++ {
		if delay := policy.CalculateDelay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !policy.ShouldRetry(lastErr) {
			return lastErr
		}
		if logger != nil && attempt < policy.Config.MaxAttempts {
			logger.Warn("backend %s attempt %d/%d failed, retrying: %v", model, attempt, policy.Config.MaxAttempts, lastErr)
		}
	}
	return llmerrors.NewServiceUnavailableError(lastErr, policy.Config.MaxAttempts)
}
