package ratelimit

import (
	"context"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/middleware/metrics"
)

// Middleware acquires prompt-plus-max-output tokens from the provider's limiter before
// each call. Providers without a configured limiter pass through unthrottled.
func Middleware(limiters *ProviderLimiterMap, provider string, estimator TokenEstimator, recorder metrics.Recorder) backend.Middleware {
	if estimator == nil {
		estimator = NewDefaultTokenEstimator()
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return func(next backend.LLMClient) backend.LLMClient {
		acquire := func(ctx context.Context, req backend.CompletionRequest) (func(), error) {
			limiter, err := limiters.GetLimiter(provider)
			if err != nil {
				return func() {}, nil
			}
			model := next.GetModelName()
			start := time.Now()
			release, err := limiter.Acquire(ctx, estimator.EstimatePrompt(req)+req.MaxTokens, metrics.TypeFromContext(ctx))
			if err != nil {
				recorder.IncThrottle(model, "rate_limit")
				return nil, err
			}
			recorder.ObserveQueueWait(model, time.Since(start))
			return release, nil
		}

		return backend.WrapClient(
			func(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
				release, err := acquire(ctx, req)
				if err != nil {
					return backend.CompletionResponse{}, err
				}
				defer release()
				return next.Complete(ctx, req)
			},
			func(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
				release, err := acquire(ctx, req)
				if err != nil {
					return nil, err
				}
				defer release()
				return next.Stream(ctx, req)
			},
			next.GetModelName,
		)
	}
}
