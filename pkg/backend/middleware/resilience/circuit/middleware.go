package circuit

import (
	"context"
	"errors"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

// Middleware rejects calls while the breaker is open. Only failures that indicate an
// unhealthy backend count against it: auth and bad-prompt errors and caller
// cancellation do not.
func Middleware(breaker Breaker) backend.Middleware {
	return func(next backend.LLMClient) backend.LLMClient {
		return backend.WrapClient(
			func(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
				if !breaker.Allow() {
					return backend.CompletionResponse{}, &Error{State: breaker.GetState()}
				}
				resp, err := next.Complete(ctx, req)
				breaker.Record(!countsAsFailure(err))
				return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			func(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
				if !breaker.Allow() {
					return nil, &Error{State: breaker.GetState()}
				}
				ch, err := next.Stream(ctx, req)
				breaker.Record(!countsAsFailure(err))
				return ch, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			next.GetModelName,
		)
	}
}

func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch llmerrors.TypeOf(err) {
	case llmerrors.ErrorTypeAuth, llmerrors.ErrorTypeBadPrompt:
		return false
	}
	return true
}
