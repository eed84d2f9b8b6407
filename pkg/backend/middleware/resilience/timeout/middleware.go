// Package timeout bounds each backend call with its own deadline.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

// Middleware applies duration to every Complete call. A call that runs out its own
// deadline, while the caller's context is still live, is reported as transient.
//
// Streams get the deadline only for establishing the stream; the chunks outlive the call.
func Middleware(duration time.Duration) backend.Middleware {
	return func(next backend.LLMClient) backend.LLMClient {
		return backend.WrapClient(
			func(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
				callCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()

				resp, err := next.Complete(callCtx, req)
				if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
					return resp, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err,
						fmt.Sprintf("backend call exceeded %s", duration))
				}
				return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			func(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
				return next.Stream(ctx, req)
			},
			next.GetModelName,
		)
	}
}
