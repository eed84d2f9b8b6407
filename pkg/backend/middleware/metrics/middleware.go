package metrics

import (
	"context"
	"errors"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
	"illustrator/pkg/logx"
	"illustrator/pkg/utils"
)

// UsageExtractor returns prompt and completion token counts for a call.
type UsageExtractor func(req backend.CompletionRequest, resp backend.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor prefers provider-reported usage and falls back to tiktoken counts.
func DefaultUsageExtractor(req backend.CompletionRequest, resp backend.CompletionResponse) (int, int) {
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		return resp.Usage.InputTokens, resp.Usage.OutputTokens
	}
	contents := make([]string, 0, len(req.Messages))
	for i := range req.Messages {
		contents = append(contents, req.Messages[i].Content)
	}
	return utils.CountMessages(contents...), utils.CountTokensSimple(resp.Content)
}

// Middleware records latency, token usage and error class for every backend call.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) backend.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next backend.LLMClient) backend.LLMClient {
		return backend.WrapClient(
			func(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}
				model := next.GetModelName()
				infographicType := TypeFromContext(ctx)
				recorder.ObserveRequest(model, infographicType, promptTokens, completionTokens, err == nil, ErrorLabel(err), duration)

				if logger != nil {
					if err != nil {
						logger.Warn("backend call failed: model=%s type=%s error=%s duration=%dms",
							model, infographicType, ErrorLabel(err), duration.Milliseconds())
					} else {
						logger.Info("backend call: model=%s type=%s tokens=%d+%d duration=%dms",
							model, infographicType, promptTokens, completionTokens, duration.Milliseconds())
					}
				}
				return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			func(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
				start := time.Now()
				ch, err := next.Stream(ctx, req)
				recorder.ObserveRequest(next.GetModelName(), TypeFromContext(ctx), 0, 0, err == nil, ErrorLabel(err), time.Since(start))
				return ch, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			next.GetModelName,
		)
	}
}

// ErrorLabel maps an error to a low-cardinality metrics label.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var classified *llmerrors.Error
	if errors.As(err, &classified) {
		return classified.Type.String()
	}
	var labeled interface{ MetricsLabel() string }
	if errors.As(err, &labeled) {
		return labeled.MetricsLabel()
	}
	return "unknown"
}
