// Package anthropic implements backend.LLMClient on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// ClaudeClient wraps the Anthropic SDK. Retries are left to the middleware chain.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClientWithModel returns a raw client. baseURL may be empty.
func NewClaudeClientWithModel(apiKey, model, baseURL string) backend.LLMClient {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &ClaudeClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// ensureAlternation extracts system messages and merges consecutive user turns so the
// sequence alternates and ends with a user message.
func ensureAlternation(messages []backend.CompletionMessage) (string, []backend.CompletionMessage, error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	system, rest := backend.SplitSystem(messages)
	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	merged := make([]backend.CompletionMessage, 0, len(rest))
	for i := range rest {
		msg := rest[i]
		if msg.Role != backend.RoleAssistant {
			msg.Role = backend.RoleUser
		}
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role && msg.Role == backend.RoleUser {
			merged[n-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, msg)
	}

	for i := 1; i < len(merged); i++ {
		if merged[i].Role == merged[i-1].Role {
			return "", nil, fmt.Errorf("alternation violation at index %d: consecutive %s messages", i, merged[i].Role)
		}
	}
	if merged[0].Role != backend.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", merged[0].Role)
	}
	if last := merged[len(merged)-1]; last.Role != backend.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", last.Role)
	}
	return system, merged, nil
}

// Complete implements backend.LLMClient.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (c *ClaudeClient) Complete(ctx context.Context, in backend.CompletionRequest) (backend.CompletionResponse, error) {
	system, alternating, err := ensureAlternation(in.Messages)
	if err != nil {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message alternation error: %v", err))
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		block := anthropic.NewTextBlock(alternating[i].Content)
		if alternating[i].Role == backend.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return backend.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	// JSON output is requested in the system prompt; the API has no response-format switch.
	var text strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text.WriteString(resp.Content[i].AsText().Text)
		}
	}

	return backend.CompletionResponse{
		Content:    text.String(),
		StopReason: string(resp.StopReason),
		Usage: backend.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// Stream implements backend.LLMClient on top of Complete.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (c *ClaudeClient) Stream(ctx context.Context, in backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	return backend.StreamFromComplete(ctx, c, in), nil
}

func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// classifyError maps SDK errors onto llmerrors types, by status code when the SDK
// reports one and by message text otherwise.
func classifyError(err error) *llmerrors.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request canceled")
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if classified := classifyStatus(apiErr.StatusCode); classified != nil {
			classified.Err = err
			return classified
		}
	}
	return classifyText(err)
}

func classifyStatus(status int) *llmerrors.Error {
	switch status {
	case http.StatusUnauthorized:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, status, "authentication failed - check API key")
	case http.StatusForbidden:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, status, "permission denied - check API access")
	case http.StatusTooManyRequests:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeRateLimit, status, "rate limit exceeded")
	case http.StatusBadRequest:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeBadPrompt, status, "bad request - check prompt format and parameters")
	case 529: // overloaded
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeRateLimit, status, "API overloaded")
	}
	if status >= http.StatusInternalServerError {
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeTransient, status, "server error")
	}
	return nil
}

func classifyText(err error) *llmerrors.Error {
	errStr := strings.ToLower(err.Error())
	containsAny := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(errStr, s) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("timeout", "connection", "network", "temporary", "eof", "reset"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "network or connection error")
	case containsAny("rate", "quota", "overloaded"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeRateLimit, err, "rate limiting detected")
	case containsAny("unauthorized", "api key", "authentication"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "authentication error")
	case containsAny("invalid", "malformed", "too large"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "prompt or request error")
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "unclassified error")
}
