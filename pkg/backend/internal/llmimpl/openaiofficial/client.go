// Package openaiofficial implements backend.LLMClient on the OpenAI Responses API.
package openaiofficial

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4.1"

// OfficialClient wraps the official OpenAI SDK. Retries are left to the middleware chain.
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClientWithModel returns a raw client. baseURL may be empty.
func NewOfficialClientWithModel(apiKey, model, baseURL string) backend.LLMClient {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OfficialClient{client: openai.NewClient(opts...), model: model}
}

// reasoningModel reports models that reject sampling parameters.
func reasoningModel(model string) bool {
	return strings.HasPrefix(model, "o") || strings.HasPrefix(model, "gpt-5")
}

// buildParams flattens the conversation into instructions plus a single input string.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (o *OfficialClient) buildParams(in backend.CompletionRequest) responses.ResponseNewParams {
	system, rest := backend.SplitSystem(in.Messages)

	var input strings.Builder
	for i := range rest {
		if rest[i].Role == backend.RoleAssistant {
			fmt.Fprintf(&input, "Assistant: %s\n\n", rest[i].Content)
			continue
		}
		input.WriteString(rest[i].Content)
		if i < len(rest)-1 {
			input.WriteString("\n\n")
		}
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input.String())},
	}
	if system != "" {
		params.Instructions = openai.String(system)
	}
	if !reasoningModel(o.model) {
		params.Temperature = openai.Float(float64(in.Temperature))
	}
	if in.Format == backend.FormatJSON {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{OfJSONObject: &shared.ResponseFormatJSONObjectParam{}},
		}
	}
	return params
}

// Complete implements backend.LLMClient.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (o *OfficialClient) Complete(ctx context.Context, in backend.CompletionRequest) (backend.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	resp, err := o.client.Responses.New(ctx, o.buildParams(in))
	if err != nil {
		return backend.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	content := resp.OutputText()
	if strings.TrimSpace(content) == "" {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse,
			fmt.Sprintf("no output text (status %s)", resp.Status))
	}

	return backend.CompletionResponse{
		Content:    content,
		StopReason: string(resp.Status),
		Usage: backend.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// Stream implements backend.LLMClient on top of Complete.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (o *OfficialClient) Stream(ctx context.Context, in backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	return backend.StreamFromComplete(ctx, o, in), nil
}

func (o *OfficialClient) GetModelName() string {
	return o.model
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request interrupted")
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "OpenAI request failed")
	}

	status := apiErr.StatusCode
	errorType := llmerrors.ErrorTypeUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		errorType = llmerrors.ErrorTypeAuth
	case status == http.StatusTooManyRequests:
		errorType = llmerrors.ErrorTypeRateLimit
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		errorType = llmerrors.ErrorTypeBadPrompt
	case status >= http.StatusInternalServerError:
		errorType = llmerrors.ErrorTypeTransient
	}
	return &llmerrors.Error{Type: errorType, StatusCode: status, Err: err, Message: fmt.Sprintf("OpenAI API returned %d", status)}
}
