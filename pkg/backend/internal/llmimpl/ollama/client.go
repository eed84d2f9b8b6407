// Package ollama implements backend.LLMClient on a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

// DefaultHost is used when the configured URL is empty or invalid.
const DefaultHost = "http://localhost:11434"

// Client wraps the Ollama API client.
type Client struct {
	client  *api.Client
	model   string
	hostURL string
}

// NewOllamaClientWithModel returns a client for the server at hostURL.
func NewOllamaClientWithModel(hostURL, model string) backend.LLMClient {
	parsed, err := url.Parse(hostURL)
	if hostURL == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
		hostURL = DefaultHost
		parsed, _ = url.Parse(DefaultHost)
	}
	return &Client{
		client:  api.NewClient(parsed, http.DefaultClient),
		model:   model,
		hostURL: hostURL,
	}
}

// Complete implements backend.LLMClient.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (o *Client) Complete(ctx context.Context, in backend.CompletionRequest) (backend.CompletionResponse, error) {
	messages, err := convertMessagesToOllama(in.Messages)
	if err != nil {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}
	if in.Format == backend.FormatJSON {
		req.Format = json.RawMessage(`"json"`)
	}

	var response api.ChatResponse
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return backend.CompletionResponse{}, classifyError(err)
	}
	if strings.TrimSpace(response.Message.Content) == "" {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "Ollama returned an empty message")
	}

	return backend.CompletionResponse{
		Content:    response.Message.Content,
		StopReason: getStopReason(&response),
		Usage: backend.Usage{
			InputTokens:  response.PromptEvalCount,
			OutputTokens: response.EvalCount,
		},
	}, nil
}

// Stream implements backend.LLMClient on top of Complete.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (o *Client) Stream(ctx context.Context, in backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	return backend.StreamFromComplete(ctx, o, in), nil
}

func (o *Client) GetModelName() string {
	return o.model
}

func convertMessagesToOllama(messages []backend.CompletionMessage) ([]api.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("message list cannot be empty")
	}
	result := make([]api.Message, 0, len(messages))
	for i := range messages {
		result = append(result, api.Message{Role: string(messages[i].Role), Content: messages[i].Content})
	}
	return result, nil
}

func getStopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}
	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request interrupted")
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return &llmerrors.Error{Type: llmerrors.ErrorTypeBadPrompt, StatusCode: statusErr.StatusCode, Err: err, Message: "Ollama model not found"}
		case statusErr.StatusCode == http.StatusBadRequest:
			return &llmerrors.Error{Type: llmerrors.ErrorTypeBadPrompt, StatusCode: statusErr.StatusCode, Err: err, Message: "Ollama rejected the request"}
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return &llmerrors.Error{Type: llmerrors.ErrorTypeRateLimit, StatusCode: statusErr.StatusCode, Err: err, Message: "Ollama server busy"}
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return &llmerrors.Error{Type: llmerrors.ErrorTypeTransient, StatusCode: statusErr.StatusCode, Err: err, Message: "Ollama server error"}
		}
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "Ollama server not reachable")
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "Ollama model not found")
	case strings.Contains(errStr, "timeout"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request timeout")
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "Ollama API error")
}
