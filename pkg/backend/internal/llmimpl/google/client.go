// Package google implements backend.LLMClient on the Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// GeminiClient wraps the GenAI client. The SDK client needs a context to build, so it
// is created on first use.
type GeminiClient struct {
	mu      sync.Mutex
	client  *genai.Client
	apiKey  string
	model   string
	baseURL string
}

// NewGeminiClientWithModel returns a raw client. baseURL may be empty.
func NewGeminiClientWithModel(apiKey, model, baseURL string) backend.LLMClient {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiClient{apiKey: apiKey, model: model, baseURL: baseURL}
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cfg := &genai.ClientConfig{APIKey: g.apiKey, Backend: genai.BackendGeminiAPI}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "failed to create Gemini client")
	}
	g.client = client
	return client, nil
}

// Complete implements backend.LLMClient.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (g *GeminiClient) Complete(ctx context.Context, in backend.CompletionRequest) (backend.CompletionResponse, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return backend.CompletionResponse{}, err
	}

	contents, systemInstruction, err := convertMessagesToGemini(in.Messages)
	if err != nil {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	temperature := in.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(in.MaxTokens), //nolint:gosec // bounded by config validation
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	if in.Format == backend.FormatJSON {
		config.ResponseMIMEType = "application/json"
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return backend.CompletionResponse{}, classifyError(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return backend.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse,
			fmt.Sprintf("Gemini returned no text (finish reason %s)", getStopReason(result)))
	}

	resp := backend.CompletionResponse{Content: text, StopReason: getStopReason(result)}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = backend.Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
	}
	return resp, nil
}

// Stream implements backend.LLMClient on top of Complete.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (g *GeminiClient) Stream(ctx context.Context, in backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	return backend.StreamFromComplete(ctx, g, in), nil
}

func (g *GeminiClient) GetModelName() string {
	return g.model
}

// convertMessagesToGemini returns the conversation contents and the joined system instruction.
func convertMessagesToGemini(messages []backend.CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	system, rest := backend.SplitSystem(messages)
	contents := make([]*genai.Content, 0, len(rest))
	for i := range rest {
		var role string
		switch rest[i].Role {
		case backend.RoleUser:
			role = genai.RoleUser
		case backend.RoleAssistant:
			role = genai.RoleModel
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", rest[i].Role)
		}
		if rest[i].Content == "" {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: rest[i].Content}}})
	}
	if len(contents) == 0 {
		return nil, "", fmt.Errorf("no non-empty user or assistant messages")
	}
	return contents, system, nil
}

func getStopReason(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].FinishReason == "" {
		return "unknown"
	}
	switch result.Candidates[0].FinishReason {
	case genai.FinishReasonStop:
		return "end_turn"
	case genai.FinishReasonMaxTokens:
		return "max_tokens"
	default:
		return strings.ToLower(string(result.Candidates[0].FinishReason))
	}
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request interrupted")
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	code := 0
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &llmerrors.Error{Type: llmerrors.ErrorTypeAuth, StatusCode: code, Err: err, Message: "Gemini authentication failed"}
	case code == http.StatusTooManyRequests:
		return &llmerrors.Error{Type: llmerrors.ErrorTypeRateLimit, StatusCode: code, Err: err, Message: "Gemini rate limit exceeded"}
	case code == http.StatusBadRequest:
		return &llmerrors.Error{Type: llmerrors.ErrorTypeBadPrompt, StatusCode: code, Err: err, Message: "Gemini rejected the request"}
	case code >= http.StatusInternalServerError:
		return &llmerrors.Error{Type: llmerrors.ErrorTypeTransient, StatusCode: code, Err: err, Message: "Gemini server error"}
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "Gemini API call failed")
}
