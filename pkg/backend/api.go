// Package backend is the boundary to the generative backend: the LLM client contract,
// its middleware chain, and the Synthesizer that turns instructions plus field
// constraints into a field map or a vector artifact.
package backend

import (
	"context"
	"fmt"
	"io"
)

// CompletionRole is the author of a message.
type CompletionRole string

const (
	RoleSystem    CompletionRole = "system"
	RoleUser      CompletionRole = "user"
	RoleAssistant CompletionRole = "assistant"
)

const (
	// DefaultMaxTokens bounds a single response.
	DefaultMaxTokens = 4096
	// TemperatureDefault keeps wording varied but on-topic.
	TemperatureDefault = 0.7
	// TemperatureStrict is used for vector markup, where structure matters more than variety.
	TemperatureStrict = 0.3
)

// ResponseFormat asks the provider for a particular output encoding.
type ResponseFormat string

const (
	FormatText ResponseFormat = ""
	FormatJSON ResponseFormat = "json"
)

// CompletionMessage is one message in a request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest is a provider-neutral completion request.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Format      ResponseFormat
	MaxTokens   int
	Temperature float32
}

// Usage is the token accounting reported by the provider, when available.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CompletionResponse is the provider-neutral result.
type CompletionResponse struct {
	Content    string
	StopReason string
	Usage      Usage
}

// StreamChunk is one piece of a streamed response.
type StreamChunk struct {
	Error   error
	Content string
	Done    bool
}

// LLMClient is implemented by every provider and by every middleware layer.
type LLMClient interface { //nolint:revive // established name across providers
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
	Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error)
	GetModelName() string
}

// NewCompletionRequest returns a request with default limits.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// SplitSystem separates system messages, joined with blank lines, from the rest.
func SplitSystem(messages []CompletionMessage) (string, []CompletionMessage) {
	var system string
	rest := make([]CompletionMessage, 0, len(messages))
	for i := range messages {
		if messages[i].Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += messages[i].Content
			continue
		}
		rest = append(rest, messages[i])
	}
	return system, rest
}

// StreamFromComplete adapts a synchronous call into a two-chunk stream.
func StreamFromComplete(ctx context.Context, c LLMClient, in CompletionRequest) <-chan StreamChunk {
	ch := make(chan StreamChunk, 2)
	go func() {
		defer close(ch)
		resp, err := c.Complete(ctx, in)
		if err != nil {
			ch <- StreamChunk{Error: err}
			return
		}
		ch <- StreamChunk{Content: resp.Content}
		ch <- StreamChunk{Done: true}
	}()
	return ch
}

// Config is the provider connection configuration.
type Config struct {
	Provider    string
	APIKey      string
	ModelName   string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// Validate checks the fields every provider needs. Local providers may omit the key.
func (c *Config) Validate(requireKey bool) error {
	if requireKey && c.APIKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}

// StreamToReader exposes a stream as an io.Reader.
func StreamToReader(stream <-chan StreamChunk) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		for chunk := range stream {
			if chunk.Error != nil {
				pw.CloseWithError(chunk.Error)
				return
			}
			if _, err := pw.Write([]byte(chunk.Content)); err != nil {
				pw.CloseWithError(err)
				return
			}
			if chunk.Done {
				return
			}
		}
	}()
	return pr
}
