// Package utils provides token counting for prompt budgeting and usage metrics.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with a tiktoken codec. All supported providers are
// approximated with the GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

//nolint:gochecknoglobals // codec construction is expensive and the codec is immutable
var (
	sharedCounter     *TokenCounter
	sharedCounterErr  error
	sharedCounterOnce sync.Once
)

// NewTokenCounter returns a counter for model. Unknown models use the GPT-4 encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the token count of text, or a 4-chars-per-token estimate when
// the codec is unavailable.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return estimate(text)
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return estimate(text)
	}
	return count
}

func estimate(text string) int {
	return len(text) / 4
}

// CountTokensSimple counts tokens with a process-wide shared counter.
func CountTokensSimple(text string) int {
	sharedCounterOnce.Do(func() {
		sharedCounter, sharedCounterErr = NewTokenCounter("gpt-4")
	})
	if sharedCounterErr != nil {
		return estimate(text)
	}
	return sharedCounter.CountTokens(text)
}

// CountMessages counts the tokens of several message bodies joined by newlines.
func CountMessages(contents ...string) int {
	return CountTokensSimple(strings.Join(contents, "\n"))
}
