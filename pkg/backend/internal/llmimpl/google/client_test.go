package google

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

func TestConvertMessagesToGemini(t *testing.T) {
	contents, system, err := convertMessagesToGemini([]backend.CompletionMessage{
		backend.NewSystemMessage("Be terse."),
		backend.NewSystemMessage("JSON only."),
		backend.NewUserMessage("Timeline of aviation"),
		{Role: backend.RoleAssistant, Content: "{}"},
		backend.NewUserMessage("Shorter please"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system != "Be terse.\n\nJSON only." {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("contents = %d, want 3", len(contents))
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("assistant role = %q, want model", contents[1].Role)
	}
}

func TestConvertMessagesErrors(t *testing.T) {
	if _, _, err := convertMessagesToGemini(nil); err == nil {
		t.Error("empty list should fail")
	}
	if _, _, err := convertMessagesToGemini([]backend.CompletionMessage{backend.NewSystemMessage("only system")}); err == nil {
		t.Error("system-only list should fail")
	}
}

func TestGetStopReason(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}}}
	if got := getStopReason(resp); got != "max_tokens" {
		t.Errorf("stop reason = %q", got)
	}
	if got := getStopReason(nil); got != "unknown" {
		t.Errorf("nil stop reason = %q", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want llmerrors.ErrorType
	}{
		{genai.APIError{Code: 429, Message: "quota"}, llmerrors.ErrorTypeRateLimit},
		{genai.APIError{Code: 403, Message: "denied"}, llmerrors.ErrorTypeAuth},
		{genai.APIError{Code: 500, Message: "boom"}, llmerrors.ErrorTypeTransient},
		{genai.APIError{Code: 400, Message: "bad"}, llmerrors.ErrorTypeBadPrompt},
		{context.DeadlineExceeded, llmerrors.ErrorTypeTransient},
		{errors.New("other"), llmerrors.ErrorTypeUnknown},
	}
	for _, tt := range tests {
		if got := llmerrors.TypeOf(classifyError(tt.err)); got != tt.want {
			t.Errorf("classifyError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestDefaultModel(t *testing.T) {
	if got := NewGeminiClientWithModel("key", "", "").GetModelName(); got != DefaultModel {
		t.Errorf("model = %q", got)
	}
}
