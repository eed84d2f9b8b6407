package openaiofficial

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
)

func TestBuildParams(t *testing.T) {
	client := NewOfficialClientWithModel("key", "gpt-4.1", "").(*OfficialClient)
	req := backend.NewCompletionRequest([]backend.CompletionMessage{
		backend.NewSystemMessage("Respond in JSON."),
		backend.NewUserMessage("Venn of design and engineering"),
	})
	req.Format = backend.FormatJSON

	raw, err := json.Marshal(client.buildParams(req))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Respond in JSON.", body["instructions"])
	assert.Equal(t, "Venn of design and engineering", body["input"])
	assert.Equal(t, "gpt-4.1", body["model"])
	assert.Contains(t, body, "temperature")

	text, ok := body["text"].(map[string]any)
	require.True(t, ok, "JSON format should set text config")
	format, ok := text["format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestReasoningModelsOmitTemperature(t *testing.T) {
	client := NewOfficialClientWithModel("key", "o3-mini", "").(*OfficialClient)
	raw, err := json.Marshal(client.buildParams(backend.NewCompletionRequest([]backend.CompletionMessage{backend.NewUserMessage("x")})))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "temperature")
}

func TestEmptyMessagesRejected(t *testing.T) {
	client := NewOfficialClientWithModel("key", "", "")
	assert.Equal(t, DefaultModel, client.GetModelName())
	_, err := client.Complete(context.Background(), backend.CompletionRequest{})
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}

func TestStatusClassification(t *testing.T) {
	for status, want := range map[int]llmerrors.ErrorType{
		http.StatusTooManyRequests:     llmerrors.ErrorTypeRateLimit,
		http.StatusUnauthorized:        llmerrors.ErrorTypeAuth,
		http.StatusInternalServerError: llmerrors.ErrorTypeTransient,
		http.StatusBadRequest:          llmerrors.ErrorTypeBadPrompt,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
		}))

		client := NewOfficialClientWithModel("key", "gpt-4.1", srv.URL)
		_, err := client.Complete(context.Background(), backend.NewCompletionRequest([]backend.CompletionMessage{backend.NewUserMessage("x")}))
		srv.Close()

		assert.Equal(t, want, llmerrors.TypeOf(err), "status %d", status)
	}
}
