package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, content string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   "test-model",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 1, "total_tokens": 11},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIScorer_Score(t *testing.T) {
	srv := newTestServer(t, " 0.42\n")

	scorer, err := NewOpenAIScorer(OpenAIConfig{Endpoint: srv.URL, Model: "test-model", APIKey: "k"}, nil)
	require.NoError(t, err)

	score, err := scorer.Score(context.Background(), "GGAL beats estimates")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, score, 1e-9)
}

func TestOpenAIScorer_RejectsGarbage(t *testing.T) {
	srv := newTestServer(t, "very bullish")

	scorer, err := NewOpenAIScorer(OpenAIConfig{Endpoint: srv.URL, Model: "test-model"}, nil)
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), "text")
	assert.Error(t, err)
}

func TestNewOpenAIScorer_RequiresModel(t *testing.T) {
	_, err := NewOpenAIScorer(OpenAIConfig{}, nil)
	assert.Error(t, err)
}

func TestParseScore(t *testing.T) {
	s, err := parseScore("-0.5.")
	require.NoError(t, err)
	assert.Equal(t, -0.5, s)

	_, err = parseScore("2")
	assert.Error(t, err)
}
