// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyModel struct {
	failures int
	calls    int
}

func (f *flakyModel) Generate(context.Context, Request) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("503 unavailable")
	}
	return "ok", nil
}

func noBackoff(t *testing.T) {
	t.Helper()
	orig := backoffBase
	backoffBase = 0
	t.Cleanup(func() { backoffBase = orig })
}

func TestWithRetry(t *testing.T) {
	noBackoff(t)

	m := &flakyModel{failures: 2}
	out, err := WithRetry(m, 3, nil).Generate(context.Background(), Request{Stage: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, m.calls)

	m = &flakyModel{failures: 10}
	_, err = WithRetry(m, 2, nil).Generate(context.Background(), Request{Stage: "x"})
	assert.ErrorContains(t, err, "after 2 retries")
	assert.Equal(t, 3, m.calls)
}

func TestWithRetryHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &flakyModel{failures: 10}
	_, err := WithRetry(m, 3, nil).Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.calls)
}

func TestClaudeModel(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": [{"type": "thinking", "text": ""}, {"type": "text", "text": "{\"grade\":"}, {"type": "text", "text": "\"pass\"}"}]}`))
	}))
	defer srv.Close()

	orig := claudeAPIURL
	claudeAPIURL = srv.URL
	defer func() { claudeAPIURL = orig }()

	m := &ClaudeModel{APIKey: "test-key", Client: srv.Client()}
	out, err := m.Generate(context.Background(), Request{Prompt: "grade this", JSON: true, Thinking: true})
	require.NoError(t, err)

	assert.Equal(t, `{"grade":"pass"}`, out)
	assert.Equal(t, DefaultClaudeModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "grade this", got.Messages[0].Content)
	assert.NotEmpty(t, got.System)
	require.NotNil(t, got.Thinking)
	assert.Less(t, got.Thinking.BudgetTokens, got.MaxTokens)
}

func TestClaudeModelErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusTooManyRequests, `{"error": "rate limited"}`},
		{"bad json", http.StatusOK, `{`},
		{"no text", http.StatusOK, `{"content": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			orig := claudeAPIURL
			claudeAPIURL = srv.URL
			defer func() { claudeAPIURL = orig }()

			_, err := (&ClaudeModel{APIKey: "k"}).Generate(context.Background(), Request{Prompt: "p"})
			assert.Error(t, err)
		})
	}
}

func TestNewGeminiModelRequiresKey(t *testing.T) {
	_, err := NewGeminiModel(context.Background(), "", "", nil)
	assert.Error(t, err)
}
