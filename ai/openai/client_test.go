package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:     "cmpl-1",
		Object: "chat.completion",
		Model:  "llama-3.3-70b-versatile",
		Choices: []Choice{{
			Message:      Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	client := NewClient(cfg)
	client.SetHTTPClient(server.Client())
	return client
}

func TestClient_Configuration(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		client := NewClient(Config{APIKey: "test-key"})

		assert.Equal(t, "groq", client.Name())
		assert.Equal(t, DefaultBaseURL, client.baseURL)
		assert.Equal(t, DefaultModel, client.config.Model)
		require.NotNil(t, client.config.Temperature)
		assert.Equal(t, 0.0, *client.config.Temperature)
		assert.Nil(t, client.config.MaxTokens)
		assert.Equal(t, defaultMaxRetries, client.config.MaxRetries)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		temp := 0.8
		client := NewClient(Config{
			Name:        "openrouter",
			APIKey:      "test-key",
			BaseURL:     "https://openrouter.ai/api/v1/",
			Model:       "openai/gpt-4o-mini",
			Temperature: &temp,
		})

		assert.Equal(t, "openrouter", client.Name())
		assert.Equal(t, "https://openrouter.ai/api/v1", client.baseURL)
		assert.Equal(t, 0.8, *client.config.Temperature)
	})

	t.Run("is configured only with API key", func(t *testing.T) {
		assert.True(t, NewClient(Config{APIKey: "k"}).IsConfigured())
		assert.False(t, NewClient(Config{}).IsConfigured())
	})
}

func TestClient_Chat(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		var got ChatCompletionRequest
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(completion("  Threat analysis complete.\n"))
		}, Config{})

		resp, err := client.Chat(context.Background(), ChatRequest{
			SystemPrompt: "You are Threat_Analyzer_Agent.",
			UserPrompt:   "Analyze the threat.",
		})
		require.NoError(t, err)

		assert.Equal(t, "Threat analysis complete.", resp.Content)
		assert.Equal(t, 30, resp.Usage.TotalTokens)

		require.Len(t, got.Messages, 2)
		assert.Equal(t, "system", got.Messages[0].Role)
		assert.Equal(t, "You are Threat_Analyzer_Agent.", got.Messages[0].Content)
		assert.Equal(t, "user", got.Messages[1].Role)
		assert.Equal(t, 0.0, got.Temperature)
		assert.Equal(t, DefaultModel, got.Model)
	})

	t.Run("omits empty system prompt", func(t *testing.T) {
		var got ChatCompletionRequest
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(completion("ok"))
		}, Config{})

		_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
		require.NoError(t, err)
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "user", got.Messages[0].Role)
	})

	t.Run("per-request overrides", func(t *testing.T) {
		var got ChatCompletionRequest
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(completion("ok"))
		}, Config{})

		temp, tokens, model := 0.5, 256, "llama3-8b-8192"
		_, err := client.Chat(context.Background(), ChatRequest{
			UserPrompt:  "hi",
			Temperature: &temp,
			MaxTokens:   &tokens,
			Model:       &model,
		})
		require.NoError(t, err)
		assert.Equal(t, 0.5, got.Temperature)
		assert.Equal(t, 256, got.MaxTokens)
		assert.Equal(t, "llama3-8b-8192", got.Model)
	})

	t.Run("missing API key", func(t *testing.T) {
		client := NewClient(Config{})
		_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key not configured")
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad model"}`))
		}, Config{})

		_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(completion("recovered"))
		}, Config{MaxRetries: 2})

		resp, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "recovered", resp.Content)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("no choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"x","choices":[]}`))
		}, Config{})

		_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no response choices")
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"bad gateway", &StatusError{StatusCode: 502}, true},
		{"unauthorized", &StatusError{StatusCode: 401}, false},
		{"connection reset", errorString("read: connection reset by peer"), true},
		{"plain error", errorString("invalid character"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }
