package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teranos/threatbrief/ai/openai"
	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/internal/httpclient"
)

// LocalClientConfig holds configuration for the local inference client
type LocalClientConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   *int
	Timeout     time.Duration
}

// LocalClient talks to Ollama's native chat API
type LocalClient struct {
	baseURL    string
	model      string
	options    ollamaOptions
	httpClient *httpclient.SaferClient
}

type ollamaChatRequest struct {
	Model    string           `json:"model"`
	Messages []openai.Message `json:"messages"`
	Stream   bool             `json:"stream"`
	Options  ollamaOptions    `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // Ollama's max tokens
}

type ollamaChatResponse struct {
	Model           string         `json:"model"`
	Message         openai.Message `json:"message"`
	Done            bool           `json:"done"`
	PromptEvalCount int            `json:"prompt_eval_count"`
	EvalCount       int            `json:"eval_count"`
}

// NewLocalClient creates a local inference client.
// Loopback and private addresses are allowed since that is where Ollama runs.
func NewLocalClient(cfg LocalClientConfig) *LocalClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second // CPU inference is slow
	}
	opts := ollamaOptions{Temperature: cfg.Temperature}
	if cfg.MaxTokens != nil {
		opts.NumPredict = *cfg.MaxTokens
	}
	return &LocalClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		options:    opts,
		httpClient: httpclient.NewSaferClient(cfg.Timeout, httpclient.AllowPrivateNetworks()),
	}
}

// Chat implements AIClient for local inference
func (lc *LocalClient) Chat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	model := lc.model
	if req.Model != nil {
		model = *req.Model
	}
	opts := lc.options
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		opts.NumPredict = *req.MaxTokens
	}

	messages := []openai.Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]openai.Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  opts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, lc.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := lc.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "local inference request failed"),
			"is Ollama running at generator.local.base_url?")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, errors.WithStack(&openai.StatusError{StatusCode: resp.StatusCode, Body: string(b)})
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}

	return &openai.ChatResponse{
		Content: strings.TrimSpace(out.Message.Content),
		Model:   out.Model,
		Usage: openai.Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}
