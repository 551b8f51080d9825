// Package anthropic is a minimal client for the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/threatbrief/ai/openai"
	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/internal/httpclient"
)

const (
	// DefaultModel is the default Claude model
	DefaultModel = "claude-3-5-haiku-latest"

	// BaseURL is the Anthropic API endpoint
	BaseURL = "https://api.anthropic.com/v1"

	// APIVersion is the required Anthropic API version header
	APIVersion = "2023-06-01"

	defaultMaxTokens = 4096
)

// Client represents an Anthropic API client
type Client struct {
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds Anthropic client configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64 // nil = 0
	MaxTokens   *int     // nil = 4096, required by the API
	Timeout     time.Duration
	Logger      *zap.SugaredLogger
}

// NewClient creates a new Anthropic API client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpclient.NewSaferClient(config.Timeout),
		config:     config,
		logger:     logger,
	}
}

// MessagesRequest represents a request to the Anthropic Messages API
type MessagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
}

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// MessagesResponse represents the response from the Messages API
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Chat sends a single Messages API request. Retries are left to the caller.
func (c *Client) Chat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.WithHint(errors.New("Anthropic API key not configured"),
			"set ANTHROPIC_API_KEY or generator.anthropic.api_key")
	}

	msgReq := MessagesRequest{
		Model:       c.config.Model,
		MaxTokens:   defaultMaxTokens,
		Messages:    []Message{{Role: "user", Content: req.UserPrompt}},
		System:      req.SystemPrompt,
		Temperature: 0,
	}
	if c.config.MaxTokens != nil {
		msgReq.MaxTokens = *c.config.MaxTokens
	}
	if c.config.Temperature != nil {
		msgReq.Temperature = *c.config.Temperature
	}
	if req.Model != nil {
		msgReq.Model = *req.Model
	}
	if req.MaxTokens != nil {
		msgReq.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		msgReq.Temperature = *req.Temperature
	}

	body, err := json.Marshal(msgReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	c.logger.Debugw("anthropic request", "model", msgReq.Model, "max_tokens", msgReq.MaxTokens)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithStack(&openai.StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var msgResp MessagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	var text strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	c.logger.Debugw("anthropic response",
		"stop_reason", msgResp.StopReason,
		"input_tokens", msgResp.Usage.InputTokens,
		"output_tokens", msgResp.Usage.OutputTokens,
		"length", text.Len())

	return &openai.ChatResponse{
		Content: strings.TrimSpace(text.String()),
		Model:   msgResp.Model,
		Usage: openai.Usage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
	}, nil
}

// SetHTTPClient allows overriding the HTTP client for testing
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
