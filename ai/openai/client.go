// Package openai is a client for OpenAI-compatible chat completion APIs.
// Groq (the default backend) and OpenRouter both speak this protocol.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/internal/httpclient"
	"github.com/teranos/threatbrief/internal/util"
	"github.com/teranos/threatbrief/version"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the fallback model when none is specified.
	// Should match the default in am/defaults.go.
	DefaultModel = "llama-3.3-70b-versatile"

	defaultMaxRetries = 3
)

// Client represents an OpenAI-compatible API client
type Client struct {
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds client configuration
type Config struct {
	Name        string // Provider name for logs and errors ("groq", "openrouter")
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64 // nil = 0
	MaxTokens   *int     // nil = omit, provider decides
	MaxRetries  int      // attempts on network errors, 0 = default (3)
	Timeout     time.Duration
	Title       string             // X-Title header, used by OpenRouter dashboards
	Logger      *zap.SugaredLogger // nil = nop logger
}

// NewClient creates a new client with defaults applied
func NewClient(config Config) *Client {
	if config.Name == "" {
		config.Name = "groq"
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		config.Temperature = util.Ptr(0.0)
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaultMaxRetries
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

// ChatCompletionRequest represents a request to the chat completions endpoint
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatRequest represents a high-level request to the model.
// It is the request type shared by every backend in ai/.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // Override default temperature
	MaxTokens    *int     // Override default max tokens
	Model        *string  // Override default model
}

// ChatResponse represents the model response
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Message represents a message in a chat completion
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from chat completions
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StatusError is returned for non-200 responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "API request failed with status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// CreateChatCompletion sends a single chat completion request
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if c.config.Title != "" {
		httpReq.Header.Set("X-Title", c.config.Title)
	}

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
		return nil, errors.WithStack(&StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &chatResp, nil
}

// Chat sends a chat completion request with retries on network errors
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.WithHintf(errors.Newf("%s API key not configured", c.config.Name),
			"set %s_API_KEY or generator.%s.api_key", strings.ToUpper(c.config.Name), c.config.Name)
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	var maxTokens int
	if c.config.MaxTokens != nil {
		maxTokens = *c.config.MaxTokens
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	c.logger.Debugw("chat request",
		"provider", c.config.Name,
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"system_prompt", req.SystemPrompt,
		"user_prompt", req.UserPrompt,
	)

	messages := []Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	completionReq := ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	maxRetries := c.config.MaxRetries
	var resp *ChatCompletionResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("retrying request",
				"provider", c.config.Name, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "cancelled while waiting to retry")
			case <-time.After(delay):
			}
		}

		resp, err = c.CreateChatCompletion(ctx, completionReq)
		if err == nil {
			if attempt > 0 {
				c.logger.Infow("request succeeded after retries", "attempts", attempt+1, "model", model)
			}
			break
		}

		c.logger.Warnw("chat completion error",
			"provider", c.config.Name,
			"attempt", attempt+1, "max_retries", maxRetries,
			"error", err, "model", model)

		if ctx.Err() != nil || !isRetryableError(err) {
			return nil, errors.Wrapf(err, "%s API error", c.config.Name)
		}
	}

	if err != nil {
		return nil, errors.Wrapf(err, "%s API error after %d attempts", c.config.Name, maxRetries)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Newf("no response choices from %s", c.config.Name)
	}

	content := resp.Choices[0].Message.Content

	c.logger.Debugw("chat response",
		"provider", c.config.Name,
		"content_length", len(content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return &ChatResponse{
		Content: strings.TrimSpace(content),
		Model:   resp.Model,
		Usage:   resp.Usage,
	}, nil
}

// isRetryableError checks if an error is worth retrying (network-related or 429/5xx)
func isRetryableError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection reset by peer",
		"connection refused",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// Name returns the provider name this client was configured with
func (c *Client) Name() string {
	return c.config.Name
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SetHTTPClient allows overriding the HTTP client for testing.
// Production code should use the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
