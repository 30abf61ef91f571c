// Package llm provides a minimal chat-completion client for
// OpenAI-compatible APIs. The intent classifier and the tone rewriter
// both speak through the Completer interface, so tests can substitute a
// canned model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
)

// Completer is the interface for single-shot text completions.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a label for logs, e.g. "openai/gpt-4o-mini".
	Name() string
}

// CompletionOpts configures one completion request.
type CompletionOpts struct {
	MaxTokens   int     // 0 = provider default
	Temperature float64 // 0.0 = deterministic
	Format      string  // config.FormatJSON for structured output
	System      string  // optional system prompt
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClient returns a Client for the given endpoint. Empty baseURL and
// model fall back to the configured defaults.
func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = config.DefaultLLMBaseURL
	}
	if model == "" {
		model = config.DefaultLLMModel
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: config.LLMTimeout},
	}
}

// Name returns the configured model identifier.
func (c *Client) Name() string {
	return c.model
}

// Chat-completions wire types (OpenAI-compatible).
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *chatRespFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRespFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *chatError `json:"error,omitempty"`
}

type chatError struct {
	Message string `json:"message"`
}

// Complete sends one prompt and returns the trimmed completion text.
func (c *Client) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	if c.apiKey == "" {
		return "", errors.New(config.ErrLLMKeyMissing)
	}

	messages := make([]chatMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if strings.EqualFold(opts.Format, config.FormatJSON) {
		req.ResponseFormat = &chatRespFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrLLMCall, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrLLMCall, err)
	}
	httpReq.Header.Set(config.HeaderContentType, config.MimeJSON)
	httpReq.Header.Set(config.HeaderAuthorization, config.BearerPrefix+c.apiKey)
	httpReq.Header.Set(config.HeaderUserAgent, config.UserAgent)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrLLMCall, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxWebhookBodySize))
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrLLMCall, err)
	}
	slog.Debug(config.MsgLLMDone,
		config.LogKeyComponent, config.CompLLM,
		config.LogKeyModel, c.model,
		config.LogKeyStatus, resp.StatusCode,
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d: %s", config.ErrLLMCall, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrLLMParse, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s: %s", config.ErrLLMCall, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New(config.ErrEmptyCompletion)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
