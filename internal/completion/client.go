// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the completion service.
const (
	// DefaultEndpoint is the chat completions URL used when none is configured.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	// DefaultModel is the model identifier sent with every request.
	DefaultModel = "gpt-3.5-turbo"

	// DefaultMaxTokens caps the reply length.
	DefaultMaxTokens = 150

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the largest body the client will read.
	MaxResponseSize = 2 * 1024 * 1024

	userAgent = "farmassist/0.1.0"
)

// newHTTPClient builds the pooled client used when the caller supplies none.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is a single {role, content} pair of the request body.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body POSTed to the completion endpoint.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage is the token accounting returned by the service. Informational only.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a successful chat completion.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Content returns the text of the first choice, or "" if there is none.
func (r *Response) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// apiErrorResponse is the error envelope: {"error": {"message": ..., "code": ...}}.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Options configures a Client. Zero values select the defaults above.
type Options struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// RequestsPerMinute paces outgoing requests. Zero disables pacing.
	RequestsPerMinute float64

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one completion endpoint with one credential. It is safe
// for concurrent use; independent conversations may share a Client.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New validates opts and returns a ready Client.
func New(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid completion endpoint %q", endpoint)
	}

	c := &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.temperature == 0 {
		c.temperature = DefaultTemperature
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = newHTTPClient(timeout)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMinute/60), 1)
	}
	return c, nil
}

// Model returns the model identifier sent with each request.
func (c *Client) Model() string {
	return c.model
}

// Endpoint returns the completion URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Complete sends one completion request made of the system prompt followed
// by the user content. It never retries.
func (c *Client) Complete(ctx context.Context, systemPrompt, content string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: "wait", Err: err}
		}
	}

	messages := make([]ChatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: content})

	body, err := json.Marshal(ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	// Drop the credential from the request so nothing downstream can log it.
	req.Header.Del("Authorization")
	if err != nil {
		c.logger.Warn("completion request failed",
			"path", req.URL.Path,
			"duration", time.Since(start),
			"error", err)
		return nil, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	data, err := readBody(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}

	c.logger.Debug("completion response",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseErrorResponse(resp.StatusCode, data)
	}

	var parsed Response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &TransportError{Op: "decode response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &TransportError{Op: "decode response", Err: ErrNoChoices}
	}
	if strings.TrimSpace(parsed.Content()) == "" {
		return nil, &TransportError{Op: "decode response", Err: ErrEmptyReply}
	}

	c.logger.Info("completion succeeded",
		"model", parsed.Model,
		"total_tokens", parsed.Usage.TotalTokens,
		"reply_length", len([]rune(parsed.Content())))

	return &parsed, nil
}

// readBody reads at most MaxResponseSize bytes and reports oversize bodies.
func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}

// parseErrorResponse turns a non-2xx answer into a *ServiceError, pulling
// error.message out of the body when the body has one.
func parseErrorResponse(status int, body []byte) error {
	svcErr := &ServiceError{Status: status}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		svcErr.Message = strings.TrimSpace(apiErr.Error.Message)
		switch code := apiErr.Error.Code.(type) {
		case string:
			svcErr.Code = code
		case float64:
			svcErr.Code = fmt.Sprintf("%.0f", code)
		}
		if svcErr.Code == "" {
			svcErr.Code = apiErr.Error.Type
		}
	}
	return svcErr
}
