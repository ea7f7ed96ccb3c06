// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds the client options.
type Config struct {
	// BaseURL is the backend root (default: http://localhost:3000)
	BaseURL string

	// ChatTimeout bounds chat and analysis requests (default: 60s)
	ChatTimeout time.Duration

	// MaxTokens sent with each chat request (default: 3000)
	MaxTokens int

	// Temperature sent with each chat request (default: 0.7)
	Temperature float64

	// RequestsPerSecond and Burst limit outgoing requests. Zero disables
	// limiting.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://localhost:3000",
		ChatTimeout:       60 * time.Second,
		MaxTokens:         3000,
		Temperature:       0.7,
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the backend REST API. It holds no conversation state and
// is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig(), nil)
}

// NewClientWithConfig creates a client, filling in zero values from
// DefaultConfig.
func NewClientWithConfig(config *Config, log *zap.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.ChatTimeout == 0 {
		config.ChatTimeout = defaults.ChatTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = defaults.Temperature
	}
	if log == nil {
		log = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{},
		limiter:    limiter,
		log:        log.With(zap.String("module", "transport")),
	}
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Endpoint joins path onto the base URL. Absolute URLs are returned as is.
func (c *Client) Endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" || path == "/" {
		return c.config.BaseURL + "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.config.BaseURL + path
}

// ValidateBaseURL checks that raw is an absolute http(s) URL with a host.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid backend URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid backend URL %q: missing host", raw)
	}
	return nil
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Ping issues a GET against path. Any 2xx status means reachable; the
// body is ignored. Ping is not rate limited and uses the deadline of ctx.
func (c *Client) Ping(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(path), nil)
	if err != nil {
		return &Error{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return requestError(ctx, "health check", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Type: ErrTypeHTTP, Status: resp.StatusCode, Message: "health check: " + resp.Status}
	}
	return nil
}

// =============================================================================
// CHAT
// =============================================================================

// ChatMessage is one entry of the conversation sent to the backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the input to Chat.
type ChatRequest struct {
	Messages     []ChatMessage
	User         string
	NotesContext bool

	// Attachments of the new message. Only files and photos go on the
	// wire; notes are part of the prompt text. All of them are used for
	// the mock reply.
	Attachments []model.Attachment

	// Text is the raw user text, echoed by the mock reply.
	Text string

	// MaxTokens and Temperature override the client defaults when set.
	MaxTokens   int
	Temperature float64
}

type chatBody struct {
	Messages     []ChatMessage      `json:"messages"`
	MaxTokens    int                `json:"max_tokens"`
	Temperature  float64            `json:"temperature"`
	User         string             `json:"user"`
	Attachments  []model.Attachment `json:"attachments"`
	NotesContext bool               `json:"notes_context"`
}

// Reply is the assistant text returned by Chat.
type Reply struct {
	Text string
	// Mock is set when the text was generated locally because the
	// backend's body could not be read.
	Mock bool
}

// replyFields are tried in order when extracting the reply text.
var replyFields = []string{"reply", "message", "choices", "content", "response", "answer"}

// Chat posts the conversation to /api/chat. Non-2xx statuses, timeouts and
// network failures return an *Error. A body without a recognised reply
// field is not an error: the local mock reply is returned with Mock set.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (Reply, error) {
	body := chatBody{
		Messages:     req.Messages,
		MaxTokens:    c.config.MaxTokens,
		Temperature:  c.config.Temperature,
		User:         req.User,
		Attachments:  []model.Attachment{},
		NotesContext: req.NotesContext,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = req.Temperature
	}
	for _, a := range req.Attachments {
		if a.IsFileLike() {
			body.Attachments = append(body.Attachments, a)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Reply{}, &Error{Type: ErrTypeUnknown, Message: "failed to encode chat request", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ChatTimeout)
	defer cancel()

	raw, err := c.do(ctx, "chat", http.MethodPost, "/api/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return Reply{}, err
	}

	text, err := extractReply(raw)
	if err != nil {
		c.log.Warn("unreadable chat response, using mock reply",
			zap.Error(err),
			zap.Int("bytes", len(raw)),
		)
		return Reply{Text: MockReply(req.User, req.Text, req.Attachments, true), Mock: true}, nil
	}
	return Reply{Text: text}, nil
}

// extractReply pulls the reply text out of a chat response body.
func extractReply(raw []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", &Error{Type: ErrTypeMalformedResponse, Message: "chat response is not a JSON object", Cause: err}
	}
	for _, name := range replyFields {
		v, ok := fields[name]
		if !ok || isNull(v) {
			continue
		}
		if name == "choices" {
			var choices []struct {
				Message struct {
					Content json.RawMessage `json:"content"`
				} `json:"message"`
			}
			if err := json.Unmarshal(v, &choices); err != nil || len(choices) == 0 || isNull(choices[0].Message.Content) {
				continue
			}
			v = choices[0].Message.Content
		}
		return rawText(v), nil
	}
	return "", ErrMalformed
}

func isNull(v json.RawMessage) bool {
	s := strings.TrimSpace(string(v))
	return s == "" || s == "null"
}

// rawText returns v as a string, or its compact JSON when it is not one.
func rawText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends a request after waiting on the limiter and returns the body of a
// 2xx response.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, requestError(ctx, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint(path), body)
	if err != nil {
		return nil, &Error{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("op", op), zap.Error(err))
		return nil, requestError(ctx, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestError(ctx, op, err)
	}

	c.log.Debug("request complete",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp.StatusCode, raw)
	}
	return raw, nil
}
