// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/model"
)

// Configuration constants for the completion API.
const (
	// DefaultEndpoint is the DeepSeek chat completions URL.
	DefaultEndpoint = "https://api.deepseek.com/v1/chat/completions"

	// DefaultModel is the model selected when none is configured.
	DefaultModel = "deepseek-chat"

	// DefaultConnectTimeout bounds TCP connect and TLS handshake.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadTimeout bounds the wait for response headers and the gap
	// between body reads.
	DefaultReadTimeout = 30 * time.Second

	// DefaultTemperature is the usual sampling temperature. Requests carry
	// RequestConfig.Temperature unchanged, zero included.
	DefaultTemperature = 0.7

	// DefaultMaxTokens is the completion length limit sent with every request.
	DefaultMaxTokens = 2000

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// UserAgent is sent with every request. main overrides it with the build version.
var UserAgent = "chatdesk/dev"

// =============================================================================
// REQUEST CONFIGURATION
// =============================================================================

// ProxyConfig controls routing through an HTTP/HTTPS proxy.
type ProxyConfig struct {
	Enabled bool
	URL     string
}

// RequestConfig holds the connection parameters for one request. It is
// rebuilt from the form state every time and never persisted.
type RequestConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	Proxy          ProxyConfig
	VerifyTLS      bool
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Temperature    float64
	MaxTokens      int
}

// withDefaults fills zero timeouts, max tokens and model. Temperature is
// sent as given: 0 is a valid setting.
func (c RequestConfig) withDefaults() RequestConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	return c
}

// Validate checks the fields a request cannot be sent without.
func (c RequestConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &ValidationError{Field: "api_key", Message: "please fill in the API key and URL", Err: ErrMissingAPIKey}
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return &ValidationError{Field: "api_url", Message: "please fill in the API key and URL", Err: ErrMissingEndpoint}
	}
	if u, err := url.Parse(c.Endpoint); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: "api_url", Message: fmt.Sprintf("invalid API URL %q", c.Endpoint), Err: ErrInvalidURL}
	}
	if c.Proxy.Enabled {
		if strings.TrimSpace(c.Proxy.URL) == "" {
			return &ValidationError{Field: "proxy_url", Message: "proxy enabled but no proxy URL set", Err: ErrMissingProxyURL}
		}
		if _, err := parseProxyURL(c.Proxy.URL); err != nil {
			return &ValidationError{Field: "proxy_url", Message: fmt.Sprintf("invalid proxy URL %q", c.Proxy.URL), Err: ErrInvalidURL}
		}
	}
	return nil
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key.
// CLOUD: Secure logging - use fingerprint instead of exposing key fragments.
func (c RequestConfig) KeyFingerprint() string {
	if c.APIKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.APIKey))
	return hex.EncodeToString(h[:4])
}

func parseProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage represents a single message in the request body.
type ChatMessage struct {
	Role    string `json:"role"`    // "user", "assistant", or "system"
	Content string `json:"content"` // The message content
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// ChatResponse represents a response from the chat completions endpoint.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GetContent returns the content of the first choice, or empty string if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

func toChatMessages(messages []model.Message) []ChatMessage {
	out := make([]ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = ChatMessage{Role: m.Role.String(), Content: m.Content}
	}
	return out
}

// =============================================================================
// CLIENT
// =============================================================================

// DialFunc opens a network connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client performs chat completion requests. A Client holds no per-request
// state and is safe for concurrent use.
type Client struct {
	dial   DialFunc
	logger *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the dialer used for new connections.
func WithDialer(dial DialFunc) Option {
	return func(c *Client) { c.dial = dial }
}

// WithLogger sets the logger for request and response summaries.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		dial:   (&net.Dialer{KeepAlive: 30 * time.Second}).DialContext,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the outcome of a dispatched request.
type Result struct {
	Content string
	Err     error
	Elapsed time.Duration
}

// Dispatch runs Complete on its own goroutine. The returned channel receives
// exactly one Result and is then closed. messages is copied before the
// goroutine starts, so the caller may keep mutating its own slice.
func (c *Client) Dispatch(cfg RequestConfig, messages []model.Message) <-chan Result {
	snapshot := slices.Clone(messages)
	ch := make(chan Result, 1)

	go func() {
		defer close(ch)
		start := time.Now()

		var res Result
		func() {
			defer func() {
				if r := recover(); r != nil {
					res.Err = &UnknownError{Err: fmt.Errorf("request worker panicked: %v", r)}
				}
			}()
			res.Content, res.Err = c.Complete(context.Background(), cfg, snapshot)
		}()

		res.Elapsed = time.Since(start)
		ch <- res
	}()

	return ch
}

// Complete sends one chat completion request and returns the content of the
// first choice. It blocks until the response is read or a timeout fires.
//
// Errors are always one of *ValidationError, *TimeoutError, *APIError or
// *UnknownError. There is no retry.
func (c *Client) Complete(ctx context.Context, cfg RequestConfig, messages []model.Message) (string, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	bodyBytes, err := json.Marshal(ChatRequest{
		Model:       cfg.Model,
		Messages:    toChatMessages(messages),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return "", &UnknownError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	transport, err := c.newTransport(cfg)
	if err != nil {
		return "", err
	}
	defer transport.CloseIdleConnections()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", &UnknownError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	setHeaders(req, cfg.APIKey)

	c.logRequest(req, cfg)
	start := time.Now()

	resp, err := (&http.Client{Transport: transport}).Do(req)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	req.Header.Del("Authorization")

	if err != nil {
		c.logger.Debug("request failed", "host", req.URL.Host, "error", err, "elapsed", time.Since(start))
		return "", classify(err)
	}
	defer resp.Body.Close()

	// The header wait is covered by ResponseHeaderTimeout; the body gets an
	// inactivity timer with the same budget.
	body := newIdleReader(resp.Body, cfg.ReadTimeout, cancel)
	defer body.stop()

	data, err := readResponse(body)
	if err != nil {
		if body.expired.Load() {
			return "", &TimeoutError{Phase: PhaseRead, Err: err}
		}
		return "", classify(err)
	}

	c.logResponse(resp, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return "", &UnknownError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return chatResp.GetContent(), nil
}

// newTransport builds a transport for one request. Proxy, TLS verification
// and timeouts all come from cfg, so nothing is shared between requests.
func (c *Client) newTransport(cfg RequestConfig) (*http.Transport, error) {
	// Environment proxies are ignored; only the form decides.
	proxy := func(*http.Request) (*url.URL, error) { return nil, nil }
	if cfg.Proxy.Enabled {
		proxyURL, err := parseProxyURL(cfg.Proxy.URL)
		if err != nil {
			return nil, &ValidationError{Field: "proxy_url", Message: fmt.Sprintf("invalid proxy URL %q", cfg.Proxy.URL), Err: ErrInvalidURL}
		}
		proxy = http.ProxyURL(proxyURL)
	}

	return &http.Transport{
		Proxy:                 proxy,
		DialContext:           c.dialContext(cfg.ConnectTimeout),
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          1,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !cfg.VerifyTLS, // user-controlled, off only when the form says so
		},
	}, nil
}

// dialContext bounds each dial by the connect timeout and marks dials that
// ran out of time, so they can be told apart from read timeouts later.
func (c *Client) dialContext(timeout time.Duration) DialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		conn, err := c.dial(dialCtx, network, addr)
		if err == nil {
			return conn, nil
		}

		// Only our own deadline counts; a cancelled parent is not a timeout.
		if ctx.Err() == nil {
			var netErr net.Error
			if errors.Is(dialCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
				return nil, &dialTimeoutError{addr: addr, err: err}
			}
		}
		return nil, err
	}
}

// setHeaders sets the required headers for completion requests.
func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
//
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// =============================================================================
// CLOUD: Request/Response Logging (without sensitive data)
// =============================================================================

// logRequest logs an API request without exposing sensitive data.
// Headers and body are never logged; the key appears only as a fingerprint.
func (c *Client) logRequest(req *http.Request, cfg RequestConfig) {
	c.logger.Debug("API request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"model", cfg.Model,
		"key", cfg.KeyFingerprint(),
		"proxy", cfg.Proxy.Enabled,
		"verify_tls", cfg.VerifyTLS,
	)
}

// logResponse logs an API response with duration.
func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	c.logger.Debug("API response", "status", resp.StatusCode, "elapsed", duration)
}

// =============================================================================
// BODY READ TIMEOUT
// =============================================================================

// idleReader cancels the request when no body bytes arrive for timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func newIdleReader(r io.Reader, timeout time.Duration, onExpire context.CancelFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.expired.Store(true)
		onExpire()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 && !ir.expired.Load() {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) stop() {
	ir.timer.Stop()
}
