// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jeranaias/chatdesk/internal/cloud"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/util"
)

// Validation sentinels. Begin wraps them in a *cloud.ValidationError.
var (
	ErrEmptyPrompt        = errors.New("please enter a message")
	ErrMissingCredentials = errors.New("please fill in the API key and URL")
	ErrMissingProxyURL    = errors.New("proxy enabled but no proxy URL set")
	ErrBusy               = errors.New("a request is already in progress")
)

// Status bar texts.
const (
	StatusReady      = "ready"
	StatusProcessing = "processing..."
	StatusDone       = "done"
	StatusError      = "error"
	StatusCleared    = "history cleared"
)

// =============================================================================
// FORM
// =============================================================================

// Form is the raw state of the input form at the moment Send is pressed.
type Form struct {
	Prompt       string
	SystemPrompt string
	APIKey       string
	Endpoint     string
	Model        string
	UseProxy     bool
	ProxyURL     string
	VerifyTLS    bool

	// Not shown in the form; carried over from config.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Temperature    float64
	MaxTokens      int
}

// FormFromConfig returns a form pre-filled from cfg with an empty prompt.
func FormFromConfig(cfg *config.Config) Form {
	return Form{
		SystemPrompt:   cfg.API.SystemPrompt,
		APIKey:         cfg.API.Key,
		Endpoint:       cfg.API.URL,
		Model:          cfg.API.Model,
		UseProxy:       cfg.Network.ProxyEnabled,
		ProxyURL:       cfg.Network.ProxyURL,
		VerifyTLS:      cfg.Network.VerifyTLS,
		ConnectTimeout: cfg.ConnectTimeoutDuration(),
		ReadTimeout:    cfg.ReadTimeoutDuration(),
		Temperature:    cfg.Generation.Temperature,
		MaxTokens:      cfg.Generation.MaxTokens,
	}
}

// RequestConfig converts the form into per-request connection settings.
// The proxy URL is dropped when the proxy is off.
func (f Form) RequestConfig() cloud.RequestConfig {
	rc := cloud.RequestConfig{
		Endpoint:       strings.TrimSpace(f.Endpoint),
		APIKey:         strings.TrimSpace(f.APIKey),
		Model:          strings.TrimSpace(f.Model),
		VerifyTLS:      f.VerifyTLS,
		ConnectTimeout: f.ConnectTimeout,
		ReadTimeout:    f.ReadTimeout,
		Temperature:    f.Temperature,
		MaxTokens:      f.MaxTokens,
	}
	if f.UseProxy {
		rc.Proxy = cloud.ProxyConfig{Enabled: true, URL: strings.TrimSpace(f.ProxyURL)}
	}
	return rc
}

// =============================================================================
// SESSION
// =============================================================================

// Pending is a request accepted by Begin and not yet finished. It is a
// snapshot; the worker needs nothing else from the session.
type Pending struct {
	ID       string
	Config   cloud.RequestConfig
	Messages []model.Message
	Started  time.Time
}

// Outcome reports what Finish did with a result.
type Outcome int

const (
	OutcomeReply Outcome = iota // assistant turn appended
	OutcomeError                // error note recorded
	OutcomeStale                // result ignored: not the in-flight request
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeReply:
		return "reply"
	case OutcomeError:
		return "error"
	default:
		return "stale"
	}
}

// Session owns one conversation and the state around it: the in-flight
// request, the status text and the trailing error note.
//
// At most one request is on the network at a time. A request orphaned by
// Clear still holds the guard until its result arrives, and that result is
// dropped.
//
// Front-ends call it only from their UI loop; the mutex covers config
// reload callbacks and tests.
type Session struct {
	mu       sync.Mutex
	cfg      *config.Config
	conv     *model.Conversation
	inflight string // request whose result will be applied
	orphan   string // cleared request still on the network
	note     error
	status   string
	logger   *log.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New creates an empty session using cfg for form defaults.
func New(cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Session{
		cfg:    cfg,
		conv:   model.NewConversation(),
		status: StatusReady,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the config the session was created or last updated with.
func (s *Session) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig replaces the form defaults after a reload. History is kept.
func (s *Session) SetConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// DefaultForm returns a form filled from the current config.
func (s *Session) DefaultForm() Form {
	return FormFromConfig(s.Config())
}

// Begin validates form and, if it is acceptable, records the user turn and
// returns the request to dispatch. On error nothing changes except the
// status text, and nothing must be dispatched.
func (s *Session) Begin(form Form) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt := util.NormalizeInput(form.Prompt)

	if err := validateForm(prompt, form); err != nil {
		s.status = cloud.Describe(err)
		return nil, err
	}
	if s.inflight != "" || s.orphan != "" {
		err := &cloud.ValidationError{Field: "request", Message: ErrBusy.Error(), Err: ErrBusy}
		s.status = err.Message
		return nil, err
	}

	messages := s.conv.BuildRequestMessages(util.NormalizeInput(form.SystemPrompt), prompt)
	s.conv.AppendUser(prompt)

	p := &Pending{
		ID:       uuid.NewString(),
		Config:   form.RequestConfig(),
		Messages: messages,
		Started:  time.Now(),
	}
	s.inflight = p.ID
	s.note = nil
	s.status = StatusProcessing

	s.logger.Info("request dispatched",
		"id", p.ID,
		"model", p.Config.Model,
		"messages", len(messages),
		"proxy", p.Config.Proxy.Enabled,
	)
	return p, nil
}

func validateForm(prompt string, form Form) error {
	if prompt == "" {
		return &cloud.ValidationError{Field: "prompt", Message: ErrEmptyPrompt.Error(), Err: ErrEmptyPrompt}
	}
	if strings.TrimSpace(form.APIKey) == "" || strings.TrimSpace(form.Endpoint) == "" {
		return &cloud.ValidationError{Field: "credentials", Message: ErrMissingCredentials.Error(), Err: ErrMissingCredentials}
	}
	if form.UseProxy && strings.TrimSpace(form.ProxyURL) == "" {
		return &cloud.ValidationError{Field: "proxy_url", Message: ErrMissingProxyURL.Error(), Err: ErrMissingProxyURL}
	}
	return nil
}

// Finish applies the result of the request with the given id. Results for
// any other id are ignored; the result of a cleared request releases the
// busy guard and is then dropped.
func (s *Session) Finish(id, content string, err error) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" && id == s.orphan {
		s.orphan = ""
		s.logger.Debug("cleared request finished", "id", id)
		return OutcomeStale
	}
	if id == "" || id != s.inflight {
		s.logger.Debug("stale result ignored", "id", id)
		return OutcomeStale
	}
	s.inflight = ""

	if err != nil {
		s.note = err
		s.status = StatusError
		s.logger.Warn("request failed", "id", id, "kind", cloud.KindOf(err), "error", err)
		return OutcomeError
	}

	s.conv.AppendAssistant(content)
	s.status = StatusDone
	s.logger.Info("request complete", "id", id, "chars", len(content))
	return OutcomeReply
}

// Clear empties the history and the error note. A request still in flight
// is orphaned: its result will be reported stale, and Begin refuses new
// requests until it arrives.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conv.Clear()
	s.note = nil
	if s.inflight != "" {
		s.orphan = s.inflight
		s.inflight = ""
	}
	s.status = StatusCleared
	s.logger.Info("history cleared")
}

// Busy reports whether a request whose result will be shown is in flight.
// An orphaned request does not count; Begin still refuses while it runs.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != ""
}

// Status returns the status bar text.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Note returns the trailing error, if the last request failed.
func (s *Session) Note() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note
}

// Visible returns the messages shown in the transcript.
func (s *Session) Visible() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(s.conv.Visible())
}

// Last returns the most recent message in the history.
func (s *Session) Last() (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Last()
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Len()
}

// EstimateTokens returns a rough token count for the history.
func (s *Session) EstimateTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.EstimateTokens()
}

// Transcript returns the rendered history followed by the error note, if any.
func (s *Session) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := slices.Collect(s.conv.Render())
	if s.note != nil {
		lines = append(lines, NoteLine(s.note))
	}
	return lines
}

// NoteLine formats err as the trailing transcript note.
func NoteLine(err error) string {
	msg := cloud.Describe(err)
	if strings.HasPrefix(msg, "Error: ") {
		return msg
	}
	return fmt.Sprintf("Error: %s", msg)
}
