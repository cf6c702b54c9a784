// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// field identifies a focusable form field, in tab order.
type field int

const (
	fieldPrompt field = iota
	fieldSystem
	fieldAPIKey
	fieldURL
	fieldProxyURL
	fieldCount
)

// Options configures a chat Model.
type Options struct {
	Session  *session.Session
	Client   Completer
	Theme    *styles.Theme
	Markdown bool // render assistant turns with glamour
	Logger   *log.Logger
	Version  string
}

// Model is the bubbletea model for the full-screen chat window.
type Model struct {
	session *session.Session
	client  Completer
	theme   *styles.Theme
	keys    KeyMap
	logger  *log.Logger
	version string

	// Form
	prompt    textarea.Model
	system    textarea.Model
	apiKey    textinput.Model
	apiURL    textinput.Model
	proxyURL  textinput.Model
	useProxy  bool
	verifyTLS bool
	models    []string
	modelIdx  int
	focus     field

	// defaults is the form as last filled from config; a reload only
	// replaces fields that still hold these values.
	defaults session.Form

	// Transcript
	viewport    viewport.Model
	markdownOn  bool
	markdown    *styles.Markdown
	spinner     spinner.Model
	lastElapsed time.Duration
	notice      string
	fullHelp    bool

	width  int
	height int
}

// New creates the chat model with the form filled from the session config.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	prompt := textarea.New()
	prompt.Placeholder = "Type a message, Ctrl+S to send"
	prompt.ShowLineNumbers = false
	prompt.CharLimit = 0
	prompt.SetHeight(promptHeight)

	system := textarea.New()
	system.Placeholder = "System prompt (optional, never shown in the transcript)"
	system.ShowLineNumbers = false
	system.CharLimit = 0
	system.SetHeight(systemHeight)

	apiKey := textinput.New()
	apiKey.Prompt = ""
	apiKey.Placeholder = "sk-..."
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	apiURL := textinput.New()
	apiURL.Prompt = ""
	apiURL.Placeholder = "https://api.deepseek.com/v1/chat/completions"

	proxyURL := textinput.New()
	proxyURL.Prompt = ""
	proxyURL.Placeholder = "http://127.0.0.1:7890"

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	m := Model{
		session:    opts.Session,
		client:     opts.Client,
		theme:      theme,
		keys:       DefaultKeyMap(),
		logger:     logger,
		version:    opts.Version,
		prompt:     prompt,
		system:     system,
		apiKey:     apiKey,
		apiURL:     apiURL,
		proxyURL:   proxyURL,
		viewport:   viewport.New(80, 10),
		markdownOn: opts.Markdown,
		spinner:    sp,
		width:      80,
		height:     24,
	}

	m.fillForm(m.session.DefaultForm(), false)
	m.models = slices.Clone(m.session.Config().API.Models)
	m.modelIdx = max(0, slices.Index(m.models, m.defaults.Model))
	m.focusField(fieldPrompt)
	m.layout()
	m.refreshTranscript()
	return m
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// =============================================================================
// FORM STATE
// =============================================================================

// fillForm loads form values. With onlyUntouched set, fields the user has
// edited since the last fill keep their values.
func (m *Model) fillForm(f session.Form, onlyUntouched bool) {
	untouched := func(cur, old string) bool { return !onlyUntouched || cur == old }

	if untouched(m.system.Value(), m.defaults.SystemPrompt) {
		m.system.SetValue(f.SystemPrompt)
	}
	if untouched(m.apiKey.Value(), m.defaults.APIKey) {
		m.apiKey.SetValue(f.APIKey)
	}
	if untouched(m.apiURL.Value(), m.defaults.Endpoint) {
		m.apiURL.SetValue(f.Endpoint)
	}
	if untouched(m.proxyURL.Value(), m.defaults.ProxyURL) {
		m.proxyURL.SetValue(f.ProxyURL)
	}
	if !onlyUntouched || m.useProxy == m.defaults.UseProxy {
		m.useProxy = f.UseProxy
	}
	if !onlyUntouched || m.verifyTLS == m.defaults.VerifyTLS {
		m.verifyTLS = f.VerifyTLS
	}
	m.defaults = f
}

// currentModel returns the selected model name.
func (m Model) currentModel() string {
	if len(m.models) == 0 {
		return m.defaults.Model
	}
	return m.models[m.modelIdx]
}

// form captures the current field values.
func (m Model) form() session.Form {
	f := m.defaults
	f.Prompt = m.prompt.Value()
	f.SystemPrompt = m.system.Value()
	f.APIKey = m.apiKey.Value()
	f.Endpoint = m.apiURL.Value()
	f.Model = m.currentModel()
	f.UseProxy = m.useProxy
	f.ProxyURL = m.proxyURL.Value()
	f.VerifyTLS = m.verifyTLS
	return f
}

// focusable reports whether f can take focus. The proxy URL is editable
// only while the proxy is enabled.
func (m Model) focusable(f field) bool {
	return f != fieldProxyURL || m.useProxy
}

// moveFocus advances focus by delta, skipping locked fields.
func (m *Model) moveFocus(delta int) tea.Cmd {
	next := m.focus
	for range fieldCount {
		next = field((int(next) + delta + int(fieldCount)) % int(fieldCount))
		if m.focusable(next) {
			break
		}
	}
	return m.focusField(next)
}

func (m *Model) focusField(f field) tea.Cmd {
	m.prompt.Blur()
	m.system.Blur()
	m.apiKey.Blur()
	m.apiURL.Blur()
	m.proxyURL.Blur()

	m.focus = f
	switch f {
	case fieldSystem:
		return m.system.Focus()
	case fieldAPIKey:
		return m.apiKey.Focus()
	case fieldURL:
		return m.apiURL.Focus()
	case fieldProxyURL:
		return m.proxyURL.Focus()
	default:
		return m.prompt.Focus()
	}
}
