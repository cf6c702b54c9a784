// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatdesk/internal/session"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case CompletionMsg:
		return m.handleCompletion(msg)

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case spinner.TickMsg:
		if !m.session.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m.send()

	case key.Matches(msg, m.keys.Clear):
		m.session.Clear()
		m.notice = ""
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		return m, m.moveFocus(1)

	case key.Matches(msg, m.keys.PrevField):
		return m, m.moveFocus(-1)

	case key.Matches(msg, m.keys.ToggleProxy):
		m.useProxy = !m.useProxy
		if !m.useProxy && m.focus == fieldProxyURL {
			return m, m.focusField(fieldPrompt)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleTLS):
		m.verifyTLS = !m.verifyTLS
		return m, nil

	case key.Matches(msg, m.keys.CycleModel):
		if len(m.models) > 0 {
			m.modelIdx = (m.modelIdx + 1) % len(m.models)
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.fullHelp = !m.fullHelp
		m.layout()
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	return m.updateFocused(msg)
}

// send validates the form and dispatches the request. Nothing is
// dispatched when validation fails.
func (m Model) send() (tea.Model, tea.Cmd) {
	m.notice = ""

	p, err := m.session.Begin(m.form())
	if err != nil {
		m.logger.Debug("send rejected", "reason", err)
		return m, nil
	}

	m.prompt.Reset()
	m.refreshTranscript()
	return m, tea.Batch(m.spinner.Tick, completeCmd(m.client, p))
}

func (m Model) handleCompletion(msg CompletionMsg) (tea.Model, tea.Cmd) {
	outcome := m.session.Finish(msg.ID, msg.Content, msg.Err)
	if outcome == session.OutcomeStale {
		return m, nil
	}
	m.lastElapsed = msg.Elapsed
	m.refreshTranscript()
	return m, nil
}

func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.notice = fmt.Sprintf("config reload failed: %v", msg.Err)
		m.logger.Warn("config reload failed", "error", msg.Err)
		return m, nil
	}

	prev := m.defaults
	current := m.currentModel()

	m.session.SetConfig(msg.Config)
	m.fillForm(m.session.DefaultForm(), true)

	m.models = slices.Clone(msg.Config.API.Models)
	if i := slices.Index(m.models, current); i >= 0 && current != prev.Model {
		m.modelIdx = i
	} else {
		m.modelIdx = max(0, slices.Index(m.models, msg.Config.API.Model))
	}

	if !m.focusable(m.focus) {
		m.focusField(fieldPrompt)
	}
	m.notice = "config reloaded"
	m.logger.Info("config reloaded")
	return m, nil
}

// updateFocused forwards msg to the focused field.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case fieldPrompt:
		m.prompt, cmd = m.prompt.Update(msg)
	case fieldSystem:
		m.system, cmd = m.system.Update(msg)
	case fieldAPIKey:
		m.apiKey, cmd = m.apiKey.Update(msg)
	case fieldURL:
		m.apiURL, cmd = m.apiURL.Update(msg)
	case fieldProxyURL:
		m.proxyURL, cmd = m.proxyURL.Update(msg)
	}
	return m, cmd
}
