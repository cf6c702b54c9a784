// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
	"github.com/jeranaias/chatdesk/internal/util"
)

// Field heights in text lines, excluding borders.
const (
	promptHeight = 3
	systemHeight = 2
)

// Rows outside the transcript: header, system box, prompt box, credentials
// row, proxy row, status bar, one help line. Boxes add two border lines
// each. The full help adds a line per extra group.
const reservedHeight = 1 + (systemHeight + 2) + (promptHeight + 2) + 3 + 3 + 1 + 1

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes every component for the current window.
func (m *Model) layout() {
	inner := max(m.width-4, 10) // border + padding

	m.prompt.SetWidth(inner)
	m.system.SetWidth(inner)

	half := max((m.width-2)/2-4, 8)
	m.apiKey.Width = half - 10
	m.apiURL.Width = half - 6
	m.proxyURL.Width = max(m.width-44, 10)

	m.viewport.Width = inner
	m.viewport.Height = max(m.height-reservedHeight-(m.helpHeight()-1)-2, 3)

	if m.markdownOn && (m.markdown == nil || m.markdown.Width() != inner) {
		m.markdown = styles.NewMarkdown(inner, m.theme.IsDark)
	}
}

// refreshTranscript re-renders the history into the viewport and scrolls
// to the end.
func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	var blocks []string
	for _, msg := range m.session.Visible() {
		blocks = append(blocks, m.renderMessage(msg))
	}

	if note := m.session.Note(); note != nil {
		blocks = append(blocks, m.theme.ErrorNote.Render(session.NoteLine(note)))
	}

	if len(blocks) == 0 && m.session.Status() == session.StatusCleared {
		return m.theme.Label.Render(session.StatusCleared)
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message) string {
	labelStyle := m.theme.UserLabel
	body := msg.Content
	if msg.Role == model.RoleAssistant {
		labelStyle = m.theme.BotLabel
		if m.markdownOn {
			body = m.markdown.Render(body)
			return labelStyle.Render("["+msg.Role.Label()+"]:") + "\n" + body
		}
	}
	return labelStyle.Render("["+msg.Role.Label()+"]:") + " " + m.theme.Body.Render(body)
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the complete window.
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.theme.Transcript.Width(m.width - 2).Render(m.viewport.View()),
		m.renderBox("", m.system.View(), fieldSystem, m.width),
		m.renderBox("", m.prompt.View(), fieldPrompt, m.width),
		m.renderCredentials(),
		m.renderNetwork(),
		m.renderStatusBar(),
		m.renderHelp(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.Title.Render("chatdesk")
	if m.version != "" {
		title += " " + m.theme.Label.Render(m.version)
	}
	modelName := m.theme.Label.Render("model: ") + m.theme.BotLabel.Render(m.currentModel())
	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(modelName), 1)
	return title + strings.Repeat(" ", gap) + modelName
}

// renderBox draws a bordered field. label prefixes single-line inputs.
func (m Model) renderBox(label, content string, f field, width int) string {
	style := m.theme.Field
	switch {
	case !m.focusable(f):
		style = m.theme.FieldLocked
	case m.focus == f:
		style = m.theme.FieldFocus
	}
	if label != "" {
		content = m.theme.Label.Render(label+": ") + content
	}
	return style.Width(max(width-2, 4)).Render(content)
}

func (m Model) renderCredentials() string {
	half := m.width / 2
	key := m.renderBox("Key", m.apiKey.View(), fieldAPIKey, half)
	url := m.renderBox("URL", m.apiURL.View(), fieldURL, m.width-half)
	return lipgloss.JoinHorizontal(lipgloss.Top, key, url)
}

func (m Model) renderNetwork() string {
	proxy := m.theme.Switch("proxy", m.useProxy, false)
	tls := m.theme.Switch("verify TLS", m.verifyTLS, true)
	switches := lipgloss.NewStyle().Padding(1, 1).Render(proxy + "   " + tls)

	content := m.proxyURL.View()
	if !m.useProxy {
		content = m.theme.SwitchOff.Render(util.TruncateWidth(m.proxyURL.Value(), m.proxyURL.Width))
	}
	box := m.renderBox("Proxy", content, fieldProxyURL, max(m.width-lipgloss.Width(switches), 12))
	return lipgloss.JoinHorizontal(lipgloss.Top, switches, box)
}

func (m Model) renderStatusBar() string {
	status := m.session.Status()

	var left string
	switch {
	case m.session.Busy():
		left = m.theme.StatusBusy.Render(m.spinner.View() + " " + status)
	case status == session.StatusError:
		left = m.theme.StatusError.Render(styles.IconError + " " + status)
	case status == session.StatusDone:
		left = m.theme.StatusReady.Render(styles.IconSuccess + " " + status)
		if m.lastElapsed > 0 {
			left += m.theme.Label.Render(fmt.Sprintf(" (%s)", m.lastElapsed.Round(100*time.Millisecond)))
		}
	case status == session.StatusReady || status == session.StatusCleared:
		left = m.theme.StatusReady.Render(status)
	default:
		// Validation messages.
		left = m.theme.StatusBusy.Render(styles.IconWarning + " " + status)
	}

	right := fmt.Sprintf("%d msgs · ~%d tokens", m.session.Len(), m.session.EstimateTokens())
	if m.notice != "" {
		right = m.notice + " · " + right
	}
	right = m.theme.Label.Render(right)

	inner := max(m.width-2, 10)
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		right = ""
		gap = max(inner-lipgloss.Width(left), 0)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) helpHeight() int {
	if m.fullHelp {
		return len(m.keys.FullHelp())
	}
	return 1
}

func (m Model) renderHelp() string {
	groups := [][]key.Binding{m.keys.ShortHelp()}
	if m.fullHelp {
		groups = m.keys.FullHelp()
	}

	lines := make([]string, 0, len(groups))
	for _, group := range groups {
		parts := make([]string, 0, len(group))
		for _, b := range group {
			h := b.Help()
			parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
		}
		lines = append(lines, strings.Join(parts, "  "))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(lines, "\n"))
}
