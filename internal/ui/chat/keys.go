// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Send        key.Binding
	Clear       key.Binding
	NextField   key.Binding
	PrevField   key.Binding
	ToggleProxy key.Binding
	ToggleTLS   key.Binding
	CycleModel  key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default key bindings. None of them collide
// with editing keys in the text fields.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("ctrl+s", "alt+enter"),
			key.WithHelp("C-s", "send"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear history"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "prev field"),
		),
		ToggleProxy: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "proxy"),
		),
		ToggleTLS: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "verify TLS"),
		),
		CycleModel: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "model"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Clear, k.NextField, k.ToggleProxy, k.ToggleTLS, k.CycleModel, k.Help, k.Quit}
}

// FullHelp groups every binding, one row per group. F1 toggles it.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Clear, k.Help, k.Quit},
		{k.NextField, k.PrevField, k.PageUp, k.PageDown},
		{k.ToggleProxy, k.ToggleTLS, k.CycleModel},
	}
}
