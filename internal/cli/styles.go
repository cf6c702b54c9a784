// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// Shared styles for line-oriented output. The TUI has its own theme.
var (
	// promptStyle is the REPL input prompt.
	promptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)

	// welcomeStyle is the REPL banner.
	welcomeStyle = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)

	infoStyle    = lipgloss.NewStyle().Foreground(styles.TextSecondary)
	commandStyle = lipgloss.NewStyle().Foreground(styles.Emerald)
	warningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	errorStyle   = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)

	botLabelStyle = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)

	// labelStyle left-aligns key/value listings.
	labelStyle = lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(12)
)

// configureColors applies the CLI color profile to lipgloss. It runs once
// per process before any output.
func configureColors() {
	lipgloss.SetColorProfile(GetColorProfile())
}
