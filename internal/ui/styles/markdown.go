// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders assistant replies. A nil *Markdown, or a renderer that
// failed to build, passes text through unchanged.
//
// USABILITY: Renders markdown responses with syntax highlighting and formatting.
type Markdown struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdown builds a renderer for the given wrap width. dark selects the
// glamour dark or light style; auto-detection is left to the caller so the
// TUI does not query the terminal while it owns it.
func NewMarkdown(width int, dark bool) *Markdown {
	if width < 20 {
		width = 20
	}
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Markdown{width: width}
	}
	return &Markdown{renderer: r, width: width}
}

// Width returns the wrap width the renderer was built for.
func (m *Markdown) Width() int {
	if m == nil {
		return 0
	}
	return m.width
}

// Render returns content as styled terminal text, or content unchanged if
// rendering is unavailable or fails.
func (m *Markdown) Render(content string) string {
	if m == nil || m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
