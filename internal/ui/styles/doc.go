// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the chatdesk TUI.
//
// Colors are lipgloss AdaptiveColor values. NewTheme detects the terminal
// background with termenv unless the config forces dark or light.
package styles
