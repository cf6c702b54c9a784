// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout
	Title       lipgloss.Style
	Label       lipgloss.Style
	Field       lipgloss.Style
	FieldFocus  lipgloss.Style
	FieldLocked lipgloss.Style

	// Transcript
	Transcript lipgloss.Style
	UserLabel  lipgloss.Style
	BotLabel   lipgloss.Style
	Body       lipgloss.Style
	ErrorNote  lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusReady  lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusError  lipgloss.Style
	SwitchOn     lipgloss.Style
	SwitchOff    lipgloss.Style
	SwitchDanger lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Spinner      lipgloss.Style
}

// Mode selects the background variant.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// ParseMode maps a config value to a Mode. Unknown values mean auto.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDark:
		return ModeDark
	case ModeLight:
		return ModeLight
	default:
		return ModeAuto
	}
}

// NewTheme creates a theme, detecting the terminal background in auto mode.
func NewTheme(mode Mode) *Theme {
	profile := termenv.ColorProfile()

	isDark := true
	switch mode {
	case ModeLight:
		isDark = false
	case ModeAuto:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	return newTheme(isDark, profile)
}

func newTheme(isDark bool, profile termenv.Profile) *Theme {
	border := lipgloss.RoundedBorder()

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,

		Title: lipgloss.NewStyle().Bold(true).Foreground(Cyan),
		Label: lipgloss.NewStyle().Foreground(TextSecondary),
		Field: lipgloss.NewStyle().
			Border(border).
			BorderForeground(Overlay).
			Padding(0, 1),
		Transcript: lipgloss.NewStyle().
			Border(border).
			BorderForeground(Overlay).
			Padding(0, 1),
		UserLabel: lipgloss.NewStyle().Bold(true).Foreground(Cyan),
		BotLabel:  lipgloss.NewStyle().Bold(true).Foreground(Purple),
		Body:      lipgloss.NewStyle().Foreground(TextPrimary),
		ErrorNote: lipgloss.NewStyle().Bold(true).Foreground(Rose),

		StatusBar:    lipgloss.NewStyle().Background(SurfaceDim).Foreground(TextSecondary).Padding(0, 1),
		StatusReady:  lipgloss.NewStyle().Foreground(Emerald),
		StatusBusy:   lipgloss.NewStyle().Foreground(Amber),
		StatusError:  lipgloss.NewStyle().Bold(true).Foreground(Rose),
		SwitchOn:     lipgloss.NewStyle().Foreground(Emerald),
		SwitchOff:    lipgloss.NewStyle().Foreground(TextMuted),
		SwitchDanger: lipgloss.NewStyle().Bold(true).Foreground(Amber),
		ShortcutKey:  lipgloss.NewStyle().Bold(true).Foreground(TextSecondary),
		ShortcutDesc: lipgloss.NewStyle().Foreground(TextMuted),
		Spinner:      lipgloss.NewStyle().Foreground(Amber),
	}
	t.FieldFocus = t.Field.BorderForeground(FocusRing)
	t.FieldLocked = t.Field.BorderStyle(lipgloss.HiddenBorder()).Foreground(TextMuted)
	return t
}

// Switch renders a labelled on/off indicator. danger styles the "off"
// state as a warning, for switches whose off state is unsafe.
func (t *Theme) Switch(label string, on, danger bool) string {
	switch {
	case on:
		return t.SwitchOn.Render(IconOn + " " + label)
	case danger:
		return t.SwitchDanger.Render(IconWarning + " " + label)
	default:
		return t.SwitchOff.Render(IconOff + " " + label)
	}
}
