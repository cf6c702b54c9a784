// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func TestParseMode(t *testing.T) {
	testCases := map[string]Mode{
		"dark":   ModeDark,
		" Light": ModeLight,
		"auto":   ModeAuto,
		"":       ModeAuto,
		"neon":   ModeAuto,
	}
	for in, want := range testCases {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewTheme_ForcedModes(t *testing.T) {
	if th := NewTheme(ModeLight); th.IsDark {
		t.Error("light mode should not be dark")
	}
	if th := NewTheme(ModeDark); !th.IsDark {
		t.Error("dark mode should be dark")
	}
}

func TestSwitch_ShapesCarryState(t *testing.T) {
	th := newTheme(true, termenv.Ascii)

	if got := th.Switch("proxy", true, false); !strings.Contains(got, IconOn) {
		t.Errorf("on switch = %q, want %q", got, IconOn)
	}
	if got := th.Switch("proxy", false, false); !strings.Contains(got, IconOff) {
		t.Errorf("off switch = %q, want %q", got, IconOff)
	}
	if got := th.Switch("verify TLS", false, true); !strings.Contains(got, IconWarning) {
		t.Errorf("danger switch = %q, want %q", got, IconWarning)
	}
}
