// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"math/rand"
	"slices"
	"testing"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_Label(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{RoleSystem, "System"},
		{Role("tool"), "tool"},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			if got := tc.role.Label(); got != tc.want {
				t.Errorf("Label() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage("héllo wörld")
	if got := msg.Preview(100); got != "héllo wörld" {
		t.Errorf("Preview(100) = %q", got)
	}
	if got := msg.Preview(8); got != "héllo..." {
		t.Errorf("Preview(8) = %q, want %q", got, "héllo...")
	}
	multi := NewUserMessage("first line\n  second\tline")
	if got := multi.Preview(100); got != "first line second line" {
		t.Errorf("Preview of multi-line content = %q", got)
	}
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	a := NewUserMessage("a")
	b := NewUserMessage("a")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
}

// =============================================================================
// RENDER TESTS
// =============================================================================

func TestConversation_RenderFormat(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("hi")
	conv.AppendAssistant("hello there")

	got := slices.Collect(conv.Render())
	want := []string{"[You]: hi", "[Assistant]: hello there"}
	if !slices.Equal(got, want) {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestConversation_RenderExcludesSystemAndKeepsOrder(t *testing.T) {
	roles := []Role{RoleSystem, RoleUser, RoleAssistant}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		conv := NewConversation()
		var want []string
		n := rng.Intn(20)
		for i := 0; i < n; i++ {
			role := roles[rng.Intn(len(roles))]
			msg := conv.Append(role, string(rune('a'+i)))
			if role != RoleSystem {
				want = append(want, msg.Line())
			}
		}

		got := slices.Collect(conv.Render())
		if !slices.Equal(got, want) {
			t.Fatalf("run %d: Render() = %q, want %q", run, got, want)
		}
	}
}

func TestConversation_RenderIsRestartable(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("one")
	seq := conv.Render()

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Errorf("second iteration differs: %q vs %q", first, second)
	}

	conv.AppendAssistant("two")
	third := slices.Collect(seq)
	if len(third) != 2 {
		t.Errorf("sequence should reflect later appends, got %q", third)
	}
}

func TestConversation_RenderStopsEarly(t *testing.T) {
	conv := NewConversation()
	for i := 0; i < 5; i++ {
		conv.AppendUser("x")
	}

	count := 0
	for range conv.Render() {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("expected to stop after 2 lines, got %d", count)
	}
}

func TestConversation_ClearThenRenderIsEmpty(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("hi")
	conv.AppendAssistant("hello")
	conv.Clear()

	if got := slices.Collect(conv.Render()); len(got) != 0 {
		t.Errorf("Render() after Clear = %q, want empty", got)
	}
	if conv.Len() != 0 {
		t.Error("conversation should be empty after Clear")
	}
	if _, ok := conv.Last(); ok {
		t.Error("Last() should report false after Clear")
	}
}

// =============================================================================
// REQUEST BUILDING TESTS
// =============================================================================

func TestConversation_BuildRequestMessages(t *testing.T) {
	tests := []struct {
		name      string
		history   []Role
		system    string
		wantRoles []Role
	}{
		{
			name:      "empty history no system",
			wantRoles: []Role{RoleUser},
		},
		{
			name:      "empty history with system",
			system:    "be brief",
			wantRoles: []Role{RoleSystem, RoleUser},
		},
		{
			name:      "blank system prompt is dropped",
			system:    "   \n",
			history:   []Role{RoleUser, RoleAssistant},
			wantRoles: []Role{RoleUser, RoleAssistant, RoleUser},
		},
		{
			name:      "history with system",
			system:    "be brief",
			history:   []Role{RoleUser, RoleAssistant, RoleUser},
			wantRoles: []Role{RoleSystem, RoleUser, RoleAssistant, RoleUser, RoleUser},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv := NewConversation()
			for _, r := range tc.history {
				conv.Append(r, "h")
			}

			msgs := conv.BuildRequestMessages(tc.system, "new")
			var roles []Role
			for _, m := range msgs {
				roles = append(roles, m.Role)
			}
			if !slices.Equal(roles, tc.wantRoles) {
				t.Fatalf("roles = %v, want %v", roles, tc.wantRoles)
			}
			if tc.wantRoles[0] == RoleSystem && msgs[0].Content != tc.system {
				t.Errorf("system content = %q, want %q", msgs[0].Content, tc.system)
			}
			if last := msgs[len(msgs)-1]; last.Content != "new" {
				t.Errorf("last message content = %q, want %q", last.Content, "new")
			}
		})
	}
}

func TestConversation_BuildRequestMessagesDoesNotMutate(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("a")
	conv.AppendAssistant("b")
	before := slices.Collect(conv.Visible())

	msgs := conv.BuildRequestMessages("sys", "c")
	msgs[1].Content = "changed"

	after := slices.Collect(conv.Visible())
	if !slices.Equal(before, after) {
		t.Errorf("history mutated: before %v, after %v", before, after)
	}
	if conv.Len() != 2 {
		t.Errorf("Len() = %d, want 2", conv.Len())
	}
}

func TestConversation_BuildOrderIndependentOfCallOrder(t *testing.T) {
	conv := NewConversation()

	// Build before and after appends; each build sees the history at call time.
	early := conv.BuildRequestMessages("sys", "q1")
	conv.AppendUser("q1")
	conv.AppendAssistant("a1")
	late := conv.BuildRequestMessages("sys", "q2")

	if len(early) != 2 || early[0].Role != RoleSystem || early[1].Content != "q1" {
		t.Errorf("early build = %v", early)
	}

	want := []string{"sys", "q1", "a1", "q2"}
	var got []string
	for _, m := range late {
		got = append(got, m.Content)
	}
	if !slices.Equal(got, want) {
		t.Errorf("late build contents = %q, want %q", got, want)
	}
}

func TestConversation_EstimateTokens(t *testing.T) {
	conv := NewConversation()
	if conv.EstimateTokens() != 0 {
		t.Error("empty conversation should estimate 0 tokens")
	}
	conv.AppendUser("12345678")
	if got := conv.EstimateTokens(); got != 6 {
		t.Errorf("EstimateTokens() = %d, want 6", got)
	}
}
