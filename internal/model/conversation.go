// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"iter"
	"strings"
)

// Conversation is the ordered history of a chat. The system prompt is not part
// of the history; it is prepended when a request is built.
//
// A Conversation is not safe for concurrent use. It belongs to the UI loop;
// workers only ever see the slices returned by BuildRequestMessages.
type Conversation struct {
	messages []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{messages: make([]Message, 0)}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the end of the history and returns it.
func (c *Conversation) Append(role Role, content string) Message {
	msg := NewMessage(role, content)
	c.messages = append(c.messages, msg)
	return msg
}

// AppendUser adds a user turn.
func (c *Conversation) AppendUser(content string) Message {
	return c.Append(RoleUser, content)
}

// AppendAssistant adds an assistant turn.
func (c *Conversation) AppendAssistant(content string) Message {
	return c.Append(RoleAssistant, content)
}

// Clear removes all messages from the conversation.
func (c *Conversation) Clear() {
	c.messages = make([]Message, 0)
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// =============================================================================
// REQUEST BUILDING
// =============================================================================

// BuildRequestMessages returns the list to send to the completion API:
// the system prompt (when non-blank), then the history, then the new user
// turn. The history itself is left untouched and the returned slice shares no
// backing array with it.
func (c *Conversation) BuildRequestMessages(systemPrompt, newUserText string) []Message {
	out := make([]Message, 0, len(c.messages)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, NewSystemMessage(systemPrompt))
	}
	out = append(out, c.messages...)
	return append(out, NewUserMessage(newUserText))
}

// =============================================================================
// RENDERING
// =============================================================================

// Visible yields the messages shown in the transcript, in history order.
// System messages are skipped.
func (c *Conversation) Visible() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for _, msg := range c.messages {
			if msg.Role == RoleSystem {
				continue
			}
			if !yield(msg) {
				return
			}
		}
	}
}

// Render yields one "[label]: content" line per visible message. The sequence
// reads the history when iterated, so ranging over it again reflects later
// appends.
func (c *Conversation) Render() iter.Seq[string] {
	return func(yield func(string) bool) {
		for msg := range c.Visible() {
			if !yield(msg.Line()) {
				return
			}
		}
	}
}

// EstimateTokens estimates the total token count of the history.
func (c *Conversation) EstimateTokens() int {
	total := 0
	for _, msg := range c.messages {
		// ~4 tokens of per-message overhead
		total += msg.EstimateTokens() + 4
	}
	return total
}
