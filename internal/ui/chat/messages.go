// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatdesk/internal/cloud"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// CompletionMsg carries the result of one request back to Update. ID is the
// Pending ID it was dispatched with.
type CompletionMsg struct {
	ID      string
	Content string
	Err     error
	Elapsed time.Duration
}

// ConfigReloadedMsg is sent when the config file changed on disk.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// Completer performs one blocking completion request. *cloud.Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, cfg cloud.RequestConfig, messages []model.Message) (string, error)
}

// completeCmd runs the request off the UI loop. bubbletea delivers the
// returned CompletionMsg to Update exactly once.
func completeCmd(c Completer, p *session.Pending) tea.Cmd {
	return func() (msg tea.Msg) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				msg = CompletionMsg{
					ID:      p.ID,
					Err:     &cloud.UnknownError{Err: fmt.Errorf("request worker panicked: %v", r)},
					Elapsed: time.Since(start),
				}
			}
		}()

		content, err := c.Complete(context.Background(), p.Config, p.Messages)
		return CompletionMsg{
			ID:      p.ID,
			Content: content,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
