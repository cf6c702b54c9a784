// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/ui/chat"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// runTUI starts the full-screen chat window. Config file changes are sent
// to the window as ConfigReloadedMsg.
func (a *App) runTUI(ctx context.Context, env *runEnv) error {
	if !a.interactive() {
		return &UsageError{Msg: "the chat window needs a terminal; use 'chatdesk chat' or 'chatdesk ask'"}
	}

	m := chat.New(chat.Options{
		Session:  env.session,
		Client:   env.client,
		Theme:    styles.NewTheme(styles.ParseMode(env.cfg.UI.Theme)),
		Markdown: env.cfg.UI.Markdown,
		Logger:   env.logger,
		Version:  a.Version,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	a.watchConfig(ctx, env, func(cfg *config.Config, err error) {
		p.Send(chat.ConfigReloadedMsg{Config: cfg, Err: err})
	})

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat window: %w", err)
	}
	return nil
}
