// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question.
//
// Examples:
//
//	chatdesk ask "What is a goroutine?"
//	chatdesk ask --model deepseek-reasoner "Prove that sqrt(2) is irrational"
//	git diff | chatdesk ask --system "Review this diff"
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// maxStdinQuery bounds a question read from stdin.
const maxStdinQuery = 1 << 20

// runAsk sends one question and prints the answer to stdout. Without a
// question argument the question is read from stdin.
func (a *App) runAsk(ctx context.Context, env *runEnv) error {
	query := env.args.Query
	if query == "" && !a.interactive() {
		data, err := io.ReadAll(io.LimitReader(a.Stdin, maxStdinQuery))
		if err != nil {
			return &CommandError{Command: "ask", Action: "read", Reason: "cannot read stdin", Err: err}
		}
		query = string(data)
	}

	form := env.session.DefaultForm()
	form.Prompt = query
	p, err := env.session.Begin(form)
	if err != nil {
		return err
	}

	content, err := env.client.Complete(ctx, p.Config, p.Messages)
	env.session.Finish(p.ID, content, err)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.Stdout, a.renderAnswer(env, content))
	return nil
}

// renderAnswer renders markdown on a terminal and returns plain text for
// pipes.
func (a *App) renderAnswer(env *runEnv, content string) string {
	if !env.cfg.UI.Markdown || !a.interactive() {
		return content
	}
	theme := styles.NewTheme(styles.ParseMode(env.cfg.UI.Theme))
	md := styles.NewMarkdown(GetTerminalWidth()-2, theme.IsDark)
	return strings.TrimRight(md.Render(content), "\n")
}
