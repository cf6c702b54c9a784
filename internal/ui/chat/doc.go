// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat window for chatdesk.

The window is a single Bubble Tea model holding the input form (prompt,
system prompt, API key and URL, proxy and TLS switches, model selector) and
a scrollable transcript.

# Request Flow

Send asks the session to validate the form. On success the request runs in
a tea.Cmd, off the Update loop, and its result comes back as a
CompletionMsg carrying the request ID. Update hands it to the session,
which ignores results for requests that were cleared in the meantime.

# Usage

	m := chat.New(chat.Options{
	    Session:  session.New(cfg),
	    Client:   cloud.NewClient(),
	    Markdown: cfg.UI.Markdown,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
	    log.Fatal(err)
	}
*/
package chat
