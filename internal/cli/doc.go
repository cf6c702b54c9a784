// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatdesk command line.
//
// Commands:
//
//	chatdesk [tui]                 full-screen chat window
//	chatdesk chat                  line-oriented chat with input history
//	chatdesk ask "question"        one-shot question
//	chatdesk config show|path|init configuration helpers
//	chatdesk version               version information
//
// Global flags (--config, --model, --url, --system, --proxy, --insecure,
// --log-level, --no-markdown) override the config file and environment.
// Exit codes are listed in errors.go.
package cli
