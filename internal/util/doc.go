// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the front-ends.
//
// String Utilities:
//   - TruncateRunes, TruncateWidth: UTF-8 and display-width safe truncation
//   - NormalizeInput: NFC normalization and cleanup of typed prompts
//   - SingleLine: whitespace folding for one-line previews
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
package util
