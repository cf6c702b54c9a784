// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: ordered chat history with request building and rendering
//   - Message: single immutable turn with role and content
//   - Role: message role enumeration (system, user, assistant)
//
// # Usage
//
//	conv := model.NewConversation()
//	msgs := conv.BuildRequestMessages("You are a translator.", "Hello!")
//	conv.AppendUser("Hello!")
//	// ... send msgs, then:
//	conv.AppendAssistant("Bonjour !")
//
//	for line := range conv.Render() {
//	    fmt.Println(line) // [You]: Hello!  /  [Assistant]: Bonjour !
//	}
package model
