// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session ties one conversation to the input form.
//
// A Session validates what the user typed, builds the message list for the
// request, guards against a second request while one is in flight, and
// applies the result when it comes back. It never performs I/O itself.
//
// # Usage
//
//	s := session.New(cfg)
//	p, err := s.Begin(form)
//	if err != nil {
//	    status(s.Status()) // nothing was dispatched
//	    return
//	}
//	res := <-client.Dispatch(p.Config, p.Messages)
//	s.Finish(p.ID, res.Content, res.Err)
//	render(s.Transcript())
package session
