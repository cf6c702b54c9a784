// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud sends chat completion requests to OpenAI-compatible
// endpoints (DeepSeek by default).
//
// Each request is built from a RequestConfig snapshot: endpoint, key, model,
// optional proxy and TLS verification. Connect and read timeouts are
// enforced separately so failures can be reported by phase.
//
// # Key Types
//
//   - Client: performs requests, safe for concurrent use
//   - RequestConfig: per-request connection parameters
//   - Result: outcome delivered by Dispatch
//
// # Errors
//
// Every failure is one of *ValidationError, *TimeoutError, *APIError or
// *UnknownError. Use KindOf to branch and Describe for display text.
//
// # Usage
//
//	client := cloud.NewClient(cloud.WithLogger(logger))
//	res := <-client.Dispatch(cfg, conv.BuildRequestMessages(system, text))
//	if res.Err != nil {
//	    fmt.Println(cloud.Describe(res.Err))
//	}
//
// # Security
//
// API keys are never logged; request logs carry only a short SHA-256
// fingerprint. TLS 1.2 is the minimum version.
package cloud
