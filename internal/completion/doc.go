// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion implements a client for an OpenAI-compatible chat
// completions endpoint.
//
// Each call to Complete issues exactly one HTTP request. Retrying is the
// caller's decision; the package only classifies failures so the caller can
// make it:
//
//   - ErrRateLimited: HTTP 429 (wrapped by *ServiceError)
//   - *ServiceError: any other non-2xx status, with the server's error.message
//   - *TransportError: network failure, timeout, malformed or empty body
//
// # Usage
//
//	client, err := completion.New(completion.Options{APIKey: key})
//	resp, err := client.Complete(ctx, systemPrompt, "상추 키우는 방법")
//	if errors.Is(err, completion.ErrRateLimited) {
//	    // back off
//	}
//	fmt.Println(resp.Content())
//
// # Security
//
// The bearer credential is supplied by the caller, kept in memory only and
// never written to logs.
package completion
