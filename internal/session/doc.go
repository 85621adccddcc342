// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps the set of live conversations for multi-user
// surfaces such as the HTTP API.
//
// Each Session wraps one conversation.Client under a random UUID. Sessions
// that stay idle longer than the configured timeout are discarded by the
// sweeper; a session with a request in flight is never swept.
//
// # Key Types
//
//   - Manager: Registry of sessions with idle expiry
//   - Session: One conversation plus its activity timestamps
//   - Factory: Builds the conversation client for a new session
//   - Status: Point-in-time view of a session
//
// # Usage
//
//	mgr := session.NewManager(session.DefaultConfig(),
//	    session.NewClientFactory(holder, completionClient, logger), logger)
//	go mgr.Run(ctx)
//
//	s, err := mgr.Create("helper")
//	s.Client.Submit("상추 키우는 방법")
package session
