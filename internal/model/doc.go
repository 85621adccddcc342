// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the transcript data structures shared by the
// conversation client and the shells that render it.
//
// # Key Types
//
//   - Role: who produced a message (user or assistant)
//   - Kind: what an assistant entry represents (reply, retry notice, ...)
//   - Message: one immutable transcript entry
//   - Transcript: append-only, insertion-ordered message log
//
// # Usage
//
//	t := model.NewTranscript()
//	t.Append(model.NewUserMessage("상추 키우는 방법"))
//	for _, m := range t.Messages() {
//	    fmt.Println(m.Role.DisplayName(), m.Text)
//	}
package model
