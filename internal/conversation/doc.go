// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation implements the retrying chat client behind the
// farming diary and plant-care helper panels.
//
// A Client owns one transcript. Submit appends the user's prompt, then a
// background run sends it to the completion service, retrying HTTP 429
// answers on a growing delay and writing every outcome (reply, retry
// notice, quota notice, error notice) into the transcript. Shells only
// ever read the transcript; they never see raw errors.
//
// # Key Types
//
//   - Client: one conversation, at most one request in flight
//   - Completer: the single-attempt completion call a Client drives
//   - Policy: retry count, delays and the quota window
//   - Variant: system prompt preset (diary or helper)
//   - Attempt: record of one request attempt of the current run
//
// # Usage
//
//	c := conversation.New(completionClient, conversation.Helper,
//	    conversation.WithLogger(logger),
//	    conversation.WithOnChange(func() { program.Send(refreshMsg{}) }),
//	)
//	if c.Submit(input) {
//	    input = ""
//	}
//	for _, m := range c.Transcript() {
//	    render(m)
//	}
package conversation
