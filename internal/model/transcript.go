// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is an ordered, append-only log of messages. Entries are never
// reordered, deduplicated or edited; the only way to remove them is Reset.
// A Transcript is safe for concurrent use.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]Message, 0, 8)}
}

// Append adds msg at the end of the transcript.
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
}

// Messages returns a copy of all entries in insertion order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent entry and false if the transcript is empty.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Reset removes every entry.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.messages = make([]Message, 0, 8)
	t.mu.Unlock()
}

// =============================================================================
// EXPORT
// =============================================================================

// Markdown renders the transcript as a markdown document, one section per
// entry. Locally generated notices are quoted so they stand apart from
// service replies.
func (t *Transcript) Markdown() string {
	var sb strings.Builder
	for i, m := range t.Messages() {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "**%s**\n\n", m.Role.DisplayName())
		if m.Kind.IsNotice() {
			for _, line := range strings.Split(m.Text, "\n") {
				sb.WriteString("> ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		} else {
			sb.WriteString(m.Text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// JSON encodes the transcript entries as a JSON array.
func (t *Transcript) JSON() ([]byte, error) {
	return json.Marshal(t.Messages())
}
