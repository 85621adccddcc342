// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "나"
	case RoleAssistant:
		return "AI"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// KIND TYPE
// =============================================================================

// Kind tells a renderer what an entry represents. User entries are always
// KindPrompt; assistant entries use one of the remaining kinds.
type Kind string

const (
	KindPrompt     Kind = "prompt"
	KindReply      Kind = "reply"
	KindTruncation Kind = "truncation"
	KindRetry      Kind = "retry"
	KindQuota      Kind = "quota"
	KindError      Kind = "error"
)

// IsNotice reports whether the entry was generated locally rather than
// returned by the completion service.
func (k Kind) IsNotice() bool {
	switch k {
	case KindTruncation, KindRetry, KindQuota, KindError:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single transcript entry. Messages are values; once appended
// to a Transcript they are never modified.
type Message struct {
	Role Role   `json:"role"`
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// NewUserMessage creates a user prompt entry.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Kind: KindPrompt, Text: text}
}

// NewAssistantMessage creates an assistant entry of the given kind.
func NewAssistantMessage(kind Kind, text string) Message {
	return Message{Role: RoleAssistant, Kind: kind, Text: text}
}

// IsUser reports whether the message was typed by the user.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}
