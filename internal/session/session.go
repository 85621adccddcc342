// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/model"
)

// =============================================================================
// SESSION
// =============================================================================

// Session is one conversation owned by the Manager.
type Session struct {
	ID      string
	Variant conversation.Variant
	Client  *conversation.Client

	mu           sync.Mutex
	createdAt    time.Time
	lastActivity time.Time
}

func newSession(id string, variant conversation.Variant, client *conversation.Client, now time.Time) *Session {
	return &Session{
		ID:           id,
		Variant:      variant,
		Client:       client,
		createdAt:    now,
		lastActivity: now,
	}
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastActivity) {
		s.lastActivity = now
	}
	s.mu.Unlock()
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// IdleTime returns how long the session has been inactive as of now.
func (s *Session) IdleTime(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	idle := now.Sub(s.lastActivity)
	if idle < 0 {
		return 0
	}
	return idle
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status is a point-in-time view of a session.
type Status struct {
	ID           string          `json:"id"`
	Variant      string          `json:"variant"`
	Busy         bool            `json:"busy"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`
	Messages     []model.Message `json:"messages"`
}

// Status snapshots the session, including its transcript.
func (s *Session) Status() Status {
	s.mu.Lock()
	created, last := s.createdAt, s.lastActivity
	s.mu.Unlock()

	msgs := s.Client.Transcript()
	if msgs == nil {
		msgs = []model.Message{}
	}
	return Status{
		ID:           s.ID,
		Variant:      s.Variant.Name,
		Busy:         s.Client.Busy(),
		CreatedAt:    created,
		LastActivity: last,
		Messages:     msgs,
	}
}
