// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sprout-labs/farmassist/internal/conversation"
)

// Error variables for registry operations.
var (
	// ErrNotFound is returned for unknown or expired session IDs.
	ErrNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when the registry is full.
	ErrTooManySessions = errors.New("too many sessions")
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Config holds configuration for the session manager.
type Config struct {
	// IdleTimeout discards sessions inactive for longer (default: 30 minutes).
	IdleTimeout time.Duration

	// SweepInterval is how often Run looks for idle sessions (default: 1 minute).
	SweepInterval time.Duration

	// MaxSessions caps the registry (default: 1000).
	MaxSessions int

	// Clock replaces time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: time.Minute,
		MaxSessions:   1000,
	}
}

// Manager is a registry of live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg     Config
	factory Factory
	now     func() time.Time
	logger  *slog.Logger
}

// NewManager creates an empty registry. Zero fields of cfg take defaults.
func NewManager(cfg Config, factory Factory, logger *slog.Logger) *Manager {
	d := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = d.IdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = d.SweepInterval
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = d.MaxSessions
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		factory:  factory,
		now:      now,
		logger:   logger,
	}
}

// Create starts a session for the named variant.
func (m *Manager) Create(variantName string) (*Session, error) {
	variant, err := conversation.LookupVariant(variantName)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	client := m.factory(variant)
	s := newSession(uuid.NewString(), client.Variant(), client, m.now())
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session created", "session", s.ID, "variant", variant.Name, "sessions", count)
	return s, nil
}

// Get returns the session and records activity on it.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.Touch(m.now())
	return s, nil
}

// List returns the status of every session, oldest first.
func (m *Manager) List() []Status {
	m.mu.RLock()
	out := make([]Status, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Status())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete discards a session, abandoning any in-flight request.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Client.Reset()
	m.logger.Info("session deleted", "session", id)
	return nil
}

// Sweep discards sessions idle longer than the timeout as of now and
// returns how many were removed. Busy sessions are kept.
func (m *Manager) Sweep(now time.Time) int {
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Client.Busy() || s.IdleTime(now) <= m.cfg.IdleTimeout {
			continue
		}
		expired = append(expired, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Client.Reset()
		m.logger.Info("session expired", "session", s.ID, "idle", s.IdleTime(now).Round(time.Second))
	}
	return len(expired)
}

// Run sweeps on SweepInterval until ctx is done, then discards every
// remaining session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Close discards all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Client.Reset()
	}
}
