// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-labs/farmassist/internal/completion"
	"github.com/sprout-labs/farmassist/internal/config"
	"github.com/sprout-labs/farmassist/internal/conversation"
)

// echoCompleter replies with the system prompt it was given, or blocks
// until the request context ends when block is set.
type echoCompleter struct {
	block bool
}

func (e echoCompleter) Complete(ctx context.Context, system, content string) (*completion.Response, error) {
	if e.block {
		<-ctx.Done()
		return nil, &completion.TransportError{Op: "request", Err: ctx.Err()}
	}
	return &completion.Response{Choices: []completion.Choice{{
		Message: completion.ChatMessage{Role: "assistant", Content: system + "."},
	}}}, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, completer conversation.Completer, cfg Config) (*Manager, *testClock, *config.Holder) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	cfg.Clock = clock.Now
	holder := config.NewHolder(config.Default(), "")
	return NewManager(cfg, NewClientFactory(holder, completer, nil), nil), clock, holder
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 1000, cfg.MaxSessions)
}

func TestManager_CreateGetDelete(t *testing.T) {
	m, _, _ := newTestManager(t, echoCompleter{}, Config{})

	s, err := m.Create("diary")
	require.NoError(t, err)
	assert.Len(t, s.ID, 36)
	assert.Equal(t, "diary", s.Variant.Name)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Delete(s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(s.ID), ErrNotFound)
}

func TestManager_CreateUnknownVariant(t *testing.T) {
	m, _, _ := newTestManager(t, echoCompleter{}, Config{})
	_, err := m.Create("weather")
	assert.ErrorIs(t, err, conversation.ErrUnknownVariant)
	assert.Equal(t, 0, m.Len())
}

func TestManager_MaxSessions(t *testing.T) {
	m, _, _ := newTestManager(t, echoCompleter{}, Config{MaxSessions: 2})
	_, err := m.Create("helper")
	require.NoError(t, err)
	_, err = m.Create("diary")
	require.NoError(t, err)
	_, err = m.Create("helper")
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m, _, _ := newTestManager(t, echoCompleter{}, Config{})

	a, err := m.Create("diary")
	require.NoError(t, err)
	b, err := m.Create("helper")
	require.NoError(t, err)

	require.True(t, a.Client.Submit("일지"))
	require.NoError(t, a.Client.Wait(context.Background()))

	assert.Len(t, a.Client.Transcript(), 2)
	assert.Empty(t, b.Client.Transcript())
	assert.Equal(t, conversation.DiaryPrompt+".", a.Client.Transcript()[1].Text)
}

func TestManager_FactoryUsesCurrentConfig(t *testing.T) {
	m, _, holder := newTestManager(t, echoCompleter{}, Config{})

	before, err := m.Create("helper")
	require.NoError(t, err)

	updated := config.Default()
	updated.Prompts.Helper = "간단히 답하세요"
	updated.Retry.MaxRetries = 5
	holder.Set(updated)

	after, err := m.Create("helper")
	require.NoError(t, err)

	assert.Equal(t, conversation.HelperPrompt, before.Variant.SystemPrompt)
	assert.Equal(t, "간단히 답하세요", after.Variant.SystemPrompt)
	assert.Equal(t, 3, before.Client.Policy().MaxRetries)
	assert.Equal(t, 5, after.Client.Policy().MaxRetries)
}

func TestManager_SweepIdle(t *testing.T) {
	m, clock, _ := newTestManager(t, echoCompleter{}, Config{IdleTimeout: 10 * time.Minute})

	stale, err := m.Create("helper")
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)
	fresh, err := m.Create("diary")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep(clock.Now()))

	_, err = m.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestManager_GetRecordsActivity(t *testing.T) {
	m, clock, _ := newTestManager(t, echoCompleter{}, Config{IdleTimeout: 10 * time.Minute})

	s, err := m.Create("helper")
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)
	_, err = m.Get(s.ID)
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)

	assert.Equal(t, 0, m.Sweep(clock.Now()))
	assert.Equal(t, 9*time.Minute, s.IdleTime(clock.Now()))
}

func TestManager_SweepKeepsBusySessions(t *testing.T) {
	m, clock, _ := newTestManager(t, echoCompleter{block: true}, Config{IdleTimeout: time.Minute})

	s, err := m.Create("helper")
	require.NoError(t, err)
	require.True(t, s.Client.Submit("질문"))

	clock.Advance(time.Hour)
	assert.Equal(t, 0, m.Sweep(clock.Now()))

	require.NoError(t, m.Delete(s.ID))
	assert.False(t, s.Client.Busy())
}

func TestManager_ListOrder(t *testing.T) {
	m, clock, _ := newTestManager(t, echoCompleter{}, Config{})

	first, err := m.Create("helper")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := m.Create("diary")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.NotNil(t, list[0].Messages)
}

func TestManager_RunStopsAndClears(t *testing.T) {
	m, _, _ := newTestManager(t, echoCompleter{}, Config{SweepInterval: 5 * time.Millisecond})
	_, err := m.Create("helper")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, 0, m.Len())
}

// TestManager_ConcurrentAccess exercises the registry from many goroutines.
// Run with: go test -race ./internal/session/
func TestManager_ConcurrentAccess(t *testing.T) {
	m, clock, _ := newTestManager(t, echoCompleter{}, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Create("helper")
			if err != nil {
				t.Error(err)
				return
			}
			_, _ = m.Get(s.ID)
			_ = m.List()
			m.Sweep(clock.Now())
			_ = m.Delete(s.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, m.Len())
}
