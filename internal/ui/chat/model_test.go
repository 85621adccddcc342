// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-labs/farmassist/internal/completion"
	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/ui/styles"
)

// gateCompleter replies with reply once release is closed, or at once when
// release is nil.
type gateCompleter struct {
	reply   string
	release chan struct{}
}

func (g *gateCompleter) Complete(ctx context.Context, system, content string) (*completion.Response, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, &completion.TransportError{Op: "request", Err: ctx.Err()}
		}
	}
	return &completion.Response{Choices: []completion.Choice{{
		Message: completion.ChatMessage{Role: "assistant", Content: g.reply},
	}}}, nil
}

func newTestModel(t *testing.T, completer conversation.Completer) (Model, *conversation.Client, *conversation.Client) {
	t.Helper()
	diary := conversation.New(completer, conversation.Diary)
	helper := conversation.New(completer, conversation.Helper)
	t.Cleanup(func() {
		diary.Reset()
		helper.Reset()
	})

	m := New(Options{
		Theme:    styles.NewTheme(styles.ThemeDark),
		Clients:  []*conversation.Client{diary, helper},
		FarmName: "햇살농장",
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), diary, helper
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(tea.KeyMsg{Type: k})
	return updated.(Model), cmd
}

func waitIdle(t *testing.T, c *conversation.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestModel_SubmitClearsInputWhenAccepted(t *testing.T) {
	m, diary, _ := newTestModel(t, &gateCompleter{reply: "고추 모종 50주를 심었습니다."})

	m.SetInput("고추 모종 심음")
	m, _ = press(t, m, tea.KeyEnter)

	assert.Empty(t, m.Input())
	waitIdle(t, diary)

	m2, _ := m.Update(ChangedMsg{})
	view := m2.View()
	assert.Contains(t, view, "고추 모종 심음")
	assert.Contains(t, view, "50주를")
}

func TestModel_BlankSubmitKeepsInput(t *testing.T) {
	m, diary, _ := newTestModel(t, &gateCompleter{reply: "ok."})

	m.SetInput("   ")
	m, _ = press(t, m, tea.KeyEnter)

	assert.Equal(t, "   ", m.Input())
	assert.Empty(t, diary.Transcript())
}

func TestModel_SubmitWhileBusyKeepsInput(t *testing.T) {
	gate := &gateCompleter{reply: "끝.", release: make(chan struct{})}
	m, diary, _ := newTestModel(t, gate)

	m.SetInput("첫 질문")
	m, _ = press(t, m, tea.KeyEnter)
	require.True(t, diary.Busy())
	assert.Contains(t, m.View(), "답변을 기다리는 중")

	m.SetInput("두 번째")
	m, _ = press(t, m, tea.KeyEnter)
	assert.Equal(t, "두 번째", m.Input())
	assert.Len(t, diary.Transcript(), 1)

	close(gate.release)
	waitIdle(t, diary)
}

func TestModel_TabSwitchesPanels(t *testing.T) {
	gate := &gateCompleter{reply: "끝.", release: make(chan struct{})}
	m, diary, helper := newTestModel(t, gate)
	assert.Equal(t, 0, m.Active())

	m.SetInput("일지 내용")
	m, _ = press(t, m, tea.KeyEnter)
	require.True(t, diary.Busy())

	m, _ = press(t, m, tea.KeyTab)
	assert.Equal(t, 1, m.Active())
	assert.Empty(t, m.Input(), "each panel keeps its own input")

	// The helper panel is usable while the diary waits.
	m.SetInput("병충해 질문")
	m, _ = press(t, m, tea.KeyEnter)
	assert.True(t, helper.Busy())

	m, _ = press(t, m, tea.KeyShiftTab)
	assert.Equal(t, 0, m.Active())

	close(gate.release)
	waitIdle(t, diary)
	waitIdle(t, helper)
	assert.Len(t, diary.Transcript(), 2)
	assert.Len(t, helper.Transcript(), 2)
}

func TestModel_ResetClearsActivePanelOnly(t *testing.T) {
	m, diary, helper := newTestModel(t, &gateCompleter{reply: "답."})

	require.True(t, helper.Submit("질문"))
	waitIdle(t, helper)
	m.SetInput("일지")
	m, _ = press(t, m, tea.KeyEnter)
	waitIdle(t, diary)

	m, _ = press(t, m, tea.KeyCtrlR)
	assert.Empty(t, diary.Transcript())
	assert.Len(t, helper.Transcript(), 2)
}

func TestModel_EscQuits(t *testing.T) {
	m, _, _ := newTestModel(t, &gateCompleter{reply: "ok."})

	_, cmd := press(t, m, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = press(t, m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_ViewShowsHeaderAndTabs(t *testing.T) {
	m, _, _ := newTestModel(t, &gateCompleter{reply: "ok."})

	view := m.View()
	assert.Contains(t, view, "farmassist")
	assert.Contains(t, view, "햇살농장")
	assert.Contains(t, view, conversation.Diary.Title)
	assert.Contains(t, view, conversation.Helper.Title)
	assert.Contains(t, view, "오늘의 농사 일을 적어 보세요")

	updated, _ := m.Update(FarmNameMsg{Name: "푸른들농원"})
	assert.Contains(t, updated.View(), "푸른들농원")
}

func TestModel_NoticesAreRendered(t *testing.T) {
	m, diary, _ := newTestModel(t, &gateCompleter{reply: "물을 주었고"})

	m.SetInput("오늘 일지")
	m, _ = press(t, m, tea.KeyEnter)
	waitIdle(t, diary)

	updated, _ := m.Update(ChangedMsg{})
	view := updated.View()
	assert.Contains(t, view, styles.StatusIndicators.Warning)
	assert.Contains(t, view, "생략되었습니다")
}

func TestModel_LoadingBeforeResize(t *testing.T) {
	m := New(Options{Theme: styles.NewTheme(styles.ThemeLight)})
	assert.Equal(t, "Loading...", m.View())

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	updated, _ = updated.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Equal(t, "No conversations configured.", updated.View())
}

func TestNotifier_DetachedDropsEvents(t *testing.T) {
	n := NewNotifier()
	assert.NotPanics(t, n.Notify)
}

func TestModel_ActiveOption(t *testing.T) {
	diary := conversation.New(&gateCompleter{reply: "ok."}, conversation.Diary)
	helper := conversation.New(&gateCompleter{reply: "ok."}, conversation.Helper)

	m := New(Options{
		Theme:   styles.NewTheme(styles.ThemeDark),
		Clients: []*conversation.Client{diary, helper},
		Active:  "helper",
	})
	assert.Equal(t, 1, m.Active())

	m = New(Options{
		Theme:   styles.NewTheme(styles.ThemeDark),
		Clients: []*conversation.Client{diary, helper},
		Active:  "weather",
	})
	assert.Equal(t, 0, m.Active())
}
