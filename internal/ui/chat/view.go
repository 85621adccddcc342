// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprout-labs/farmassist/internal/model"
	"github.com/sprout-labs/farmassist/internal/ui/styles"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

func (m Model) renderShell() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	p := m.current()
	if p == nil {
		return "No conversations configured."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderTabs(),
		p.viewport.View(),
		m.renderPending(p),
		m.theme.InputContainer.Width(m.width).Render(p.input.View()),
		m.renderStatusBar(),
	)
}

// =============================================================================
// HEADER, TABS AND STATUS
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("farmassist")
	if m.farmName != "" {
		name := styles.Truncate(m.farmName, max(m.width/2, 8))
		title += m.theme.HeaderSubtitle.Render("  " + name)
	}
	return m.theme.Header.Width(m.width).Render(title)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(m.panels))
	for i, p := range m.panels {
		label := p.client.Variant().Title
		if p.client.Busy() {
			label += " " + styles.StatusIndicators.Pending
		}
		if i == m.active {
			tabs = append(tabs, m.theme.TabActive.Render(label))
		} else {
			tabs = append(tabs, m.theme.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderPending(p *panel) string {
	if !p.client.Busy() {
		return ""
	}
	return m.spinner.View() + " " + m.theme.ThinkingText.Render("답변을 기다리는 중...")
}

func (m Model) renderStatusBar() string {
	parts := make([]string, 0, len(m.keys.ShortHelp()))
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderTranscript(p *panel) string {
	messages := p.client.Transcript()
	if len(messages) == 0 {
		return m.theme.EmptyHint.Render(p.input.Placeholder)
	}

	width := p.viewport.Width
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message, width int) string {
	textWidth := width - 8
	if textWidth < 10 {
		textWidth = 10
	}

	switch msg.Kind {
	case model.KindPrompt:
		return m.theme.UserBubble.Render(styles.Wrap(msg.Text, textWidth))
	case model.KindReply:
		return m.theme.AssistantBubble.Render(m.markdown.Render(msg.Text, textWidth))
	case model.KindError:
		return m.theme.ErrorBubble.Render(styles.Wrap(styles.StatusIndicators.Error+" "+msg.Text, textWidth))
	default:
		return m.theme.NoticeBubble.Render(styles.Wrap(styles.StatusIndicators.Warning+" "+msg.Text, textWidth))
	}
}
