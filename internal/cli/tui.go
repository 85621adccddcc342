// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/ui/chat"
	"github.com/sprout-labs/farmassist/internal/ui/styles"
)

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal shell with the diary and helper panels",
		Long: `Open the terminal shell with the diary and helper panels.

Each panel is an independent conversation. Tab switches panels, Enter
sends, Ctrl+R resets the active conversation and Esc quits.`,
		Args: cobra.NoArgs,
		RunE: a.runTUI,
	}
}

func (a *app) runTUI(cmd *cobra.Command, args []string) error {
	if !console.interactive() {
		return &UsageError{
			Reason:  "the terminal shell needs an interactive terminal",
			Example: `farmassist ask "상추는 언제 심나요?"`,
		}
	}

	notifier := chat.NewNotifier()
	factory, err := a.newFactory(nil, conversation.WithOnChange(notifier.Notify))
	if err != nil {
		return err
	}

	clients := []*conversation.Client{
		factory(conversation.Diary),
		factory(conversation.Helper),
	}
	defer func() {
		for _, c := range clients {
			c.Reset()
		}
	}()

	m := chat.New(chat.Options{
		Theme:    styles.NewTheme(a.cfg.UI.Theme),
		Clients:  clients,
		FarmName: a.farmName(cmd.Context()),
		Active:   a.cfg.UI.DefaultVariant,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	notifier.Attach(p)
	_, err = p.Run()
	return err
}
