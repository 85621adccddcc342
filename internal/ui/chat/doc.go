// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the two-panel terminal shell of farmassist.

Each panel wraps one conversation.Client (the diary and the helper). The
panels share nothing: switching panels never cancels or merges requests,
and each keeps its own half-typed input.

# Keys

	Enter   send; the input is cleared only when the client accepted it
	Tab     switch panel
	Ctrl+R  reset the active conversation
	PgUp/Dn scroll the transcript
	Esc     quit

# Usage

Clients report changes from their own goroutines. A Notifier bridges those
callbacks into the running program:

	notifier := chat.NewNotifier()
	factory := session.NewClientFactory(holder, completer, logger,
		conversation.WithOnChange(notifier.Notify))
	m := chat.New(chat.Options{
		Theme:    styles.NewTheme(cfg.UI.Theme),
		Clients:  []*conversation.Client{factory(conversation.Diary), factory(conversation.Helper)},
		FarmName: farmName,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	notifier.Attach(p)
	_, err := p.Run()
*/
package chat
