// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the farmassist
terminal shell.

All colors use Lip Gloss AdaptiveColor so the shell follows the terminal's
light or dark background; the theme name from configuration can force
either one.

# Key Types

  - Theme: lipgloss styles for header, panel tabs, transcript and input
  - Markdown: glamour renderer for assistant replies, cached per width
  - SpinnerConfig: frame sets for the pending-reply spinner

# Text Helpers

Wrap and Truncate measure display cells with go-runewidth, so Hangul
counts as two cells per rune:

	theme := styles.NewTheme(cfg.UI.Theme)
	md := styles.NewMarkdown(theme.MarkdownStyle())
	body := md.Render(reply, width)
	title := styles.Truncate(farmName, 24)
*/
package styles
