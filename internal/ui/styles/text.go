// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/sprout-labs/farmassist/internal/util"
)

// =============================================================================
// CONTENT WRAPPING WITH RUNEWIDTH SUPPORT
// =============================================================================

// Wrap wraps content to width display cells. Hangul and other wide runes
// count as two cells. Lines break at the last space when there is one.
func Wrap(content string, width int) string {
	if width <= 0 {
		return content
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if runewidth.StringWidth(line) > width {
			lines[i] = wrapLine(line, width)
		}
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, width int) string {
	var out []string
	var current []rune
	currentWidth := 0
	lastSpace := -1

	for _, r := range line {
		w := runewidth.RuneWidth(r)
		if r == ' ' && currentWidth+w > width {
			out = append(out, string(current))
			current = current[:0]
			currentWidth = 0
			lastSpace = -1
			continue
		}
		if currentWidth+w > width && len(current) > 0 {
			if lastSpace > 0 {
				out = append(out, string(current[:lastSpace]))
				current = append([]rune{}, current[lastSpace+1:]...)
			} else {
				out = append(out, string(current))
				current = current[:0]
			}
			currentWidth = runewidth.StringWidth(string(current))
			lastSpace = -1
		}
		if r == ' ' {
			lastSpace = len(current)
		}
		current = append(current, r)
		currentWidth += w
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return strings.Join(out, "\n")
}

// Truncate shortens s to at most width cells, ending in "..." when cut.
func Truncate(s string, width int) string {
	return util.TruncateWidth(s, width)
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Markdown renders assistant replies with glamour. Renderers are rebuilt
// only when the wrap width changes. Safe for concurrent use.
type Markdown struct {
	style string

	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer using the glamour standard style name
// ("dark", "light", ...). An empty style asks the terminal.
func NewMarkdown(style string) *Markdown {
	return &Markdown{style: style}
}

// Render returns content rendered for width cells. Rendering failures fall
// back to the wrapped plain text.
func (m *Markdown) Render(content string, width int) string {
	if width < 20 {
		width = 20
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer == nil || m.width != width {
		opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
		if m.style == "" {
			opts = append(opts, glamour.WithAutoStyle())
		} else {
			opts = append(opts, glamour.WithStandardStyle(m.style))
		}
		r, err := glamour.NewTermRenderer(opts...)
		if err != nil {
			return Wrap(content, width)
		}
		m.renderer = r
		m.width = width
	}

	out, err := m.renderer.Render(content)
	if err != nil {
		return Wrap(content, width)
	}
	return strings.Trim(out, "\n")
}
