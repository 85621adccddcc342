// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/ui/styles"
)

// =============================================================================
// PANEL
// =============================================================================

// panel is one conversation screen: its client plus its own input and
// scroll position.
type panel struct {
	client   *conversation.Client
	input    textinput.Model
	viewport viewport.Model
}

func newPanel(client *conversation.Client) *panel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholderFor(client.Variant().Name)
	ti.CharLimit = 4096

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return &panel{client: client, input: ti, viewport: vp}
}

func placeholderFor(variant string) string {
	switch variant {
	case conversation.Diary.Name:
		return "오늘의 농사 일을 적어 보세요..."
	case conversation.Helper.Name:
		return "농사에 대해 무엇이든 물어보세요..."
	default:
		return "메시지를 입력하세요..."
	}
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures New.
type Options struct {
	// Theme defaults to an auto-detected theme.
	Theme *styles.Theme

	// Clients are shown as panels in order. Each must be distinct.
	Clients []*conversation.Client

	// FarmName is shown in the header when set.
	FarmName string

	// Active names the variant whose panel starts focused. Unknown or
	// empty names select the first panel.
	Active string
}

// Model is the Bubble Tea model for the two-panel shell.
type Model struct {
	theme    *styles.Theme
	markdown *styles.Markdown
	keys     KeyMap

	panels []*panel
	active int

	spinner  spinner.Model
	farmName string

	width  int
	height int
}

// New creates the shell model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ThemeAuto)
	}

	sp := spinner.New()
	sp.Spinner = styles.SproutSpinner.Bubbles()
	sp.Style = theme.Spinner

	m := Model{
		theme:    theme,
		markdown: styles.NewMarkdown(theme.MarkdownStyle()),
		keys:     DefaultKeyMap(),
		spinner:  sp,
		farmName: opts.FarmName,
	}
	for i, c := range opts.Clients {
		m.panels = append(m.panels, newPanel(c))
		if opts.Active != "" && c.Variant().Name == opts.Active {
			m.active = i
		}
	}
	m.focusActive()
	for _, p := range m.panels {
		m.refresh(p)
	}
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ChangedMsg:
		for _, p := range m.panels {
			m.refresh(p)
		}
		return m, nil

	case FarmNameMsg:
		m.farmName = msg.Name
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	p := m.current()
	if p == nil {
		return m, nil
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return m, cmd
}

// View renders the shell.
func (m Model) View() string {
	return m.renderShell()
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

// Layout: header + tabs + viewport + pending line + input (separator and
// line) + status bar.
const reservedHeight = 6

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	vpHeight := m.height - reservedHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := m.width
	if vpWidth < 1 {
		vpWidth = 1
	}
	inputWidth := m.width - 6
	if inputWidth < 10 {
		inputWidth = 10
	}

	for _, p := range m.panels {
		p.viewport.Width = vpWidth
		p.viewport.Height = vpHeight
		p.input.Width = inputWidth
		m.refresh(p)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	p := m.current()
	if p == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.NextPanel):
		if len(m.panels) > 1 {
			if msg.String() == "shift+tab" {
				m.active = (m.active + len(m.panels) - 1) % len(m.panels)
			} else {
				m.active = (m.active + 1) % len(m.panels)
			}
			m.focusActive()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		// Submit refuses blank text and a busy conversation; the typed
		// text stays in the input so it is not lost.
		if p.client.Submit(p.input.Value()) {
			p.input.Reset()
		}
		m.refresh(p)
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		p.client.Reset()
		m.refresh(p)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		p.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		p.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return m, cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func (m Model) current() *panel {
	if len(m.panels) == 0 {
		return nil
	}
	return m.panels[m.active]
}

func (m Model) focusActive() {
	for i, p := range m.panels {
		if i == m.active {
			p.input.Focus()
		} else {
			p.input.Blur()
		}
	}
}

// refresh re-renders p's transcript into its viewport and scrolls to the
// newest message.
func (m Model) refresh(p *panel) {
	p.viewport.SetContent(m.renderTranscript(p))
	p.viewport.GotoBottom()
}

// Active returns the index of the focused panel.
func (m Model) Active() int {
	return m.active
}

// Input returns the text typed into the focused panel.
func (m Model) Input() string {
	if p := m.current(); p != nil {
		return p.input.Value()
	}
	return ""
}

// SetInput replaces the text of the focused panel's input.
func (m Model) SetInput(text string) {
	if p := m.current(); p != nil {
		p.input.SetValue(text)
	}
}
