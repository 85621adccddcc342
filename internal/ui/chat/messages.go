// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// ChangedMsg signals that a conversation's transcript or busy flag changed.
// The model re-reads every panel, so it carries no payload.
type ChangedMsg struct{}

// FarmNameMsg updates the farm name shown in the header.
type FarmNameMsg struct {
	Name string
}

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier forwards conversation change callbacks into a running program.
// Clients are built before the program exists, so callbacks fired before
// Attach are dropped; the model renders current state on start anyway.
type Notifier struct {
	mu      sync.RWMutex
	program *tea.Program
}

// NewNotifier creates a detached notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Attach routes future notifications to p.
func (n *Notifier) Attach(p *tea.Program) {
	n.mu.Lock()
	n.program = p
	n.mu.Unlock()
}

// Notify sends a ChangedMsg. Pass it to conversation.WithOnChange.
// Clients also notify from inside Update (Submit, Reset), where a
// synchronous Send would block the event loop, so the send is detached.
func (n *Notifier) Notify() {
	n.mu.RLock()
	p := n.program
	n.mu.RUnlock()
	if p != nil {
		go p.Send(ChangedMsg{})
	}
}
