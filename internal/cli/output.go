// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/model"
	"github.com/sprout-labs/farmassist/internal/ui/styles"
)

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope every --json command prints.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response carrying data.
func NewJSONErrorResponse(command string, data any, err error) *JSONResponse {
	msg := err.Error()
	resp := NewJSONResponse(command, data)
	resp.Success = false
	resp.Error = &msg
	return resp
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// TRANSCRIPT OUTPUT
// =============================================================================

// transcriptPrinter writes assistant messages for line-oriented commands.
// Replies are rendered as markdown only when the output is a terminal.
type transcriptPrinter struct {
	w        io.Writer
	markdown *styles.Markdown
	width    int
}

func newTranscriptPrinter(w io.Writer, tty bool, theme string) *transcriptPrinter {
	p := &transcriptPrinter{w: w}
	if tty {
		t := styles.NewTheme(theme)
		p.markdown = styles.NewMarkdown(t.MarkdownStyle())
		p.width = console.width() - 2
	}
	return p
}

// Print writes every non-user message of msgs.
func (p *transcriptPrinter) Print(msgs []model.Message) {
	for _, msg := range msgs {
		if msg.IsUser() {
			continue
		}
		switch {
		case msg.Kind == model.KindReply && p.markdown != nil:
			fmt.Fprintln(p.w, p.markdown.Render(msg.Text, p.width))
		case msg.Kind == model.KindReply:
			fmt.Fprintln(p.w, msg.Text)
		case msg.Kind == model.KindError:
			fmt.Fprintln(p.w, ErrorStyle.Render(styles.StatusIndicators.Error)+" "+msg.Text)
		default:
			fmt.Fprintln(p.w, WarningStyle.Render(styles.StatusIndicators.Warning)+" "+msg.Text)
		}
	}
}

// transcriptFeed prints a conversation's new entries as they are committed,
// so retry notices show up while the client is still waiting. Pass Notify
// to conversation.WithOnChange, then Attach the built client.
type transcriptFeed struct {
	mu      sync.Mutex
	printer *transcriptPrinter
	client  *conversation.Client
	printed int
}

func newTranscriptFeed(printer *transcriptPrinter) *transcriptFeed {
	return &transcriptFeed{printer: printer}
}

// Attach sets the client whose transcript is followed.
func (f *transcriptFeed) Attach(client *conversation.Client) {
	f.mu.Lock()
	f.client = client
	f.printed = len(client.Transcript())
	f.mu.Unlock()
}

// Notify prints every entry added since the last call. A reset transcript
// starts over from its first entry.
func (f *transcriptFeed) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return
	}
	msgs := f.client.Transcript()
	if len(msgs) < f.printed {
		f.printed = 0
	}
	f.printer.Print(msgs[f.printed:])
	f.printed = len(msgs)
}

// answered reports whether msgs ends with a successful reply, possibly
// followed by the truncation notice.
func answered(msgs []model.Message) bool {
	for i := len(msgs) - 1; i >= 0; i-- {
		switch msgs[i].Kind {
		case model.KindTruncation:
			continue
		case model.KindReply:
			return true
		default:
			return false
		}
	}
	return false
}
