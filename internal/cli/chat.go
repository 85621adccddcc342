// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/ui/styles"
	"github.com/sprout-labs/farmassist/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of input. ChatCLI is the interactive one.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for the chat REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI that keeps its history in historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if !util.IsBlank(input) {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCommand(a *app) *cobra.Command {
	var variantName string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a line-based conversation",
		Long: `Start a line-based conversation with one variant.

Type a message and press Enter. While an answer is pending, Ctrl+C
abandons it. Commands:
  /reset         clear the conversation
  /save <file>   write the transcript as Markdown (or JSON for .json)
  /exit          leave (also: exit, quit, Ctrl+D)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := a.variantFlag(variantName)
			if err != nil {
				return err
			}
			client, err := a.newLiveClient(cmd.OutOrStdout(), variant)
			if err != nil {
				return err
			}

			historyFile, err := a.cfg.HistoryPath()
			if err != nil {
				return err
			}
			repl := NewChatCLI(historyFile)
			defer repl.Close()

			return a.runChat(cmd.Context(), cmd.OutOrStdout(), repl, client)
		},
	}
	cmd.Flags().StringVar(&variantName, "variant", "", "conversation variant: diary or helper (default from config)")
	return cmd
}

// runChat drives client from lines read by in until the user leaves. The
// client prints its own entries; see newLiveClient.
func (a *app) runChat(ctx context.Context, out io.Writer, in lineReader, client *conversation.Client) error {
	defer client.Reset()

	variant := client.Variant()
	fmt.Fprintln(out, TitleStyle.Render(variant.Title)+" "+DimStyle.Render("(/reset, /exit)"))

	for {
		input, err := in.ReadInput(variant.Name + "> ")
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed input all end the chat.
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				a.logger.Debug("chat input ended", "error", err)
			}
			fmt.Fprintln(out)
			return nil
		}

		line := strings.TrimSpace(input)
		if rest, ok := strings.CutPrefix(line, "/save"); ok {
			if path, err := saveTranscript(client, strings.TrimSpace(rest)); err != nil {
				fmt.Fprintln(out, ErrorStyle.Render(styles.StatusIndicators.Error)+" "+err.Error())
			} else {
				fmt.Fprintln(out, DimStyle.Render("saved "+path))
			}
			continue
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "/exit", "exit", "quit":
			return nil
		case "/reset":
			client.Reset()
			fmt.Fprintln(out, DimStyle.Render("conversation cleared"))
			continue
		}

		if !client.Submit(input) {
			continue
		}
		if err := a.waitInterruptible(ctx, client); err != nil {
			fmt.Fprintln(out, WarningStyle.Render("[Cancelled]"))
		}
	}
}

// saveTranscript writes the conversation to path with 0600 permissions.
func saveTranscript(client *conversation.Client, path string) (string, error) {
	if path == "" {
		return "", &UsageError{Reason: "missing file name", Example: "/save diary.md"}
	}
	data := []byte(client.Markdown())
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var err error
		if data, err = client.JSON(); err != nil {
			return "", err
		}
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return "", err
	}
	return path, nil
}

// waitInterruptible waits for the pending submission. Ctrl+C abandons it
// and leaves the conversation empty.
func (a *app) waitInterruptible(ctx context.Context, client *conversation.Client) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if err := client.Wait(ctx); err != nil {
		client.Reset()
		return err
	}
	return nil
}
