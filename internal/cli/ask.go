// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/model"
)

type askOptions struct {
	variant string
	json    bool
	timeout time.Duration
}

// AskData is the data of a --json ask response.
type AskData struct {
	Variant  string          `json:"variant"`
	Messages []model.Message `json:"messages"`
}

func newAskCommand(a *app) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Long: `Ask one question and print the answer.

The question goes through the same retry protocol as the shell: rate
limited attempts are retried with growing delays and every outcome,
including failures, is printed as a transcript message.

Examples:
  farmassist ask "고추 모종은 언제 심나요?"
  farmassist ask --variant diary "오늘 감자 밭에 물을 주었다"
  farmassist ask --json "토마토 잎이 노랗게 변해요"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.variant, "variant", "", "conversation variant: diary or helper (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the transcript as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "give up after this long, retries included")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, opts *askOptions, question string) error {
	variant, err := a.variantFlag(opts.variant)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	var client *conversation.Client
	if opts.json {
		factory, err := a.newFactory(nil)
		if err != nil {
			return err
		}
		client = factory(variant)
	} else if client, err = a.newLiveClient(out, variant); err != nil {
		return err
	}

	if !client.Submit(question) {
		return &UsageError{Reason: "question is empty"}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	if err := client.Wait(ctx); err != nil {
		client.Reset()
		return err
	}

	msgs := client.Transcript()
	if opts.json {
		data := AskData{Variant: variant.Name, Messages: msgs}
		if !answered(msgs) {
			_ = NewJSONErrorResponse("ask", data, ErrNoAnswer).Print(out)
			return ErrNoAnswer
		}
		return NewJSONResponse("ask", data).Print(out)
	}

	if !answered(msgs) {
		return ErrNoAnswer
	}
	return nil
}
