// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sprout-labs/farmassist/internal/completion"
	"github.com/sprout-labs/farmassist/internal/model"
	"github.com/sprout-labs/farmassist/internal/util"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Completer performs exactly one completion request. *completion.Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, content string) (*completion.Response, error)
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// sleepContext is the default Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// =============================================================================
// ATTEMPTS
// =============================================================================

// Outcome classifies a finished attempt.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeRateLimited  Outcome = "rate_limited"
	OutcomeOtherFailure Outcome = "other_failure"
)

// Attempt records one request of the current run.
type Attempt struct {
	Number      int
	DelayBefore time.Duration
	Outcome     Outcome
	Err         error
}

// =============================================================================
// CLIENT
// =============================================================================

// Option configures a Client.
type Option func(*Client)

// WithPolicy replaces the retry policy. Invalid policies are ignored.
func WithPolicy(p Policy) Option {
	return func(c *Client) {
		if p.Validate() == nil {
			c.policy = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSleeper replaces the retry wait.
func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithOnChange registers fn to be called after every transcript or busy
// change. fn runs on the goroutine that made the change, never under the
// client's lock.
func WithOnChange(fn func()) Option {
	return func(c *Client) {
		c.onChange = fn
	}
}

// Client is one conversation: a transcript plus at most one in-flight
// submission. Independent Clients share nothing and may share a Completer.
type Client struct {
	completer Completer
	variant   Variant
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
	sleep     Sleeper
	onChange  func()

	transcript *model.Transcript

	mu       sync.Mutex
	busy     bool
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	attempts []Attempt
}

// New creates an idle Client with an empty transcript.
func New(completer Completer, variant Variant, opts ...Option) *Client {
	c := &Client{
		completer:  completer,
		variant:    variant,
		policy:     DefaultPolicy(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		sleep:      sleepContext,
		transcript: model.NewTranscript(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Variant returns the preset this client was built with.
func (c *Client) Variant() Variant {
	return c.variant
}

// Policy returns the retry policy in effect.
func (c *Client) Policy() Policy {
	return c.policy
}

// Busy reports whether a submission is in flight.
func (c *Client) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Transcript returns a snapshot of the conversation so far.
func (c *Client) Transcript() []model.Message {
	return c.transcript.Messages()
}

// Markdown renders the transcript as markdown.
func (c *Client) Markdown() string {
	return c.transcript.Markdown()
}

// JSON returns the transcript as a JSON array of messages.
func (c *Client) JSON() ([]byte, error) {
	return c.transcript.JSON()
}

// Attempts returns the attempts made by the current or most recent run.
func (c *Client) Attempts() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Attempt, len(c.attempts))
	copy(out, c.attempts)
	return out
}

// Submit sends text as the next user prompt. It returns false and does
// nothing when text is blank or a submission is already in flight.
// Otherwise the prompt is in the transcript and the client is busy by the
// time Submit returns true; the request runs in the background.
func (c *Client) Submit(text string) bool {
	content := util.NormalizeInput(text)
	if content == "" {
		return false
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return false
	}
	c.transcript.Append(model.NewUserMessage(content))
	c.busy = true
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.attempts = nil
	start := c.now()
	c.mu.Unlock()

	c.notify()
	go c.run(ctx, gen, content, start, done)
	return true
}

// Reset discards the transcript and abandons any in-flight submission.
// Nothing from an abandoned submission is ever appended.
func (c *Client) Reset() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.busy = false
	c.attempts = nil
	c.transcript.Reset()
	c.mu.Unlock()

	c.notify()
}

// Wait blocks until the most recent submission has finished, or ctx ends.
func (c *Client) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives one submission through the retry protocol. start is when the
// prompt was submitted; the quota wait counts from it.
func (c *Client) run(ctx context.Context, gen uint64, content string, start time.Time, done chan struct{}) {
	defer close(done)

	log := c.logger.With("variant", c.variant.Name)
	var wait time.Duration

	for n := 1; ; n++ {
		if wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				log.Debug("retry wait abandoned", "attempt", n, "error", err)
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		resp, err := c.completer.Complete(ctx, c.variant.SystemPrompt, content)
		if err == nil && util.IsBlank(resp.Content()) {
			err = &completion.TransportError{Op: "decode response", Err: completion.ErrEmptyReply}
		}
		attempt := Attempt{Number: n, DelayBefore: wait, Err: err}

		switch {
		case err == nil:
			attempt.Outcome = OutcomeSuccess
			reply := resp.Content()
			msgs := []model.Message{model.NewAssistantMessage(model.KindReply, reply)}
			if IsTruncated(reply) {
				msgs = append(msgs, model.NewAssistantMessage(model.KindTruncation, TruncationNotice))
			}
			log.Info("reply received", "attempt", n, "truncated", len(msgs) > 1)
			c.commit(gen, attempt, true, msgs...)
			return

		case completion.IsRateLimited(err) && n < c.policy.MaxRetries:
			attempt.Outcome = OutcomeRateLimited
			wait = c.policy.Delay(n)
			log.Warn("rate limited, retrying", "attempt", n, "retry_in", wait)
			notice := model.NewAssistantMessage(model.KindRetry, RetryNotice(wait, n, c.policy.MaxRetries))
			if !c.commit(gen, attempt, false, notice) {
				return
			}

		case completion.IsRateLimited(err):
			attempt.Outcome = OutcomeRateLimited
			secs := c.policy.WaitSeconds(c.now().Sub(start))
			log.Warn("rate limited, retries exhausted", "attempt", n, "wait_seconds", secs)
			c.commit(gen, attempt, true, model.NewAssistantMessage(model.KindQuota, QuotaNotice(secs)))
			return

		default:
			attempt.Outcome = OutcomeOtherFailure
			if ctx.Err() != nil {
				return
			}
			log.Error("completion failed", "attempt", n, "error", err)
			c.commit(gen, attempt, true, model.NewAssistantMessage(model.KindError, ErrorNotice(completion.Detail(err))))
			return
		}
	}
}

// commit records attempt and appends msgs if gen is still current. A
// terminal commit also clears busy. It reports whether gen was current.
func (c *Client) commit(gen uint64, attempt Attempt, terminal bool, msgs ...model.Message) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.attempts = append(c.attempts, attempt)
	for _, m := range msgs {
		c.transcript.Append(m)
	}
	if terminal {
		c.busy = false
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.mu.Unlock()

	c.notify()
	return true
}

func (c *Client) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
