// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries     = 3
	DefaultBaseDelay      = 20 * time.Second
	DefaultDelayIncrement = 20 * time.Second
	DefaultQuotaWindow    = 60 * time.Second
)

// Policy controls how rate-limited requests are retried.
type Policy struct {
	// MaxRetries is the total number of attempts per submission.
	MaxRetries int

	// BaseDelay is the wait after the first rate-limited attempt.
	BaseDelay time.Duration

	// DelayIncrement is added to the wait after every further attempt.
	DelayIncrement time.Duration

	// QuotaWindow is the length of the service's quota window, used to
	// estimate how long the user should wait once retries are exhausted.
	QuotaWindow time.Duration
}

// DefaultPolicy returns three attempts waiting 20s then 40s, with a
// one-minute quota window.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     DefaultMaxRetries,
		BaseDelay:      DefaultBaseDelay,
		DelayIncrement: DefaultDelayIncrement,
		QuotaWindow:    DefaultQuotaWindow,
	}
}

// Validate reports every invalid field at once.
func (p Policy) Validate() error {
	var errs []error
	if p.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max retries must be at least 1, got %d", p.MaxRetries))
	}
	if p.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("base delay must not be negative, got %s", p.BaseDelay))
	}
	if p.DelayIncrement < 0 {
		errs = append(errs, fmt.Errorf("delay increment must not be negative, got %s", p.DelayIncrement))
	}
	if p.QuotaWindow < time.Second {
		errs = append(errs, fmt.Errorf("quota window must be at least 1s, got %s", p.QuotaWindow))
	}
	return errors.Join(errs...)
}

// Delay returns the wait after the n-th (1-based) rate-limited attempt,
// i.e. before attempt n+1.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return p.BaseDelay + time.Duration(n-1)*p.DelayIncrement
}

// WaitSeconds estimates how many whole seconds remain in the current quota
// window, given the time elapsed since the submission started. It assumes
// the window began when the submission did.
func (p Policy) WaitSeconds(elapsed time.Duration) int {
	window := p.QuotaWindow.Milliseconds()
	if window <= 0 {
		window = DefaultQuotaWindow.Milliseconds()
	}
	ms := elapsed.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	remaining := window - ms%window
	return int((remaining + 999) / 1000)
}
