// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/sprout-labs/farmassist/internal/completion"
	"github.com/sprout-labs/farmassist/internal/config"
	"github.com/sprout-labs/farmassist/internal/prefs"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitServiceError indicates the completion service gave no answer
	ExitServiceError = 5
)

// ErrNoAnswer is returned by one-shot commands whose submission ended in a
// notice instead of a reply. The notice itself has already been printed.
var ErrNoAnswer = errors.New("no answer received")

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError represents invalid command usage.
type UsageError struct {
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return fmt.Sprintf("%s\nExample: %s", e.Reason, e.Example)
	}
	return e.Reason
}

// ConfigError represents missing or invalid configuration.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return e.Reason
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var configErr *ConfigError
	var validateErrs config.ValidateErrors
	switch {
	case errors.As(err, &usageErr),
		errors.Is(err, prefs.ErrInvalidKey),
		errors.Is(err, prefs.ErrReservedKey),
		errors.Is(err, prefs.ErrValueTooLong),
		errors.Is(err, config.ErrUnknownKey):
		return ExitUsageError
	case errors.As(err, &configErr),
		errors.As(err, &validateErrs),
		errors.Is(err, completion.ErrNotConfigured):
		return ExitConfigError
	case errors.Is(err, ErrNoAnswer):
		return ExitServiceError
	default:
		return ExitGeneralError
	}
}
