// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidThemes lists the accepted ui.theme values.
var ValidThemes = []string{"auto", "dark", "light"}

// ValidVariants lists the accepted ui.default_variant values.
var ValidVariants = []string{"diary", "helper"}

// ValidLogLevels lists the accepted logging.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Completion
	if u, err := url.Parse(c.Completion.Endpoint); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		add("completion.endpoint", "must be an http(s) URL, got %q", c.Completion.Endpoint)
	}
	if strings.TrimSpace(c.Completion.Model) == "" {
		add("completion.model", "must not be empty")
	}
	if c.Completion.MaxTokens < 1 || c.Completion.MaxTokens > 32768 {
		add("completion.max_tokens", "must be between 1 and 32768, got %d", c.Completion.MaxTokens)
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		add("completion.temperature", "must be between 0 and 2, got %g", c.Completion.Temperature)
	}
	if c.Completion.TimeoutSecs < 1 || c.Completion.TimeoutSecs > 600 {
		add("completion.timeout_secs", "must be between 1 and 600, got %d", c.Completion.TimeoutSecs)
	}
	if c.Completion.RequestsPerMinute < 0 {
		add("completion.requests_per_minute", "must not be negative, got %g", c.Completion.RequestsPerMinute)
	}

	// Retry
	if c.Retry.MaxRetries < 1 || c.Retry.MaxRetries > 10 {
		add("retry.max_retries", "must be between 1 and 10, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelayMs < 0 {
		add("retry.base_delay_ms", "must not be negative, got %d", c.Retry.BaseDelayMs)
	}
	if c.Retry.DelayIncrementMs < 0 {
		add("retry.delay_increment_ms", "must not be negative, got %d", c.Retry.DelayIncrementMs)
	}
	if c.Retry.QuotaWindowMs < 1000 {
		add("retry.quota_window_ms", "must be at least 1000, got %d", c.Retry.QuotaWindowMs)
	}

	// Server
	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative, got %g", c.Server.RateLimit)
	}
	if c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1, got %d", c.Server.RateBurst)
	}
	if c.Server.MaxBodyBytes < 1024 {
		add("server.max_body_bytes", "must be at least 1024, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.SessionIdleMinutes < 1 {
		add("server.session_idle_minutes", "must be at least 1, got %d", c.Server.SessionIdleMinutes)
	}
	if c.Server.MaxSessions < 1 {
		add("server.max_sessions", "must be at least 1, got %d", c.Server.MaxSessions)
	}

	// Logging
	if !contains(ValidLogLevels, strings.ToLower(c.Logging.Level)) {
		add("logging.level", "must be one of %s, got %q", strings.Join(ValidLogLevels, ", "), c.Logging.Level)
	}

	// UI
	if !contains(ValidThemes, c.UI.Theme) {
		add("ui.theme", "must be one of %s, got %q", strings.Join(ValidThemes, ", "), c.UI.Theme)
	}
	if !contains(ValidVariants, c.UI.DefaultVariant) {
		add("ui.default_variant", "must be one of %s, got %q", strings.Join(ValidVariants, ", "), c.UI.DefaultVariant)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
