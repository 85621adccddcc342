// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log/slog"

	"github.com/sprout-labs/farmassist/internal/config"
	"github.com/sprout-labs/farmassist/internal/conversation"
)

// Factory builds the conversation client for a new session.
type Factory func(variant conversation.Variant) *conversation.Client

// NewClientFactory returns a Factory that reads the current configuration
// from holder on every call, so prompt and retry changes picked up by a
// reload apply to sessions created afterwards. Existing sessions keep the
// settings they were built with.
func NewClientFactory(holder *config.Holder, completer conversation.Completer, logger *slog.Logger, opts ...conversation.Option) Factory {
	return func(variant conversation.Variant) *conversation.Client {
		cfg := holder.Get()
		variant = PromptOverride(cfg, variant)

		all := []conversation.Option{
			conversation.WithPolicy(RetryPolicy(cfg)),
			conversation.WithLogger(logger),
		}
		all = append(all, opts...)
		return conversation.New(completer, variant, all...)
	}
}

// PromptOverride applies the configured system prompt for variant, if any.
func PromptOverride(cfg *config.Config, variant conversation.Variant) conversation.Variant {
	switch variant.Name {
	case conversation.Diary.Name:
		return variant.WithPrompt(cfg.Prompts.Diary)
	case conversation.Helper.Name:
		return variant.WithPrompt(cfg.Prompts.Helper)
	}
	return variant
}

// RetryPolicy converts the retry section of cfg.
func RetryPolicy(cfg *config.Config) conversation.Policy {
	return conversation.Policy{
		MaxRetries:     cfg.Retry.MaxRetries,
		BaseDelay:      cfg.Retry.BaseDelay(),
		DelayIncrement: cfg.Retry.DelayIncrement(),
		QuotaWindow:    cfg.Retry.QuotaWindow(),
	}
}
