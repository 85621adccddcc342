// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"sync"
	"sync/atomic"
)

// Holder owns the current configuration and swaps it atomically on reload.
// Readers always see a complete Config; a failed reload keeps the old one.
type Holder struct {
	path    string
	current atomic.Pointer[Config]

	mu          sync.Mutex
	subscribers []func(*Config)
}

// NewHolder wraps cfg. path is the file Reload reads ("" = default location).
func NewHolder(cfg *Config, path string) *Holder {
	h := &Holder{path: path}
	if cfg == nil {
		cfg = Default()
	}
	h.current.Store(cfg)
	return h
}

// Path returns the file Reload reads.
func (h *Holder) Path() string {
	return h.path
}

// Get returns the current configuration. Callers must not modify it.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Set replaces the configuration and notifies subscribers.
func (h *Holder) Set(cfg *Config) {
	h.current.Store(cfg)

	h.mu.Lock()
	subs := make([]func(*Config), len(h.subscribers))
	copy(subs, h.subscribers)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

// Reload re-reads the file. On error the current config stays in place.
func (h *Holder) Reload() error {
	cfg, err := Load(h.path)
	if err != nil {
		return err
	}
	h.Set(cfg)
	return nil
}

// OnChange registers fn to run after every successful Set or Reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.subscribers = append(h.subscribers, fn)
	h.mu.Unlock()
}
