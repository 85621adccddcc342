// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading, hot reload and logger
// setup for farmassist.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation. The completion credential
// and the server auth token come only from the environment (optionally
// seeded from a .env file) and are never serialised.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - Holder: Atomically swapped current config with change subscribers
//   - Watcher: fsnotify-driven reload of a Holder
//   - ValidateErrors: Every validation problem found in one pass
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (FARMASSIST_*, OPENAI_API_KEY)
//   - .env in the working directory and the config directory
//   - ~/.farmassist/config.toml
//   - ~/.farmassist/config.json
//   - Built-in defaults
//
// # Usage
//
//	_ = config.LoadDotEnv(".env")
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	holder := config.NewHolder(cfg, "")
//	w, _ := config.NewWatcher(holder, 0, logger)
//	_ = w.Start()
//	defer w.Close()
package config
