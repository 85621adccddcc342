// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// Environment variable names.
const (
	EnvAPIKey       = "FARMASSIST_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvEndpoint     = "FARMASSIST_ENDPOINT"
	EnvModel        = "FARMASSIST_MODEL"
	EnvRPM          = "FARMASSIST_REQUESTS_PER_MINUTE"
	EnvAddr         = "FARMASSIST_ADDR"
	EnvServerToken  = "FARMASSIST_SERVER_TOKEN"
	EnvLogLevel     = "FARMASSIST_LOG_LEVEL"
	EnvLogFile      = "FARMASSIST_LOG_FILE"
	EnvPrefsPath    = "FARMASSIST_PREFS_PATH"
	EnvDefaultPanel = "FARMASSIST_VARIANT"
)

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - FARMASSIST_API_KEY: completion credential (falls back to OPENAI_API_KEY)
//   - FARMASSIST_ENDPOINT: overrides completion.endpoint
//   - FARMASSIST_MODEL: overrides completion.model
//   - FARMASSIST_REQUESTS_PER_MINUTE: overrides completion.requests_per_minute
//   - FARMASSIST_ADDR: overrides server.addr
//   - FARMASSIST_SERVER_TOKEN: bearer token required by the HTTP API
//   - FARMASSIST_LOG_LEVEL / FARMASSIST_LOG_FILE: override logging
//   - FARMASSIST_PREFS_PATH: overrides storage.prefs_path
//   - FARMASSIST_VARIANT: overrides ui.default_variant
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Completion.APIKey = key
	} else if key := os.Getenv(EnvOpenAIKey); key != "" {
		c.Completion.APIKey = key
	}

	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Completion.Endpoint = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Completion.Model = v
	}
	if v := os.Getenv(EnvRPM); v != "" {
		if rpm, err := strconv.ParseFloat(v, 64); err == nil {
			c.Completion.RequestsPerMinute = rpm
		}
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvServerToken); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv(EnvPrefsPath); v != "" {
		c.Storage.PrefsPath = v
	}
	if v := os.Getenv(EnvDefaultPanel); v != "" {
		c.UI.DefaultVariant = strings.ToLower(v)
	}
}

// LoadDotEnv loads each existing file into the process environment.
// Variables already set are left alone, so the real environment wins.
// Missing files are skipped.
func LoadDotEnv(files ...string) error {
	var errs []error
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			errs = append(errs, fmt.Errorf("could not load %s: %w", file, err))
		}
	}
	return errors.Join(errs...)
}
