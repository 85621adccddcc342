// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears every
// environment override.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, env := range []string{
		EnvAPIKey, EnvOpenAIKey, EnvEndpoint, EnvModel, EnvRPM, EnvAddr,
		EnvServerToken, EnvLogLevel, EnvLogFile, EnvPrefsPath, EnvDefaultPanel,
	} {
		t.Setenv(env, "")
	}
	return dir
}

// TestConfig_Default tests that Default() returns a valid config.
func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "gpt-3.5-turbo", cfg.Completion.Model)
	assert.Equal(t, 150, cfg.Completion.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Completion.Temperature, 1e-9)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 20*time.Second, cfg.Retry.BaseDelay())
	assert.Equal(t, 20*time.Second, cfg.Retry.DelayIncrement())
	assert.Equal(t, time.Minute, cfg.Retry.QuotaWindow())
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionIdle())
	assert.False(t, cfg.HasAPIKey())
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad endpoint", func(c *Config) { c.Completion.Endpoint = "ftp://x" }, "completion.endpoint"},
		{"empty model", func(c *Config) { c.Completion.Model = " " }, "completion.model"},
		{"max tokens", func(c *Config) { c.Completion.MaxTokens = 0 }, "completion.max_tokens"},
		{"temperature", func(c *Config) { c.Completion.Temperature = 3 }, "completion.temperature"},
		{"retries", func(c *Config) { c.Retry.MaxRetries = 0 }, "retry.max_retries"},
		{"quota window", func(c *Config) { c.Retry.QuotaWindowMs = 10 }, "retry.quota_window_ms"},
		{"burst", func(c *Config) { c.Server.RateBurst = 0 }, "server.rate_burst"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"variant", func(c *Config) { c.UI.DefaultVariant = "weather" }, "ui.default_variant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	c := Default()
	c.Completion.MaxTokens = -1
	c.Retry.MaxRetries = 99
	c.UI.Theme = "x"

	var verrs ValidateErrors
	require.True(t, errors.As(c.Validate(), &verrs))
	assert.Len(t, verrs, 3)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Completion, cfg.Completion)
}

func TestLoad_TOMLFillsMissingValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[completion]
model = "gpt-4o-mini"

[retry]
max_retries = 2

[prompts]
helper = "Answer briefly."
`), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Completion.Model)
	assert.Equal(t, 150, cfg.Completion.MaxTokens)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.Equal(t, 20000, cfg.Retry.BaseDelayMs)
	assert.Equal(t, "Answer briefly.", cfg.Prompts.Helper)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions tightened on load")
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"server":{"addr":"0.0.0.0:9000"}}`), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[retry]\nmax_retries = 0\nquota_window_ms = 5\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry.quota_window_ms")
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvOpenAIKey, "sk-fallback")
	t.Setenv(EnvModel, "gpt-4o")
	t.Setenv(EnvRPM, "30")
	t.Setenv(EnvServerToken, "token-123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Completion.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Completion.Model)
	assert.InDelta(t, 30, cfg.Completion.RequestsPerMinute, 1e-9)
	assert.Equal(t, "token-123", cfg.Server.AuthToken)

	t.Setenv(EnvAPIKey, "sk-primary")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-primary", cfg.Completion.APIKey)
}

func TestSave_NeverWritesCredentials(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.Completion.APIKey = "sk-secret-value"
	cfg.Server.AuthToken = "server-secret"

	for _, name := range []string{"config.toml", "config.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(cfg, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "sk-secret-value")
		assert.NotContains(t, string(data), "server-secret")

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	assert.NotContains(t, cfg.String(), "sk-secret-value")
	assert.Contains(t, cfg.String(), "# api key: set")
}

func TestSave_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Prompts.Diary = "일지를 짧게 써 주세요."
	cfg.Server.MaxSessions = 42
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Prompts, loaded.Prompts)
	assert.Equal(t, 42, loaded.Server.MaxSessions)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FARMASSIST_MODEL=gpt-from-dotenv\n"), 0600))

	// t.Setenv("", ...) leaves the variable present, so unset it for godotenv.
	os.Unsetenv(EnvModel)
	t.Cleanup(func() { os.Unsetenv(EnvModel) })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "gpt-from-dotenv", os.Getenv(EnvModel))
}

func TestKeys_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("retry.max_retries")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	require.NoError(t, cfg.Set("retry.max_retries", "5"))
	require.NoError(t, cfg.Set("completion.temperature", "0.2"))
	require.NoError(t, cfg.Set("prompts.helper", "짧게 답하세요."))
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.InDelta(t, 0.2, cfg.Completion.Temperature, 1e-9)
	assert.Equal(t, "짧게 답하세요.", cfg.Prompts.Helper)

	assert.Error(t, cfg.Set("retry.max_retries", "many"))
	assert.ErrorIs(t, cfg.Set("completion.api_key", "x"), ErrUnknownKey)
	_, err = cfg.Get("retry")
	assert.ErrorIs(t, err, ErrUnknownKey)

	keys := Keys()
	assert.Contains(t, keys, "server.addr")
	assert.Contains(t, keys, "ui.default_variant")
	for _, k := range keys {
		assert.False(t, strings.Contains(k, "api_key") || strings.Contains(k, "auth_token"), k)
	}
}

// =============================================================================
// HOLDER AND WATCHER
// =============================================================================

// TestHolder_ConcurrentAccess tests that Get, Set and Reload can be called
// concurrently. Run with: go test -race ./internal/config/
func TestHolder_ConcurrentAccess(t *testing.T) {
	isolate(t)
	h := NewHolder(Default(), "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if h.Get() == nil {
				t.Error("Get() returned nil")
			}
		}()
		go func() {
			defer wg.Done()
			c := Default()
			c.Version = "concurrent"
			h.Set(c)
		}()
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}
	wg.Wait()
}

func TestHolder_FailedReloadKeepsCurrent(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[completion]\nmodel = \"first\"\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(cfg, path)

	var seen []string
	h.OnChange(func(c *Config) { seen = append(seen, c.Completion.Model) })

	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0600))
	assert.Error(t, h.Reload())
	assert.Equal(t, "first", h.Get().Completion.Model)

	require.NoError(t, os.WriteFile(path, []byte("[completion]\nmodel = \"second\"\n"), 0600))
	require.NoError(t, h.Reload())
	assert.Equal(t, "second", h.Get().Completion.Model)
	assert.Equal(t, []string{"second"}, seen)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, Save(Default(), path))

	cfg, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(cfg, path)

	w, err := NewWatcher(h, 20*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Close()

	updated := Default()
	updated.Prompts.Helper = "hot reloaded"
	require.NoError(t, Save(updated, path))

	require.Eventually(t, func() bool {
		return h.Get().Prompts.Helper == "hot reloaded"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_CloseWithoutStart(t *testing.T) {
	isolate(t)
	w, err := NewWatcher(NewHolder(nil, ""), 0, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}

// =============================================================================
// LOGGING
// =============================================================================

func TestSetupLoggerWithWriters_Fanout(t *testing.T) {
	var console, file bytes.Buffer
	logger := SetupLoggerWithWriters(&console, &file, ParseLevel("info"))

	logger.Debug("hidden")
	logger.Info("session created", "variant", "diary")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "session created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &entry))
	assert.Equal(t, "session created", entry["msg"])
	assert.Equal(t, "diary", entry["variant"])
}

func TestSetupLogger_File(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "farmassist.log")

	var console bytes.Buffer
	logger, cleanup := SetupLogger(&console, logFile, ParseLevel("debug"))
	logger.Debug("written")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written"`)
	assert.Contains(t, console.String(), "written")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("warning").String())
	assert.Equal(t, "ERROR", ParseLevel("ERROR").String())
	assert.Equal(t, "INFO", ParseLevel("whatever").String())
}
