// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sprout-labs/farmassist/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete farmassist configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Completion CompletionConfig `toml:"completion" json:"completion"`
	Retry      RetryConfig      `toml:"retry" json:"retry"`
	Prompts    PromptsConfig    `toml:"prompts" json:"prompts"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	Logging    LoggingConfig    `toml:"logging" json:"logging"`
	UI         UIConfig         `toml:"ui" json:"ui"`
}

// CompletionConfig describes the chat completion service.
type CompletionConfig struct {
	Endpoint    string  `toml:"endpoint" json:"endpoint"`
	Model       string  `toml:"model" json:"model"`
	MaxTokens   int     `toml:"max_tokens" json:"max_tokens"`
	Temperature float64 `toml:"temperature" json:"temperature"`
	TimeoutSecs int     `toml:"timeout_secs" json:"timeout_secs"`

	// RequestsPerMinute paces outgoing requests (0 = unlimited).
	RequestsPerMinute float64 `toml:"requests_per_minute" json:"requests_per_minute"`

	// APIKey is only ever read from the environment. It is never written
	// to disk and never printed.
	APIKey string `toml:"-" json:"-"`
}

// RetryConfig controls how rate-limited requests are retried.
type RetryConfig struct {
	MaxRetries       int `toml:"max_retries" json:"max_retries"`
	BaseDelayMs      int `toml:"base_delay_ms" json:"base_delay_ms"`
	DelayIncrementMs int `toml:"delay_increment_ms" json:"delay_increment_ms"`
	QuotaWindowMs    int `toml:"quota_window_ms" json:"quota_window_ms"`
}

// BaseDelay returns BaseDelayMs as a duration.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// DelayIncrement returns DelayIncrementMs as a duration.
func (r RetryConfig) DelayIncrement() time.Duration {
	return time.Duration(r.DelayIncrementMs) * time.Millisecond
}

// QuotaWindow returns QuotaWindowMs as a duration.
func (r RetryConfig) QuotaWindow() time.Duration {
	return time.Duration(r.QuotaWindowMs) * time.Millisecond
}

// PromptsConfig overrides the built-in system prompts. Blank keeps the
// built-in prompt.
type PromptsConfig struct {
	Diary  string `toml:"diary" json:"diary"`
	Helper string `toml:"helper" json:"helper"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`

	// RateLimit is the sustained per-client request rate (requests/second).
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`

	MaxBodyBytes       int64 `toml:"max_body_bytes" json:"max_body_bytes"`
	SessionIdleMinutes int   `toml:"session_idle_minutes" json:"session_idle_minutes"`
	MaxSessions        int   `toml:"max_sessions" json:"max_sessions"`

	// AuthToken, when set, is required as a bearer token on /v1 routes.
	// Environment only.
	AuthToken string `toml:"-" json:"-"`
}

// SessionIdle returns SessionIdleMinutes as a duration.
func (s ServerConfig) SessionIdle() time.Duration {
	return time.Duration(s.SessionIdleMinutes) * time.Minute
}

// StorageConfig locates local state.
type StorageConfig struct {
	// PrefsPath is the SQLite preference database (empty = ~/.farmassist/prefs.db).
	PrefsPath string `toml:"prefs_path" json:"prefs_path"`

	// HistoryPath is the chat REPL history file (empty = ~/.farmassist/history).
	HistoryPath string `toml:"history_path" json:"history_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// UIConfig contains terminal shell settings.
type UIConfig struct {
	Theme          string `toml:"theme" json:"theme"`
	DefaultVariant string `toml:"default_variant" json:"default_variant"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Completion: CompletionConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-3.5-turbo",
			MaxTokens:   150,
			Temperature: 0.7,
			TimeoutSecs: 60,
		},
		Retry: RetryConfig{
			MaxRetries:       3,
			BaseDelayMs:      20000,
			DelayIncrementMs: 20000,
			QuotaWindowMs:    60000,
		},
		Server: ServerConfig{
			Addr:               "127.0.0.1:8787",
			RateLimit:          5,
			RateBurst:          20,
			MaxBodyBytes:       64 * 1024,
			SessionIdleMinutes: 30,
			MaxSessions:        1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:          "auto",
			DefaultVariant: "helper",
		},
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Version == "" {
		cfg.Version = d.Version
	}

	if cfg.Completion.Endpoint == "" {
		cfg.Completion.Endpoint = d.Completion.Endpoint
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = d.Completion.Model
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = d.Completion.MaxTokens
	}
	if cfg.Completion.Temperature == 0 {
		cfg.Completion.Temperature = d.Completion.Temperature
	}
	if cfg.Completion.TimeoutSecs == 0 {
		cfg.Completion.TimeoutSecs = d.Completion.TimeoutSecs
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = d.Retry.MaxRetries
	}
	if cfg.Retry.BaseDelayMs == 0 {
		cfg.Retry.BaseDelayMs = d.Retry.BaseDelayMs
	}
	if cfg.Retry.DelayIncrementMs == 0 {
		cfg.Retry.DelayIncrementMs = d.Retry.DelayIncrementMs
	}
	if cfg.Retry.QuotaWindowMs == 0 {
		cfg.Retry.QuotaWindowMs = d.Retry.QuotaWindowMs
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = d.Server.RateLimit
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = d.Server.RateBurst
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}
	if cfg.Server.SessionIdleMinutes == 0 {
		cfg.Server.SessionIdleMinutes = d.Server.SessionIdleMinutes
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = d.Server.MaxSessions
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = d.UI.Theme
	}
	if cfg.UI.DefaultVariant == "" {
		cfg.UI.DefaultVariant = d.UI.DefaultVariant
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv overrides the configuration directory.
const HomeEnv = "FARMASSIST_HOME"

// ConfigDir returns the farmassist configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".farmassist"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ResolvePath returns path if set, otherwise the first existing default
// config file, otherwise the default TOML path.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// PrefsPath returns the preference database location.
func (c *Config) PrefsPath() (string, error) {
	return c.stateFile(c.Storage.PrefsPath, "prefs.db")
}

// HistoryPath returns the chat REPL history location.
func (c *Config) HistoryPath() (string, error) {
	return c.stateFile(c.Storage.HistoryPath, "history")
}

func (c *Config) stateFile(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config at path (or the default location when path is
// empty), then applies environment overrides and validates the result. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if _, statErr := os.Stat(resolved); statErr == nil {
		cfg = &Config{}
		if strings.HasSuffix(strings.ToLower(resolved), ".json") {
			err = LoadJSON(cfg, resolved)
		} else {
			err = LoadTOML(cfg, resolved)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", resolved, err)
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", resolved, statErr)
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg and fills missing values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file into cfg and fills missing values.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path, choosing the format from the extension. The
// credential fields are never written.
func Save(cfg *Config, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return SaveJSON(cfg, path)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# farmassist configuration file\n")
	b.WriteString("# The API key is read from FARMASSIST_API_KEY (or OPENAI_API_KEY), never from this file.\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITY
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// HasAPIKey reports whether a credential was found in the environment.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.Completion.APIKey) != ""
}

// String renders the config as TOML. Credentials are excluded by their
// struct tags and reported only as set or unset.
func (c *Config) String() string {
	var b strings.Builder
	_ = toml.NewEncoder(&b).Encode(c)
	fmt.Fprintf(&b, "\n# api key: %s\n", setOrUnset(c.HasAPIKey()))
	fmt.Fprintf(&b, "# server auth token: %s\n", setOrUnset(c.Server.AuthToken != ""))
	return b.String()
}

func setOrUnset(ok bool) string {
	if ok {
		return "set"
	}
	return "unset"
}
