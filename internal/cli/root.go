// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprout-labs/farmassist/internal/completion"
	"github.com/sprout-labs/farmassist/internal/config"
	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/prefs"
	"github.com/sprout-labs/farmassist/internal/session"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries the state shared by every command of one invocation.
type app struct {
	// Global flags
	configPath string
	verbose    bool
	logFile    string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

// NewRootCommand builds the farmassist command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "farmassist",
		Short: "AI farm diary and farming helper",
		Long: `farmassist pairs an AI farm diary with a farming helper, both backed by
a chat completion service.

Run without a subcommand to open the terminal shell with both panels.
The completion credential is read from FARMASSIST_API_KEY (or
OPENAI_API_KEY), optionally via a .env file; it is never written to disk.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
		RunE: a.runTUI,
	}

	// Global flags
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.farmassist/config.toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "also write JSON logs to this file")

	// Add subcommands
	root.AddCommand(newTUICommand(a))
	root.AddCommand(newAskCommand(a))
	root.AddCommand(newChatCommand(a))
	root.AddCommand(newServeCommand(a))
	root.AddCommand(newPrefsCommand(a))
	root.AddCommand(newConfigCommand(a))
	root.AddCommand(newVersionCommand())

	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads .env files, the configuration and the logger. Commands that
// only report static facts skip it.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "version", "help", "path", "init":
		return nil
	}

	if dir, err := config.ConfigDir(); err == nil {
		if err := config.LoadDotEnv(".env", filepath.Join(dir, ".env")); err != nil {
			return err
		}
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logFile := a.logFile
	if logFile == "" {
		logFile = cfg.Logging.File
	}
	a.logger, a.closeLog = config.SetupLogger(a.consoleFor(cmd), logFile, a.levelFor(cmd))
	a.logger.Debug("configuration loaded",
		"endpoint", cfg.Completion.Endpoint,
		"model", cfg.Completion.Model,
		"api_key", keyState(cfg))
	return nil
}

// consoleFor keeps log lines off the screen while the terminal shell owns it.
func (a *app) consoleFor(cmd *cobra.Command) io.Writer {
	if cmd.Name() == "tui" || !cmd.HasParent() {
		return io.Discard
	}
	return cmd.ErrOrStderr()
}

// levelFor shows warnings and errors only, unless --verbose is set or the
// command is the long-running server.
func (a *app) levelFor(cmd *cobra.Command) slog.Level {
	if a.verbose {
		return slog.LevelDebug
	}
	level := config.ParseLevel(a.cfg.Logging.Level)
	if cmd.Name() != "serve" && level < slog.LevelWarn {
		return slog.LevelWarn
	}
	return level
}

func (a *app) teardown() {
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

func keyState(cfg *config.Config) string {
	if cfg.HasAPIKey() {
		return "set"
	}
	return "unset"
}

// =============================================================================
// SHARED CONSTRUCTORS
// =============================================================================

// newCompleter builds the completion client from the loaded configuration.
func (a *app) newCompleter() (*completion.Client, error) {
	c := a.cfg.Completion
	client, err := completion.New(completion.Options{
		Endpoint:          c.Endpoint,
		APIKey:            c.APIKey,
		Model:             c.Model,
		MaxTokens:         c.MaxTokens,
		Temperature:       c.Temperature,
		Timeout:           time.Duration(c.TimeoutSecs) * time.Second,
		RequestsPerMinute: c.RequestsPerMinute,
		Logger:            a.logger,
	})
	if errors.Is(err, completion.ErrNotConfigured) {
		return nil, &ConfigError{
			Reason: fmt.Sprintf("set %s in the environment or in a .env file", config.EnvAPIKey),
			Err:    err,
		}
	}
	return client, err
}

// newFactory returns a session factory reading the configuration held by
// holder, or a fixed holder around the loaded configuration.
func (a *app) newFactory(holder *config.Holder, opts ...conversation.Option) (session.Factory, error) {
	completer, err := a.newCompleter()
	if err != nil {
		return nil, err
	}
	if holder == nil {
		holder = config.NewHolder(a.cfg, "")
	}
	return session.NewClientFactory(holder, completer, a.logger, opts...), nil
}

// newLiveClient builds a client for variant whose entries are printed to out
// as they arrive.
func (a *app) newLiveClient(out io.Writer, variant conversation.Variant) (*conversation.Client, error) {
	feed := newTranscriptFeed(newTranscriptPrinter(out, console.outputIsTTY(), a.cfg.UI.Theme))
	factory, err := a.newFactory(nil, conversation.WithOnChange(feed.Notify))
	if err != nil {
		return nil, err
	}
	client := factory(variant)
	feed.Attach(client)
	return client, nil
}

// openPrefs opens the preference store named by the configuration.
func (a *app) openPrefs() (*prefs.Store, error) {
	path, err := a.cfg.PrefsPath()
	if err != nil {
		return nil, err
	}
	return prefs.Open(path)
}

// farmName reads the selected farm's display name. Failures only cost the
// header its subtitle.
func (a *app) farmName(ctx context.Context) string {
	store, err := a.openPrefs()
	if err != nil {
		a.logger.Warn("could not open preferences", "error", err)
		return ""
	}
	defer store.Close()

	name, _, err := store.Get(ctx, prefs.KeyFarmName)
	if err != nil {
		a.logger.Warn("could not read farm name", "error", err)
	}
	return name
}

// variantFlag resolves a --variant value, falling back to the configured
// default.
func (a *app) variantFlag(name string) (conversation.Variant, error) {
	if name == "" {
		name = a.cfg.UI.DefaultVariant
	}
	v, err := conversation.LookupVariant(name)
	if err != nil {
		return conversation.Variant{}, &UsageError{
			Reason:  err.Error(),
			Example: "--variant diary | --variant helper",
		}
	}
	return v, nil
}
