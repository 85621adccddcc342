// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sprout-labs/farmassist/internal/config"
	"github.com/sprout-labs/farmassist/internal/server"
	"github.com/sprout-labs/farmassist/internal/session"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation API over HTTP",
		Long: `Serve the conversation API over HTTP for the mobile shell.

Every session is an independent conversation. Edits to the config file
are picked up without a restart and apply to sessions created afterwards.
Set FARMASSIST_SERVER_TOKEN to require a bearer token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8787)")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	path, err := config.ResolvePath(a.configPath)
	if err != nil {
		return err
	}
	holder := config.NewHolder(a.cfg, path)
	holder.OnChange(func(cfg *config.Config) {
		a.logger.Info("configuration reloaded", "path", path)
	})

	watcher, err := config.NewWatcher(holder, config.DefaultDebounce, a.logger)
	if err != nil {
		a.logger.Warn("config hot reload disabled", "error", err)
	} else {
		if err := watcher.Start(); err != nil {
			a.logger.Warn("config hot reload disabled", "error", err)
		}
		defer watcher.Close()
	}

	factory, err := a.newFactory(holder)
	if err != nil {
		return err
	}

	sc := a.cfg.Server
	manager := session.NewManager(session.Config{
		IdleTimeout: sc.SessionIdle(),
		MaxSessions: sc.MaxSessions,
	}, factory, a.logger)
	defer manager.Close()

	if sc.AuthToken == "" && !isLoopback(sc.Addr) {
		a.logger.Warn("serving without authentication on a non-loopback address",
			"addr", sc.Addr, "hint", "set "+config.EnvServerToken)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go manager.Run(ctx)

	srv := server.New(manager, server.Options{
		Addr:           sc.Addr,
		AuthToken:      sc.AuthToken,
		RateLimit:      sc.RateLimit,
		RateBurst:      sc.RateBurst,
		MaxBodyBytes:   sc.MaxBodyBytes,
		DefaultVariant: a.cfg.UI.DefaultVariant,
	}, a.logger)
	return srv.ListenAndServe(ctx)
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
