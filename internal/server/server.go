// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8787"

	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 64 * 1024

	// MaxWait bounds the ?wait= long-poll on GET /v1/sessions/{id}.
	MaxWait = 60 * time.Second

	// Version is the API version reported by /health.
	Version = "0.1.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server. Zero values take defaults.
type Options struct {
	Addr           string
	AuthToken      string
	RateLimit      float64
	RateBurst      int
	MaxBodyBytes   int64
	DefaultVariant string
}

// Server exposes the session registry over HTTP.
type Server struct {
	opts     Options
	router   *http.ServeMux
	handler  http.Handler
	server   *http.Server
	sessions *session.Manager
	logger   *slog.Logger
	started  time.Time
}

// New builds a Server around sessions.
func New(sessions *session.Manager, opts Options, logger *slog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.DefaultVariant == "" {
		opts.DefaultVariant = conversation.Helper.Name
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		opts:     opts,
		router:   http.NewServeMux(),
		sessions: sessions,
		logger:   logger,
		started:  time.Now(),
	}
	s.setupRoutes()

	s.handler = Chain(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
		AuthMiddleware(opts.AuthToken, logger),
		RateLimitMiddleware(NewRateLimiter(opts.RateLimit, opts.RateBurst), logger),
		BodyLimitMiddleware(opts.MaxBodyBytes),
	)(s.router)
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.opts.Addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /v1/variants", s.handleVariants)

	s.router.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.router.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)

	s.router.HandleFunc("POST /v1/sessions/{id}/messages", s.handleSubmit)
	s.router.HandleFunc("DELETE /v1/sessions/{id}/messages", s.handleReset)
	s.router.HandleFunc("GET /v1/sessions/{id}/transcript", s.handleTranscript)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Sessions      int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Sessions:      s.sessions.Len(),
	})
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"variants": conversation.Variants()})
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	Variant string `json:"variant"`
}

// CreateSessionResponse is returned with 201 Created.
type CreateSessionResponse struct {
	ID      string `json:"id"`
	Variant string `json:"variant"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, statusForDecodeError(err), err.Error())
		return
	}
	if strings.TrimSpace(req.Variant) == "" {
		req.Variant = s.opts.DefaultVariant
	}

	sess, err := s.sessions.Create(req.Variant)
	switch {
	case errors.Is(err, conversation.ErrUnknownVariant):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	w.Header().Set("Location", "/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, CreateSessionResponse{ID: sess.ID, Variant: sess.Variant.Name})
}

// SessionSummary is one entry of GET /v1/sessions.
type SessionSummary struct {
	ID           string    `json:"id"`
	Variant      string    `json:"variant"`
	Busy         bool      `json:"busy"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list := s.sessions.List()
	out := make([]SessionSummary, 0, len(list))
	for _, st := range list {
		out = append(out, SessionSummary{
			ID:           st.ID,
			Variant:      st.Variant,
			Busy:         st.Busy,
			MessageCount: len(st.Messages),
			LastActivity: st.LastActivity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// handleGetSession returns the session status. With ?wait=<duration> it
// first blocks until the in-flight submission finishes or the wait expires.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid wait %q", raw))
			return
		}
		if wait > MaxWait {
			wait = MaxWait
		}
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		_ = sess.Client.Wait(ctx)
		cancel()
	}

	writeJSON(w, http.StatusOK, sess.Status())
}

// handleTranscript returns the conversation as a markdown document.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, sess.Client.Markdown())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitRequest is the body of POST /v1/sessions/{id}/messages.
type SubmitRequest struct {
	Text string `json:"text"`
}

// SubmitResponse reports whether the text was accepted. Blank text and
// submissions while busy are not accepted and change nothing.
type SubmitResponse struct {
	Accepted bool `json:"accepted"`
	Busy     bool `json:"busy"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, statusForDecodeError(err), err.Error())
		return
	}

	accepted := sess.Client.Submit(req.Text)
	status := http.StatusOK
	if accepted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, SubmitResponse{Accepted: accepted, Busy: sess.Client.Busy()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Client.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      MaxWait + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String(), "version", Version,
			"auth", s.opts.AuthToken != "")
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads one JSON object from the body. allowEmpty accepts an
// empty body as the zero value.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return errEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return maxErr
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func statusForDecodeError(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
