// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes farmassist conversations over a small JSON API
// for the mobile shell.
//
// Endpoints:
//   - GET    /health                       - Liveness and session count
//   - GET    /v1/variants                  - Available assistant variants
//   - POST   /v1/sessions                  - Create a session {variant}
//   - GET    /v1/sessions                  - List sessions
//   - GET    /v1/sessions/{id}[?wait=30s]  - Transcript and busy flag
//   - DELETE /v1/sessions/{id}             - Discard a session
//   - POST   /v1/sessions/{id}/messages    - Submit {text}
//   - DELETE /v1/sessions/{id}/messages    - Reset the transcript
//   - GET    /v1/sessions/{id}/transcript  - Transcript as markdown
//
// Submissions are fire-and-forget: 202 means accepted, 200 with
// accepted=false means the text was blank or the session was busy. Failures
// from the completion service never appear as HTTP errors; they arrive as
// transcript messages.
//
// # Middleware
//
// Every request passes through recovery, slog request logging, security
// headers, optional bearer auth, per-IP rate limiting (golang.org/x/time/rate)
// and a body size limit, in that order.
package server
