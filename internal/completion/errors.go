// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"errors"
	"fmt"
	"net/http"
)

// Error variables for common completion failures.
var (
	// ErrNotConfigured indicates no credential was supplied.
	ErrNotConfigured = errors.New("completion credential not configured")

	// ErrRateLimited indicates the service answered HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoChoices indicates a 2xx response without any completion choice.
	ErrNoChoices = errors.New("response contained no choices")

	// ErrEmptyReply indicates a 2xx response whose reply text was blank.
	ErrEmptyReply = errors.New("response contained an empty reply")
)

// ServiceError is a non-2xx answer from the completion service.
type ServiceError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("completion service error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("completion service error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("completion service error (HTTP %d)", e.Status)
}

// Unwrap lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *ServiceError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// TransportError covers everything that went wrong before a well-formed
// answer could be read: connection failures, timeouts, cancelled contexts,
// unreadable or malformed bodies.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("completion %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err came from an HTTP 429 response.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Detail extracts the text a user should see for err: the server-supplied
// error.message when there is one, otherwise a generic description of what
// failed.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.Message != "" {
			return svcErr.Message
		}
		return fmt.Sprintf("Request failed with status code %d", svcErr.Status)
	}
	var tErr *TransportError
	if errors.As(err, &tErr) && tErr.Err != nil {
		return tErr.Err.Error()
	}
	return err.Error()
}
