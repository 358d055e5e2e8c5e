// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers branch on.
var (
	// ErrAuthExpired is returned when the CMS rejects the session token
	// or when no token is available for an authenticated call.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrNoToken is returned before any network activity when an
	// authenticated call is attempted without a session token.
	ErrNoToken = fmt.Errorf("%w: no session token", ErrAuthExpired)
)

// AuthExpiredError reports a 401 or 403 response from the CMS.
type AuthExpiredError struct {
	Status int
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("cms: authentication expired (status %d)", e.Status)
}

// Is makes errors.Is(err, ErrAuthExpired) succeed.
func (e *AuthExpiredError) Is(target error) bool {
	return target == ErrAuthExpired
}

// ServerError reports any other non-success response.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("cms: server error (status %d)", e.Status)
	}
	return fmt.Sprintf("cms: server error (status %d): %s", e.Status, e.Body)
}

// Message extracts the human readable message from a CMS error body
// such as {"error":{"status":400,"message":"..."}}. It falls back to the
// raw body.
func (e *ServerError) Message() string {
	if msg := errorMessage([]byte(e.Body)); msg != "" {
		return msg
	}
	return e.Body
}

// NetworkError reports a transport failure or timeout.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("cms: %s: request timed out", e.Op)
	}
	return fmt.Sprintf("cms: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTimeout) succeed for timeouts.
func (e *NetworkError) Is(target error) bool {
	return e.Timeout && target == ErrTimeout
}

// IsAuthExpired reports whether err means the session must be re-established.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}
