// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes transport failures.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNetworkTimeout
	ErrTypeHTTP
	ErrTypeMalformedResponse
	ErrTypeUserAbort
	ErrTypeConnection
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeNetworkTimeout:
		return "timeout"
	case ErrTypeHTTP:
		return "http"
	case ErrTypeMalformedResponse:
		return "malformed_response"
	case ErrTypeUserAbort:
		return "aborted"
	case ErrTypeConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Type    ErrorType
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by type, and by status when the sentinel has one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Status == 0 || t.Status == e.Status)
}

// Sentinel errors for errors.Is checks.
var (
	ErrTimeout             = &Error{Type: ErrTypeNetworkTimeout, Message: "request timed out"}
	ErrAborted             = &Error{Type: ErrTypeUserAbort, Message: "request cancelled"}
	ErrConnection          = &Error{Type: ErrTypeConnection, Message: "cannot reach backend"}
	ErrMalformed           = &Error{Type: ErrTypeMalformedResponse, Message: "unexpected response body"}
	ErrAuthFailed          = &Error{Type: ErrTypeHTTP, Status: http.StatusUnauthorized, Message: "authentication failed"}
	ErrInsufficientCredits = &Error{Type: ErrTypeHTTP, Status: http.StatusPaymentRequired, Message: "insufficient credits"}
	ErrRateLimited         = &Error{Type: ErrTypeHTTP, Status: http.StatusTooManyRequests, Message: "rate limited, try again shortly"}
)

// requestError classifies an error from http.Client.Do or the limiter.
func requestError(ctx context.Context, op string, err error) *Error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return &Error{Type: ErrTypeUserAbort, Message: op + " cancelled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Type: ErrTypeNetworkTimeout, Message: op + " timed out", Cause: err}
	default:
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return &Error{Type: ErrTypeNetworkTimeout, Message: op + " timed out", Cause: err}
		}
		return &Error{Type: ErrTypeConnection, Message: op + " failed", Cause: err}
	}
}

// statusError builds the error for a non-2xx response. body is the raw
// error body; only its first 100 characters are kept.
func statusError(op string, status int, body []byte) *Error {
	detail := string(body)
	if r := []rune(detail); len(r) > 100 {
		detail = string(r[:100])
	}
	msg := fmt.Sprintf("%s: backend error %d", op, status)
	switch status {
	case http.StatusUnauthorized:
		msg = op + ": " + ErrAuthFailed.Message
	case http.StatusPaymentRequired:
		msg = op + ": " + ErrInsufficientCredits.Message
	case http.StatusTooManyRequests:
		msg = op + ": " + ErrRateLimited.Message
	}
	if detail != "" {
		msg += " (" + detail + ")"
	}
	return &Error{Type: ErrTypeHTTP, Status: status, Message: msg}
}

// IsRetryable reports whether trying the same request again may help.
func IsRetryable(err error) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	switch te.Type {
	case ErrTypeNetworkTimeout, ErrTypeConnection:
		return true
	case ErrTypeHTTP:
		return te.Status == http.StatusTooManyRequests || te.Status >= 500
	}
	return false
}
