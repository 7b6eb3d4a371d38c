// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
)

// Store error categories. AccountStore implementations wrap one of these.
var (
	// ErrNotFound is returned when no account matches a query.
	ErrNotFound = errors.New("not found")

	// ErrNetwork is returned when the store could not be reached.
	ErrNetwork = errors.New("store unreachable")

	// ErrInternal is returned for any other store or service failure.
	ErrInternal = errors.New("internal error")

	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Authentication outcomes.
var (
	// ErrTooManyAttempts is returned when sign-in is rejected by the lockout policy.
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrInvalidCredentials is returned for an unknown phone, a wrong password or
	// a token that does not verify.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error codes attached to errors returned by this package.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeTooManyAttempts    = "AUTH_TOO_MANY_ATTEMPTS"
	CodeInternal           = "AUTH_INTERNAL"
	CodeInvalidQuery       = "ACCOUNT_INVALID_QUERY"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
)

// retryAfterKey is the oops context key carrying the remaining lockout in seconds.
const retryAfterKey = "retry_after_seconds"

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

// internalError wraps cause so that it matches both ErrInternal and whatever
// category the cause already carries (ErrNetwork, ErrConflict, ...).
func internalError(operation string, cause error) error {
	return oops.Code(CodeInternal).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrInternal, cause))
}

// RetryAfter reports how long a caller rejected with ErrTooManyAttempts should
// wait before trying again.
func RetryAfter(err error) (time.Duration, bool) {
	if !errors.Is(err, ErrTooManyAttempts) {
		return 0, false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0, false
	}
	secs, ok := oopsErr.Context()[retryAfterKey].(int64)
	if !ok {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
