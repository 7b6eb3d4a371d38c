// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/phonegate/phonegate/internal/auth"
	"github.com/phonegate/phonegate/pkg/errutil"
)

// statusFor maps a Service error to an HTTP status. Order matters: a duplicate
// sign-up matches both ErrInternal and ErrConflict and is reported as 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to clients for status. Internal detail stays in the logs.
func publicMessage(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "too many failed attempts"
	case http.StatusUnprocessableEntity:
		return "invalid credentials"
	case http.StatusConflict:
		return "phone already registered"
	case http.StatusNotFound:
		return "not found"
	default:
		return "internal error"
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if d, ok := auth.RetryAfter(err); ok {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(d.Seconds()), 10))
		h.metrics.RecordLockout()
	}
	if status >= http.StatusInternalServerError {
		logger := h.logger.With("path", r.URL.Path, "status", status)
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	}
	writeJSON(w, status, ErrorResponse{Error: publicMessage(status), Code: codeFor(status)})
}

func codeFor(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return auth.CodeTooManyAttempts
	case http.StatusUnprocessableEntity:
		return auth.CodeInvalidCredentials
	case http.StatusConflict:
		return "ACCOUNT_CONFLICT"
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	default:
		return auth.CodeInternal
	}
}
