// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

// Package httpapi exposes the auth service over HTTP with JSON bodies and a
// token cookie.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/phonegate/phonegate/internal/auth"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 16

// Authenticator is the part of auth.Service the handlers call.
type Authenticator interface {
	SignUp(ctx context.Context, phone, password string) (*auth.SignUpResult, error)
	SignIn(ctx context.Context, phone, password string) (*auth.Token, error)
	VerifyToken(ctx context.Context, token string) error
}

// Metrics receives per-request observations.
type Metrics interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
	RecordLockout()
}

type nopMetrics struct{}

func (nopMetrics) ObserveRequest(string, int, time.Duration) {}
func (nopMetrics) RecordLockout()                             {}

// Handler serves the auth routes.
type Handler struct {
	svc          Authenticator
	logger       *slog.Logger
	metrics      Metrics
	secureCookie bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithSecureCookie marks the token cookie Secure, for deployments behind TLS.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

// NewHandler creates a Handler for svc.
func NewHandler(svc Authenticator, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("authenticator is required")
	}
	h := &Handler{
		svc:     svc,
		logger:  slog.Default(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil || h.metrics == nil {
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("logger and metrics cannot be nil")
	}
	return h, nil
}

// Routes returns the mux with every auth route mounted.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /sign_up", h.instrument("/sign_up", h.handleSignUp))
	mux.Handle("POST /auth", h.instrument("/auth", h.handleSignIn))
	mux.Handle("POST /verify", h.instrument("/verify", h.handleVerify))
	mux.Handle("POST /logout", h.instrument("/logout", h.handleLogout))
	return mux
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SignUp(r.Context(), req.Phone, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, tokenCookie(res.Token.Value, res.Token.ExpiresAt, h.secureCookie))
	writeJSON(w, http.StatusOK, SignUpResponse{AccountID: res.AccountID, ExpiresAt: res.Token.ExpiresAt})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	token, err := h.svc.SignIn(r.Context(), req.Phone, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, tokenCookie(token.Value, token.ExpiresAt, h.secureCookie))
	writeJSON(w, http.StatusOK, SignInResponse{ExpiresAt: token.ExpiresAt})
}

// handleVerify checks the token in the body, or the cookie when the body is empty.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "unreadable body")
		return
	}
	token, err := decodeVerifyBody(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if token == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			token = c.Value
		}
	}
	if err := h.svc.VerifyToken(r.Context(), token); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, expiredCookie(h.secureCookie))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (CredentialsRequest, bool) {
	var req CredentialsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "body too large", Code: "BAD_REQUEST"})
			return req, false
		}
		writeBadRequest(w, "invalid JSON payload")
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return req, false
	}
	return req, true
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: codeFor(http.StatusBadRequest)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}
