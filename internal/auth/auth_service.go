// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/phonegate/phonegate/pkg/errutil"
)

const tracerName = "github.com/phonegate/phonegate/internal/auth"

// SignUpResult is returned by a successful sign-up.
type SignUpResult struct {
	AccountID string
	Token     Token
}

// Service implements sign-up, sign-in and token verification.
// It holds no per-account state; every call reads the account fresh from the store.
type Service struct {
	store   AccountStore
	hasher  PasswordHasher
	tokens  *TokenService
	lockout LockoutPolicy
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source for lockout decisions and timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides account ID allocation.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService creates a new Service.
func NewService(store AccountStore, hasher PasswordHasher, tokens *TokenService, lockout LockoutPolicy, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("account store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token service is required")
	}
	if lockout.RetryLimit <= 0 {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("lockout retry limit must be positive")
	}

	s := &Service{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		lockout: lockout,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		newID:   func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger cannot be nil")
	}
	return s, nil
}

// TokenValidity returns how long issued tokens stay valid.
func (s *Service) TokenValidity() time.Duration {
	return s.tokens.Validity()
}

// SignUp creates an account for phone and returns a token for it.
// Any store failure, including a duplicate phone, is reported as ErrInternal;
// a duplicate additionally matches ErrConflict.
func (s *Service) SignUp(ctx context.Context, phone, password string) (*SignUpResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.SignUp")
	defer span.End()

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, s.fail(ctx, span, internalError("generate salt", err))
	}

	acct := AccountInsert{
		ID:           s.newID(),
		Phone:        phone,
		PasswordHash: s.hasher.Hash(password, salt),
		Salt:         salt,
		CreatedAt:    s.now().Unix(),
	}
	span.SetAttributes(attribute.String("account.id", acct.ID))

	if _, err := s.store.Insert(ctx, acct); err != nil {
		return nil, s.fail(ctx, span, internalError("insert account", err))
	}

	token, err := s.tokens.Sign(acct.ID, acct.Phone)
	if err != nil {
		return nil, s.fail(ctx, span, internalError("sign token", err))
	}

	s.logger.InfoContext(ctx, "account created", "account_id", acct.ID)
	return &SignUpResult{AccountID: acct.ID, Token: token}, nil
}

// SignIn checks the lockout state and password for phone and returns a token.
//
// A locked account is rejected with ErrTooManyAttempts before the password is
// looked at. An unknown phone or a wrong password yields ErrInvalidCredentials;
// a wrong password also records the failure.
func (s *Service) SignIn(ctx context.Context, phone, password string) (*Token, error) {
	ctx, span := s.tracer.Start(ctx, "auth.SignIn")
	defer span.End()

	acct, err := s.store.GetOne(ctx, AccountQuery{Phone: phone})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, s.fail(ctx, span, internalError("get account", err))
	}
	span.SetAttributes(attribute.String("account.id", acct.ID))

	byID := AccountQuery{ID: acct.ID}
	now := s.now()

	decision := s.lockout.CheckBeforeAttempt(acct, now)
	span.SetAttributes(attribute.String("lockout.decision", decision.String()))
	switch decision {
	case Locked:
		retryAfter := s.lockout.RetryAfter(acct, now)
		s.logger.WarnContext(ctx, "sign-in rejected by lockout",
			"account_id", acct.ID,
			"login_error_count", acct.LoginErrorCount,
			"retry_after", retryAfter.String(),
		)
		return nil, oops.Code(CodeTooManyAttempts).
			With("account_id", acct.ID).
			With(retryAfterKey, int64(retryAfter/time.Second)).
			Wrap(ErrTooManyAttempts)
	case ProceedAfterReset:
		if _, err := s.store.Update(ctx, byID, s.lockout.Reset()); err != nil {
			return nil, s.fail(ctx, span, internalError("reset login error count", err))
		}
		acct.LoginErrorCount = 0
		s.logger.DebugContext(ctx, "lockout expired, counters reset", "account_id", acct.ID)
	case Proceed:
	}

	if !s.hasher.Verify(password, acct.PasswordHash, acct.Salt) {
		if _, err := s.store.Update(ctx, byID, s.lockout.OnFailure(acct, now)); err != nil {
			return nil, s.fail(ctx, span, internalError("record login failure", err))
		}
		s.logger.InfoContext(ctx, "sign-in failed",
			"account_id", acct.ID,
			"login_error_count", acct.LoginErrorCount+1,
		)
		return nil, invalidCredentials()
	}

	if _, err := s.store.Update(ctx, byID, s.lockout.OnSuccess(now)); err != nil {
		return nil, s.fail(ctx, span, internalError("record login success", err))
	}

	token, err := s.tokens.Sign(acct.ID, acct.Phone)
	if err != nil {
		return nil, s.fail(ctx, span, internalError("sign token", err))
	}
	return &token, nil
}

// VerifyToken returns nil when token is authentic and unexpired, and
// ErrInvalidCredentials otherwise.
func (s *Service) VerifyToken(ctx context.Context, token string) error {
	_, err := s.Identify(ctx, token)
	return err
}

// Identify returns the claims of a valid token.
func (s *Service) Identify(ctx context.Context, token string) (*Claims, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Identify")
	defer span.End()

	claims, err := s.tokens.Parse(token)
	if err != nil {
		reason := errutil.CodeOf(err)
		s.logger.DebugContext(ctx, "token rejected", "reason", reason, "error", err)
		return nil, oops.Code(CodeInvalidCredentials).
			With("reason", reason).
			Wrap(ErrInvalidCredentials)
	}
	return claims, nil
}

// fail logs an internal error and marks the span before handing err back.
func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	errutil.LogErrorContext(ctx, s.logger, "auth operation failed", err)
	return err
}
