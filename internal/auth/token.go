// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Claims is the identity bound into a signed token.
// The expiry travels in the registered "exp" claim.
type Claims struct {
	AccountID string `json:"id"`
	Phone     string `json:"phone"`
	jwt.RegisteredClaims
}

// Token is a signed token and the moment it stops verifying.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenService signs and verifies HS256 tokens with a single secret key.
// Rotating the key invalidates every outstanding token.
type TokenService struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock overrides the time source used for signing and expiry checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *TokenService) {
		t.now = now
	}
}

// NewTokenService creates a TokenService. Tokens expire validity after signing.
func NewTokenService(secret string, validity time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, oops.Code("TOKEN_INVALID_SECRET").Errorf("signing secret cannot be empty")
	}
	if validity <= 0 {
		return nil, oops.Code("TOKEN_INVALID_VALIDITY").
			With("validity", validity.String()).
			Errorf("token validity must be positive")
	}
	t := &TokenService{
		secret:   []byte(secret),
		validity: validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Validity returns how long a freshly signed token stays valid.
func (t *TokenService) Validity() time.Duration {
	return t.validity
}

// Sign issues a token for the account, expiring Validity from now.
func (t *TokenService) Sign(accountID, phone string) (Token, error) {
	now := t.now()
	claims := Claims{
		AccountID: accountID,
		Phone:     phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.validity)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Token{}, oops.Code("TOKEN_SIGN_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse checks the signature and expiry of token and returns its claims.
// Tokens signed with another key or algorithm, tokens without an expiry and
// tokens whose expiry is not after now are rejected.
func (t *TokenService) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code(CodeTokenExpired).Wrap(err)
		}
		return nil, oops.Code(CodeTokenInvalid).Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code(CodeTokenInvalid).Errorf("token is not valid")
	}
	return claims, nil
}

// Verify reports whether token is authentic and unexpired. It never fails.
func (t *TokenService) Verify(token string) bool {
	_, err := t.Parse(token)
	return err == nil
}
