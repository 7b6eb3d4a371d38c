// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// CredentialsRequest is the body of /sign_up and /auth.
type CredentialsRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Validate requires both fields.
func (r CredentialsRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" || r.Password == "" {
		return errors.New("phone and password are required")
	}
	return nil
}

// ChangePasswordRequest is the body shape for a password change.
// No route accepts it yet.
type ChangePasswordRequest struct {
	Phone       string `json:"phone"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Validate requires every field.
func (r ChangePasswordRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" || r.OldPassword == "" || r.NewPassword == "" {
		return errors.New("phone, old_password and new_password are required")
	}
	return nil
}

// SignUpResponse is returned by /sign_up. The token itself travels in the cookie.
type SignUpResponse struct {
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignInResponse is returned by /auth.
type SignInResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var errMalformedToken = errors.New(`body must be a JSON string or {"token": "..."}`)

// decodeVerifyBody accepts a bare JSON string or an object with a token field.
// An empty body yields "".
func decodeVerifyBody(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", nil
	}
	switch body[0] {
	case '"':
		var token string
		if err := json.Unmarshal(body, &token); err != nil {
			return "", errMalformedToken
		}
		return token, nil
	case '{':
		var req struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return "", errMalformedToken
		}
		return req.Token, nil
	default:
		return "", errMalformedToken
	}
}
