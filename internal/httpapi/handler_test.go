// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/phonegate/phonegate/internal/auth"
	"github.com/phonegate/phonegate/internal/auth/authtest"
	"github.com/phonegate/phonegate/internal/httpapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type recordingMetrics struct {
	requests map[string]int
	lockouts int
}

func (m *recordingMetrics) ObserveRequest(route string, status int, _ time.Duration) {
	m.requests[route+" "+http.StatusText(status)]++
}

func (m *recordingMetrics) RecordLockout() { m.lockouts++ }

type testEnv struct {
	handler http.Handler
	store   *authtest.MemoryStore
	clock   *clock
	metrics *recordingMetrics
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	store := authtest.NewMemoryStore(func() int64 { return c.now().Unix() })
	tokens, err := auth.NewTokenService("http-secret", 24*time.Hour, auth.WithTokenClock(c.now))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := auth.NewService(store, auth.NewSaltedHasher(), tokens,
		auth.LockoutPolicy{RetryLimit: 3, RetryInterval: time.Minute},
		auth.WithClock(c.now), auth.WithLogger(logger))
	require.NoError(t, err)

	metrics := &recordingMetrics{requests: map[string]int{}}
	h, err := httpapi.NewHandler(svc, httpapi.WithLogger(logger), httpapi.WithMetrics(metrics))
	require.NoError(t, err)
	return &testEnv{handler: h.Routes(), store: store, clock: c, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func tokenCookieOf(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == httpapi.CookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", httpapi.CookieName)
	return nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestSignUp(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, "/sign_up", `{"phone":"555","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := tokenCookieOf(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, env.clock.t.Add(24*time.Hour).UTC(), cookie.Expires.UTC())

	var body httpapi.SignUpResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.AccountID)
	assert.Equal(t, 1, env.store.Len())

	t.Run("duplicate phone is a conflict", func(t *testing.T) {
		rec := env.do(t, "/sign_up", `{"phone":"555","password":"other"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "ACCOUNT_CONFLICT", errorCode(t, rec))
	})
}

func TestSignUp_BadRequests(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `phone=555`},
		{name: "missing password", body: `{"phone":"555"}`},
		{name: "blank phone", body: `{"phone":"  ","password":"pw"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "/sign_up", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "BAD_REQUEST", errorCode(t, rec))
		})
	}
	assert.Zero(t, env.store.Len())
}

func TestSignUp_LargeBody(t *testing.T) {
	env := newEnv(t)
	body := `{"phone":"555","password":"` + strings.Repeat("x", 1<<17) + `"}`
	rec := env.do(t, "/sign_up", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuth_LockoutFlow(t *testing.T) {
	env := newEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, "/sign_up", `{"phone":"555","password":"pw"}`).Code)

	for range 3 {
		rec := env.do(t, "/auth", `{"phone":"555","password":"wrong"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, auth.CodeInvalidCredentials, errorCode(t, rec))
	}

	env.clock.t = env.clock.t.Add(time.Second)
	rec := env.do(t, "/auth", `{"phone":"555","password":"pw"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "59", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, env.metrics.lockouts)

	env.clock.t = env.clock.t.Add(61 * time.Second)
	rec = env.do(t, "/auth", `{"phone":"555","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := tokenCookieOf(t, rec)

	verify := env.do(t, "/verify", "", cookie)
	assert.Equal(t, http.StatusOK, verify.Code)
}

func TestAuth_UnknownPhone(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, "/auth", `{"phone":"nobody","password":"pw"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuth_StoreFailure(t *testing.T) {
	env := newEnv(t)
	env.store.GetErr = oops.Wrapf(auth.ErrNetwork, "connection reset")

	rec := env.do(t, "/auth", `{"phone":"555","password":"pw"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, auth.CodeInternal, errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestVerify(t *testing.T) {
	env := newEnv(t)
	signUp := env.do(t, "/sign_up", `{"phone":"555","password":"pw"}`)
	require.Equal(t, http.StatusOK, signUp.Code)
	token := tokenCookieOf(t, signUp).Value

	quoted, err := json.Marshal(token)
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		cookies []*http.Cookie
		want    int
	}{
		{name: "bare json string", body: string(quoted), want: http.StatusOK},
		{name: "token object", body: `{"token":` + string(quoted) + `}`, want: http.StatusOK},
		{name: "cookie fallback", body: "", cookies: []*http.Cookie{{Name: httpapi.CookieName, Value: token}}, want: http.StatusOK},
		{name: "body wins over cookie", body: `"garbage"`, cookies: []*http.Cookie{{Name: httpapi.CookieName, Value: token}}, want: http.StatusUnprocessableEntity},
		{name: "garbage token", body: `"garbage"`, want: http.StatusUnprocessableEntity},
		{name: "nothing supplied", body: "", want: http.StatusUnprocessableEntity},
		{name: "malformed body", body: `[1,2]`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "/verify", tt.body, tt.cookies...)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("expired token", func(t *testing.T) {
		env.clock.t = env.clock.t.Add(24 * time.Hour)
		rec := env.do(t, "/verify", string(quoted))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, "/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := tokenCookieOf(t, rec)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0)
	assert.True(t, cookie.HttpOnly)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	env := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/auth", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRoutes_RecordMetrics(t *testing.T) {
	env := newEnv(t)
	env.do(t, "/sign_up", `{"phone":"555","password":"pw"}`)
	env.do(t, "/auth", `{"phone":"555","password":"bad"}`)

	assert.Equal(t, 1, env.metrics.requests["/sign_up OK"])
	assert.Equal(t, 1, env.metrics.requests["/auth Unprocessable Entity"])
}

type failingAuthenticator struct{ err error }

func (f failingAuthenticator) SignUp(context.Context, string, string) (*auth.SignUpResult, error) {
	return nil, f.err
}

func (f failingAuthenticator) SignIn(context.Context, string, string) (*auth.Token, error) {
	return nil, f.err
}

func (f failingAuthenticator) VerifyToken(context.Context, string) error { return f.err }

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: oops.Wrap(auth.ErrNotFound), want: http.StatusNotFound},
		{name: "network", err: oops.Wrap(auth.ErrNetwork), want: http.StatusInternalServerError},
		{name: "internal", err: oops.Wrap(auth.ErrInternal), want: http.StatusInternalServerError},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
		{name: "too many attempts", err: auth.ErrTooManyAttempts, want: http.StatusTooManyRequests},
		{name: "invalid credentials", err: auth.ErrInvalidCredentials, want: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			h, err := httpapi.NewHandler(failingAuthenticator{err: tt.err},
				httpapi.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"phone":"1","password":"2"}`))
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, rec.Header().Get("Retry-After"))
		})
	}
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := httpapi.NewHandler(nil)
	assert.Error(t, err)

	_, err = httpapi.NewHandler(failingAuthenticator{}, httpapi.WithLogger(nil))
	assert.Error(t, err)
}
