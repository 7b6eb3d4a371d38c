// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package httpapi

import (
	"net/http"
	"time"
)

// CookieName carries the signed token between client and server.
const CookieName = "JWT-Token"

func tokenCookie(value string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(secure bool) *http.Cookie {
	c := tokenCookie("", time.Unix(0, 0), secure)
	c.MaxAge = -1
	return c
}
