// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// Account is a stored identity keyed by phone. Timestamps are epoch seconds.
type Account struct {
	ID              string
	Phone           string
	PasswordHash    string
	Salt            string
	LoginErrorCount int
	LastLoginAt     *int64
	LastErrorAt     *int64
	CreatedAt       int64
	UpdatedAt       *int64
}

// AccountInsert holds the fields written when an account is created.
type AccountInsert struct {
	ID           string
	Phone        string
	PasswordHash string
	Salt         string
	CreatedAt    int64
}

// AccountQuery addresses a single account by ID and/or phone.
// Empty fields are not part of the filter; supplied fields combine with AND.
type AccountQuery struct {
	ID    string
	Phone string
}

// Validate rejects a query that would match every account.
func (q AccountQuery) Validate() error {
	if q.ID == "" && q.Phone == "" {
		return oops.Code(CodeInvalidQuery).Errorf("account query needs an id or a phone")
	}
	return nil
}

// Matches reports whether acct satisfies the query.
func (q AccountQuery) Matches(acct *Account) bool {
	if acct == nil {
		return false
	}
	if q.ID != "" && q.ID != acct.ID {
		return false
	}
	if q.Phone != "" && q.Phone != acct.Phone {
		return false
	}
	return true
}

// AccountUpdate is a partial update. Only non-nil fields are written.
type AccountUpdate struct {
	PasswordHash    *string
	LoginErrorCount *int
	LastLoginAt     *int64
	LastErrorAt     *int64
}

// IsEmpty reports whether the update writes nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.PasswordHash == nil && u.LoginErrorCount == nil && u.LastLoginAt == nil && u.LastErrorAt == nil
}

// Apply writes the supplied fields onto acct.
func (u AccountUpdate) Apply(acct *Account) {
	if u.PasswordHash != nil {
		acct.PasswordHash = *u.PasswordHash
	}
	if u.LoginErrorCount != nil {
		acct.LoginErrorCount = *u.LoginErrorCount
	}
	if u.LastLoginAt != nil {
		v := *u.LastLoginAt
		acct.LastLoginAt = &v
	}
	if u.LastErrorAt != nil {
		v := *u.LastErrorAt
		acct.LastErrorAt = &v
	}
}

// AccountStore is the persistence contract used by Service.
//
// Errors must wrap ErrNotFound, ErrNetwork, ErrConflict or ErrInternal.
// Update is a plain write: it does not serialize concurrent read-modify-write
// cycles on the same account.
type AccountStore interface {
	// Insert stores a new account and returns the number of rows written.
	Insert(ctx context.Context, acct AccountInsert) (int64, error)

	// Update applies u to the accounts matching q and returns the number affected.
	Update(ctx context.Context, q AccountQuery, u AccountUpdate) (int64, error)

	// GetOne returns the account matching q, or ErrNotFound.
	GetOne(ctx context.Context, q AccountQuery) (*Account, error)
}
