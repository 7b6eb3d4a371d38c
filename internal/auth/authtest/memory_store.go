// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

// Package authtest provides test helpers for the auth package.
package authtest

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/phonegate/phonegate/internal/auth"
)

// MemoryStore is an in-memory AccountStore. Phones are unique.
// Set the *Err fields to make the next calls of that kind fail.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account // id -> account
	now      func() int64

	InsertErr error
	UpdateErr error
	GetErr    error

	updates int
}

// NewMemoryStore creates an empty MemoryStore. now stamps UpdatedAt on writes;
// nil leaves UpdatedAt unset.
func NewMemoryStore(now func() int64) *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*auth.Account),
		now:      now,
	}
}

// Insert implements auth.AccountStore.
func (m *MemoryStore) Insert(_ context.Context, acct auth.AccountInsert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	for _, existing := range m.accounts {
		if existing.Phone == acct.Phone {
			return 0, oops.With("phone", acct.Phone).Wrapf(auth.ErrConflict, "phone already registered")
		}
	}
	if _, ok := m.accounts[acct.ID]; ok {
		return 0, oops.With("account_id", acct.ID).Wrapf(auth.ErrConflict, "id already used")
	}
	m.accounts[acct.ID] = &auth.Account{
		ID:           acct.ID,
		Phone:        acct.Phone,
		PasswordHash: acct.PasswordHash,
		Salt:         acct.Salt,
		CreatedAt:    acct.CreatedAt,
	}
	return 1, nil
}

// Update implements auth.AccountStore.
func (m *MemoryStore) Update(_ context.Context, q auth.AccountQuery, u auth.AccountUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return 0, m.UpdateErr
	}
	if err := q.Validate(); err != nil {
		return 0, oops.Wrapf(auth.ErrInternal, "%s", err.Error())
	}
	var n int64
	for _, acct := range m.accounts {
		if !q.Matches(acct) {
			continue
		}
		u.Apply(acct)
		if m.now != nil {
			at := m.now()
			acct.UpdatedAt = &at
		}
		n++
	}
	m.updates++
	return n, nil
}

// GetOne implements auth.AccountStore. The returned account is a copy.
func (m *MemoryStore) GetOne(_ context.Context, q auth.AccountQuery) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if err := q.Validate(); err != nil {
		return nil, oops.Wrapf(auth.ErrInternal, "%s", err.Error())
	}
	for _, acct := range m.accounts {
		if q.Matches(acct) {
			return copyAccount(acct), nil
		}
	}
	return nil, oops.With("id", q.ID).With("phone", q.Phone).Wrap(auth.ErrNotFound)
}

// Get returns a copy of the account with id, for assertions.
func (m *MemoryStore) Get(id string) (*auth.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[id]
	if !ok {
		return nil, false
	}
	return copyAccount(acct), true
}

// Put stores acct as-is, replacing any account with the same ID.
func (m *MemoryStore) Put(acct auth.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[acct.ID] = copyAccount(&acct)
}

// Len returns the number of stored accounts.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

// Updates returns the number of Update calls that reached the store.
func (m *MemoryStore) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func copyAccount(acct *auth.Account) *auth.Account {
	c := *acct
	if acct.LastLoginAt != nil {
		v := *acct.LastLoginAt
		c.LastLoginAt = &v
	}
	if acct.LastErrorAt != nil {
		v := *acct.LastErrorAt
		c.LastErrorAt = &v
	}
	if acct.UpdatedAt != nil {
		v := *acct.UpdatedAt
		c.UpdatedAt = &v
	}
	return &c
}

var _ auth.AccountStore = (*MemoryStore)(nil)
