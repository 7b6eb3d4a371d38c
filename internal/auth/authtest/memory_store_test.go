// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package authtest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phonegate/phonegate/internal/auth"
	"github.com/phonegate/phonegate/internal/auth/authtest"
)

func TestMemoryStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := authtest.NewMemoryStore(nil)

	n, err := store.Insert(ctx, auth.AccountInsert{ID: "a1", Phone: "555", PasswordHash: "H", Salt: "S", CreatedAt: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	byPhone, err := store.GetOne(ctx, auth.AccountQuery{Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "a1", byPhone.ID)
	assert.Equal(t, 0, byPhone.LoginErrorCount)
	assert.Nil(t, byPhone.LastErrorAt)

	byBoth, err := store.GetOne(ctx, auth.AccountQuery{ID: "a1", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, byPhone, byBoth)

	_, err = store.GetOne(ctx, auth.AccountQuery{ID: "a1", Phone: "556"})
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestMemoryStore_DuplicatePhoneConflicts(t *testing.T) {
	ctx := context.Background()
	store := authtest.NewMemoryStore(nil)

	_, err := store.Insert(ctx, auth.AccountInsert{ID: "a1", Phone: "555"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, auth.AccountInsert{ID: "a2", Phone: "555"})
	assert.ErrorIs(t, err, auth.ErrConflict)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_UpdateAppliesOnlySuppliedFields(t *testing.T) {
	ctx := context.Background()
	store := authtest.NewMemoryStore(func() int64 { return 42 })
	_, err := store.Insert(ctx, auth.AccountInsert{ID: "a1", Phone: "555", PasswordHash: "H"})
	require.NoError(t, err)

	count := 2
	at := int64(7)
	n, err := store.Update(ctx, auth.AccountQuery{ID: "a1"}, auth.AccountUpdate{LoginErrorCount: &count, LastErrorAt: &at})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	acct, ok := store.Get("a1")
	require.True(t, ok)
	assert.Equal(t, 2, acct.LoginErrorCount)
	require.NotNil(t, acct.LastErrorAt)
	assert.Equal(t, int64(7), *acct.LastErrorAt)
	assert.Nil(t, acct.LastLoginAt)
	assert.Equal(t, "H", acct.PasswordHash)
	require.NotNil(t, acct.UpdatedAt)
	assert.Equal(t, int64(42), *acct.UpdatedAt)
}

func TestMemoryStore_UpdateWithoutMatchAffectsNothing(t *testing.T) {
	store := authtest.NewMemoryStore(nil)
	count := 1
	n, err := store.Update(context.Background(), auth.AccountQuery{ID: "missing"}, auth.AccountUpdate{LoginErrorCount: &count})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := authtest.NewMemoryStore(nil)
	_, err := store.Insert(ctx, auth.AccountInsert{ID: "a1", Phone: "555"})
	require.NoError(t, err)

	acct, err := store.GetOne(ctx, auth.AccountQuery{ID: "a1"})
	require.NoError(t, err)
	acct.LoginErrorCount = 99

	fresh, ok := store.Get("a1")
	require.True(t, ok)
	assert.Equal(t, 0, fresh.LoginErrorCount)
}

func TestMemoryStore_InjectedErrors(t *testing.T) {
	ctx := context.Background()
	store := authtest.NewMemoryStore(nil)
	boom := errors.New("boom")

	store.InsertErr = boom
	_, err := store.Insert(ctx, auth.AccountInsert{ID: "a1", Phone: "555"})
	assert.ErrorIs(t, err, boom)

	store.GetErr = boom
	_, err = store.GetOne(ctx, auth.AccountQuery{Phone: "555"})
	assert.ErrorIs(t, err, boom)

	store.UpdateErr = boom
	_, err = store.Update(ctx, auth.AccountQuery{ID: "a1"}, auth.AccountUpdate{})
	assert.ErrorIs(t, err, boom)
}

func TestMemoryStore_RejectsEmptyQuery(t *testing.T) {
	store := authtest.NewMemoryStore(nil)
	_, err := store.GetOne(context.Background(), auth.AccountQuery{})
	assert.ErrorIs(t, err, auth.ErrInternal)
}
