// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

// Package postgres implements auth.AccountStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/phonegate/phonegate/internal/auth"
)

// poolIface is the subset of pgxpool.Pool used by AccountRepository.
// pgxmock.PgxPoolIface satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, phone, password_hash, salt, login_error_count,
		       last_login_at, last_error_at, created_at, updated_at`

// AccountRepository implements auth.AccountStore using PostgreSQL.
type AccountRepository struct {
	pool poolIface
	now  func() time.Time
}

// Option configures an AccountRepository.
type Option func(*AccountRepository)

// WithClock overrides the time source used to stamp updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *AccountRepository) {
		r.now = now
	}
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface, opts ...Option) *AccountRepository {
	r := &AccountRepository{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert stores a new account. A duplicate phone wraps auth.ErrConflict.
func (r *AccountRepository) Insert(ctx context.Context, acct auth.AccountInsert) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO account (id, phone, password_hash, salt, login_error_count, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
	`, acct.ID, acct.Phone, acct.PasswordHash, acct.Salt, acct.CreatedAt)
	if err != nil {
		return 0, classify(err, oops.
			With("operation", "insert account").
			With("account_id", acct.ID))
	}
	return tag.RowsAffected(), nil
}

// Update applies the supplied fields of u to the accounts matching q and
// stamps updated_at. An empty update writes nothing.
func (r *AccountRepository) Update(ctx context.Context, q auth.AccountQuery, u auth.AccountUpdate) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, oops.With("operation", "update account").Wrap(fmt.Errorf("%w: %w", auth.ErrInternal, err))
	}
	if u.IsEmpty() {
		return 0, nil
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.PasswordHash != nil {
		set("password_hash", *u.PasswordHash)
	}
	if u.LoginErrorCount != nil {
		set("login_error_count", *u.LoginErrorCount)
	}
	if u.LastLoginAt != nil {
		set("last_login_at", *u.LastLoginAt)
	}
	if u.LastErrorAt != nil {
		set("last_error_at", *u.LastErrorAt)
	}
	set("updated_at", r.now().Unix())

	where, args := whereClause(q, args)
	sql := "UPDATE account SET " + strings.Join(sets, ", ") + " WHERE " + where

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, classify(err, oops.
			With("operation", "update account").
			With("id", q.ID).
			With("phone", q.Phone))
	}
	return tag.RowsAffected(), nil
}

// GetOne returns the account matching q.
func (r *AccountRepository) GetOne(ctx context.Context, q auth.AccountQuery) (*auth.Account, error) {
	if err := q.Validate(); err != nil {
		return nil, oops.With("operation", "get account").Wrap(fmt.Errorf("%w: %w", auth.ErrInternal, err))
	}
	where, args := whereClause(q, nil)
	row := r.pool.QueryRow(ctx, "SELECT "+accountColumns+" FROM account WHERE "+where+" LIMIT 1", args...)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", q.ID).
			With("phone", q.Phone).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err, oops.
			With("operation", "get account").
			With("id", q.ID).
			With("phone", q.Phone))
	}
	return acct, nil
}

// whereClause renders q as an AND of equality predicates, numbering
// placeholders after the existing args.
func whereClause(q auth.AccountQuery, args []any) (string, []any) {
	var preds []string
	if q.ID != "" {
		args = append(args, q.ID)
		preds = append(preds, fmt.Sprintf("id = $%d", len(args)))
	}
	if q.Phone != "" {
		args = append(args, q.Phone)
		preds = append(preds, fmt.Sprintf("phone = $%d", len(args)))
	}
	return strings.Join(preds, " AND "), args
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var acct auth.Account
	if err := row.Scan(
		&acct.ID,
		&acct.Phone,
		&acct.PasswordHash,
		&acct.Salt,
		&acct.LoginErrorCount,
		&acct.LastLoginAt,
		&acct.LastErrorAt,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers classify the driver error
	}
	return &acct, nil
}

// classify wraps a driver error in the auth store category it belongs to.
func classify(err error, b oops.OopsErrorBuilder) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return b.Code("ACCOUNT_CONFLICT").
				With("constraint", pgErr.ConstraintName).
				Wrap(fmt.Errorf("%w: %w", auth.ErrConflict, err))
		case pgerrcode.IsConnectionException(pgErr.Code), pgerrcode.IsOperatorIntervention(pgErr.Code):
			return b.Code("ACCOUNT_STORE_UNREACHABLE").
				Wrap(fmt.Errorf("%w: %w", auth.ErrNetwork, err))
		}
		return b.Code("ACCOUNT_STORE_FAILED").
			With("pg_code", pgErr.Code).
			Wrap(fmt.Errorf("%w: %w", auth.ErrInternal, err))
	}
	if isNetworkError(err) {
		return b.Code("ACCOUNT_STORE_UNREACHABLE").
			Wrap(fmt.Errorf("%w: %w", auth.ErrNetwork, err))
	}
	return b.Code("ACCOUNT_STORE_FAILED").
		Wrap(fmt.Errorf("%w: %w", auth.ErrInternal, err))
}

func isNetworkError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

var _ auth.AccountStore = (*AccountRepository)(nil)
