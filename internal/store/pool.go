// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig controls how Connect opens and checks the pool.
type PoolConfig struct {
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32

	// PingAttempts is how many times the startup ping is tried.
	PingAttempts uint64

	// PingBackoff is the first delay between ping attempts; it doubles each time.
	PingBackoff time.Duration
}

// DefaultPoolConfig returns the settings used by the serve command.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		PingAttempts: 5,
		PingBackoff:  200 * time.Millisecond,
	}
}

// pinger is the part of pgxpool.Pool that Connect checks before returning.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pgx pool for databaseURL and waits until the server answers.
func Connect(ctx context.Context, databaseURL string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := waitForDatabase(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// waitForDatabase pings p with exponential backoff until it answers or the
// attempts run out.
func waitForDatabase(ctx context.Context, p pinger, cfg PoolConfig) error {
	attempts := cfg.PingAttempts
	if attempts == 0 {
		attempts = 1
	}
	backoff := cfg.PingBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var tries uint64
	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		tries++
		if err := p.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "attempt", tries, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_UNREACHABLE").
			With("attempts", tries).
			Wrap(err)
	}
	return nil
}
