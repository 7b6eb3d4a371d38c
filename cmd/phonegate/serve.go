// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/phonegate/phonegate/internal/auth"
	"github.com/phonegate/phonegate/internal/auth/postgres"
	"github.com/phonegate/phonegate/internal/config"
	"github.com/phonegate/phonegate/internal/httpapi"
	"github.com/phonegate/phonegate/internal/logging"
	"github.com/phonegate/phonegate/pkg/errutil"
)

const (
	serviceName     = "phonegate"
	shutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *ServeDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API serving /sign_up, /auth, /verify and /logout, plus
the metrics and health server when --metrics-addr is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return oops.With("operation", "load configuration").Wrap(err)
			}
			return runServe(cmd.Context(), cfg, cmd, deps.withDefaults())
		},
	}
}

// runServe runs the API until ctx is cancelled or a listener fails.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	logger, err := logging.Setup(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}
	slog.SetDefault(logger)

	logger.Info("starting phonegate",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"retry_limit", cfg.Lockout.RetryLimit,
		"retry_interval", cfg.RetryInterval(),
		"token_validity", cfg.TokenValidity(),
	)

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	svc, err := newAuthService(cfg, pool, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handlerOpts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithSecureCookie(cfg.HTTP.SecureCookie),
	}

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		handlerOpts = append(handlerOpts, httpapi.WithMetrics(obsServer.Metrics()))
	}
	defer func() {
		if obsServer == nil {
			return
		}
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := obsServer.Stop(stopCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}()

	handler, err := httpapi.NewHandler(svc, handlerOpts...)
	if err != nil {
		return oops.With("operation", "create http handler").Wrap(err)
	}

	listener, err := deps.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	apiServer := httpapi.NewServer(cfg.HTTP.Addr, handler.Routes())

	serveErr := make(chan error, 1)
	go func() {
		if err := apiServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	cmd.Println("phonegate listening on " + listener.Addr().String())
	logger.Info("http server listening", "addr", listener.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		runErr = oops.Code("SERVE_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping http server", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

func newAuthService(cfg *config.Config, pool Pool, logger *slog.Logger) (*auth.Service, error) {
	tokens, err := auth.NewTokenService(cfg.JWT.Key, cfg.TokenValidity())
	if err != nil {
		return nil, oops.With("operation", "create token service").Wrap(err)
	}
	lockout, err := auth.NewLockoutPolicy(cfg.Lockout.RetryLimit, cfg.RetryInterval())
	if err != nil {
		return nil, oops.With("operation", "create lockout policy").Wrap(err)
	}
	svc, err := auth.NewService(
		postgres.NewAccountRepository(pool),
		auth.NewSaltedHasher(),
		tokens,
		lockout,
		auth.WithLogger(logger),
	)
	if err != nil {
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}
	return svc, nil
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
