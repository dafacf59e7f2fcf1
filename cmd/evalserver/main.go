/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main serves the journal API: entries, reflection and, when eval
// mode is on, judge evaluations and their reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/reflecteval/api"
	"chainguard.dev/reflecteval/internal/app"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.LoadEnvFiles(ctx); err != nil {
		clog.FatalContextf(ctx, "loading env files: %v", err)
	}
	cfg, err := app.Load(ctx, nil)
	if err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		clog.FatalContextf(ctx, "building pipeline: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			clog.ErrorContextf(ctx, "closing: %v", err)
		}
	}()

	apiCfg := api.Config{
		EvalMode:      cfg.EvalMode,
		EvalAllowProd: cfg.EvalAllowProd,
		Environment:   cfg.Environment,
	}
	if cfg.EvalMode && !apiCfg.EvalEnabled() {
		clog.WarnContextf(ctx, "EVAL_MODE is set but eval routes stay disabled in %s without EVAL_MODE_ALLOW_PROD", cfg.Environment)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.New(a.Service, apiCfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		clog.InfoContextf(ctx, "Starting evalserver on port %d (eval routes enabled: %t)", cfg.Port, apiCfg.EvalEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			clog.FatalContextf(ctx, "server failed: %v", err)
		}
	case <-ctx.Done():
		clog.InfoContextf(ctx, "Shutting down")
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			clog.ErrorContextf(ctx, "shutdown: %v", err)
		}
	}
}
