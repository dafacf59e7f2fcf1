/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main is the evaluation command line: it evaluates stored entries,
// runs batches and calibration suites, and prints reports.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/reflecteval/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.LoadEnvFiles(ctx); err != nil {
		clog.FatalContextf(ctx, "loading env files: %v", err)
	}

	root, closeApp := newRootCmd(os.Stdout, func(ctx context.Context) (*app.App, error) {
		cfg, err := app.Load(ctx, nil)
		if err != nil {
			return nil, err
		}
		return app.Build(ctx, cfg)
	})
	err := root.ExecuteContext(ctx)
	if cerr := closeApp(); cerr != nil {
		clog.WarnContextf(ctx, "closing: %v", cerr)
	}
	if err != nil {
		if !errors.Is(err, errFailures) {
			clog.ErrorContextf(ctx, "%v", err)
		}
		cancel()
		os.Exit(1)
	}
}
