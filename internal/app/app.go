/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"github.com/chainguard-dev/clog"

	"chainguard.dev/reflecteval/agents/generate"
	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/metrics"
	"chainguard.dev/reflecteval/agents/reflection"
	"chainguard.dev/reflecteval/agents/taxonomy"
	"chainguard.dev/reflecteval/pipeline"
	"chainguard.dev/reflecteval/store"
	"chainguard.dev/reflecteval/store/snapshot"
)

// App is an assembled pipeline and the resources it owns.
type App struct {
	Service  *pipeline.Service
	Taxonomy *taxonomy.Taxonomy

	closers []func() error
}

// Close releases the database and storage clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build opens storage and constructs the generation clients, reflection
// runner, judge and pipeline described by cfg.
func Build(ctx context.Context, cfg *Config) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	tax := taxonomy.Default()
	if cfg.TaxonomyFile != "" {
		if tax, err = LoadTaxonomy(cfg.TaxonomyFile); err != nil {
			return nil, err
		}
	}
	a.Taxonomy = tax

	genMetrics := metrics.NewGenAI("chainguard.dev/reflecteval")
	genMetrics.SetAttributeEnricher(metrics.RoleEnricher)

	agentGen, err := newGenerator(ctx, cfg, cfg.Models.Default, genMetrics)
	if err != nil {
		return nil, fmt.Errorf("agent generation client: %w", err)
	}
	judgeGen := agentGen
	if cfg.EvalModel != cfg.Models.Default {
		if judgeGen, err = newGenerator(ctx, cfg, cfg.EvalModel, genMetrics); err != nil {
			return nil, fmt.Errorf("judge generation client: %w", err)
		}
	}

	var runnerOpts []reflection.Option
	if cfg.PromptVersion != "" {
		runnerOpts = append(runnerOpts, reflection.WithPromptVersion(cfg.PromptVersion))
	}
	runner, err := reflection.NewRunner(agentGen, cfg.Models, runnerOpts...)
	if err != nil {
		return nil, fmt.Errorf("reflection runner: %w", err)
	}

	judgeOpts := []judge.Option{judge.WithTaxonomy(tax), judge.WithModel(cfg.EvalModel)}
	if len(cfg.RequiredAgents) > 0 {
		judgeOpts = append(judgeOpts, judge.WithRequiredAgents(cfg.RequiredAgents...))
	}
	if cfg.EvalMaxTokens > 0 {
		judgeOpts = append(judgeOpts, judge.WithMaxTokens(cfg.EvalMaxTokens))
	}
	if cfg.RubricFile != "" {
		rubric, err := os.ReadFile(cfg.RubricFile)
		if err != nil {
			return nil, fmt.Errorf("reading rubric: %w", err)
		}
		judgeOpts = append(judgeOpts, judge.WithRubric(string(rubric)))
	}
	evaluator, err := judge.NewEvaluator(judgeGen, judgeOpts...)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}

	st, err := store.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)

	snaps, err := a.snapshots(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := pipeline.New(st, runner, evaluator, pipeline.WithSnapshots(snaps))
	if err != nil {
		return nil, err
	}
	a.Service = svc

	clog.FromContext(ctx).With(
		"database", cfg.DatabasePath,
		"agents", runner.Agents(),
		"judge_model", evaluator.Model(),
		"prompt_version", runner.PromptVersion(),
	).Info("pipeline ready")
	return a, nil
}

// snapshots picks the snapshot destination: a bucket, a directory, or none.
func (a *App) snapshots(ctx context.Context, cfg *Config) (snapshot.Writer, error) {
	switch {
	case cfg.SnapshotBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return snapshot.NewGCS(client, cfg.SnapshotBucket, cfg.SnapshotPrefix), nil
	case cfg.SnapshotDir != "":
		return snapshot.NewDir(cfg.SnapshotDir), nil
	default:
		return snapshot.Discard{}, nil
	}
}

func newGenerator(ctx context.Context, cfg *Config, model string, m *metrics.GenAI) (generate.Interface, error) {
	gc := cfg.generateConfig(model)
	gc.Metrics = m
	return generate.New(ctx, gc)
}

// LoadTaxonomy reads a taxonomy YAML file.
func LoadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening taxonomy: %w", err)
	}
	defer f.Close()
	return taxonomy.Load(f)
}
