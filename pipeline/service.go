/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pipeline ties storage, the reflection agents and the judge
// together: it reflects on entries, evaluates the feedback, and aggregates
// stored evaluations into reports.
package pipeline

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/reflection"
	"chainguard.dev/reflecteval/store"
	"chainguard.dev/reflecteval/store/snapshot"
)

// DefaultCacheSize is the number of latest evaluations kept in memory.
const DefaultCacheSize = 256

// Entry listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var (
	// ErrNoFeedback is returned when an entry has no feedback to evaluate.
	ErrNoFeedback = errors.New("no feedback to evaluate")
	// ErrVersionsRequired is returned when a regression report is missing a
	// prompt version.
	ErrVersionsRequired = errors.New("from and to are required")
)

// Service is the application layer shared by the HTTP API and the CLI.
type Service struct {
	store     store.Store
	runner    *reflection.Runner
	evaluator *judge.Evaluator
	snapshots snapshot.Writer
	cache     *lru.Cache[string, *store.Evaluation]
	now       func() time.Time
	shuffle   func(n int, swap func(i, j int))
}

// Option configures a Service.
type Option func(*Service) error

// WithSnapshots writes a snapshot of every newly reflected entry.
func WithSnapshots(w snapshot.Writer) Option {
	return func(s *Service) error {
		if w == nil {
			return errors.New("snapshot writer cannot be nil")
		}
		s.snapshots = w
		return nil
	}
}

// WithCacheSize sets how many latest evaluations are cached.
func WithCacheSize(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return fmt.Errorf("cache size must be positive, got %d", n)
		}
		cache, err := lru.New[string, *store.Evaluation](n)
		if err != nil {
			return err
		}
		s.cache = cache
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// WithShuffle overrides how random batches are drawn.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(s *Service) error {
		if shuffle == nil {
			return errors.New("shuffle cannot be nil")
		}
		s.shuffle = shuffle
		return nil
	}
}

// New constructs a Service.
func New(st store.Store, runner *reflection.Runner, evaluator *judge.Evaluator, opts ...Option) (*Service, error) {
	switch {
	case st == nil:
		return nil, errors.New("store is required")
	case runner == nil:
		return nil, errors.New("reflection runner is required")
	case evaluator == nil:
		return nil, errors.New("evaluator is required")
	}
	cache, err := lru.New[string, *store.Evaluation](DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:     st,
		runner:    runner,
		evaluator: evaluator,
		snapshots: snapshot.Discard{},
		cache:     cache,
		now:       time.Now,
		shuffle:   rand.Shuffle,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Evaluator returns the configured judge.
func (s *Service) Evaluator() *judge.Evaluator { return s.evaluator }

// PromptVersion is the version of the agent prompts in use.
func (s *Service) PromptVersion() string { return s.runner.PromptVersion() }
