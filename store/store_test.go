/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/reflecteval/agents/judge"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func mustEntry(t *testing.T, s Store, title, body string, at time.Time) *Entry {
	t.Helper()
	e, err := NewEntry(title, body, at)
	require.NoError(t, err)
	require.NoError(t, s.CreateEntry(context.Background(), e))
	return e
}

func score(f float64) *float64 { return &f }

func TestNewEntry(t *testing.T) {
	e, err := NewEntry("  Stuck ", "\n I keep   starting things. \n", t0)
	require.NoError(t, err)
	require.NotEmpty(t, e.ID)
	require.Equal(t, "Stuck", e.Title)
	require.Equal(t, "I keep   starting things.", e.Body)
	require.Equal(t, 4, e.WordCount)
	require.Equal(t, StatusDraft, e.Status)

	if _, err := NewEntry("t", "   ", t0); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("NewEntry(blank body): got = %v, wanted = %v", err, ErrEmptyBody)
	}
	if err := e.Revise("", " ", t0); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("Revise(blank body): got = %v, wanted = %v", err, ErrEmptyBody)
	}
}

func TestEntries(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := mustEntry(t, s, "first", "one two", t0)
			second := mustEntry(t, s, "", "three", t0.Add(time.Hour))
			third := mustEntry(t, s, "third", "four", t0.Add(2*time.Hour))

			got, err := s.GetEntry(ctx, first.ID)
			require.NoError(t, err)
			if diff := cmp.Diff(first, got); diff != "" {
				t.Errorf("GetEntry: (-want +got):\n%s", diff)
			}

			list, err := s.ListEntries(ctx, 2)
			require.NoError(t, err)
			require.Len(t, list, 2)
			require.Equal(t, third.ID, list[0].ID)
			require.Equal(t, second.ID, list[1].ID)

			all, err := s.ListEntries(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)

			require.NoError(t, s.DeleteEntry(ctx, second.ID))
			_, err = s.GetEntry(ctx, second.ID)
			require.ErrorIs(t, err, ErrNotFound)
			require.ErrorIs(t, s.DeleteEntry(ctx, second.ID), ErrNotFound)

			_, err = s.GetEntry(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFeedbackLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			e := mustEntry(t, s, "t", "body text", t0)

			fb := []*Feedback{
				{Agent: "skeptic", Content: "S", Model: "m", PromptVersion: "v1", CreatedAt: t0.Add(time.Minute)},
				{Agent: "coach", Content: "C", Model: "m", PromptVersion: "v1", CreatedAt: t0.Add(2 * time.Minute)},
				{Agent: "editor", Content: "E", Model: "m", PromptVersion: "v1", CreatedAt: t0.Add(time.Minute)},
			}
			require.NoError(t, s.SaveFeedback(ctx, e.ID, fb))
			for _, f := range fb {
				require.NotEmpty(t, f.ID)
				require.Equal(t, e.ID, f.EntryID)
			}

			got, err := s.GetFeedbackForEntry(ctx, e.ID)
			require.NoError(t, err)
			var agents []string
			for _, f := range got {
				agents = append(agents, f.Agent)
			}
			if diff := cmp.Diff([]string{"coach", "editor", "skeptic"}, agents); diff != "" {
				t.Errorf("feedback order: (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(fb[1], got[0]); diff != "" {
				t.Errorf("stored feedback: (-want +got):\n%s", diff)
			}

			stored, err := s.GetEntry(ctx, e.ID)
			require.NoError(t, err)
			require.Equal(t, StatusReflected, stored.Status)
			require.True(t, stored.UpdatedAt.Equal(t0.Add(2*time.Minute)), "UpdatedAt = %v", stored.UpdatedAt)

			// Revising the entry discards its feedback.
			require.NoError(t, stored.Revise("t2", "new body", t0.Add(time.Hour)))
			require.NoError(t, s.UpdateEntry(ctx, stored))
			got, err = s.GetFeedbackForEntry(ctx, e.ID)
			require.NoError(t, err)
			require.Empty(t, got)
			stored, err = s.GetEntry(ctx, e.ID)
			require.NoError(t, err)
			require.Equal(t, StatusDraft, stored.Status)
			require.Equal(t, "new body", stored.Body)

			require.ErrorIs(t, s.SaveFeedback(ctx, "missing", fb), ErrNotFound)
			require.ErrorIs(t, s.UpdateEntry(ctx, &Entry{ID: "missing", Body: "b"}), ErrNotFound)
		})
	}
}

func TestEvaluations(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetLatestEvaluation(ctx, "e1")
			require.ErrorIs(t, err, ErrNotFound)

			mk := func(entryID, version string, v judge.Verdict, at time.Time) *Evaluation {
				t.Helper()
				r := &judge.Result{
					EvalID:        entryID + "-" + version,
					EntryID:       entryID,
					PromptVersion: version,
					Verdict:       v,
					OverallScore:  score(100),
					Violations:    []string{},
					AgentEvals:    map[string]*judge.AgentEvaluation{},
					Redundancy:    judge.RedundancyAssessment{Severity: judge.RedundancyNone},
					Fixes:         []judge.Fix{},
					EvalReasoning: "ok",
				}
				ev, err := s.SaveEvaluation(ctx, entryID, version, r, at)
				require.NoError(t, err)
				return ev
			}
			mk("e1", "v1", judge.VerdictFail, t0)
			latest := mk("e1", "v2", judge.VerdictPass, t0.Add(time.Hour))
			mk("e2", "v1", judge.VerdictFlag, t0.Add(30*time.Minute))

			got, err := s.GetLatestEvaluation(ctx, "e1")
			require.NoError(t, err)
			if diff := cmp.Diff(latest, got); diff != "" {
				t.Errorf("GetLatestEvaluation: (-want +got):\n%s", diff)
			}

			all, err := s.ListEvaluations(ctx, EvaluationFilter{})
			require.NoError(t, err)
			var ids []string
			for _, ev := range all {
				ids = append(ids, ev.Result.EvalID)
			}
			if diff := cmp.Diff([]string{"e1-v2", "e2-v1", "e1-v1"}, ids); diff != "" {
				t.Errorf("ListEvaluations order: (-want +got):\n%s", diff)
			}

			v1, err := s.ListEvaluations(ctx, EvaluationFilter{PromptVersion: "v1", Limit: 1})
			require.NoError(t, err)
			require.Len(t, v1, 1)
			require.Equal(t, "e2-v1", v1[0].Result.EvalID)
		})
	}
}

func TestSQLiteTimestampOrdering(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	// A whole second must sort before a fractional one within the same second.
	whole := mustEntry(t, s, "", "a", t0)
	frac := mustEntry(t, s, "", "b", t0.Add(500*time.Millisecond))

	list, err := s.ListEntries(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{frac.ID, whole.ID}, []string{list[0].ID, list[1].ID})
}
