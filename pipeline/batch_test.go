/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/store"
)

func TestBatchRecent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	oldest := h.reflected(t, "oldest")
	middle := h.reflected(t, "middle")
	draft, err := h.svc.CreateEntry(ctx, "draft", "no feedback yet")
	require.NoError(t, err)

	// Newest first: draft (skipped), middle, oldest.
	h.llm.script(
		encode(t, answer(judge.VerdictFail, "skeptic_over_explains")),
		"not json",
	)
	report, err := h.svc.Batch(ctx, BatchOptions{Mode: BatchRecent, Limit: 3, FailOn: []judge.Verdict{judge.VerdictFail}})
	require.NoError(t, err)

	require.Equal(t, []string{draft.ID}, report.Skipped)
	require.Equal(t, []BatchItem{{
		EntryID:    middle.ID,
		Verdict:    judge.VerdictFail,
		Score:      92,
		Violations: []string{"skeptic_over_explains"},
	}}, report.Items)
	require.Len(t, report.Failures, 2)
	require.Equal(t, Failure{ID: middle.ID, Reason: "Verdict fail"}, report.Failures[0])
	require.Equal(t, oldest.ID, report.Failures[1].ID)
	require.Contains(t, report.Failures[1].Reason, "not readable")
	require.True(t, report.Failed())

	stored, err := h.store.ListEvaluations(ctx, store.EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestBatchAlwaysReevaluates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	e := h.reflected(t, "t")

	h.llm.script(encode(t, answer(judge.VerdictPass)), encode(t, answer(judge.VerdictPass)))
	_, err := h.svc.Evaluate(ctx, e.ID, false)
	require.NoError(t, err)

	report, err := h.svc.Batch(ctx, BatchOptions{})
	require.NoError(t, err)
	require.False(t, report.Failed())
	require.Len(t, report.Items, 1)
	require.Equal(t, 2, h.llm.judgeCalls)
}

func TestBatchRandom(t *testing.T) {
	ctx := context.Background()
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	h := newHarness(t, WithShuffle(reverse))
	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		ids = append(ids, h.reflected(t, title).ID)
	}

	h.llm.script(encode(t, answer(judge.VerdictPass)), encode(t, answer(judge.VerdictPass)))
	report, err := h.svc.Batch(ctx, BatchOptions{Mode: BatchRandom, Limit: 2})
	require.NoError(t, err)

	var got []string
	for _, it := range report.Items {
		got = append(got, it.EntryID)
	}
	// Listed newest first, reversed by the shuffle, then truncated.
	if diff := cmp.Diff(ids[:2], got); diff != "" {
		t.Errorf("random batch: (-want +got):\n%s", diff)
	}
}

func TestBatchErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.svc.Batch(ctx, BatchOptions{Mode: "sideways"})
	require.ErrorContains(t, err, "unknown batch mode")

	first := h.reflected(t, "first")
	h.reflected(t, "second")
	// One answer for two entries: the second judge call cannot be reached.
	h.llm.script(encode(t, answer(judge.VerdictPass)))
	report, err := h.svc.Batch(ctx, BatchOptions{})
	require.Error(t, err)
	require.Equal(t, judge.KindTransport, judge.KindOf(err))
	require.Len(t, report.Items, 1)
	require.False(t, slices.ContainsFunc(report.Items, func(it BatchItem) bool { return it.EntryID == first.ID }))
}
