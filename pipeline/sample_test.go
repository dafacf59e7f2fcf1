/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/store"
)

func TestSample(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.llm.script(
		encode(t, answer(judge.VerdictPass)),
		encode(t, answer(judge.VerdictFlag, "coach_options_not_distinct")),
	)

	report, err := h.svc.Sample(ctx, SampleEntries[:2], []judge.Verdict{judge.VerdictFlag})
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	require.Equal(t, judge.VerdictPass, report.Items[0].Verdict)
	require.Equal(t, judge.VerdictFlag, report.Items[1].Verdict)
	require.Len(t, report.Failures, 1)
	require.Equal(t, report.Items[1].EntryID, report.Failures[0].ID)
	require.Equal(t, 10, h.llm.agentCalls)

	entries, err := h.store.ListEntries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, store.StatusReflected, e.Status)
	}
	evals, err := h.store.ListEvaluations(ctx, store.EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, evals, 2)
}

func TestSampleStopsOnAgentFailure(t *testing.T) {
	h := newHarness(t)
	h.llm.agentErr = errors.New("connection refused")

	report, err := h.svc.Sample(context.Background(), SampleEntries[:3], nil)
	require.ErrorContains(t, err, "connection refused")
	require.NotNil(t, report)
	require.Empty(t, report.Items)
	require.Zero(t, h.llm.judgeCalls)
}

func TestSampleNeedsEntries(t *testing.T) {
	_, err := newHarness(t).svc.Sample(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestSampleEntries(t *testing.T) {
	require.Len(t, SampleEntries, 7)
	for _, se := range SampleEntries {
		require.NotEmpty(t, se.Title)
		require.NotEmpty(t, strings.TrimSpace(se.Body))
	}
}
