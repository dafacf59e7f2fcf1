/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"chainguard.dev/reflecteval/agents/judge"
)

func seed(t *testing.T, h *harness, entryID, version string, at time.Time, r *judge.Result) {
	t.Helper()
	r.EntryID = entryID
	r.PromptVersion = version
	r.Timestamp = at.Format(time.RFC3339)
	_, err := h.store.SaveEvaluation(context.Background(), entryID, version, r, at)
	require.NoError(t, err)
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	severe := answer(judge.VerdictFail, "redundancy_severe", "coach_options_not_distinct")
	severe.Redundancy = judge.RedundancyAssessment{Severity: judge.RedundancySevere, OverlappingPoints: []string{"x"}}

	seed(t, h, "e1", "v1", t0, answer(judge.VerdictPass))
	seed(t, h, "e2", "v1", t0.Add(time.Hour), answer(judge.VerdictFail, "coach_options_not_distinct"))
	seed(t, h, "e3", "v2", t0.Add(2*time.Hour), severe)

	got, err := h.svc.Summary(context.Background())
	require.NoError(t, err)

	want := &Summary{
		Totals: []Count{{Key: "fail", Count: 2}, {Key: "pass", Count: 1}},
		ByPromptVersion: []VersionVerdicts{
			{PromptVersion: "v2", Total: 1, Verdicts: []Count{{Key: "fail", Count: 1}}},
			{PromptVersion: "v1", Total: 2, Verdicts: []Count{{Key: "fail", Count: 1}, {Key: "pass", Count: 1}}},
		},
		TopViolations: []Count{{Key: "coach_options_not_distinct", Count: 2}, {Key: "redundancy_severe", Count: 1}},
		ByPromptVersionViolations: []VersionViolations{
			{PromptVersion: "v2", Violations: []Count{{Key: "coach_options_not_distinct", Count: 1}, {Key: "redundancy_severe", Count: 1}}},
			{PromptVersion: "v1", Violations: []Count{{Key: "coach_options_not_distinct", Count: 1}}},
		},
		Redundancy: []Count{{Key: "none", Count: 2}, {Key: "severe", Count: 1}},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Summary{}, "Recent")); diff != "" {
		t.Errorf("Summary: (-want +got):\n%s", diff)
	}

	require.Len(t, got.Recent, 3)
	require.Equal(t, []string{"e3", "e2", "e1"}, []string{got.Recent[0].EntryID, got.Recent[1].EntryID, got.Recent[2].EntryID})
	require.Equal(t, "v2", got.Recent[0].PromptVersion)
}

func TestSummaryEmpty(t *testing.T) {
	got, err := newHarness(t).svc.Summary(context.Background())
	require.NoError(t, err)
	require.Empty(t, got.Totals)
	require.NotNil(t, got.Recent)
	require.NotNil(t, got.ByPromptVersion)
}

func TestSummaryTopViolationsCapped(t *testing.T) {
	h := newHarness(t)
	codes := []string{
		"editor_causal_inference", "editor_adds_new_ideas", "definer_not_in_text",
		"definer_no_operational_defs", "skeptic_over_explains", "skeptic_not_threatening",
		"coach_identity_injection", "coach_options_not_distinct", "format_broken",
		"redundancy_severe", "made_up_code",
	}
	seed(t, h, "e1", "v1", t0, answer(judge.VerdictFail, codes...))
	got, err := h.svc.Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, got.TopViolations, TopViolations)
}

func TestRegressions(t *testing.T) {
	h := newHarness(t)
	seed(t, h, "e1", "v1", t0, answer(judge.VerdictFail, "editor_causal_inference"))
	seed(t, h, "e2", "v1", t0, answer(judge.VerdictFail, "editor_causal_inference", "format_broken"))
	seed(t, h, "e1", "v2", t0.Add(time.Hour), answer(judge.VerdictPass))

	got, err := h.svc.Regressions(context.Background(), "v1", "v2")
	require.NoError(t, err)
	want := &Regression{
		From: VersionReport{
			PromptVersion: "v1",
			Verdicts:      []Count{{Key: "fail", Count: 2}},
			Violations:    []Count{{Key: "editor_causal_inference", Count: 2}, {Key: "format_broken", Count: 1}},
		},
		To: VersionReport{
			PromptVersion: "v2",
			Verdicts:      []Count{{Key: "pass", Count: 1}},
			Violations:    []Count{},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Regressions: (-want +got):\n%s", diff)
	}

	_, err = h.svc.Regressions(context.Background(), "v1", "")
	require.ErrorIs(t, err, ErrVersionsRequired)
}
