/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/reflection"
	"chainguard.dev/reflecteval/store"
)

func golden() *Golden {
	g := &Golden{Outputs: map[string]string{}}
	g.Entry.Title = "Stuck"
	g.Entry.Body = "I keep starting projects and never finishing them."
	for agent, text := range agentText {
		g.Outputs[agent] = text
	}
	return g
}

func TestCalibrate(t *testing.T) {
	h := newHarness(t)
	suite := &CalibrationSuite{
		Version: "cal-v1",
		Cases: []CalibrationCase{
			{ID: "clean", ExpectedVerdict: judge.VerdictPass, Golden: golden()},
			{ID: "coach", ExpectedVerdict: judge.VerdictFail, ExpectedViolations: []string{"coach_options_not_distinct"}, Golden: golden()},
		},
	}
	h.llm.script(encode(t, answer(judge.VerdictPass)), encode(t, answer(judge.VerdictPass)))

	report, err := h.svc.Calibrate(context.Background(), suite, CalibrateOptions{})
	require.NoError(t, err)
	require.True(t, report.Failed())

	want := []Failure{
		{ID: "coach", Reason: "Verdict mismatch (expected fail, got pass)"},
		{ID: "coach", Reason: "Missing violations: coach_options_not_distinct"},
	}
	if diff := cmp.Diff(want, report.Failures); diff != "" {
		t.Errorf("Failures: (-want +got):\n%s", diff)
	}
	require.Len(t, report.Results, 2)
	require.Equal(t, 100.0, report.Results[0].Score)

	// Calibration never persists.
	all, err := h.store.ListEvaluations(context.Background(), store.EvaluationFilter{})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCalibrateRepairEvidence(t *testing.T) {
	misquoted := answer(judge.VerdictPass)
	misquoted.AgentEvals[reflection.Editor].RolePurityEvidence = "The author is afraid of failure."
	suite := &CalibrationSuite{Version: "cal-v1", Cases: []CalibrationCase{
		{ID: "misquote", ExpectedVerdict: judge.VerdictPass, Golden: golden()},
	}}

	t.Run("without repair", func(t *testing.T) {
		h := newHarness(t)
		h.llm.script(encode(t, misquoted), encode(t, misquoted))
		report, err := h.svc.Calibrate(context.Background(), suite, CalibrateOptions{})
		require.NoError(t, err)
		require.Len(t, report.Failures, 1)
		require.Contains(t, report.Failures[0].Reason, "role_evidence_not_in_transcript")
		require.Empty(t, report.Results)
	})

	t.Run("with repair", func(t *testing.T) {
		h := newHarness(t)
		h.llm.script(encode(t, misquoted), encode(t, misquoted))
		report, err := h.svc.Calibrate(context.Background(), suite, CalibrateOptions{RepairEvidence: true})
		require.NoError(t, err)
		require.False(t, report.Failed(), "failures: %v", report.Failures)
		require.Equal(t, []CaseResult{{
			ID:         "misquote",
			Verdict:    judge.VerdictPass,
			Score:      100,
			Violations: []string{},
			Repaired:   true,
		}}, report.Results)
	})
}

func TestCalibrateTransportFailureAborts(t *testing.T) {
	h := newHarness(t)
	suite := &CalibrationSuite{Cases: []CalibrationCase{{ID: "a", ExpectedVerdict: judge.VerdictPass, Golden: golden()}}}
	_, err := h.svc.Calibrate(context.Background(), suite, CalibrateOptions{})
	require.Error(t, err)
	require.Equal(t, judge.KindTransport, judge.KindOf(err))
}

func TestOrderedOutputs(t *testing.T) {
	h := newHarness(t)
	got := h.svc.orderedOutputs(map[string]string{"poet": "p", "coach": "c", "editor": "e", "alpha": "a"})
	var agents []string
	for _, o := range got {
		agents = append(agents, o.Agent)
	}
	if diff := cmp.Diff([]string{"editor", "coach", "alpha", "poet"}, agents); diff != "" {
		t.Errorf("orderedOutputs: (-want +got):\n%s", diff)
	}
}

func TestLoadCalibration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cases"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cases", "a.json"), []byte(`{
		"entry": {"title": "T", "body": "B"},
		"outputs": {"editor": "E"}
	}`), 0o600))
	suitePath := filepath.Join(dir, "calibration.json")
	require.NoError(t, os.WriteFile(suitePath, []byte(`{
		"version": "v3",
		"cases": [
			{"id": "a", "path": "cases/a.json", "expectedVerdict": "fail", "expectedViolations": ["format_broken"]},
			{"id": "b", "expectedVerdict": "pass", "golden": {"entry": {"body": "inline"}, "outputs": {}}}
		]
	}`), 0o600))

	suite, err := LoadCalibration(suitePath)
	require.NoError(t, err)
	require.Equal(t, "v3", suite.Version)
	require.Len(t, suite.Cases, 2)
	require.Equal(t, "B", suite.Cases[0].Golden.Entry.Body)
	require.Equal(t, map[string]string{"editor": "E"}, suite.Cases[0].Golden.Outputs)
	require.Equal(t, []string{"format_broken"}, suite.Cases[0].ExpectedViolations)
	require.Equal(t, "inline", suite.Cases[1].Golden.Entry.Body)

	require.NoError(t, os.WriteFile(suitePath, []byte(`{"cases": [{"id": "c"}]}`), 0o600))
	_, err = LoadCalibration(suitePath)
	require.ErrorContains(t, err, `case "c" has neither path nor golden data`)

	_, err = LoadCalibration(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
