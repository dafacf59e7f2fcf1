/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chainguard.dev/reflecteval/agents/generate"
	"chainguard.dev/reflecteval/agents/generate/generatetest"
	"chainguard.dev/reflecteval/agents/result"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 14, 15, 9, 26, 0, time.FixedZone("EST", -5*60*60))

func newTestEvaluator(t *testing.T, gen generate.Interface, opts ...Option) *Evaluator {
	t.Helper()
	opts = append([]Option{
		WithModel("judge/model"),
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string { return "eval-1" }),
	}, opts...)
	e, err := NewEvaluator(gen, opts...)
	require.NoError(t, err)
	return e
}

var testInput = Input{EntryID: "entry-1", PromptVersion: "v1", Transcript: testTranscript}

func TestEvaluateFirstTry(t *testing.T) {
	r := failingResult()
	r.OverallScore = ptr(3.0) // self-reported, in range, discarded
	gen := generatetest.Texts(mustJSON(t, r))
	e := newTestEvaluator(t, gen)

	got, err := e.Evaluate(context.Background(), testInput)
	require.NoError(t, err)
	require.Equal(t, 1, gen.Calls())

	require.Equal(t, VerdictFail, got.Verdict)
	require.Equal(t, 88.0, got.Score())
	require.Equal(t, []string{"editor_causal_inference"}, got.Violations)
	require.Equal(t, "eval-1", got.EvalID)
	require.Equal(t, "entry-1", got.EntryID)
	require.Equal(t, "v1", got.PromptVersion)
	require.Equal(t, "judge/model", got.Model)
	require.Equal(t, "2026-03-14T20:09:26Z", got.Timestamp)
	require.Equal(t, testTranscript, got.FullTranscript)
	require.NotNil(t, got.Fixes)

	req := gen.Requests()[0]
	require.Equal(t, e.SystemPrompt(), req.System)
	require.Equal(t, UserMessage(testTranscript, "v1", nil), req.User)
	require.Equal(t, DefaultTemperature, req.Temperature)
	require.EqualValues(t, DefaultMaxTokens, req.MaxTokens)
	require.Equal(t, "judge/model", req.Model)
}

func TestEvaluateKeepsJudgeIdentifiers(t *testing.T) {
	r := validResult()
	r.EvalID = "judge-supplied"
	r.Timestamp = "2025-01-01T00:00:00Z"
	r.EntryID = "wrong-entry"
	gen := generatetest.Texts(mustJSON(t, r))

	got, err := newTestEvaluator(t, gen).Evaluate(context.Background(), testInput)
	require.NoError(t, err)
	require.Equal(t, "judge-supplied", got.EvalID)
	require.Equal(t, "2025-01-01T00:00:00Z", got.Timestamp)
	require.Equal(t, "entry-1", got.EntryID)
}

func TestEvaluateRetryConvergence(t *testing.T) {
	first := validResult()
	delete(first.AgentEvals, "risk")
	second := validResult()

	gen := generatetest.Texts(mustJSON(t, first), mustJSON(t, second))
	e := newTestEvaluator(t, gen)

	retriesBefore := testutil.ToFloat64(retryCounter)
	out, err := e.Run(context.Background(), testInput)
	require.NoError(t, err)
	require.Equal(t, 2, gen.Calls())
	require.Equal(t, 2, out.Calls)
	require.Equal(t, 1.0, testutil.ToFloat64(retryCounter)-retriesBefore)

	reqs := gen.Requests()
	require.NotContains(t, reqs[0].User, "VALIDATION_ERRORS")
	require.Contains(t, reqs[1].User, "missing_agent_eval:risk")
	require.Equal(t, UserMessage(testTranscript, "v1", []string{"missing_agent_eval:risk"}), reqs[1].User)
	require.Equal(t, DefaultRetryTemperature, reqs[1].Temperature)
	require.Equal(t, reqs[0].System, reqs[1].System)

	require.Contains(t, out.Result.AgentEvals, "risk")

	var states []State
	for _, tr := range out.Transitions {
		states = append(states, tr.State)
	}
	want := []State{
		StateBuildPrompt, StateGenerate, StateParse, StateSanitizeScore, StateValidate,
		StateRetry, StateGenerate, StateParse, StateSanitizeScore, StateValidate, StateDone,
	}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Errorf("states: (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"missing_agent_eval:risk"}, out.Transitions[4].Errors)
	require.Equal(t, 2, out.Transitions[len(out.Transitions)-1].Attempt)
}

func TestEvaluateTerminalFailure(t *testing.T) {
	bad := failingResult()
	bad.AgentEvals["editor"].RolePurityEvidence = ""

	gen := generatetest.Texts(mustJSON(t, bad), mustJSON(t, bad))
	out, err := newTestEvaluator(t, gen).Run(context.Background(), testInput)
	require.Error(t, err)
	require.Nil(t, out.Result)
	require.Equal(t, 2, gen.Calls())

	var jerr *Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, KindValidation, jerr.Kind)
	require.Equal(t, []string{
		"missing_role_purity:editor",
		"missing_role_evidence_for:editor_causal_inference",
	}, jerr.Errors)
	require.Contains(t, err.Error(), "internally inconsistent even after one correction attempt")
	require.Equal(t, StateFailed, out.Transitions[len(out.Transitions)-1].State)

	// The rejected answer is kept as the judge sent it.
	require.NotNil(t, out.Rejected)
	require.Equal(t, 88.0, out.Rejected.Score())
	require.Empty(t, out.Rejected.AgentEvals["editor"].RolePurityEvidence)
}

func TestEvaluateForeignCodesStripped(t *testing.T) {
	first := validResult()
	first.Verdict = VerdictFlag
	first.Violations = []string{"not_a_real_code"}
	second := validResult()
	second.Verdict = VerdictFlag
	second.Violations = []string{"skeptic_over_explains", "skeptic_over_explains"}

	gen := generatetest.Texts(mustJSON(t, first), mustJSON(t, second))
	got, err := newTestEvaluator(t, gen).Evaluate(context.Background(), testInput)
	require.NoError(t, err)
	require.Contains(t, gen.Requests()[1].User, "invalid_violations:not_a_real_code")
	require.Equal(t, []string{"skeptic_over_explains"}, got.Violations)
	require.Equal(t, 92.0, got.Score())
}

func TestEvaluateMissingScoreIsRetried(t *testing.T) {
	first := validResult()
	first.OverallScore = nil

	gen := generatetest.Texts(mustJSON(t, first), mustJSON(t, validResult()))
	got, err := newTestEvaluator(t, gen).Evaluate(context.Background(), testInput)
	require.NoError(t, err)
	require.Contains(t, gen.Requests()[1].User, "invalid_score")
	require.Equal(t, 100.0, got.Score())
}

func TestEvaluateMistypedFieldIsRetried(t *testing.T) {
	first := strings.Replace(mustJSON(t, validResult()), `"verdict":"pass"`, `"verdict":7`, 1)

	gen := generatetest.Texts(first, mustJSON(t, validResult()))
	got, err := newTestEvaluator(t, gen).Evaluate(context.Background(), testInput)
	require.NoError(t, err)
	require.Contains(t, gen.Requests()[1].User, "invalid_verdict")
	require.Equal(t, VerdictPass, got.Verdict)
}

func TestEvaluateRecoversWrappedJSON(t *testing.T) {
	text := "Here is the result:\n```json\n" + mustJSON(t, validResult()) + "\n```\nThanks!"
	gen := generatetest.Texts(text)

	out, err := newTestEvaluator(t, gen).Run(context.Background(), testInput)
	require.NoError(t, err)
	require.Equal(t, result.StrategyBalanced, out.Transitions[2].Strategy)
}

func TestEvaluateParseFailureIsFatal(t *testing.T) {
	gen := generatetest.Texts("I cannot evaluate this transcript.", mustJSON(t, validResult()))
	out, err := newTestEvaluator(t, gen).Run(context.Background(), testInput)
	require.Error(t, err)
	require.Equal(t, KindParse, KindOf(err))
	require.Equal(t, 1, gen.Calls())
	require.ErrorIs(t, err, result.ErrNoJSON)
	require.Nil(t, out.Result)
}

func TestEvaluateTransportFailureIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "timeout", err: generate.ErrTimeout},
		{name: "unauthorized", err: generate.ErrUnauthorized},
		{name: "upstream", err: &generate.UpstreamError{Status: 502, Body: "bad gateway"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := generatetest.New(
				generatetest.Reply{Err: tt.err},
				generatetest.Reply{Text: mustJSON(t, validResult())},
			)
			_, err := newTestEvaluator(t, gen).Evaluate(context.Background(), testInput)
			require.Equal(t, KindTransport, KindOf(err))
			require.ErrorIs(t, err, tt.err)
			require.True(t, generate.IsTransport(err))
			require.Equal(t, 1, gen.Calls())
			require.Contains(t, err.Error(), "could not reach the judge")
		})
	}
}

func TestEvaluateRetryTransportFailure(t *testing.T) {
	first := validResult()
	first.EvalReasoning = ""
	gen := generatetest.New(
		generatetest.Reply{Text: mustJSON(t, first)},
		generatetest.Reply{Err: generate.ErrTimeout},
	)
	_, err := newTestEvaluator(t, gen).Evaluate(context.Background(), testInput)
	require.Equal(t, KindTransport, KindOf(err))
	require.Equal(t, 2, gen.Calls())
}

func TestEvaluateWithoutModelIsMisconfigured(t *testing.T) {
	ctx := context.Background()
	gen, err := generate.New(ctx, generate.Config{Provider: generate.OpenRouter, APIKey: "k"})
	require.NoError(t, err)
	e, err := NewEvaluator(gen)
	require.NoError(t, err)

	out, err := e.Run(ctx, testInput)
	require.Equal(t, KindConfiguration, KindOf(err))
	require.ErrorIs(t, err, generate.ErrNoModel)
	require.False(t, generate.IsTransport(err))
	require.Equal(t, 1, out.Calls)
	require.Nil(t, out.Result)
}

func TestEvaluateEmptyTranscript(t *testing.T) {
	gen := generatetest.Texts()
	_, err := newTestEvaluator(t, gen).Evaluate(context.Background(), Input{EntryID: "e", Transcript: "  "})
	require.Equal(t, KindConfiguration, KindOf(err))
	require.Equal(t, 0, gen.Calls())
}

func TestNewEvaluatorErrors(t *testing.T) {
	gen := generatetest.Texts()
	tests := []struct {
		name string
		gen  generate.Interface
		opts []Option
	}{
		{name: "nil generator", gen: nil},
		{name: "negative temperature", gen: gen, opts: []Option{WithTemperature(-1)}},
		{name: "zero max tokens", gen: gen, opts: []Option{WithMaxTokens(0)}},
		{name: "no agents", gen: gen, opts: []Option{WithRequiredAgents()}},
		{name: "uppercase agent", gen: gen, opts: []Option{WithRequiredAgents("Editor")}},
		{name: "nil taxonomy", gen: gen, opts: []Option{WithTaxonomy(nil)}},
		{name: "broken rubric", gen: gen, opts: []Option{WithRubric("judge {{this")}},
		{name: "unbindable rubric", gen: gen, opts: []Option{WithRubric("judge {{mystery}}")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvaluator(tt.gen, tt.opts...)
			require.Equal(t, KindConfiguration, KindOf(err))
		})
	}
}

func TestEvaluateCustomConfiguration(t *testing.T) {
	r := validResult()
	for _, agent := range []string{"definer", "risk", "skeptic"} {
		delete(r.AgentEvals, agent)
	}
	gen := generatetest.Texts(mustJSON(t, r))
	e := newTestEvaluator(t, gen,
		WithRequiredAgents("editor", "coach"),
		WithRubric("Judge these agents:\n{{agents}}"),
		WithTemperature(0.7),
		WithMaxTokens(500),
	)
	require.Equal(t, "Judge these agents:\n- editor\n- coach", e.SystemPrompt())

	_, err := e.Evaluate(context.Background(), testInput)
	require.NoError(t, err)
	req := gen.Requests()[0]
	require.Equal(t, 0.7, req.Temperature)
	require.EqualValues(t, 500, req.MaxTokens)
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")
	for kind, want := range map[Kind]string{
		KindTransport:     "could not reach the judge: boom",
		KindParse:         "judge's answer was not readable: boom",
		KindConfiguration: "evaluation misconfigured: boom",
	} {
		err := &Error{Kind: kind, Err: cause}
		require.Equal(t, want, err.Error())
		require.ErrorIs(t, err, cause)
	}
	require.Equal(t, Kind(0), KindOf(cause))
}
