/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/reflecteval/agents/generate"
	"chainguard.dev/reflecteval/agents/generate/generatetest"
	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/reflection"
	"chainguard.dev/reflecteval/internal/app"
	"chainguard.dev/reflecteval/pipeline"
	"chainguard.dev/reflecteval/store"
)

const reply = "NOTES:\nA short, plain reply."

// newService returns a pipeline whose agents all reply with reply and whose
// judge returns verdict with evidence quoted from the replies.
func newService(t *testing.T, verdict judge.Verdict) *pipeline.Service {
	t.Helper()
	var judgeSystem string
	gen := generatetest.ByRole(func(req generate.Request) (string, error) {
		if req.System != judgeSystem {
			return reply, nil
		}
		score := 100.0
		r := &judge.Result{
			Verdict:       verdict,
			OverallScore:  &score,
			Violations:    []string{},
			AgentEvals:    map[string]*judge.AgentEvaluation{},
			Redundancy:    judge.RedundancyAssessment{Severity: judge.RedundancyNone},
			EvalReasoning: "Plain replies.",
		}
		for _, agent := range reflection.DefaultAgents {
			r.AgentEvals[agent] = &judge.AgentEvaluation{
				RolePurity:         judge.RolePurityClean,
				RolePurityEvidence: "A short, plain reply.",
				FormatCompliance:   judge.FormatCompliant,
				PressureLevel:      judge.PressureCalibrated,
			}
		}
		b, err := json.Marshal(r)
		return string(b), err
	})
	runner, err := reflection.NewRunner(gen, reflection.ModelConfig{Default: "agent-model"})
	require.NoError(t, err)
	ev, err := judge.NewEvaluator(gen, judge.WithModel("judge-model"))
	require.NoError(t, err)
	judgeSystem = ev.SystemPrompt()
	svc, err := pipeline.New(store.NewMemory(), runner, ev)
	require.NoError(t, err)
	return svc
}

func run(t *testing.T, svc *pipeline.Service, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root, closeApp := newRootCmd(&out, func(context.Context) (*app.App, error) {
		if svc == nil {
			return nil, errors.New("pipeline not available")
		}
		return &app.App{Service: svc}, nil
	})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	require.NoError(t, closeApp())
	return out.String(), err
}

func TestTaxonomyNeedsNoPipeline(t *testing.T) {
	out, err := run(t, nil, "taxonomy")
	require.NoError(t, err)
	require.Contains(t, out, "format_broken")
}

func TestSchemaNeedsNoPipeline(t *testing.T) {
	out, err := run(t, nil, "schema")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, out)
	require.Contains(t, props, "verdict")
	require.Contains(t, props, "agentEvals")
	require.NotContains(t, doc, "$schema")
}

func TestSample(t *testing.T) {
	out, err := run(t, newService(t, judge.VerdictPass), "sample")
	require.NoError(t, err)
	require.Equal(t, len(pipeline.SampleEntries), strings.Count(out, "pass"), out)

	out, err = run(t, newService(t, judge.VerdictFlag), "sample", "--fail-on", "flag")
	require.ErrorIs(t, err, errFailures)
	require.Contains(t, out, "Verdict flag")
}

func TestSummaryNeedsPipeline(t *testing.T) {
	_, err := run(t, nil, "summary")
	require.ErrorContains(t, err, "pipeline not available")
}

func TestBatchFailOn(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, judge.VerdictFlag)
	e, err := svc.CreateEntry(ctx, "", "Another week of the same meeting.")
	require.NoError(t, err)
	_, err = svc.Reflect(ctx, e.ID)
	require.NoError(t, err)

	out, err := run(t, svc, "batch", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, e.ID)

	out, err = run(t, svc, "batch", "--fail-on", "fail,flag")
	require.ErrorIs(t, err, errFailures)
	require.Contains(t, out, "Verdict flag")
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, judge.VerdictPass)
	e, err := svc.CreateEntry(ctx, "Tuesday", "I said no to the extra project.")
	require.NoError(t, err)
	_, err = svc.Reflect(ctx, e.ID)
	require.NoError(t, err)

	out, err := run(t, svc, "evaluate", e.ID)
	require.NoError(t, err)
	var ev pipeline.Evaluation
	require.NoError(t, json.Unmarshal([]byte(out), &ev))
	require.Equal(t, judge.VerdictPass, ev.Result.Verdict)

	out, err = run(t, svc, "transcript", e.ID)
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "I said no to the extra project."), out)

	_, err = run(t, svc, "evaluate", "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegressionsRequiresFlags(t *testing.T) {
	_, err := run(t, newService(t, judge.VerdictPass), "regressions", "--from", "v1")
	require.ErrorContains(t, err, "to")
}

func TestParseVerdicts(t *testing.T) {
	got, err := parseVerdicts([]string{" FAIL", "flag", ""})
	require.NoError(t, err)
	if diff := cmp.Diff([]judge.Verdict{judge.VerdictFail, judge.VerdictFlag}, got); diff != "" {
		t.Errorf("parseVerdicts (-want +got):\n%s", diff)
	}

	_, err = parseVerdicts([]string{"maybe"})
	require.ErrorContains(t, err, `unknown verdict "maybe"`)
}
