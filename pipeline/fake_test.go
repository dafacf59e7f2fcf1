/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chainguard.dev/reflecteval/agents/generate"
	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/reflection"
	"chainguard.dev/reflecteval/store"
	"chainguard.dev/reflecteval/store/snapshot"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// agentText is what each fake agent replies.
var agentText = map[string]string{
	reflection.Editor:  "SUMMARY:\nThe author does not finish projects.",
	reflection.Definer: "KEY TERMS:\n- \"finish\" means shipped to one reader.",
	reflection.Risk:    "RISKS:\n- Another abandoned project by spring.",
	reflection.Skeptic: "CHALLENGES:\n- Fear may be a cover story.",
	reflection.Coach:   "OPTIONS:\n- Ship something small this week.",
}

// quote returns the part of an agent's reply after its heading.
func quote(agent string) string {
	text := agentText[agent]
	return text[strings.Index(text, "\n")+1:]
}

func answer(verdict judge.Verdict, violations ...string) *judge.Result {
	score := 100.0
	r := &judge.Result{
		Verdict:       verdict,
		OverallScore:  &score,
		Violations:    append([]string{}, violations...),
		AgentEvals:    map[string]*judge.AgentEvaluation{},
		Redundancy:    judge.RedundancyAssessment{Severity: judge.RedundancyNone},
		EvalReasoning: "Roles were respected.",
	}
	for agent := range agentText {
		r.AgentEvals[agent] = &judge.AgentEvaluation{
			RolePurity:         judge.RolePurityClean,
			RolePurityEvidence: quote(agent),
			FormatCompliance:   judge.FormatCompliant,
			PressureLevel:      judge.PressureCalibrated,
		}
	}
	return r
}

func encode(t *testing.T, r *judge.Result) string {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return string(b)
}

// fakeLLM serves agent prompts from agentText and judge prompts from a queue.
type fakeLLM struct {
	mu          sync.Mutex
	judgeSystem string
	answers     []string
	judgeCalls  int
	agentCalls  int
	agentErr    error
}

func (f *fakeLLM) Generate(_ context.Context, req generate.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.System == f.judgeSystem {
		f.judgeCalls++
		if len(f.answers) == 0 {
			return "", errors.New("no judge answer scripted")
		}
		a := f.answers[0]
		f.answers = f.answers[1:]
		return a, nil
	}
	f.agentCalls++
	if f.agentErr != nil {
		return "", f.agentErr
	}
	for agent, text := range agentText {
		p, _ := reflection.Prompt(agent)
		if req.System == reflection.SystemPrompt(p) {
			return text, nil
		}
	}
	return "", errors.New("unknown system prompt")
}

func (f *fakeLLM) script(answers ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answers...)
}

// recorder captures snapshots.
type recorder struct {
	mu    sync.Mutex
	snaps []*snapshot.Snapshot
	err   error
}

func (r *recorder) Write(_ context.Context, s *snapshot.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	return r.err
}

type harness struct {
	svc   *Service
	store *store.Memory
	llm   *fakeLLM
	snaps *recorder
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	llm := &fakeLLM{}
	runner, err := reflection.NewRunner(llm, reflection.ModelConfig{Default: "agent-model"})
	require.NoError(t, err)
	ev, err := judge.NewEvaluator(llm, judge.WithModel("judge-model"))
	require.NoError(t, err)
	llm.judgeSystem = ev.SystemPrompt()

	var tick int
	clock := func() time.Time {
		tick++
		return t0.Add(time.Duration(tick) * time.Minute)
	}
	st := store.NewMemory()
	snaps := &recorder{}
	svc, err := New(st, runner, ev, append([]Option{WithClock(clock), WithSnapshots(snaps)}, opts...)...)
	require.NoError(t, err)
	return &harness{svc: svc, store: st, llm: llm, snaps: snaps}
}

// reflected creates an entry and runs the agents over it.
func (h *harness) reflected(t *testing.T, title string) *store.Entry {
	t.Helper()
	ctx := context.Background()
	e, err := h.svc.CreateEntry(ctx, title, "I keep starting projects and never finishing them.")
	require.NoError(t, err)
	_, err = h.svc.Reflect(ctx, e.ID)
	require.NoError(t, err)
	return e
}
