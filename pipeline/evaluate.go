/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"slices"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/transcript"
	"chainguard.dev/reflecteval/store"
)

// UnknownModel is recorded when neither the judge nor the feedback names a
// model.
const UnknownModel = "unknown"

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	*store.Evaluation
	// Reused is set when a stored evaluation was returned.
	Reused bool `json:"reused,omitempty"`
}

// Evaluate judges an entry's feedback. Unless force is set, the latest
// stored evaluation is returned without calling the judge. A new evaluation
// is persisted exactly once, and only when it passed validation.
func (s *Service) Evaluate(ctx context.Context, entryID string, force bool) (*Evaluation, error) {
	if !force {
		if ev, ok := s.cache.Get(entryID); ok {
			return &Evaluation{Evaluation: ev, Reused: true}, nil
		}
		ev, err := s.store.GetLatestEvaluation(ctx, entryID)
		switch {
		case err == nil:
			s.cache.Add(entryID, ev)
			return &Evaluation{Evaluation: ev, Reused: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	in, fb, err := s.input(ctx, entryID)
	if err != nil {
		return nil, err
	}
	res, err := s.evaluator.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	if res.Model == "" {
		res.Model = feedbackModel(fb)
	}
	return s.save(ctx, entryID, res)
}

// Transcript renders the transcript an evaluation of entryID would judge.
func (s *Service) Transcript(ctx context.Context, entryID string) (string, error) {
	in, _, err := s.input(ctx, entryID)
	if err != nil {
		return "", err
	}
	return in.Transcript, nil
}

func (s *Service) input(ctx context.Context, entryID string) (judge.Input, []*store.Feedback, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return judge.Input{}, nil, err
	}
	fb, err := s.store.GetFeedbackForEntry(ctx, entryID)
	if err != nil {
		return judge.Input{}, nil, err
	}
	if len(fb) == 0 {
		return judge.Input{}, nil, ErrNoFeedback
	}
	outputs := make([]transcript.AgentOutput, 0, len(fb))
	for _, f := range fb {
		outputs = append(outputs, transcript.AgentOutput{Agent: f.Agent, Content: f.Content})
	}
	return judge.Input{
		EntryID:       entryID,
		PromptVersion: feedbackVersion(fb, s.runner.PromptVersion()),
		Transcript:    transcript.Build(e.Title, e.Body, outputs),
	}, fb, nil
}

func (s *Service) save(ctx context.Context, entryID string, res *judge.Result) (*Evaluation, error) {
	ev, err := s.store.SaveEvaluation(ctx, entryID, res.PromptVersion, res, s.now())
	if err != nil {
		return nil, err
	}
	s.cache.Add(entryID, ev)
	clog.FromContext(ctx).With("entry_id", entryID).With("eval_id", res.EvalID).Infof("stored evaluation: %s", res)
	return &Evaluation{Evaluation: ev}, nil
}

// feedbackVersion is the prompt version the feedback was produced with.
// Feedback predating version tags falls back to the current version.
func feedbackVersion(fb []*store.Feedback, current string) string {
	for _, f := range fb {
		if f.PromptVersion != "" {
			return f.PromptVersion
		}
	}
	return current
}

func feedbackModel(fb []*store.Feedback) string {
	if i := slices.IndexFunc(fb, func(f *store.Feedback) bool { return f.Model != "" }); i >= 0 {
		return fb[i].Model
	}
	return UnknownModel
}
