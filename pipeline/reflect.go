/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/reflecteval/agents/reflection"
	"chainguard.dev/reflecteval/store"
	"chainguard.dev/reflecteval/store/snapshot"
)

// Reflection is the feedback for an entry.
type Reflection struct {
	EntryID  string            `json:"entryId"`
	Feedback []*store.Feedback `json:"feedback"`
	// Reused is set when stored feedback was returned instead of running
	// the agents.
	Reused bool `json:"reused,omitempty"`
}

// Reflect runs the agents over an entry and stores their feedback. Agents
// that already have feedback are not run again; an entry with feedback from
// every agent is returned as stored.
func (s *Service) Reflect(ctx context.Context, entryID string) (*Reflection, error) {
	return s.reflect(ctx, entryID, nil)
}

// ReflectStream is Reflect reporting feedback as it becomes available:
// stored feedback first, then each new agent's feedback as that agent
// replies. New feedback is only persisted once every agent has replied, so
// feedback passed to each carries no ID.
func (s *Service) ReflectStream(ctx context.Context, entryID string, each func(*store.Feedback)) (*Reflection, error) {
	if each == nil {
		return nil, errors.New("stream callback is required")
	}
	return s.reflect(ctx, entryID, each)
}

func (s *Service) reflect(ctx context.Context, entryID string, each func(*store.Feedback)) (*Reflection, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetFeedbackForEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, f := range existing {
		have[f.Agent] = true
	}
	var missing []string
	for _, a := range s.runner.Agents() {
		if !have[a] {
			missing = append(missing, a)
		}
	}
	if each != nil {
		for _, f := range existing {
			each(f)
		}
	}
	if len(missing) == 0 {
		return &Reflection{EntryID: entryID, Feedback: existing, Reused: true}, nil
	}

	now := s.now()
	var onOutput func(reflection.Output)
	if each != nil {
		onOutput = func(o reflection.Output) { each(s.feedback(entryID, o, now)) }
	}
	outputs, err := s.runner.ReflectEach(ctx, e.Title, e.Body, missing, onOutput)
	if err != nil {
		return nil, err
	}
	fb := make([]*store.Feedback, 0, len(outputs))
	for _, o := range outputs {
		fb = append(fb, s.feedback(entryID, o, now))
	}
	if err := s.store.SaveFeedback(ctx, entryID, fb); err != nil {
		return nil, err
	}
	s.writeSnapshot(ctx, entryID)
	return &Reflection{EntryID: entryID, Feedback: s.orderFeedback(append(existing, fb...))}, nil
}

func (s *Service) feedback(entryID string, o reflection.Output, now time.Time) *store.Feedback {
	return &store.Feedback{
		EntryID:       entryID,
		Agent:         o.Agent,
		Content:       o.Content,
		Model:         o.Model,
		PromptVersion: s.runner.PromptVersion(),
		CreatedAt:     now,
	}
}

// orderFeedback sorts feedback into the runner's agent order; agents the
// runner does not know keep their relative order at the end.
func (s *Service) orderFeedback(fb []*store.Feedback) []*store.Feedback {
	rank := make(map[string]int, len(fb))
	for i, a := range s.runner.Agents() {
		rank[a] = i
	}
	slices.SortStableFunc(fb, func(a, b *store.Feedback) int {
		ra, oka := rank[a.Agent]
		rb, okb := rank[b.Agent]
		switch {
		case oka && okb:
			return ra - rb
		case oka:
			return -1
		case okb:
			return 1
		default:
			return 0
		}
	})
	return fb
}

// writeSnapshot is best effort: failures are logged and never returned.
func (s *Service) writeSnapshot(ctx context.Context, entryID string) {
	log := clog.FromContext(ctx).With("entry_id", entryID)
	stored, err := s.GetEntry(ctx, entryID)
	if err != nil {
		log.Warnf("reading entry for snapshot: %v", err)
		return
	}
	if err := s.snapshots.Write(ctx, &snapshot.Snapshot{
		SavedAt:  s.now(),
		Entry:    stored.Entry,
		Feedback: stored.Feedback,
	}); err != nil {
		log.Warnf("writing snapshot: %v", err)
	}
}
