/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"chainguard.dev/reflecteval/agents/judge"
)

// Memory is an in-process Store.
type Memory struct {
	mu          sync.RWMutex
	entries     map[string]*Entry
	order       []string
	feedback    map[string][]*Feedback
	evaluations []*Evaluation
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[string]*Entry),
		feedback: make(map[string][]*Feedback),
	}
}

func (m *Memory) CreateEntry(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *e
	m.entries[e.ID] = &c
	m.order = append(m.order, e.ID)
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *e
	return &c, nil
}

func (m *Memory) ListEntries(_ context.Context, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entry, 0, len(m.order))
	// Reverse insertion order so equal timestamps list the newest insert first.
	for i := len(m.order) - 1; i >= 0; i-- {
		if e, ok := m.entries[m.order[i]]; ok {
			c := *e
			out = append(out, &c)
		}
	}
	slices.SortStableFunc(out, func(a, b *Entry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateEntry(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return ErrNotFound
	}
	c := *e
	m.entries[e.ID] = &c
	delete(m.feedback, e.ID)
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	delete(m.feedback, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

func (m *Memory) SaveFeedback(_ context.Context, entryID string, fb []*Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	for _, f := range fb {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		f.EntryID = entryID
		c := *f
		m.feedback[entryID] = append(m.feedback[entryID], &c)
		if f.CreatedAt.After(e.UpdatedAt) {
			e.UpdatedAt = f.CreatedAt
		}
	}
	if len(fb) > 0 {
		e.Status = StatusReflected
	}
	return nil
}

func (m *Memory) GetFeedbackForEntry(_ context.Context, entryID string) ([]*Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Feedback, 0, len(m.feedback[entryID]))
	for _, f := range m.feedback[entryID] {
		c := *f
		out = append(out, &c)
	}
	slices.SortStableFunc(out, func(a, b *Feedback) int {
		return cmp.Compare(a.Agent, b.Agent)
	})
	return out, nil
}

func (m *Memory) SaveEvaluation(_ context.Context, entryID, promptVersion string, r *judge.Result, createdAt time.Time) (*Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := &Evaluation{
		ID:            uuid.NewString(),
		EntryID:       entryID,
		PromptVersion: promptVersion,
		Result:        r,
		CreatedAt:     createdAt,
	}
	m.evaluations = append(m.evaluations, ev)
	c := *ev
	return &c, nil
}

func (m *Memory) GetLatestEvaluation(ctx context.Context, entryID string) (*Evaluation, error) {
	evs, err := m.ListEvaluations(ctx, EvaluationFilter{EntryID: entryID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, ErrNotFound
	}
	return evs[0], nil
}

func (m *Memory) ListEvaluations(_ context.Context, filter EvaluationFilter) ([]*Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Evaluation
	for i := len(m.evaluations) - 1; i >= 0; i-- {
		if ev := m.evaluations[i]; filter.matches(ev) {
			c := *ev
			out = append(out, &c)
		}
	}
	slices.SortStableFunc(out, func(a, b *Evaluation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
