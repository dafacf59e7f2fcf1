/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"

	"chainguard.dev/reflecteval/store"
)

// EntryWithFeedback is an entry and its stored feedback.
type EntryWithFeedback struct {
	Entry    *store.Entry      `json:"entry"`
	Feedback []*store.Feedback `json:"feedback"`
}

// CreateEntry stores a new draft entry.
func (s *Service) CreateEntry(ctx context.Context, title, body string) (*store.Entry, error) {
	e, err := store.NewEntry(title, body, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEntry returns an entry with its feedback.
func (s *Service) GetEntry(ctx context.Context, id string) (*EntryWithFeedback, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	fb, err := s.store.GetFeedbackForEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EntryWithFeedback{Entry: e, Feedback: fb}, nil
}

// ListEntries returns the newest entries. limit is clamped to
// [1, MaxListLimit]; zero or less means DefaultListLimit.
func (s *Service) ListEntries(ctx context.Context, limit int) ([]*store.Entry, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.store.ListEntries(ctx, limit)
}

// UpdateEntry revises an entry. Its feedback is discarded and the entry
// returns to draft.
func (s *Service) UpdateEntry(ctx context.Context, id, title, body string) (*store.Entry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.Revise(title, body, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return nil, err
	}
	s.cache.Remove(id)
	return e, nil
}

// DeleteEntry removes an entry and its feedback.
func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return err
	}
	s.cache.Remove(id)
	return nil
}
