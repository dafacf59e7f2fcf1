/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package store persists journal entries, agent feedback and judge
// evaluations.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"chainguard.dev/reflecteval/agents/judge"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyBody is returned when an entry has no body text.
	ErrEmptyBody = errors.New("body is required")
)

// Status is an entry's lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReflected Status = "reflected"
)

// Entry is a journal entry.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body"`
	Status    Status    `json:"status"`
	WordCount int       `json:"wordCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewEntry builds a draft entry with a fresh ID. Title and body are trimmed.
func NewEntry(title, body string, now time.Time) (*Entry, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	return &Entry{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Body:      body,
		Status:    StatusDraft,
		WordCount: len(strings.Fields(body)),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Revise replaces the title and body and returns the entry to draft.
func (e *Entry) Revise(title, body string, now time.Time) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyBody
	}
	e.Title = strings.TrimSpace(title)
	e.Body = body
	e.Status = StatusDraft
	e.WordCount = len(strings.Fields(body))
	e.UpdatedAt = now
	return nil
}

// Feedback is one agent's stored reply to an entry.
type Feedback struct {
	ID            string    `json:"id"`
	EntryID       string    `json:"entryId"`
	Agent         string    `json:"agent"`
	Content       string    `json:"content"`
	Model         string    `json:"model,omitempty"`
	PromptVersion string    `json:"promptVersion,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Evaluation is a persisted judge result. Evaluations are append-only.
type Evaluation struct {
	ID            string        `json:"id"`
	EntryID       string        `json:"entryId"`
	PromptVersion string        `json:"promptVersion"`
	Result        *judge.Result `json:"result"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// EvaluationFilter narrows ListEvaluations. Zero values match everything.
type EvaluationFilter struct {
	EntryID       string
	PromptVersion string
	// Limit caps the number of results. Zero means no limit.
	Limit int
}

func (f EvaluationFilter) matches(e *Evaluation) bool {
	if f.EntryID != "" && e.EntryID != f.EntryID {
		return false
	}
	if f.PromptVersion != "" && e.PromptVersion != f.PromptVersion {
		return false
	}
	return true
}

// Store is the persistence interface used by the pipeline.
type Store interface {
	// CreateEntry inserts e.
	CreateEntry(ctx context.Context, e *Entry) error
	// GetEntry returns the entry or ErrNotFound.
	GetEntry(ctx context.Context, id string) (*Entry, error)
	// ListEntries returns up to limit entries, newest first.
	ListEntries(ctx context.Context, limit int) ([]*Entry, error)
	// UpdateEntry overwrites an existing entry and deletes its feedback.
	UpdateEntry(ctx context.Context, e *Entry) error
	// DeleteEntry removes an entry and its feedback.
	DeleteEntry(ctx context.Context, id string) error

	// SaveFeedback stores feedback for an entry and marks it reflected.
	// Feedback without an ID is assigned one.
	SaveFeedback(ctx context.Context, entryID string, fb []*Feedback) error
	// GetFeedbackForEntry returns an entry's feedback ordered by agent name.
	GetFeedbackForEntry(ctx context.Context, entryID string) ([]*Feedback, error)

	// SaveEvaluation appends an evaluation.
	SaveEvaluation(ctx context.Context, entryID, promptVersion string, r *judge.Result, createdAt time.Time) (*Evaluation, error)
	// GetLatestEvaluation returns an entry's newest evaluation or ErrNotFound.
	GetLatestEvaluation(ctx context.Context, entryID string) (*Evaluation, error)
	// ListEvaluations returns matching evaluations, newest first.
	ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]*Evaluation, error)
}
