/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/reflecteval/agents/judge"
)

// BatchMode selects which entries a batch evaluates.
type BatchMode string

const (
	BatchRecent BatchMode = "recent"
	BatchRandom BatchMode = "random"
)

// DefaultBatchLimit is the number of entries evaluated when no limit is set.
const DefaultBatchLimit = 10

// BatchOptions tunes Batch.
type BatchOptions struct {
	Mode  BatchMode
	Limit int
	// FailOn lists verdicts that count as failures.
	FailOn []judge.Verdict
}

// BatchItem is one entry's fresh evaluation.
type BatchItem struct {
	EntryID    string        `json:"entryId"`
	Verdict    judge.Verdict `json:"verdict"`
	Score      float64       `json:"score"`
	Violations []string      `json:"violations"`
}

// BatchReport collects a batch's evaluations and failures.
type BatchReport struct {
	Items    []BatchItem `json:"items"`
	Failures []Failure   `json:"failures"`
	// Skipped lists entries without feedback.
	Skipped []string `json:"skipped,omitempty"`
}

// Failed reports whether any entry failed.
func (r *BatchReport) Failed() bool { return len(r.Failures) > 0 }

// Batch re-evaluates a set of entries and stores each new evaluation. An
// unreadable or inconsistent judge answer is recorded as a failure and the
// batch continues; transport and configuration failures stop it.
func (s *Service) Batch(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	var ids []string
	switch opts.Mode {
	case BatchRecent, "":
		entries, err := s.store.ListEntries(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
	case BatchRandom:
		entries, err := s.store.ListEntries(ctx, 0)
		if err != nil {
			return nil, err
		}
		s.shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
		for _, e := range entries[:min(limit, len(entries))] {
			ids = append(ids, e.ID)
		}
	default:
		return nil, fmt.Errorf("unknown batch mode %q", opts.Mode)
	}

	report := &BatchReport{Items: []BatchItem{}, Failures: []Failure{}}
	for _, id := range ids {
		if err := s.evaluateInto(ctx, report, id, opts.FailOn); err != nil {
			return report, err
		}
	}
	return report, nil
}

// evaluateInto re-evaluates one entry and records the outcome in report. It
// returns only the errors that should stop the whole run.
func (s *Service) evaluateInto(ctx context.Context, report *BatchReport, id string, failOn []judge.Verdict) error {
	log := clog.FromContext(ctx).With("entry_id", id)
	ev, err := s.Evaluate(ctx, id, true)
	switch {
	case errors.Is(err, ErrNoFeedback):
		report.Skipped = append(report.Skipped, id)
		return nil
	case err != nil:
		if k := judge.KindOf(err); k != judge.KindParse && k != judge.KindValidation {
			return fmt.Errorf("entry %s: %w", id, err)
		}
		log.Warnf("evaluation failed: %v", err)
		report.Failures = append(report.Failures, Failure{ID: id, Reason: err.Error()})
		return nil
	}

	res := ev.Result
	report.Items = append(report.Items, BatchItem{
		EntryID:    id,
		Verdict:    res.Verdict,
		Score:      res.Score(),
		Violations: res.Violations,
	})
	if slices.Contains(failOn, res.Verdict) {
		report.Failures = append(report.Failures, Failure{ID: id, Reason: "Verdict " + string(res.Verdict)})
	}
	log.Infof("batch verdict=%s", res.Verdict)
	return nil
}
