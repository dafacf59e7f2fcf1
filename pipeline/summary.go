/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"cmp"
	"context"
	"slices"

	"chainguard.dev/reflecteval/store"
)

// Report sizes.
const (
	TopViolations = 10
	RecentLimit   = 20
)

// Count is a tally for one key.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// VersionVerdicts tallies verdicts for one prompt version.
type VersionVerdicts struct {
	PromptVersion string  `json:"promptVersion"`
	Total         int     `json:"total"`
	Verdicts      []Count `json:"verdicts"`
}

// VersionViolations tallies violation codes for one prompt version.
type VersionViolations struct {
	PromptVersion string  `json:"promptVersion"`
	Violations    []Count `json:"violations"`
}

// Recent is a compact view of one stored evaluation.
type Recent struct {
	EntryID       string   `json:"entryId"`
	Verdict       string   `json:"verdict"`
	OverallScore  *float64 `json:"overallScore"`
	Timestamp     string   `json:"timestamp"`
	PromptVersion string   `json:"promptVersion"`
}

// Summary aggregates every stored evaluation.
type Summary struct {
	Totals                    []Count             `json:"totals"`
	ByPromptVersion           []VersionVerdicts   `json:"byPromptVersion"`
	TopViolations             []Count             `json:"topViolations"`
	ByPromptVersionViolations []VersionViolations `json:"byPromptVersionViolations"`
	Redundancy                []Count             `json:"redundancy"`
	Recent                    []Recent            `json:"recent"`
}

// VersionReport is one side of a regression comparison.
type VersionReport struct {
	PromptVersion string  `json:"promptVersion"`
	Verdicts      []Count `json:"verdicts"`
	Violations    []Count `json:"violations"`
}

// Regression compares two prompt versions.
type Regression struct {
	From VersionReport `json:"from"`
	To   VersionReport `json:"to"`
}

// tally counts keys and returns them by descending count, ties by key.
type tally map[string]int

func (t tally) sorted() []Count {
	out := make([]Count, 0, len(t))
	for k, n := range t {
		out = append(out, Count{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

func (t tally) total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// byVersion groups tallies per prompt version.
type byVersion map[string]tally

func (b byVersion) add(version, key string) {
	if b[version] == nil {
		b[version] = tally{}
	}
	b[version][key]++
}

// versions returns the versions in descending order.
func (b byVersion) versions() []string {
	out := make([]string, 0, len(b))
	for v := range b {
		out = append(out, v)
	}
	slices.Sort(out)
	slices.Reverse(out)
	return out
}

// Summary aggregates every stored evaluation.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	evs, err := s.store.ListEvaluations(ctx, store.EvaluationFilter{})
	if err != nil {
		return nil, err
	}

	totals, violations, redundancy := tally{}, tally{}, tally{}
	verdictsByVersion, violationsByVersion := byVersion{}, byVersion{}
	out := &Summary{Recent: []Recent{}}
	for _, ev := range evs {
		r := ev.Result
		totals[string(r.Verdict)]++
		redundancy[string(r.Redundancy.Severity)]++
		verdictsByVersion.add(r.PromptVersion, string(r.Verdict))
		for _, code := range r.Violations {
			violations[code]++
			violationsByVersion.add(r.PromptVersion, code)
		}
		// evs is newest first.
		if len(out.Recent) < RecentLimit {
			out.Recent = append(out.Recent, Recent{
				EntryID:       r.EntryID,
				Verdict:       string(r.Verdict),
				OverallScore:  r.OverallScore,
				Timestamp:     r.Timestamp,
				PromptVersion: r.PromptVersion,
			})
		}
	}

	out.Totals = totals.sorted()
	out.Redundancy = redundancy.sorted()
	out.TopViolations = violations.sorted()
	if len(out.TopViolations) > TopViolations {
		out.TopViolations = out.TopViolations[:TopViolations]
	}
	out.ByPromptVersion = []VersionVerdicts{}
	for _, v := range verdictsByVersion.versions() {
		t := verdictsByVersion[v]
		out.ByPromptVersion = append(out.ByPromptVersion, VersionVerdicts{
			PromptVersion: v,
			Total:         t.total(),
			Verdicts:      t.sorted(),
		})
	}
	out.ByPromptVersionViolations = []VersionViolations{}
	for _, v := range violationsByVersion.versions() {
		out.ByPromptVersionViolations = append(out.ByPromptVersionViolations, VersionViolations{
			PromptVersion: v,
			Violations:    violationsByVersion[v].sorted(),
		})
	}
	return out, nil
}

// Regressions compares verdict and violation counts between two prompt
// versions.
func (s *Service) Regressions(ctx context.Context, from, to string) (*Regression, error) {
	if from == "" || to == "" {
		return nil, ErrVersionsRequired
	}
	fromReport, err := s.versionReport(ctx, from)
	if err != nil {
		return nil, err
	}
	toReport, err := s.versionReport(ctx, to)
	if err != nil {
		return nil, err
	}
	return &Regression{From: fromReport, To: toReport}, nil
}

func (s *Service) versionReport(ctx context.Context, version string) (VersionReport, error) {
	evs, err := s.store.ListEvaluations(ctx, store.EvaluationFilter{PromptVersion: version})
	if err != nil {
		return VersionReport{}, err
	}
	verdicts, violations := tally{}, tally{}
	for _, ev := range evs {
		verdicts[string(ev.Result.Verdict)]++
		for _, code := range ev.Result.Violations {
			violations[code]++
		}
	}
	return VersionReport{
		PromptVersion: version,
		Verdicts:      verdicts.sorted(),
		Violations:    violations.sorted(),
	}, nil
}
