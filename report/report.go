/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders pipeline results as markdown tables for the
// command line.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"chainguard.dev/reflecteval/agents/taxonomy"
	"chainguard.dev/reflecteval/pipeline"
)

// Summary writes the aggregate evaluation report.
func Summary(w io.Writer, s *pipeline.Summary) error {
	sections := []struct {
		title   string
		headers []string
		rows    [][]string
	}{
		{"Verdicts", []string{"Verdict", "Count"}, countRows(s.Totals)},
		{"Verdicts by prompt version", []string{"Prompt version", "Total", "Verdicts"}, versionRows(s.ByPromptVersion)},
		{"Top violations", []string{"Violation", "Count"}, countRows(s.TopViolations)},
		{"Violations by prompt version", []string{"Prompt version", "Violations"}, versionViolationRows(s.ByPromptVersionViolations)},
		{"Redundancy", []string{"Severity", "Count"}, countRows(s.Redundancy)},
		{"Recent", []string{"Entry", "Verdict", "Score", "Prompt version", "Timestamp"}, recentRows(s.Recent)},
	}
	for _, sec := range sections {
		if err := section(w, sec.title, sec.headers, sec.rows); err != nil {
			return err
		}
	}
	return nil
}

// Regression writes a side-by-side comparison of two prompt versions.
func Regression(w io.Writer, r *pipeline.Regression) error {
	headers := []string{"", r.From.PromptVersion, r.To.PromptVersion, "Delta"}
	if err := section(w, "Verdicts", append([]string{"Verdict"}, headers[1:]...), diffRows(r.From.Verdicts, r.To.Verdicts)); err != nil {
		return err
	}
	return section(w, "Violations", append([]string{"Violation"}, headers[1:]...), diffRows(r.From.Violations, r.To.Violations))
}

// Batch writes a batch run's evaluations and failures.
func Batch(w io.Writer, r *pipeline.BatchReport) error {
	rows := make([][]string, 0, len(r.Items))
	for _, it := range r.Items {
		rows = append(rows, []string{it.EntryID, string(it.Verdict), score(it.Score), strings.Join(it.Violations, ", ")})
	}
	if err := section(w, "Evaluations", []string{"Entry", "Verdict", "Score", "Violations"}, rows); err != nil {
		return err
	}
	if len(r.Skipped) > 0 {
		if _, err := fmt.Fprintf(w, "Skipped (no feedback): %s\n\n", strings.Join(r.Skipped, ", ")); err != nil {
			return err
		}
	}
	return failures(w, r.Failures)
}

// Calibration writes per-case calibration results and failures.
func Calibration(w io.Writer, r *pipeline.CalibrationReport) error {
	rows := make([][]string, 0, len(r.Results))
	for _, c := range r.Results {
		repaired := ""
		if c.Repaired {
			repaired = "yes"
		}
		rows = append(rows, []string{c.ID, string(c.Verdict), score(c.Score), strings.Join(c.Violations, ", "), repaired})
	}
	if err := section(w, "Cases", []string{"Case", "Verdict", "Score", "Violations", "Repaired"}, rows); err != nil {
		return err
	}
	return failures(w, r.Failures)
}

// Taxonomy writes the violation table with weights and owners.
func Taxonomy(w io.Writer, t *taxonomy.Taxonomy) error {
	rules := t.Rules()
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		owner := r.Agent
		if owner == "" {
			owner = "-"
		}
		rows = append(rows, []string{string(r.Code), strconv.Itoa(r.Weight), owner})
	}
	return render(w, []string{"Code", "Weight", "Agent"}, rows)
}

func failures(w io.Writer, fs []pipeline.Failure) error {
	if len(fs) == 0 {
		_, err := fmt.Fprintln(w, "No failures.")
		return err
	}
	rows := make([][]string, 0, len(fs))
	for _, f := range fs {
		rows = append(rows, []string{"❌ " + f.ID, f.Reason, f.Detail})
	}
	return section(w, fmt.Sprintf("Failures (%d)", len(fs)), []string{"ID", "Reason", "Detail"}, rows)
}

func section(w io.Writer, title string, headers []string, rows [][]string) error {
	if _, err := fmt.Fprintf(w, "## %s\n\n", title); err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err := fmt.Fprint(w, "(none)\n\n")
		return err
	}
	if err := render(w, headers, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func countRows(counts []pipeline.Count) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Key, strconv.Itoa(c.Count)})
	}
	return rows
}

func inline(counts []pipeline.Count) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Key, c.Count))
	}
	return strings.Join(parts, ", ")
}

func versionRows(vs []pipeline.VersionVerdicts) [][]string {
	rows := make([][]string, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, []string{v.PromptVersion, strconv.Itoa(v.Total), inline(v.Verdicts)})
	}
	return rows
}

func versionViolationRows(vs []pipeline.VersionViolations) [][]string {
	rows := make([][]string, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, []string{v.PromptVersion, inline(v.Violations)})
	}
	return rows
}

func recentRows(rs []pipeline.Recent) [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		s := "-"
		if r.OverallScore != nil {
			s = score(*r.OverallScore)
		}
		rows = append(rows, []string{r.EntryID, r.Verdict, s, r.PromptVersion, r.Timestamp})
	}
	return rows
}

// diffRows joins two tallies by key. Rows are ordered by the size of the
// change, largest first, then by key.
func diffRows(from, to []pipeline.Count) [][]string {
	type pair struct{ from, to int }
	joined := map[string]*pair{}
	for _, c := range from {
		joined[c.Key] = &pair{from: c.Count}
	}
	for _, c := range to {
		if p, ok := joined[c.Key]; ok {
			p.to = c.Count
		} else {
			joined[c.Key] = &pair{to: c.Count}
		}
	}
	keys := make([]string, 0, len(joined))
	for k := range joined {
		keys = append(keys, k)
	}
	abs := func(n int) int {
		if n < 0 {
			return -n
		}
		return n
	}
	sort.Slice(keys, func(i, j int) bool {
		di := abs(joined[keys[i]].to - joined[keys[i]].from)
		dj := abs(joined[keys[j]].to - joined[keys[j]].from)
		if di != dj {
			return di > dj
		}
		return keys[i] < keys[j]
	})
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		p := joined[k]
		rows = append(rows, []string{k, strconv.Itoa(p.from), strconv.Itoa(p.to), fmt.Sprintf("%+d", p.to-p.from)})
	}
	return rows
}

func score(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
