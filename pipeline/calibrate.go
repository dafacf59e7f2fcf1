/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/taxonomy"
	"chainguard.dev/reflecteval/agents/transcript"
)

// CalibrationSuite is a set of golden cases with expected judgements.
type CalibrationSuite struct {
	Version string            `json:"version"`
	Cases   []CalibrationCase `json:"cases"`
}

// CalibrationCase is one golden transcript and the judgement it should get.
type CalibrationCase struct {
	ID                 string        `json:"id"`
	Path               string        `json:"path,omitempty"`
	ExpectedVerdict    judge.Verdict `json:"expectedVerdict"`
	ExpectedViolations []string      `json:"expectedViolations,omitempty"`
	Golden             *Golden       `json:"golden,omitempty"`
}

// Golden is a case's entry and the agents' outputs.
type Golden struct {
	Entry struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"entry"`
	Outputs map[string]string `json:"outputs"`
}

// LoadCalibration reads a suite file and the golden file each case points
// to, resolved relative to the suite's directory.
func LoadCalibration(path string) (*CalibrationSuite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration suite: %w", err)
	}
	var suite CalibrationSuite
	if err := json.Unmarshal(raw, &suite); err != nil {
		return nil, fmt.Errorf("parse calibration suite %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range suite.Cases {
		c := &suite.Cases[i]
		if c.Golden != nil {
			continue
		}
		if c.Path == "" {
			return nil, fmt.Errorf("case %q has neither path nor golden data", c.ID)
		}
		b, err := os.ReadFile(filepath.Join(dir, c.Path))
		if err != nil {
			return nil, fmt.Errorf("read case %q: %w", c.ID, err)
		}
		c.Golden = &Golden{}
		if err := json.Unmarshal(b, c.Golden); err != nil {
			return nil, fmt.Errorf("parse case %q: %w", c.ID, err)
		}
	}
	return &suite, nil
}

// Failure is a case or entry that did not meet expectations.
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// CaseResult is the judgement a calibration case received.
type CaseResult struct {
	ID         string        `json:"id"`
	Verdict    judge.Verdict `json:"verdict"`
	Score      float64       `json:"score"`
	Violations []string      `json:"violations"`
	// Repaired is set when evidence repair was needed to pass validation.
	Repaired bool `json:"repaired,omitempty"`
}

// CalibrationReport collects per-case results and failures.
type CalibrationReport struct {
	Results  []CaseResult `json:"results"`
	Failures []Failure    `json:"failures"`
}

// Failed reports whether any case failed.
func (r *CalibrationReport) Failed() bool { return len(r.Failures) > 0 }

// CalibrateOptions tunes Calibrate.
type CalibrateOptions struct {
	// RepairEvidence substitutes locatable quotes for evidence the judge
	// could not quote exactly, so that verdicts are scored independently of
	// quoting accuracy.
	RepairEvidence bool
}

// Calibrate judges every golden case and compares the verdict and violations
// with the expectations. Nothing is persisted. Transport and configuration
// failures abort the run.
func (s *Service) Calibrate(ctx context.Context, suite *CalibrationSuite, opts CalibrateOptions) (*CalibrationReport, error) {
	report := &CalibrationReport{Results: []CaseResult{}, Failures: []Failure{}}
	for _, c := range suite.Cases {
		if c.Golden == nil {
			return report, fmt.Errorf("case %q has no golden data", c.ID)
		}
		t := transcript.Build(c.Golden.Entry.Title, c.Golden.Entry.Body, s.orderedOutputs(c.Golden.Outputs))

		res, repaired, err := s.judgeCase(ctx, c.ID, suite.Version, t, opts)
		if err != nil {
			if k := judge.KindOf(err); k == judge.KindTransport || k == judge.KindConfiguration || k == 0 {
				return report, fmt.Errorf("case %q: %w", c.ID, err)
			}
			report.Failures = append(report.Failures, Failure{ID: c.ID, Reason: err.Error()})
			continue
		}

		report.Results = append(report.Results, CaseResult{
			ID:         c.ID,
			Verdict:    res.Verdict,
			Score:      res.Score(),
			Violations: res.Violations,
			Repaired:   repaired,
		})
		if res.Verdict != c.ExpectedVerdict {
			report.Failures = append(report.Failures, Failure{
				ID:     c.ID,
				Reason: fmt.Sprintf("Verdict mismatch (expected %s, got %s)", c.ExpectedVerdict, res.Verdict),
			})
		}
		var missing []string
		for _, v := range c.ExpectedViolations {
			if !slices.Contains(res.Violations, v) {
				missing = append(missing, v)
			}
		}
		if len(missing) > 0 {
			report.Failures = append(report.Failures, Failure{
				ID:     c.ID,
				Reason: "Missing violations: " + strings.Join(missing, ", "),
				Detail: strings.Join(res.Violations, ", "),
			})
		}
		clog.FromContext(ctx).With("case", c.ID).Infof("calibration verdict=%s", res.Verdict)
	}
	return report, nil
}

func (s *Service) judgeCase(ctx context.Context, id, version, t string, opts CalibrateOptions) (*judge.Result, bool, error) {
	out, err := s.evaluator.Run(ctx, judge.Input{EntryID: id, PromptVersion: version, Transcript: t})
	if err == nil {
		return out.Result, false, nil
	}
	if !opts.RepairEvidence || judge.KindOf(err) != judge.KindValidation || out.Rejected == nil {
		return nil, false, err
	}

	repaired := judge.RepairEvidence(out.Rejected, t)
	v := s.evaluator.Validator()
	if check := v.Validate(repaired, t); !check.OK {
		return nil, false, err
	}
	sanitized := v.Taxonomy().Sanitize(repaired.Violations)
	score := float64(v.Taxonomy().Score(sanitized))
	repaired.Violations = taxonomy.Strings(sanitized)
	repaired.OverallScore = &score
	return repaired, true, nil
}

// orderedOutputs puts golden outputs in the runner's agent order, followed
// by any other agents sorted by name.
func (s *Service) orderedOutputs(outputs map[string]string) []transcript.AgentOutput {
	agents := s.runner.Agents()
	var extra []string
	for a := range outputs {
		if !slices.Contains(agents, a) {
			extra = append(extra, a)
		}
	}
	slices.Sort(extra)

	out := make([]transcript.AgentOutput, 0, len(outputs))
	for _, a := range append(agents, extra...) {
		if content, ok := outputs[a]; ok {
			out = append(out, transcript.AgentOutput{Agent: a, Content: content})
		}
	}
	return out
}
