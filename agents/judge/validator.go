/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"math"
	"slices"
	"strings"

	"chainguard.dev/reflecteval/agents/evidence"
	"chainguard.dev/reflecteval/agents/taxonomy"
)

// Error codes reported by Validate. Codes with a trailing colon are followed
// by an agent name or violation code.
const (
	ErrMissingEvalReasoning          = "missing_eval_reasoning"
	ErrMissingRedundancySeverity     = "missing_redundancy_severity"
	ErrInvalidRedundancySeverity     = "invalid_redundancy_severity"
	ErrInvalidVerdict                = "invalid_verdict"
	ErrInvalidScore                  = "invalid_score"
	ErrInvalidViolations             = "invalid_violations:"
	ErrVerdictFailWithoutViolations  = "verdict_fail_without_violations"
	ErrVerdictPassWithViolations     = "verdict_pass_with_violations"
	ErrMissingAgentEval              = "missing_agent_eval:"
	ErrMissingRolePurity             = "missing_role_purity:"
	ErrMissingFormatCompliance       = "missing_format_compliance:"
	ErrMissingPressureLevel          = "missing_pressure_level:"
	ErrRoleEvidenceNotInTranscript   = "role_evidence_not_in_transcript"
	ErrFormatEvidenceNotInTranscript = "format_evidence_not_in_transcript"
	ErrFormatEvidenceMissingInvalid  = "format_evidence_missing_or_invalid"
	ErrMissingRoleEvidenceFor        = "missing_role_evidence_for:"
	ErrMissingFormatEvidence         = "missing_format_evidence"
	ErrMissingRedundancyEvidence     = "missing_redundancy_evidence"
)

// DefaultRequiredAgents is the agent set every evaluation must cover unless
// configured otherwise.
var DefaultRequiredAgents = []string{"editor", "definer", "risk", "skeptic", "coach"}

// Validation is the outcome of Validate.
type Validation struct {
	OK     bool
	Errors []string
}

// String joins the errors the way they are fed back to the judge.
func (v Validation) String() string {
	return strings.Join(v.Errors, "; ")
}

// Validator checks a Result against its transcript.
type Validator struct {
	tax      *taxonomy.Taxonomy
	required []string
}

// NewValidator returns a validator for the given taxonomy and required
// agents. A nil taxonomy means taxonomy.Default(); a nil agent list means
// DefaultRequiredAgents.
func NewValidator(tax *taxonomy.Taxonomy, requiredAgents []string) *Validator {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if requiredAgents == nil {
		requiredAgents = DefaultRequiredAgents
	}
	return &Validator{tax: tax, required: slices.Clone(requiredAgents)}
}

// RequiredAgents returns the configured agents in order.
func (v *Validator) RequiredAgents() []string {
	return slices.Clone(v.required)
}

// Taxonomy returns the configured taxonomy.
func (v *Validator) Taxonomy() *taxonomy.Taxonomy {
	return v.tax
}

// errorList collects codes once each, in first-seen order.
type errorList struct {
	codes []string
	seen  map[string]struct{}
}

func (l *errorList) add(code string) {
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	if _, dup := l.seen[code]; dup {
		return
	}
	l.seen[code] = struct{}{}
	l.codes = append(l.codes, code)
}

// Validate runs every consistency check and reports all failures. It reads
// r as the judge produced it: the score is the self-reported one and the
// violations are unsanitized. It never modifies r.
func (v *Validator) Validate(r *Result, transcript string) Validation {
	if r == nil {
		r = &Result{}
	}
	var errs errorList
	loc := evidence.NewLocator(transcript)

	if strings.TrimSpace(r.EvalReasoning) == "" {
		errs.add(ErrMissingEvalReasoning)
	}

	switch {
	case r.Redundancy.Severity == "":
		errs.add(ErrMissingRedundancySeverity)
	case !r.Redundancy.Severity.Valid():
		errs.add(ErrInvalidRedundancySeverity)
	}

	if !r.Verdict.Valid() {
		errs.add(ErrInvalidVerdict)
	}

	if s := r.OverallScore; s == nil || math.IsNaN(*s) || *s < 0 || *s > 100 {
		errs.add(ErrInvalidScore)
	}

	if unknown := v.tax.Unknown(r.Violations); len(unknown) > 0 {
		errs.add(ErrInvalidViolations + strings.Join(unknown, ","))
	}

	violations := v.tax.Sanitize(r.Violations)
	switch {
	case r.Verdict == VerdictFail && len(violations) == 0:
		errs.add(ErrVerdictFailWithoutViolations)
	case r.Verdict == VerdictPass && len(violations) > 0:
		errs.add(ErrVerdictPassWithViolations)
	}

	for _, agent := range v.required {
		ae := r.AgentEvals[agent]
		if ae == nil {
			errs.add(ErrMissingAgentEval + agent)
			continue
		}
		if !ae.RolePurity.Valid() || isBlank(ae.RolePurityEvidence) {
			errs.add(ErrMissingRolePurity + agent)
		}
		if !ae.FormatCompliance.Valid() {
			errs.add(ErrMissingFormatCompliance + agent)
		}
		if !ae.PressureLevel.Valid() {
			errs.add(ErrMissingPressureLevel + agent)
		}
		if !isBlank(ae.RolePurityEvidence) && !loc.Contains(ae.RolePurityEvidence) {
			errs.add(ErrRoleEvidenceNotInTranscript)
		}
		if ae.FormatCompliance != FormatCompliant {
			if isBlank(ae.FormatEvidence) || !loc.Contains(ae.FormatEvidence) {
				errs.add(ErrFormatEvidenceMissingInvalid)
			}
		} else if !isBlank(ae.FormatEvidence) && !loc.Contains(ae.FormatEvidence) {
			errs.add(ErrFormatEvidenceNotInTranscript)
		}
	}

	// Agents outside the required set are not mandatory, but whatever
	// evidence they quote must still be real.
	for _, agent := range v.extraAgents(r) {
		ae := r.AgentEvals[agent]
		if !isBlank(ae.RolePurityEvidence) && !loc.Contains(ae.RolePurityEvidence) {
			errs.add(ErrRoleEvidenceNotInTranscript)
		}
		if !isBlank(ae.FormatEvidence) && !loc.Contains(ae.FormatEvidence) {
			errs.add(ErrFormatEvidenceNotInTranscript)
		}
	}

	for _, code := range violations {
		owner, ok := v.tax.Owner(code)
		if !ok {
			continue
		}
		if ae := r.AgentEvals[owner]; ae == nil || isBlank(ae.RolePurityEvidence) {
			errs.add(ErrMissingRoleEvidenceFor + string(code))
		}
	}

	if slices.Contains(violations, taxonomy.FormatBroken) && !anyFormatEvidence(r.AgentEvals) {
		errs.add(ErrMissingFormatEvidence)
	}

	if slices.Contains(violations, taxonomy.RedundancySevere) || r.Redundancy.Severity == RedundancySevere {
		if !anyNonBlank(r.Redundancy.OverlappingPoints) {
			errs.add(ErrMissingRedundancyEvidence)
		}
	}

	return Validation{OK: len(errs.codes) == 0, Errors: errs.codes}
}

// extraAgents returns the non-nil evaluations for agents outside the
// required set, sorted by name.
func (v *Validator) extraAgents(r *Result) []string {
	var out []string
	for agent, ae := range r.AgentEvals {
		if ae != nil && !slices.Contains(v.required, agent) {
			out = append(out, agent)
		}
	}
	slices.Sort(out)
	return out
}

func anyFormatEvidence(evals map[string]*AgentEvaluation) bool {
	for _, ae := range evals {
		if ae != nil && !isBlank(ae.FormatEvidence) {
			return true
		}
	}
	return false
}

func anyNonBlank(items []string) bool {
	return slices.ContainsFunc(items, func(s string) bool { return !isBlank(s) })
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
