/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"fmt"
	"strings"
)

// Verdict is the overall judgment.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
	VerdictFlag Verdict = "flag"
)

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictFail, VerdictFlag:
		return true
	}
	return false
}

// RolePurity describes how well an agent stayed in its role.
type RolePurity string

const (
	RolePurityClean  RolePurity = "clean"
	RolePurityDrift  RolePurity = "drift"
	RolePurityHijack RolePurity = "hijack"
)

// Valid reports whether p is a known role purity.
func (p RolePurity) Valid() bool {
	switch p {
	case RolePurityClean, RolePurityDrift, RolePurityHijack:
		return true
	}
	return false
}

// FormatCompliance describes how well an agent followed its output format.
type FormatCompliance string

const (
	FormatCompliant      FormatCompliance = "compliant"
	FormatMinorViolation FormatCompliance = "minor_violation"
	FormatBroken         FormatCompliance = "broken"
)

// Valid reports whether f is a known compliance level.
func (f FormatCompliance) Valid() bool {
	switch f {
	case FormatCompliant, FormatMinorViolation, FormatBroken:
		return true
	}
	return false
}

// PressureLevel describes how hard an agent pushed the author.
type PressureLevel string

const (
	PressureTooSoft    PressureLevel = "too_soft"
	PressureCalibrated PressureLevel = "calibrated"
	PressureTooHarsh   PressureLevel = "too_harsh"
)

// Valid reports whether l is a known pressure level.
func (l PressureLevel) Valid() bool {
	switch l {
	case PressureTooSoft, PressureCalibrated, PressureTooHarsh:
		return true
	}
	return false
}

// RedundancySeverity describes how much the agents repeated each other.
type RedundancySeverity string

const (
	RedundancyNone   RedundancySeverity = "none"
	RedundancyMinor  RedundancySeverity = "minor"
	RedundancySevere RedundancySeverity = "severe"
)

// Valid reports whether s is a known severity.
func (s RedundancySeverity) Valid() bool {
	switch s {
	case RedundancyNone, RedundancyMinor, RedundancySevere:
		return true
	}
	return false
}

// AgentEvaluation is the judge's assessment of one agent's output.
type AgentEvaluation struct {
	RolePurity         RolePurity       `json:"rolePurity" jsonschema:"required,enum=clean,enum=drift,enum=hijack"`
	RolePurityEvidence string           `json:"rolePurityEvidence" jsonschema:"required,description=Exact quote from the transcript supporting the role purity rating"`
	FormatCompliance   FormatCompliance `json:"formatCompliance" jsonschema:"required,enum=compliant,enum=minor_violation,enum=broken"`
	FormatEvidence     string           `json:"formatEvidence,omitempty" jsonschema:"description=Exact quote from the transcript showing the format problem. Required unless formatCompliance is compliant"`
	PressureLevel      PressureLevel    `json:"pressureLevel" jsonschema:"required,enum=too_soft,enum=calibrated,enum=too_harsh"`
}

// RedundancyAssessment records overlap between agents.
type RedundancyAssessment struct {
	Severity          RedundancySeverity `json:"severity" jsonschema:"required,enum=none,enum=minor,enum=severe"`
	OverlappingPoints []string           `json:"overlappingPoints,omitempty" jsonschema:"description=Quoted points repeated across agents. Required when severity is severe"`
}

// Fix is an advisory prompt change proposed by the judge. Fixes are stored
// but never validated.
type Fix struct {
	Target       string `json:"target" jsonschema:"enum=system_prompt,enum=agent_prompt,enum=orchestration"`
	AgentName    string `json:"agentName,omitempty"`
	CurrentText  string `json:"currentText"`
	ProposedText string `json:"proposedText"`
	Rationale    string `json:"rationale"`
}

// Result is one evaluation of one transcript. It is both the shape the judge
// is asked to produce and the persisted record.
type Result struct {
	EvalID        string `json:"evalId,omitempty" jsonschema:"-"`
	EntryID       string `json:"entryId,omitempty" jsonschema:"-"`
	PromptVersion string `json:"promptVersion,omitempty" jsonschema:"-"`
	Model         string `json:"model,omitempty" jsonschema:"-"`
	// Timestamp is RFC 3339 in UTC.
	Timestamp string `json:"timestamp,omitempty" jsonschema:"-"`

	Verdict Verdict `json:"verdict" jsonschema:"required,enum=pass,enum=fail,enum=flag"`
	// OverallScore is a pointer so that an omitted score can be told apart
	// from zero.
	OverallScore   *float64                    `json:"overallScore" jsonschema:"required,minimum=0,maximum=100"`
	Violations     []string                    `json:"violations" jsonschema:"required,description=Violation codes from the taxonomy"`
	AgentEvals     map[string]*AgentEvaluation `json:"agentEvals" jsonschema:"required,description=One evaluation per agent keyed by lowercase agent name"`
	Redundancy     RedundancyAssessment        `json:"redundancy" jsonschema:"required"`
	Fixes          []Fix                       `json:"fixes"`
	FullTranscript string                      `json:"fullTranscript,omitempty" jsonschema:"-"`
	EvalReasoning  string                      `json:"evalReasoning" jsonschema:"required,description=Why this verdict and these violations"`
}

// Score returns the overall score, or -1 when it is absent.
func (r *Result) Score() float64 {
	if r == nil || r.OverallScore == nil {
		return -1
	}
	return *r.OverallScore
}

// String summarizes the result on one line.
func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	violations := "none"
	if len(r.Violations) > 0 {
		violations = strings.Join(r.Violations, ",")
	}
	return fmt.Sprintf("%s %.0f [%s]", r.Verdict, r.Score(), violations)
}

// clone returns a deep copy of r.
func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.OverallScore != nil {
		s := *r.OverallScore
		out.OverallScore = &s
	}
	if r.Violations != nil {
		out.Violations = append([]string(nil), r.Violations...)
	}
	if r.AgentEvals != nil {
		out.AgentEvals = make(map[string]*AgentEvaluation, len(r.AgentEvals))
		for k, v := range r.AgentEvals {
			if v != nil {
				cp := *v
				v = &cp
			}
			out.AgentEvals[k] = v
		}
	}
	if r.Redundancy.OverlappingPoints != nil {
		out.Redundancy.OverlappingPoints = append([]string(nil), r.Redundancy.OverlappingPoints...)
	}
	if r.Fixes != nil {
		out.Fixes = append([]Fix(nil), r.Fixes...)
	}
	return &out
}
