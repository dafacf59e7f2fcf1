/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package taxonomy

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

// Code identifies a rubric violation.
type Code string

const (
	EditorCausalInference    Code = "editor_causal_inference"
	EditorAddsNewIdeas       Code = "editor_adds_new_ideas"
	DefinerNotInText         Code = "definer_not_in_text"
	DefinerNoOperationalDefs Code = "definer_no_operational_defs"
	SkepticOverExplains      Code = "skeptic_over_explains"
	SkepticNotThreatening    Code = "skeptic_not_threatening"
	CoachIdentityInjection   Code = "coach_identity_injection"
	CoachOptionsNotDistinct  Code = "coach_options_not_distinct"
	FormatBroken             Code = "format_broken"
	RedundancySevere         Code = "redundancy_severe"
)

// DefaultWeight is charged for a code the taxonomy does not know. Unknown
// codes are rejected by validation before scoring matters, so this only keeps
// Score total.
const DefaultWeight = 5

// Rule describes a single violation code.
type Rule struct {
	Code   Code   `yaml:"code" json:"code"`
	Weight int    `yaml:"weight" json:"weight"`
	Agent  string `yaml:"agent,omitempty" json:"agent,omitempty"`
}

// Taxonomy is the closed set of violation codes together with their weights
// and owning agents. A Taxonomy is immutable once constructed and safe for
// concurrent use.
type Taxonomy struct {
	rules []Rule
	index map[Code]Rule
}

// New constructs a taxonomy from rules. Rules keep their given order.
func New(rules ...Rule) (*Taxonomy, error) {
	if len(rules) == 0 {
		return nil, errors.New("taxonomy must contain at least one rule")
	}
	t := &Taxonomy{
		rules: make([]Rule, 0, len(rules)),
		index: make(map[Code]Rule, len(rules)),
	}
	for _, r := range rules {
		if r.Code == "" {
			return nil, errors.New("rule code cannot be empty")
		}
		if r.Weight <= 0 {
			return nil, fmt.Errorf("rule %q: weight must be positive, got %d", r.Code, r.Weight)
		}
		if _, dup := t.index[r.Code]; dup {
			return nil, fmt.Errorf("duplicate rule %q", r.Code)
		}
		t.rules = append(t.rules, r)
		t.index[r.Code] = r
	}
	return t, nil
}

// Must panics if err is non-nil. Intended for package-level tables.
func Must(t *Taxonomy, err error) *Taxonomy {
	if err != nil {
		panic(err)
	}
	return t
}

var defaultTaxonomy = Must(New(
	Rule{Code: EditorCausalInference, Weight: 12, Agent: "editor"},
	Rule{Code: EditorAddsNewIdeas, Weight: 12, Agent: "editor"},
	Rule{Code: DefinerNotInText, Weight: 10, Agent: "definer"},
	Rule{Code: DefinerNoOperationalDefs, Weight: 8, Agent: "definer"},
	Rule{Code: SkepticOverExplains, Weight: 8, Agent: "skeptic"},
	Rule{Code: SkepticNotThreatening, Weight: 8, Agent: "skeptic"},
	Rule{Code: CoachIdentityInjection, Weight: 10, Agent: "coach"},
	Rule{Code: CoachOptionsNotDistinct, Weight: 8, Agent: "coach"},
	Rule{Code: FormatBroken, Weight: 15},
	Rule{Code: RedundancySevere, Weight: 10},
))

// Default returns the standard ten-code taxonomy.
func Default() *Taxonomy {
	return defaultTaxonomy
}

// file is the on-disk shape read by Load.
type file struct {
	Rules []Rule `yaml:"rules"`
}

// Load reads a taxonomy from YAML of the form:
//
//	rules:
//	  - code: format_broken
//	    weight: 15
//	  - code: editor_causal_inference
//	    weight: 12
//	    agent: editor
func Load(r io.Reader) (*Taxonomy, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding taxonomy: %w", err)
	}
	return New(f.Rules...)
}

// Rules returns a copy of the rules in declaration order.
func (t *Taxonomy) Rules() []Rule {
	return slices.Clone(t.rules)
}

// Codes returns every code in sorted order.
func (t *Taxonomy) Codes() []Code {
	codes := make([]Code, 0, len(t.rules))
	for _, r := range t.rules {
		codes = append(codes, r.Code)
	}
	slices.Sort(codes)
	return codes
}

// Contains reports whether code belongs to the taxonomy.
func (t *Taxonomy) Contains(code Code) bool {
	_, ok := t.index[code]
	return ok
}

// Weight returns the weight of code, or DefaultWeight when unknown.
func (t *Taxonomy) Weight(code Code) int {
	if r, ok := t.index[code]; ok {
		return r.Weight
	}
	return DefaultWeight
}

// Owner returns the agent responsible for code, if any.
func (t *Taxonomy) Owner(code Code) (string, bool) {
	r, ok := t.index[code]
	if !ok || r.Agent == "" {
		return "", false
	}
	return r.Agent, true
}

// Score converts a violation set into a 0-100 score: 100 minus the summed
// weights, clamped. It depends only on its input.
func (t *Taxonomy) Score(codes []Code) int {
	penalty := 0
	for _, c := range codes {
		penalty += t.Weight(c)
	}
	return min(100, max(0, 100-penalty))
}

// Sanitize filters raw codes to the taxonomy and removes duplicates, keeping
// the first occurrence of each.
func (t *Taxonomy) Sanitize(raw []string) []Code {
	out := make([]Code, 0, len(raw))
	seen := make(map[Code]struct{}, len(raw))
	for _, s := range raw {
		c := Code(s)
		if !t.Contains(c) {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Unknown returns the entries of raw that are not in the taxonomy, in input
// order.
func (t *Taxonomy) Unknown(raw []string) []string {
	var out []string
	for _, s := range raw {
		if !t.Contains(Code(s)) {
			out = append(out, s)
		}
	}
	return out
}

// Strings converts codes back to plain strings.
func Strings(codes []Code) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
