/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"regexp"
	"slices"

	"chainguard.dev/reflecteval/agents/evidence"
	"chainguard.dev/reflecteval/agents/transcript"
)

// repairSpanWords is how many leading words RepairEvidence quotes.
const repairSpanWords = 6

var word = regexp.MustCompile(`\S+`)

// RepairEvidence returns a copy of r in which every role or format evidence
// quote that cannot be located is replaced by the opening words of that
// agent's own transcript section, falling back to the entry body.
//
// It exists for calibration runs that want to score verdicts independently
// of quoting accuracy. Evaluator never calls it.
func RepairEvidence(r *Result, t string) *Result {
	out := r.clone()
	if out == nil {
		return nil
	}
	loc := evidence.NewLocator(t)
	fallback := leadingWords(transcript.Section(t, "ENTRY BODY"))
	if fallback == "" {
		fallback = leadingWords(t)
	}

	agents := make([]string, 0, len(out.AgentEvals))
	for agent := range out.AgentEvals {
		agents = append(agents, agent)
	}
	slices.Sort(agents)

	for _, agent := range agents {
		ae := out.AgentEvals[agent]
		if ae == nil {
			continue
		}
		span := leadingWords(transcript.Section(t, transcript.Header(agent)))
		if span == "" {
			span = fallback
		}
		if span == "" {
			continue
		}
		if !loc.Contains(ae.RolePurityEvidence) {
			ae.RolePurityEvidence = span
		}
		if ae.FormatCompliance != "" && ae.FormatCompliance != FormatCompliant && !loc.Contains(ae.FormatEvidence) {
			ae.FormatEvidence = span
		}
	}
	return out
}

// leadingWords returns the exact text spanning the first repairSpanWords
// words of s, preserving the whitespace between them.
func leadingWords(s string) string {
	idx := word.FindAllStringIndex(s, repairSpanWords)
	if len(idx) == 0 {
		return ""
	}
	return s[idx[0][0]:idx[len(idx)-1][1]]
}
