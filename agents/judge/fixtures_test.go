/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"encoding/json"
	"testing"

	"chainguard.dev/reflecteval/agents/transcript"
)

var testTranscript = transcript.Build("Stuck",
	"I keep starting projects and never finishing them. I think it is because I fear judgment.",
	[]transcript.AgentOutput{
		{Agent: "editor", Content: "SUMMARY:\nThe author starts projects and does not finish them."},
		{Agent: "definer", Content: "KEY TERMS:\n- \"finishing\" means shipping a version someone else can see."},
		{Agent: "risk", Content: "RISKS:\n- Quitting the next project at the same stage."},
		{Agent: "skeptic", Content: "CHALLENGES:\n- \u201cI fear judgment\u201d may be a comfortable story."},
		{Agent: "coach", Content: "OPTIONS:\n- Ship one small project this week."},
	})

func ptr[T any](v T) *T { return &v }

func cleanEval(quote string) *AgentEvaluation {
	return &AgentEvaluation{
		RolePurity:         RolePurityClean,
		RolePurityEvidence: quote,
		FormatCompliance:   FormatCompliant,
		PressureLevel:      PressureCalibrated,
	}
}

// validResult is a passing result whose quotes all appear in testTranscript.
func validResult() *Result {
	return &Result{
		Verdict:      VerdictPass,
		OverallScore: ptr(100.0),
		Violations:   []string{},
		AgentEvals: map[string]*AgentEvaluation{
			"editor":  cleanEval("The author starts projects and does not finish them."),
			"definer": cleanEval(`"finishing" means shipping a version`),
			"risk":    cleanEval("Quitting the next project at the same stage."),
			// Straight quotes against the curly quotes in the transcript.
			"skeptic": cleanEval(`"I fear judgment" may be a comfortable story.`),
			"coach":   cleanEval("Ship one small project this week."),
		},
		Redundancy:    RedundancyAssessment{Severity: RedundancyNone},
		EvalReasoning: "Every agent stayed in role.",
	}
}

// failingResult claims an editor violation with located evidence.
func failingResult() *Result {
	r := validResult()
	r.Verdict = VerdictFail
	r.OverallScore = ptr(88.0)
	r.Violations = []string{"editor_causal_inference"}
	r.AgentEvals["editor"].RolePurity = RolePurityDrift
	r.AgentEvals["editor"].RolePurityEvidence = "I think it is because I fear judgment."
	return r
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return string(b)
}
