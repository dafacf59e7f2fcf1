/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"fmt"
	"strings"

	"chainguard.dev/reflecteval/agents/promptbuilder"
	"chainguard.dev/reflecteval/agents/schema"
	"chainguard.dev/reflecteval/agents/taxonomy"
)

// Placeholders a rubric template may use. Each is optional.
const (
	placeholderAgents   = "agents"
	placeholderTaxonomy = "taxonomy"
	placeholderSchema   = "schema"
)

// rubricTemplate is the judge's system prompt.
var rubricTemplate = promptbuilder.MustNewPrompt(`<task>
You are the evaluation judge for a multi-agent reflection system. A user wrote
a journal entry and several agents, each with a narrow role, replied to it.
Judge whether every agent stayed in its role, followed its output format, and
applied the right amount of pressure, and whether the agents repeated each
other.
</task>

<agents>
Evaluate each of these agents. Use these exact lowercase names as keys in
agentEvals:
{{agents}}
</agents>

<violations>
Report violations only with these codes. Codes with an agent belong to that
agent; the weight is the score penalty.
{{taxonomy}}
</violations>

<evidence_rules>
- rolePurityEvidence is required for every agent. It must be an exact quote
  copied from the transcript, one contiguous span, not a paraphrase.
- formatEvidence is required whenever formatCompliance is not "compliant",
  and must also be an exact quote from the transcript.
- Every agent-owned violation requires rolePurityEvidence for that agent.
- format_broken requires formatEvidence on at least one agent.
- redundancy_severe, or redundancy severity "severe", requires at least one
  quoted overlappingPoints entry.
</evidence_rules>

<verdict_rules>
- "fail" requires at least one violation.
- "pass" requires no violations.
- "flag" means a human should look, with or without violations.
- overallScore is 0 to 100. Report your estimate; it will be recomputed from
  the violations.
- evalReasoning is required and explains the verdict.
</verdict_rules>

<output_format>
Respond with a single JSON object and nothing else, matching this schema:
{{schema}}

If the user message contains VALIDATION_ERRORS, your previous answer broke
the rules above. Fix every listed error and return the full corrected object.
</output_format>`)

// renderRubric binds whichever placeholders p declares.
func renderRubric(p *promptbuilder.Prompt, tax *taxonomy.Taxonomy, agents []string) (string, error) {
	var err error
	if p.Has(placeholderAgents) {
		if p, err = p.BindList(placeholderAgents, agents); err != nil {
			return "", err
		}
	}
	if p.Has(placeholderTaxonomy) {
		if p, err = p.BindYAML(placeholderTaxonomy, tax.Rules()); err != nil {
			return "", err
		}
	}
	if p.Has(placeholderSchema) {
		if p, err = p.BindJSON(placeholderSchema, schema.ReflectType[Result]()); err != nil {
			return "", err
		}
	}
	return p.Build()
}

// RenderRubric renders an operator-supplied rubric template. The template
// may reference {{agents}}, {{taxonomy}} and {{schema}}.
func RenderRubric(template string, tax *taxonomy.Taxonomy, agents []string) (string, error) {
	p, err := promptbuilder.Parse(template)
	if err != nil {
		return "", fmt.Errorf("parse rubric: %w", err)
	}
	for _, name := range p.Placeholders() {
		switch name {
		case placeholderAgents, placeholderTaxonomy, placeholderSchema:
		default:
			return "", fmt.Errorf("rubric references unknown placeholder %q", name)
		}
	}
	return renderRubric(p, tax, agents)
}

// DefaultRubric renders the built-in rubric.
func DefaultRubric(tax *taxonomy.Taxonomy, agents []string) (string, error) {
	return renderRubric(rubricTemplate, tax, agents)
}

// UserMessage builds the judge's user message. On a corrective retry the
// previous validation errors are appended.
func UserMessage(transcript, promptVersion string, validationErrors []string) string {
	var sb strings.Builder
	sb.WriteString("TRANSCRIPT TO EVALUATE:\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\nCURRENT PROMPT VERSION:\n")
	sb.WriteString(promptVersion)
	if len(validationErrors) > 0 {
		sb.WriteString("\n\nVALIDATION_ERRORS:\n")
		sb.WriteString(strings.Join(validationErrors, "; "))
	}
	return sb.String()
}
