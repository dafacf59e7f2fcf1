/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package transcript serializes an entry and its agent feedback into the single
// text blob that both the judge and the evidence locator consume.
//
// The format is part of the evidence-matching contract: evidence quoted by a
// judge is checked against exactly this string, so any change here
// invalidates previously stored evidence.
package transcript

import (
	"strings"
)

// Untitled stands in for a missing entry title.
const Untitled = "(untitled)"

// AgentOutput is one agent's raw feedback.
type AgentOutput struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// Build renders the transcript. Agent sections appear in the order given;
// callers are responsible for supplying the canonical agent order. Only an
// empty title is replaced with Untitled; any other title, including one of
// only whitespace, is written as given.
func Build(title, body string, outputs []AgentOutput) string {
	if title == "" {
		title = Untitled
	}

	sections := make([]string, 0, len(outputs))
	for _, o := range outputs {
		sections = append(sections, Header(o.Agent)+":\n"+o.Content)
	}

	var sb strings.Builder
	sb.WriteString("ENTRY TITLE:\n")
	sb.WriteString(title)
	sb.WriteString("\n\nENTRY BODY:\n")
	sb.WriteString(body)
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(sections, "\n\n"))
	return sb.String()
}

// Header returns the section label for an agent, e.g. "AGENT EDITOR".
func Header(agent string) string {
	return "AGENT " + strings.ToUpper(agent)
}

// Section returns the content following "<label>:\n" up to the next agent
// section, or "" when the label is absent.
func Section(transcript, label string) string {
	token := label + ":\n"
	start := strings.Index(transcript, token)
	if start == -1 {
		return ""
	}
	rest := transcript[start+len(token):]
	if end := strings.Index(rest, "\n\nAGENT "); end != -1 {
		return rest[:end]
	}
	return rest
}
