/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transcript

import "testing"

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		body    string
		outputs []AgentOutput
		want    string
	}{{
		name:  "titled with two agents",
		title: "Stuck",
		body:  "I keep waiting.",
		outputs: []AgentOutput{
			{Agent: "editor", Content: "x"},
			{Agent: "coach", Content: "y"},
		},
		want: "ENTRY TITLE:\nStuck\n\nENTRY BODY:\nI keep waiting.\n\nAGENT EDITOR:\nx\n\nAGENT COACH:\ny",
	}, {
		name:    "untitled",
		title:   "",
		body:    "body",
		outputs: []AgentOutput{{Agent: "skeptic", Content: "z"}},
		want:    "ENTRY TITLE:\n(untitled)\n\nENTRY BODY:\nbody\n\nAGENT SKEPTIC:\nz",
	}, {
		name:    "whitespace title is kept",
		title:   "  ",
		body:    "body",
		outputs: []AgentOutput{{Agent: "risk", Content: "r"}},
		want:    "ENTRY TITLE:\n  \n\nENTRY BODY:\nbody\n\nAGENT RISK:\nr",
	}, {
		name:  "no agents",
		title: "t",
		body:  "b",
		want:  "ENTRY TITLE:\nt\n\nENTRY BODY:\nb\n\n",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Build(tt.title, tt.body, tt.outputs); got != tt.want {
				t.Errorf("Build() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	outputs := []AgentOutput{{Agent: "editor", Content: "x"}, {Agent: "coach", Content: "y"}}
	a := Build("title", "body", outputs)
	b := Build("title", "body", outputs)
	if a != b {
		t.Errorf("Build not deterministic:\n%q\n%q", a, b)
	}

	reversed := []AgentOutput{outputs[1], outputs[0]}
	if c := Build("title", "body", reversed); c == a {
		t.Error("changing agent order should change the transcript")
	}
}

func TestSection(t *testing.T) {
	tr := Build("t", "the body", []AgentOutput{
		{Agent: "editor", Content: "SUMMARY:\none line"},
		{Agent: "coach", Content: "INTENT:\nmove"},
	})

	tests := []struct {
		label string
		want  string
	}{
		{label: "ENTRY BODY", want: "the body"},
		{label: "AGENT EDITOR", want: "SUMMARY:\none line"},
		{label: "AGENT COACH", want: "INTENT:\nmove"},
		{label: "AGENT RISK", want: ""},
	}
	for _, tt := range tests {
		if got := Section(tr, tt.label); got != tt.want {
			t.Errorf("Section(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
