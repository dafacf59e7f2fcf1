/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/reflecteval/agents/judge"
)

// SampleEntry is a journal entry used to exercise the whole pipeline.
type SampleEntry struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Sample creates each entry, runs the agents over it and judges the
// feedback. Judge answers that cannot be parsed or validated are recorded
// as failures, as are verdicts listed in failOn. Agent and transport
// failures stop the run and are returned with the partial report.
func (s *Service) Sample(ctx context.Context, entries []SampleEntry, failOn []judge.Verdict) (*BatchReport, error) {
	if len(entries) == 0 {
		return nil, errors.New("no sample entries")
	}
	report := &BatchReport{Items: []BatchItem{}, Failures: []Failure{}}
	for _, se := range entries {
		e, err := s.CreateEntry(ctx, se.Title, se.Body)
		if err != nil {
			return report, err
		}
		clog.FromContext(ctx).With("entry_id", e.ID).Infof("sample %q", se.Title)
		if _, err := s.Reflect(ctx, e.ID); err != nil {
			return report, err
		}
		if err := s.evaluateInto(ctx, report, e.ID, failOn); err != nil {
			return report, err
		}
	}
	return report, nil
}

// SampleEntries are the built-in entries used by Sample.
var SampleEntries = []SampleEntry{{
	Title: "Stuck on the launch",
	Body: `I keep rewriting my launch plan because I'm worried the first version will prove I'm not ready. I tell myself I'm improving the strategy, but it might be avoidance.

Last week I rewrote the pricing page three times. My cofounder asked if we could just ship it and I said "one more pass." She didn't push back but I could tell she was frustrated.

The weird part is I know the current version is fine. I even showed it to two potential customers and they understood it immediately. But I keep finding things to tweak.`,
}, {
	Title: "Too many ideas",
	Body: `I bounce between three ideas and never commit. Each one feels exciting for a day and then I look for a better one.

Idea 1: A newsletter about hiring. I have 10 drafts sitting in Notion.

Idea 2: A tool for interview scheduling. I bought the domain six months ago.

Idea 3: Coaching for first-time managers. I made a landing page last week.

None of them are launched. When I sit down to work on one, I think about the others. When someone asks what I'm building, I give a different answer each time.`,
}, {
	Title: "Quiet resentment",
	Body: `I say yes to work I don't want to do and then feel resentful. I keep hoping people will notice and adjust without me asking.

My manager asked me to lead the integration project. I said yes even though I hate this kind of work. It's not what I was hired for. But she seemed stressed and I didn't want to add to her problems.

Now I'm three weeks in and I dread every meeting. I've started showing up late and giving short answers. Part of me wants her to notice something is wrong so I don't have to say it directly.`,
}, {
	Title: "Fear of publishing",
	Body: `I want to publish writing but I'm stuck on making it perfect. If it's not good, I think it will damage how people see me.

I have 23 drafts in my folder. Some of them are 90% done. I keep opening them, changing a few sentences, and closing them again. I've been doing this for eight months.

Last month a friend published a post that I thought was mediocre. It got a lot of engagement. I felt jealous and also confused. Why can he ship something imperfect and I can't?`,
}, {
	Title: "Delayed decisions",
	Body: `I delay decisions until the last moment because I want more data. The delay often makes the decision worse, but I still repeat it.

Last week I had to choose between two candidates for a role. I had enough information by Tuesday. I waited until Friday, asked for one more reference call, and then the stronger candidate accepted another offer.

My team has started making decisions without me. I think they're tired of waiting. I should feel relieved but instead I feel bypassed.`,
}, {
	Title: "The promotion I don't want",
	Body: `I got offered a promotion to engineering manager. Everyone is congratulating me. I haven't told anyone I don't want it.

I like writing code. I like solving hard problems alone. The idea of spending my days in 1:1s and dealing with performance reviews makes me feel hollow.

But saying no feels like career suicide. And my parents would be confused: why would you turn down more money and a better title? I don't have a good answer.`,
}, {
	Title: "I might be the problem",
	Body: `Third startup, third cofounder conflict. I'm starting to think the common factor is me.

Each time it's the same pattern: we start aligned, things get tense around month six, and by month twelve we're barely speaking. I always have a story about why they were difficult. But three times?

I don't know what I'm doing wrong. I've asked and they give vague answers like "communication issues." I want to fix it but I can't fix what I can't see.`,
}}
