/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reflection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/reflecteval/agents/generate"
	"chainguard.dev/reflecteval/agents/metrics"
)

// DefaultTemperature is the sampling temperature for agent calls.
const DefaultTemperature = 0.4

// Output is one agent's feedback on an entry.
type Output struct {
	Agent   string
	Content string
	Model   string
}

// Runner fans an entry out to the configured agents.
type Runner struct {
	gen         generate.Interface
	models      ModelConfig
	agents      []string
	prompts     map[string]string
	temperature float64
	version     string
}

// Option configures a Runner.
type Option func(*Runner) error

// WithAgents sets the agents to run, in transcript order.
func WithAgents(agents ...string) Option {
	return func(r *Runner) error {
		if len(agents) == 0 {
			return errors.New("at least one agent is required")
		}
		seen := make(map[string]bool, len(agents))
		out := make([]string, 0, len(agents))
		for _, a := range agents {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				return errors.New("agent name cannot be empty")
			}
			if seen[a] {
				return fmt.Errorf("agent %q listed twice", a)
			}
			seen[a] = true
			out = append(out, a)
		}
		r.agents = out
		return nil
	}
}

// WithPrompt overrides or adds the role prompt for agent.
func WithPrompt(agent, prompt string) Option {
	return func(r *Runner) error {
		if strings.TrimSpace(prompt) == "" {
			return fmt.Errorf("prompt for %q cannot be empty", agent)
		}
		r.prompts[strings.ToLower(agent)] = prompt
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *Runner) error {
		if t < 0 || t > 2 {
			return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", t)
		}
		r.temperature = t
		return nil
	}
}

// WithPromptVersion sets the version reported by PromptVersion.
func WithPromptVersion(v string) Option {
	return func(r *Runner) error {
		if v == "" {
			return errors.New("prompt version cannot be empty")
		}
		r.version = v
		return nil
	}
}

// NewRunner constructs a Runner. Every agent must have a prompt; missing
// models are reported by Reflect so a misconfigured deployment can still
// serve stored data.
func NewRunner(gen generate.Interface, models ModelConfig, opts ...Option) (*Runner, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	r := &Runner{
		gen:         gen,
		models:      models,
		agents:      DefaultAgents,
		prompts:     make(map[string]string, len(prompts)),
		temperature: DefaultTemperature,
		version:     PromptVersion,
	}
	for a, p := range prompts {
		r.prompts[a] = p
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	for _, a := range r.agents {
		if _, ok := r.prompts[a]; !ok {
			return nil, fmt.Errorf("no prompt for agent %q", a)
		}
	}
	return r, nil
}

// Agents returns the agents in transcript order.
func (r *Runner) Agents() []string {
	return append([]string(nil), r.agents...)
}

// PromptVersion returns the version tag of the prompts in use.
func (r *Runner) PromptVersion() string {
	return r.version
}

// UserText renders an entry as the agents see it.
func UserText(title, body string) string {
	if strings.TrimSpace(title) == "" {
		return body
	}
	return "Title: " + title + "\n\n" + body
}

// Reflect asks every agent for feedback on the entry. All agents run
// concurrently; the first failure cancels the rest and is returned.
func (r *Runner) Reflect(ctx context.Context, title, body string) ([]Output, error) {
	return r.ReflectEach(ctx, title, body, r.agents, nil)
}

// ReflectEach is Reflect for a subset of the configured agents. When each is
// non-nil it is called with every agent's output as soon as that agent
// replies; calls are serialized. Outputs are returned in the order agents
// were given.
func (r *Runner) ReflectEach(ctx context.Context, title, body string, agents []string, each func(Output)) ([]Output, error) {
	for _, a := range agents {
		if _, ok := r.prompts[a]; !ok {
			return nil, fmt.Errorf("no prompt for agent %q", a)
		}
	}
	if missing := r.models.MissingModels(agents); len(missing) > 0 {
		return nil, &MissingModelError{Agents: missing}
	}

	user := UserText(title, body)
	out := make([]Output, len(agents))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range agents {
		g.Go(func() error {
			model := r.models.Model(agent)
			log := clog.FromContext(gctx).With("agent", agent, "model", model)

			content, err := r.gen.Generate(metrics.WithRole(gctx, agent), generate.Request{
				System:      SystemPrompt(r.prompts[agent]),
				User:        user,
				Temperature: r.temperature,
				MaxTokens:   r.models.MaxTokensFor(agent),
				Model:       model,
			})
			if err != nil {
				log.Warnf("agent failed: %v", err)
				return fmt.Errorf("agent %s: %w", agent, err)
			}
			log.Debug("agent replied", "chars", len(content))
			out[i] = Output{Agent: agent, Content: content, Model: model}
			if each != nil && gctx.Err() == nil {
				mu.Lock()
				each(out[i])
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
