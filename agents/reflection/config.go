/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reflection

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// ModelConfig selects the model and completion budget for each agent.
// Per-agent settings take precedence over the defaults.
type ModelConfig struct {
	// Default is used by agents without their own model.
	Default string
	// Models maps agent name to model.
	Models map[string]string
	// DefaultMaxTokens is used by agents without their own budget. Zero
	// leaves the budget to the backend.
	DefaultMaxTokens int64
	// MaxTokens maps agent name to completion budget.
	MaxTokens map[string]int64
}

// Model returns the model for agent, or "" when none is configured.
func (c ModelConfig) Model(agent string) string {
	if m := c.Models[agent]; m != "" {
		return m
	}
	return c.Default
}

// MaxTokensFor returns the completion budget for agent. Non-positive values
// are treated as unset.
func (c ModelConfig) MaxTokensFor(agent string) int64 {
	if n := c.MaxTokens[agent]; n > 0 {
		return n
	}
	if c.DefaultMaxTokens > 0 {
		return c.DefaultMaxTokens
	}
	return 0
}

// MissingModels returns the agents, in the given order, that have no model.
func (c ModelConfig) MissingModels(agents []string) []string {
	var missing []string
	for _, a := range agents {
		if c.Model(a) == "" {
			missing = append(missing, a)
		}
	}
	return missing
}

// ModelEnvKey names the variable that overrides agent's model.
func ModelEnvKey(agent string) string {
	return "OPENROUTER_MODEL_" + strings.ToUpper(agent)
}

// MaxTokensEnvKey names the variable that overrides agent's budget.
func MaxTokensEnvKey(agent string) string {
	return "OPENROUTER_MAX_TOKENS_" + strings.ToUpper(agent)
}

// MissingModelError reports agents that cannot run because no model is set.
type MissingModelError struct {
	Agents []string
}

func (e *MissingModelError) Error() string {
	return fmt.Sprintf("no model configured for agents %s: %s", strings.Join(e.Agents, ", "), e.Hint())
}

// Hint names the variables that would fix the error.
func (e *MissingModelError) Hint() string {
	keys := make([]string, 0, len(e.Agents))
	for _, a := range e.Agents {
		keys = append(keys, ModelEnvKey(a))
	}
	return "set OPENROUTER_MODEL or " + strings.Join(keys, ", ")
}

type envModels struct {
	Default          string `env:"OPENROUTER_MODEL"`
	Editor           string `env:"OPENROUTER_MODEL_EDITOR"`
	Definer          string `env:"OPENROUTER_MODEL_DEFINER"`
	Risk             string `env:"OPENROUTER_MODEL_RISK"`
	Skeptic          string `env:"OPENROUTER_MODEL_SKEPTIC"`
	Coach            string `env:"OPENROUTER_MODEL_COACH"`
	DefaultMaxTokens int64  `env:"OPENROUTER_MAX_TOKENS"`
	EditorMaxTokens  int64  `env:"OPENROUTER_MAX_TOKENS_EDITOR"`
	DefinerMaxTokens int64  `env:"OPENROUTER_MAX_TOKENS_DEFINER"`
	RiskMaxTokens    int64  `env:"OPENROUTER_MAX_TOKENS_RISK"`
	SkepticMaxTokens int64  `env:"OPENROUTER_MAX_TOKENS_SKEPTIC"`
	CoachMaxTokens   int64  `env:"OPENROUTER_MAX_TOKENS_COACH"`
}

// ModelConfigFromEnv reads the OPENROUTER_MODEL* and OPENROUTER_MAX_TOKENS*
// variables through lookuper. A nil lookuper reads the process environment.
func ModelConfigFromEnv(ctx context.Context, lookuper envconfig.Lookuper) (ModelConfig, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	var env envModels
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return ModelConfig{}, fmt.Errorf("read model config: %w", err)
	}

	cfg := ModelConfig{
		Default:          env.Default,
		Models:           map[string]string{},
		DefaultMaxTokens: env.DefaultMaxTokens,
		MaxTokens:        map[string]int64{},
	}
	for agent, model := range map[string]string{
		Editor: env.Editor, Definer: env.Definer, Risk: env.Risk, Skeptic: env.Skeptic, Coach: env.Coach,
	} {
		if model != "" {
			cfg.Models[agent] = model
		}
	}
	for agent, n := range map[string]int64{
		Editor: env.EditorMaxTokens, Definer: env.DefinerMaxTokens, Risk: env.RiskMaxTokens,
		Skeptic: env.SkepticMaxTokens, Coach: env.CoachMaxTokens,
	} {
		if n > 0 {
			cfg.MaxTokens[agent] = n
		}
	}
	return cfg, nil
}
