/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package app assembles the pipeline from environment configuration for
// the binaries under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"chainguard.dev/reflecteval/agents/generate"
	"chainguard.dev/reflecteval/agents/reflection"
)

// EnvFiles are loaded in order before the environment is read. Variables
// already set are never overridden, so earlier files take precedence.
var EnvFiles = []string{".env.local", ".env"}

// Config is the process configuration shared by the binaries.
type Config struct {
	Provider     generate.Provider `env:"LLM_PROVIDER"`
	APIKey       string            `env:"OPENROUTER_API_KEY"`
	AnthropicKey string            `env:"ANTHROPIC_API_KEY"`
	GeminiKey    string            `env:"GEMINI_API_KEY"`
	BaseURL      string            `env:"OPENROUTER_BASE_URL"`
	AppURL       string            `env:"OPENROUTER_APP_URL"`
	AppName      string            `env:"OPENROUTER_APP_NAME,default=reflecteval"`
	ProjectID    string            `env:"GOOGLE_CLOUD_PROJECT"`
	Region       string            `env:"GOOGLE_CLOUD_REGION,default=us-central1"`
	Timeout      time.Duration     `env:"OPENROUTER_TIMEOUT,default=30s"`
	MaxRetries   int               `env:"GENERATE_MAX_RETRIES,default=0"`

	// EvalModel is the judge model. It falls back to OPENROUTER_MODEL.
	EvalModel     string `env:"OPENROUTER_EVAL_MODEL"`
	EvalMaxTokens int64  `env:"OPENROUTER_EVAL_MAX_TOKENS"`

	DatabasePath   string `env:"DATABASE_PATH,default=reflecteval.db"`
	SnapshotDir    string `env:"SNAPSHOT_DIR"`
	SnapshotBucket string `env:"SNAPSHOT_BUCKET"`
	SnapshotPrefix string `env:"SNAPSHOT_PREFIX"`

	EvalMode      bool   `env:"EVAL_MODE,default=false"`
	EvalAllowProd bool   `env:"EVAL_MODE_ALLOW_PROD,default=false"`
	Environment   string `env:"ENVIRONMENT,default=development"`
	Port          int    `env:"PORT,default=8080"`

	RequiredAgents []string `env:"REQUIRED_AGENTS"`
	PromptVersion  string   `env:"PROMPT_VERSION"`
	TaxonomyFile   string   `env:"TAXONOMY_FILE"`
	RubricFile     string   `env:"RUBRIC_FILE"`

	// Models is read separately by reflection.ModelConfigFromEnv.
	Models reflection.ModelConfig
}

// LoadEnvFiles loads the files in EnvFiles that exist.
func LoadEnvFiles(ctx context.Context) error {
	for _, name := range EnvFiles {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", name, err)
		}
		clog.FromContext(ctx).Debugf("loaded environment from %s", name)
	}
	return nil
}

// Load reads Config through lookuper. A nil lookuper reads the process
// environment.
func Load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	models, err := reflection.ModelConfigFromEnv(ctx, lookuper)
	if err != nil {
		return nil, err
	}
	cfg.Models = models
	if cfg.EvalModel == "" {
		cfg.EvalModel = models.Default
	}
	for i, a := range cfg.RequiredAgents {
		cfg.RequiredAgents[i] = strings.ToLower(strings.TrimSpace(a))
	}
	return &cfg, nil
}

// generateConfig returns the client configuration for model.
func (c *Config) generateConfig(model string) generate.Config {
	provider := c.Provider
	if provider == "" {
		provider = generate.ProviderFor(model)
	}
	key := c.APIKey
	switch provider {
	case generate.Claude:
		key = c.AnthropicKey
	case generate.Gemini:
		key = c.GeminiKey
	}
	retry := generate.DefaultRetryConfig()
	retry.MaxRetries = c.MaxRetries
	return generate.Config{
		Provider:  provider,
		Model:     model,
		APIKey:    key,
		BaseURL:   c.BaseURL,
		AppURL:    c.AppURL,
		AppName:   c.AppName,
		ProjectID: c.ProjectID,
		Region:    c.Region,
		Timeout:   c.Timeout,
		Retry:     retry,
	}
}
