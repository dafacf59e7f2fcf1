/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/reflecteval/agents/metrics"
	"github.com/chainguard-dev/clog"
)

// Provider names a completion backend.
type Provider string

const (
	OpenRouter Provider = "openrouter"
	Claude     Provider = "claude"
	Gemini     Provider = "gemini"
)

// DefaultTimeout bounds every call when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config selects and configures a backend.
type Config struct {
	// Provider selects the backend. When empty it is inferred from Model
	// with ProviderFor.
	Provider Provider
	// Model is the default model for requests that do not name one.
	Model string
	// APIKey authenticates with the provider. Claude and Gemini fall back
	// to Vertex AI credentials when it is empty.
	APIKey string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	// AppURL and AppName are sent to OpenRouter as HTTP-Referer and X-Title.
	AppURL  string
	AppName string
	// ProjectID and Region select the Vertex AI project.
	ProjectID string
	Region    string
	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retry configures backoff for rate-limited calls.
	Retry RetryConfig
	// Metrics records token usage and call outcomes. Optional.
	Metrics *metrics.GenAI
}

// ProviderFor infers a provider from a model name: "claude-*" models go to
// Claude, "gemini-*" models to Gemini, and everything else (including
// OpenRouter's "vendor/model" names) to OpenRouter.
func ProviderFor(model string) Provider {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return Claude
	case strings.HasPrefix(model, "gemini-"):
		return Gemini
	default:
		return OpenRouter
	}
}

// completion is what a backend returns for one successful call.
type completion struct {
	text             string
	promptTokens     int64
	completionTokens int64
}

// backend performs a single provider call. Implementations translate SDK
// API errors with statusError; anything else is wrapped by the client.
type backend interface {
	complete(ctx context.Context, req Request) (completion, error)
}

// New constructs a client for cfg.
func New(ctx context.Context, cfg Config) (Interface, error) {
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	provider := cfg.Provider
	if provider == "" {
		provider = ProviderFor(cfg.Model)
	}

	var (
		b   backend
		err error
	)
	switch provider {
	case OpenRouter:
		b, err = newOpenRouter(cfg)
	case Claude:
		b, err = newClaude(ctx, cfg)
	case Gemini:
		b, err = newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	if err != nil {
		return nil, err
	}
	return newClient(provider, b, cfg), nil
}

func newClient(provider Provider, b backend, cfg Config) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &client{
		provider: provider,
		backend:  b,
		model:    cfg.Model,
		timeout:  timeout,
		retry:    cfg.Retry,
		metrics:  cfg.Metrics,
	}
}

// client wraps a backend with the timeout, retry and metrics every provider
// shares.
type client struct {
	provider Provider
	backend  backend
	model    string
	timeout  time.Duration
	retry    RetryConfig
	metrics  *metrics.GenAI
}

var _ Interface = (*client)(nil)

// Generate implements Interface.
func (c *client) Generate(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.Model == "" {
		return "", ErrNoModel
	}

	log := clog.FromContext(ctx).With("provider", string(c.provider)).With("model", req.Model)
	start := time.Now()
	text, err := withBackoff(ctx, c.retry, "generate", isRateLimited, func() (string, error) {
		return c.once(ctx, req)
	})
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordCall(ctx, string(c.provider), req.Model, outcome(err), elapsed)
	}
	if err != nil {
		log.With("elapsed", elapsed).With("error", err).Warn("Generation failed")
		return "", err
	}
	log.With("elapsed", elapsed).Debug("Generation succeeded")
	return text, nil
}

func (c *client) once(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.backend.complete(callCtx, req)
	if err != nil {
		// Only our own deadline counts as a timeout; a cancelled caller
		// context is passed through untouched.
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		if ctx.Err() != nil || IsTransport(err) {
			return "", err
		}
		// Dial, DNS and TLS failures never produced a response.
		return "", &UpstreamError{Body: err.Error(), Err: err}
	}
	if c.metrics != nil {
		c.metrics.RecordTokens(ctx, string(c.provider), req.Model, out.promptTokens, out.completionTokens)
	}
	if strings.TrimSpace(out.text) == "" {
		return "", errEmptyCompletion()
	}
	return out.text, nil
}

// outcome is the bounded metric label for a call result.
func outcome(err error) string {
	var up *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &up):
		return "upstream"
	default:
		return "error"
	}
}
