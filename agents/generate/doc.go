/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package generate is the single completion service every agent and the judge
// call through. It hides the provider behind one Interface, enforces a per-call
// timeout, and reports failures as a small closed set of error values.
//
// # Providers
//
// Three backends are supported:
//
//   - openrouter: OpenAI-compatible chat completions against
//     https://openrouter.ai/api/v1 using github.com/openai/openai-go
//   - claude: the Anthropic messages API, authenticated with an API key or
//     Vertex AI credentials
//   - gemini: google.golang.org/genai against the Gemini API or Vertex AI
//
// # Errors
//
// Failures are reported as ErrUnauthorized, ErrTimeout, or *UpstreamError.
// An empty completion is an *UpstreamError with body "empty completion".
// IsTransport reports whether an error belongs to this set.
//
// # Retries
//
// By default a failed call is not retried. Setting Config.Retry.MaxRetries
// enables exponential backoff for rate-limit and overload responses only
// (HTTP 429, 503 and 529).
//
// # Usage
//
//	gen, err := generate.New(ctx, generate.Config{
//		Provider: generate.OpenRouter,
//		APIKey:   os.Getenv("OPENROUTER_API_KEY"),
//		Model:    "anthropic/claude-3.5-sonnet",
//	})
//	if err != nil {
//		return err
//	}
//	text, err := gen.Generate(ctx, generate.Request{
//		System:      "You are terse.",
//		User:        "Say hello.",
//		Temperature: 0.2,
//		MaxTokens:   200,
//	})
package generate
