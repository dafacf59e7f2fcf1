/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/genai"
)

type gemini struct {
	client *genai.Client
}

func newGemini(ctx context.Context, cfg Config) (backend, error) {
	cc := &genai.ClientConfig{}
	switch {
	case cfg.APIKey != "":
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case cfg.ProjectID != "" && cfg.Region != "":
		cc.Project = cfg.ProjectID
		cc.Location = cfg.Region
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, errors.New("gemini: either an API key or a Vertex project and region is required")
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI client: %w", err)
	}
	return &gemini{client: client}, nil
}

func (g *gemini) complete(ctx context.Context, req Request) (completion, error) {
	config := &genai.GenerateContentConfig{
		Temperature: ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(req.MaxTokens, math.MaxInt32))
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.User}},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		if apiErr, ok := asGenAIError(err); ok {
			return completion{}, statusError(apiErr.Code, apiErr.Message)
		}
		return completion{}, fmt.Errorf("gemini request: %w", err)
	}

	var out completion
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			out.text += part.Text
		}
	}
	if resp.UsageMetadata != nil {
		out.promptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.completionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// asGenAIError unwraps an APIError returned either by value or by pointer.
func asGenAIError(err error) (genai.APIError, bool) {
	var val genai.APIError
	if errors.As(err, &val) {
		return val, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

func ptr[T any](v T) *T { return &v }
