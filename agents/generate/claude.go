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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
)

// defaultClaudeMaxTokens is used when a request leaves MaxTokens at zero;
// the messages API requires a value.
const defaultClaudeMaxTokens = 4096

type claude struct {
	client anthropic.Client
}

func newClaude(ctx context.Context, cfg Config) (backend, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.ProjectID != "" && cfg.Region != "":
		opts = append(opts, vertex.WithGoogleAuth(ctx, cfg.Region, cfg.ProjectID))
	default:
		return nil, errors.New("claude: either an API key or a Vertex project and region is required")
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &claude{client: anthropic.NewClient(opts...)}, nil
}

func (c *claude) complete(ctx context.Context, req Request) (completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return completion{}, statusError(apiErr.StatusCode, apiErr.RawJSON())
		}
		return completion{}, fmt.Errorf("claude request: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return completion{
		text:             text.String(),
		promptTokens:     msg.Usage.InputTokens,
		completionTokens: msg.Usage.OutputTokens,
	}, nil
}
