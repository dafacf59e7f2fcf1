/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the meter shared by every generation backend. The model and
// provider are recorded as attributes rather than separate meters.
const MeterName = "chainguard.reflecteval.generate"

// GenAI provides OpenTelemetry metrics for completion calls: token usage,
// call outcomes and latency. Instruments that fail to initialize degrade to
// no-ops instead of failing construction.
type GenAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	calls            metric.Int64Counter
	latency          metric.Float64Histogram
	attrEnricher     AttributeEnricher
}

// NewGenAI creates a GenAI instance from the global meter provider.
func NewGenAI(meterName string) *GenAI {
	return NewGenAIFromMeter(otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0")))
}

// NewGenAIFromMeter creates a GenAI instance from an explicit meter.
func NewGenAIFromMeter(meter metric.Meter) *GenAI {
	promptTokens, err := meter.Int64Counter("genai.token.prompt",
		metric.WithDescription("The number of prompt tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create prompt tokens counter, metrics will be disabled", "error", err)
		promptTokens = noop.Int64Counter{}
	}

	completionTokens, err := meter.Int64Counter("genai.token.completion",
		metric.WithDescription("The number of completion tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create completion tokens counter, metrics will be disabled", "error", err)
		completionTokens = noop.Int64Counter{}
	}

	calls, err := meter.Int64Counter("genai.calls",
		metric.WithDescription("The number of completion calls by outcome"),
		metric.WithUnit("{calls}"))
	if err != nil {
		slog.Warn("Failed to create call counter, metrics will be disabled", "error", err)
		calls = noop.Int64Counter{}
	}

	latency, err := meter.Float64Histogram("genai.call.duration",
		metric.WithDescription("Completion call latency"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("Failed to create latency histogram, metrics will be disabled", "error", err)
		latency = noop.Float64Histogram{}
	}

	return &GenAI{
		promptTokens:     promptTokens,
		completionTokens: completionTokens,
		calls:            calls,
		latency:          latency,
	}
}

// SetAttributeEnricher sets the attribute enricher for this metrics instance.
func (m *GenAI) SetAttributeEnricher(enricher AttributeEnricher) {
	m.attrEnricher = enricher
}

func (m *GenAI) attributes(ctx context.Context, base ...attribute.KeyValue) []attribute.KeyValue {
	if m.attrEnricher != nil {
		return m.attrEnricher(ctx, base)
	}
	return base
}

// RecordTokens records prompt and completion token usage for model.
func (m *GenAI) RecordTokens(ctx context.Context, provider, model string, promptTokens, completionTokens int64) {
	attrs := m.attributes(ctx,
		attribute.String("provider", provider),
		attribute.String("model", model),
	)
	m.promptTokens.Add(ctx, promptTokens, metric.WithAttributes(attrs...))
	m.completionTokens.Add(ctx, completionTokens, metric.WithAttributes(attrs...))
}

// RecordCall records the outcome and latency of one completion call.
// outcome is a bounded label such as "ok", "timeout" or "upstream".
func (m *GenAI) RecordCall(ctx context.Context, provider, model, outcome string, elapsed time.Duration) {
	attrs := m.attributes(ctx,
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	)
	m.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}
