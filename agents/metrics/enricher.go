/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// AttributeEnricher adds contextual attributes (for example the prompt version
// or agent role) to the base attributes of every recorded metric.
type AttributeEnricher func(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue

type roleKey struct{}

// WithRole tags ctx with the agent role issuing a completion call.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext returns the role set by WithRole, or "".
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}

// RoleEnricher appends a "role" attribute when ctx carries one.
func RoleEnricher(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue {
	if role := RoleFromContext(ctx); role != "" {
		return append(baseAttrs, attribute.String("role", role))
	}
	return baseAttrs
}
