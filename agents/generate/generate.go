/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generate

import (
	"context"
	"errors"
	"fmt"
)

// Interface produces one completion for a system and user message pair.
type Interface interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a single completion request.
type Request struct {
	// System is the system prompt.
	System string
	// User is the user message.
	User string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the completion length. Zero uses the backend default.
	MaxTokens int64
	// Model overrides the client's default model when non-empty.
	Model string
}

// Func adapts a plain function to Interface.
type Func func(ctx context.Context, req Request) (string, error)

// Generate implements Interface.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var (
	// ErrUnauthorized is returned when the provider rejects the credentials.
	ErrUnauthorized = errors.New("generation service rejected credentials")

	// ErrTimeout is returned when a call exceeds the configured timeout.
	ErrTimeout = errors.New("generation service timed out")

	// ErrNoModel is returned, before any call is made, when neither the
	// request nor the client names a model.
	ErrNoModel = errors.New("no model configured for generation request")
)

// UpstreamError is a failed provider call other than a timeout or rejected
// credentials. Status is zero when the failure was not an HTTP error, for
// example an empty completion or an unreachable endpoint; Err then holds the
// underlying failure, if any.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("generation service error: %s", e.Body)
	}
	return fmt.Sprintf("generation service error (status %d): %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// errEmptyCompletion is the UpstreamError returned for a blank completion.
func errEmptyCompletion() error {
	return &UpstreamError{Body: "empty completion"}
}

// IsTransport reports whether err is one of the errors this package returns
// for a failed call.
func IsTransport(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrTimeout) {
		return true
	}
	var up *UpstreamError
	return errors.As(err, &up)
}

// statusError maps an HTTP status and body from a provider SDK error to the
// package error set.
func statusError(status int, body string) error {
	switch status {
	case 401, 403:
		return fmt.Errorf("%w (status %d)", ErrUnauthorized, status)
	default:
		return &UpstreamError{Status: status, Body: body}
	}
}
