/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package generatetest provides scripted generation fakes for tests.
package generatetest

import (
	"context"
	"fmt"
	"sync"

	"chainguard.dev/reflecteval/agents/generate"
)

// Reply is one scripted response.
type Reply struct {
	Text string
	Err  error
}

// Scripted returns its replies in order and records every request.
// Once the script is exhausted further calls fail.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	requests []generate.Request
}

var _ generate.Interface = (*Scripted)(nil)

// New returns a Scripted generator with the given replies.
func New(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Texts is shorthand for a script of successful replies.
func Texts(texts ...string) *Scripted {
	replies := make([]Reply, 0, len(texts))
	for _, t := range texts {
		replies = append(replies, Reply{Text: t})
	}
	return New(replies...)
}

// Generate implements generate.Interface.
func (s *Scripted) Generate(_ context.Context, req generate.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.requests)
	s.requests = append(s.requests, req)
	if n >= len(s.replies) {
		return "", fmt.Errorf("generatetest: unexpected call %d, only %d scripted", n+1, len(s.replies))
	}
	r := s.replies[n]
	return r.Text, r.Err
}

// Requests returns a copy of the requests received so far.
func (s *Scripted) Requests() []generate.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]generate.Request(nil), s.requests...)
}

// Calls returns the number of requests received so far.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// ByRole answers each request with a function of the request, for fakes that
// serve several agents concurrently.
type ByRole func(req generate.Request) (string, error)

// Generate implements generate.Interface.
func (f ByRole) Generate(_ context.Context, req generate.Request) (string, error) {
	return f(req)
}
