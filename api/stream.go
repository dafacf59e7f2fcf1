/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"

	"chainguard.dev/reflecteval/agents/reflection"
	"chainguard.dev/reflecteval/store"
)

// Stream event types.
const (
	EventFeedback = "feedback"
	EventError    = "error"
	EventDone     = "done"
)

// StreamEvent is one line of a reflect stream.
type StreamEvent struct {
	Type string          `json:"type"`
	Data *store.Feedback `json:"data,omitempty"`
	// Message, Status and Hint are set on error events. Status is what the
	// non-streaming route would have answered.
	Message string `json:"message,omitempty"`
	Status  int    `json:"status,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// reflectStream runs the agents and writes one JSON line per feedback as it
// arrives, then a done or error line. The response status is always 200
// once the stream has started.
func (s *Server) reflectStream(c *gin.Context) {
	log := clog.FromContext(c.Request.Context())
	c.Header("Content-Type", "application/x-ndjson; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	send := func(ev StreamEvent) {
		if err := enc.Encode(ev); err != nil {
			log.Warnf("writing stream event: %v", err)
			return
		}
		c.Writer.Flush()
	}

	_, err := s.svc.ReflectStream(c.Request.Context(), c.Param("id"), func(f *store.Feedback) {
		send(StreamEvent{Type: EventFeedback, Data: f})
	})
	if err != nil {
		status := statusOf(err)
		log.With("status", status).Warnf("reflect stream failed: %v", err)
		ev := StreamEvent{Type: EventError, Message: err.Error(), Status: status}
		var mme *reflection.MissingModelError
		if errors.As(err, &mme) {
			ev.Hint = mme.Hint()
		}
		send(ev)
		return
	}
	send(StreamEvent{Type: EventDone})
}
