/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"

	"chainguard.dev/reflecteval/agents/generate"
	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/reflection"
	"chainguard.dev/reflecteval/pipeline"
	"chainguard.dev/reflecteval/store"
)

type errorBody struct {
	Error string `json:"error"`
}

// statusOf maps a service error to an HTTP status.
func statusOf(err error) int {
	var mme *reflection.MissingModelError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrEmptyBody),
		errors.Is(err, pipeline.ErrNoFeedback),
		errors.Is(err, pipeline.ErrVersionsRequired):
		return http.StatusBadRequest
	case errors.As(err, &mme):
		return http.StatusInternalServerError
	}
	switch judge.KindOf(err) {
	case judge.KindTransport, judge.KindParse:
		return http.StatusBadGateway
	case judge.KindValidation:
		return http.StatusUnprocessableEntity
	case judge.KindConfiguration:
		return http.StatusInternalServerError
	}
	// Agent generation failures during reflection.
	if generate.IsTransport(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	log := clog.FromContext(c.Request.Context()).With("status", status)
	if status >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	} else {
		log.Infof("request rejected: %v", err)
	}
	c.JSON(status, errorBody{Error: err.Error()})
}
