/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// EntryRequest is the body of entry create and update calls.
type EntryRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// EvalRequest is the body of POST /api/eval.
type EvalRequest struct {
	EntryID string `json:"entryId"`
	Force   bool   `json:"force"`
}

func (s *Server) createEntry(c *gin.Context) {
	var req EntryRequest
	if !bind(c, &req) {
		return
	}
	e, err := s.svc.CreateEntry(c.Request.Context(), req.Title, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) listEntries(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{Error: "limit must be an integer"})
			return
		}
		limit = n
	}
	entries, err := s.svc.ListEntries(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) getEntry(c *gin.Context) {
	e, err := s.svc.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) updateEntry(c *gin.Context) {
	var req EntryRequest
	if !bind(c, &req) {
		return
	}
	e, err := s.svc.UpdateEntry(c.Request.Context(), c.Param("id"), req.Title, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) deleteEntry(c *gin.Context) {
	if err := s.svc.DeleteEntry(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) reflect(c *gin.Context) {
	r, err := s.svc.Reflect(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) evaluate(c *gin.Context) {
	var req EvalRequest
	if !bind(c, &req) {
		return
	}
	if req.EntryID == "" {
		c.JSON(http.StatusBadRequest, errorBody{Error: "entryId is required"})
		return
	}
	ev, err := s.svc.Evaluate(c.Request.Context(), req.EntryID, req.Force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (s *Server) summary(c *gin.Context) {
	sum, err := s.svc.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) regressions(c *gin.Context) {
	reg, err := s.svc.Regressions(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// bind decodes a JSON body and answers 400 when it cannot.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request: " + err.Error()})
		return false
	}
	return true
}
