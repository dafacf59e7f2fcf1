/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package api exposes the journal pipeline over HTTP.
package api

import (
	"net/http"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chainguard.dev/reflecteval/pipeline"
)

// Production is the environment name that requires an explicit opt-in
// before the eval routes are served.
const Production = "production"

// Config controls which routes the server exposes.
type Config struct {
	// EvalMode enables the /api/eval routes.
	EvalMode bool
	// EvalAllowProd must also be set to serve eval routes in production.
	EvalAllowProd bool
	// Environment is the deployment environment, e.g. "production".
	Environment string
	// Debug leaves gin in debug mode.
	Debug bool
}

// EvalEnabled reports whether the eval routes are served.
func (c Config) EvalEnabled() bool {
	if !c.EvalMode {
		return false
	}
	if strings.EqualFold(c.Environment, Production) {
		return c.EvalAllowProd
	}
	return true
}

// Server routes HTTP requests to a pipeline.Service.
type Server struct {
	svc    *pipeline.Service
	cfg    Config
	engine *gin.Engine
}

// New builds the router for svc.
func New(svc *pipeline.Service, cfg Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{svc: svc, cfg: cfg, engine: engine}
	s.routes()
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	entries := s.engine.Group("/api/entries")
	entries.POST("", s.createEntry)
	entries.GET("", s.listEntries)
	entries.GET("/:id", s.getEntry)
	entries.PATCH("/:id", s.updateEntry)
	entries.DELETE("/:id", s.deleteEntry)
	entries.POST("/:id/reflect", s.reflect)
	entries.POST("/:id/reflect/stream", s.reflectStream)

	eval := s.engine.Group("/api/eval", s.requireEvalMode())
	eval.POST("", s.evaluate)
	eval.GET("/summary", s.summary)
	eval.GET("/regressions", s.regressions)
}

// requireEvalMode hides the eval routes entirely when eval mode is off.
func (s *Server) requireEvalMode() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.EvalEnabled() {
			c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "not found"})
			return
		}
		c.Next()
	}
}

// requestLogger attaches a request-scoped logger to the request context and
// logs each completed request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := clog.FromContext(c.Request.Context()).With(
			"method", c.Request.Method,
			"path", c.FullPath(),
		)
		c.Request = c.Request.WithContext(clog.WithLogger(c.Request.Context(), log))
		c.Next()
		log.With("status", c.Writer.Status()).Debug("request complete")
	}
}
