// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the gap analysis over HTTP: one analyze endpoint,
// a health check, and Prometheus metrics.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/policygap/services/analysis"
	"github.com/AleutianAI/policygap/services/gap"
	"github.com/AleutianAI/policygap/services/llm"
	"github.com/AleutianAI/policygap/services/synthesis"
)

// Deps carries the strategies the server can run. Retrieval may be nil
// when no oracle is configured; retrieval requests then fail with 503.
type Deps struct {
	Deterministic *analysis.Deterministic
	Retrieval     *analysis.Retrieval
	Metrics       *Metrics
}

// AnalyzeRequest is the POST /analyze body.
type AnalyzeRequest struct {
	PolicyText string `json:"policy_text" binding:"required"`
	PolicyType string `json:"policy_type" binding:"required"`
	Strategy   string `json:"strategy"`
}

// AnalyzeResponse bundles the results of one analysis run.
type AnalyzeResponse struct {
	Deterministic *gap.Ledger                `json:"deterministic,omitempty"`
	Retrieval     *gap.Ledger                `json:"retrieval,omitempty"`
	Roadmap       *gap.Roadmap               `json:"roadmap,omitempty"`
	Synthesized   []synthesis.TimelineBucket `json:"synthesized_roadmap,omitempty"`
}

// NewEngine builds the gin engine with all routes registered.
func NewEngine(deps Deps) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("policygap-service"))
	SetupRoutes(router, deps)
	return router
}

// SetupRoutes registers the API routes on an existing engine.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/healthz", handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			deps.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	router.POST("/analyze", handleAnalyze(deps))
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleAnalyze(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		mode := analysis.ModeDeterministic
		if req.Strategy != "" {
			parsed, err := analysis.ParseMode(req.Strategy)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			mode = parsed
		}
		if mode != analysis.ModeDeterministic && deps.Retrieval == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "retrieval strategy is not configured: no oracle available",
			})
			return
		}

		runner, err := analysis.NewRunner(mode, deps.Deterministic, deps.Retrieval)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		doc := analysis.Document{PolicyType: req.PolicyType, Content: req.PolicyText}
		results := runner.Run(c.Request.Context(), []analysis.Document{doc})
		result := results[0]

		if result.Err != nil {
			deps.countAnalysis(mode, "error")
			status := http.StatusInternalServerError
			if llm.IsUnavailable(result.Err) || llm.IsTimeout(result.Err) {
				status = http.StatusServiceUnavailable
			}
			var fe *analysis.FileFormatError
			if errors.As(result.Err, &fe) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": result.Err.Error()})
			return
		}
		deps.countAnalysis(mode, "success")

		resp := AnalyzeResponse{
			Deterministic: result.Deterministic,
			Retrieval:     result.Retrieval,
		}
		deps.countGaps(result.Deterministic)
		deps.countGaps(result.Retrieval)

		if result.Deterministic != nil {
			roadmap := gap.BuildRoadmap(result.Deterministic.Gaps)
			resp.Roadmap = &roadmap
		}
		if result.Synthesis != nil {
			resp.Synthesized = result.Synthesis.Roadmap
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (d Deps) countAnalysis(mode analysis.Mode, status string) {
	if d.Metrics == nil {
		return
	}
	d.Metrics.AnalysesTotal.WithLabelValues(string(mode), status).Inc()
}

func (d Deps) countGaps(ledger *gap.Ledger) {
	if d.Metrics == nil || ledger == nil {
		return
	}
	for _, g := range ledger.Gaps {
		d.Metrics.GapsFoundTotal.WithLabelValues(string(g.Strategy), string(g.Severity)).Inc()
	}
}
