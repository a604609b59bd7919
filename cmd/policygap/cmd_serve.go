// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/policygap/services/analysis"
	"github.com/AleutianAI/policygap/services/server"
)

// runServeCommand starts the analysis HTTP API. The deterministic
// strategy is always available; the retrieval strategy is wired only
// when an oracle backend can be built, so the server still serves
// deterministic requests with no model running.
func runServeCommand(cmd *cobra.Command, args []string) error {
	shutdown, err := setupTracing()
	if err != nil {
		return err
	}
	defer shutdown()

	deterministic, err := analysis.NewDeterministic()
	if err != nil {
		return err
	}

	metrics := server.NewMetrics()

	var retrievalStrategy *analysis.Retrieval
	oracle, embedder, err := buildOracle()
	if err != nil {
		slog.Warn("Oracle unavailable, serving deterministic analysis only", "error", err)
	} else {
		instrumented := server.NewInstrumentedOracle(oracle, metrics)
		retrievalStrategy, err = buildRetrievalStrategy(cmd.Context(), instrumented, embedder)
		if err != nil {
			slog.Warn("Failed to build retrieval pipeline, serving deterministic analysis only", "error", err)
			retrievalStrategy = nil
		}
	}

	router := server.NewEngine(server.Deps{
		Deterministic: deterministic,
		Retrieval:     retrievalStrategy,
		Metrics:       metrics,
	})

	slog.Info("Starting policygap API", "port", servePort)
	return router.Run(":" + servePort)
}
