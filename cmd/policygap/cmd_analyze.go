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
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/policygap/cmd/policygap/config"
	"github.com/AleutianAI/policygap/services/analysis"
	"github.com/AleutianAI/policygap/services/llm"
	"github.com/AleutianAI/policygap/services/synthesis"
)

func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	shutdown, err := setupTracing()
	if err != nil {
		return err
	}
	defer shutdown()

	mode, err := analysis.ParseMode(strategyName)
	if err != nil {
		return err
	}

	docs, loadErrs := loadPolicies()
	for _, loadErr := range loadErrs {
		slog.Error("Failed to load policy", "error", loadErr)
	}
	if len(docs) == 0 {
		if len(loadErrs) > 0 {
			return fmt.Errorf("no policies could be loaded")
		}
		return fmt.Errorf("no .txt or .md policies found")
	}

	runner, err := buildRunner(cmd.Context(), mode)
	if err != nil {
		return err
	}

	dir := outputDir
	if dir == "" {
		dir = config.Global.Output.Dir
	}
	assembler := &analysis.Assembler{OutputDir: dir}

	var reviser llm.Oracle
	if useLLM {
		reviser, _, err = buildOracle()
		if err != nil {
			return err
		}
	}

	results := runner.Run(cmd.Context(), docs)
	failures := len(loadErrs)
	for _, result := range results {
		if result.Err != nil {
			slog.Error("Analysis failed", "path", result.Document.Path, "error", result.Err)
			failures++
			continue
		}
		if reviser != nil && result.Synthesis == nil {
			draftRevision(cmd.Context(), reviser, &result)
		}
		if err := assembler.WriteResults(result); err != nil {
			slog.Error("Failed to write analysis artifacts", "path", result.Document.Path, "error", err)
			failures++
			continue
		}
		printSummary(result)
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d policies failed\n", failures, len(docs)+len(loadErrs))
		partialFailure = true
	}
	return nil
}

// loadPolicies resolves the --policy / --policy-dir flags into documents.
func loadPolicies() ([]analysis.Document, []error) {
	if policyDirPath != "" {
		return analysis.LoadDirectory(policyDirPath)
	}
	doc, err := analysis.LoadDocument(policyPath, policyType)
	if err != nil {
		return nil, []error{err}
	}
	return []analysis.Document{doc}, nil
}

// buildRunner assembles the strategies the selected mode needs. The oracle
// is only contacted when the retrieval strategy or --use-llm requires it.
func buildRunner(ctx context.Context, mode analysis.Mode) (*analysis.Runner, error) {
	deterministic, err := analysis.NewDeterministic()
	if err != nil {
		return nil, err
	}

	var retrievalStrategy *analysis.Retrieval
	if mode != analysis.ModeDeterministic {
		oracle, embedder, err := buildOracle()
		if err != nil {
			return nil, err
		}
		retrievalStrategy, err = buildRetrievalStrategy(ctx, oracle, embedder)
		if err != nil {
			return nil, err
		}
	}
	return analysis.NewRunner(mode, deterministic, retrievalStrategy)
}

// draftRevision asks the oracle to draft the revised policy for a result
// that has no synthesized one. Failures fall back to the template revision
// the assembler writes anyway, so they only warn.
func draftRevision(ctx context.Context, oracle llm.Oracle, result *analysis.DocumentResult) {
	if result.Deterministic == nil {
		return
	}
	synthCfg := config.Global.Synthesis
	revised, err := synthesis.DraftRevision(ctx, oracle, result.Document.Content,
		result.Deterministic.Gaps,
		time.Duration(synthCfg.TimeoutSeconds)*time.Second, synthCfg.Temperature)
	if err != nil {
		slog.Warn("Failed to draft revised policy, using template",
			"path", result.Document.Path, "error", err)
		return
	}
	result.Synthesis = &synthesis.Result{RevisedPolicy: revised}
}

func printSummary(result analysis.DocumentResult) {
	ledgers := 0
	gaps := 0
	if result.Deterministic != nil {
		ledgers++
		gaps += len(result.Deterministic.Gaps)
	}
	if result.Retrieval != nil {
		ledgers++
		gaps += len(result.Retrieval.Gaps)
	}
	fmt.Printf("Analyzed %q: %d gaps (%d strategies)\n", result.Document.PolicyType, gaps, ledgers)
}
