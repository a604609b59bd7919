// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/policygap/services/gap"
	"github.com/AleutianAI/policygap/services/synthesis"
)

// Mode selects which strategies a run executes.
type Mode string

const (
	ModeDeterministic Mode = "deterministic"
	ModeRetrieval     Mode = "retrieval"
	ModeBoth          Mode = "both"
)

// ParseMode validates a strategy selector string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDeterministic:
		return ModeDeterministic, nil
	case ModeRetrieval:
		return ModeRetrieval, nil
	case ModeBoth:
		return ModeBoth, nil
	}
	return "", fmt.Errorf("unknown strategy %q: use deterministic, retrieval, or both", s)
}

// DocumentResult is the outcome of analyzing one document. Either ledger
// may be nil depending on the mode and on oracle availability; Err is
// non-nil only when no ledger at all could be produced.
type DocumentResult struct {
	Document      Document
	Deterministic *gap.Ledger
	Retrieval     *gap.Ledger
	Synthesis     *synthesis.Result
	Err           error
}

// Runner executes the selected strategies over a document batch.
type Runner struct {
	mode          Mode
	deterministic *Deterministic
	retrieval     *Retrieval
}

// NewRunner builds a runner for the given mode. The retrieval strategy may
// be nil only when the mode is deterministic.
func NewRunner(mode Mode, deterministic *Deterministic, retrieval *Retrieval) (*Runner, error) {
	if deterministic == nil {
		return nil, fmt.Errorf("analysis: deterministic strategy is required")
	}
	if mode != ModeDeterministic && retrieval == nil {
		return nil, fmt.Errorf("analysis: mode %q requires the retrieval strategy", mode)
	}
	return &Runner{mode: mode, deterministic: deterministic, retrieval: retrieval}, nil
}

// Run analyzes each document in turn. Per-document failures are recorded in
// the result and never abort sibling documents. When the oracle fails
// mid-batch, documents that already have a deterministic ledger keep it.
func (r *Runner) Run(ctx context.Context, docs []Document) []DocumentResult {
	ctx, span := tracer.Start(ctx, "Runner.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("analysis.mode", string(r.mode)),
		attribute.Int("analysis.document_count", len(docs)),
	)

	results := make([]DocumentResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, r.runOne(ctx, doc))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, doc Document) DocumentResult {
	result := DocumentResult{Document: doc}
	slog.Info("Analyzing policy", "path", doc.Path, "policy_type", doc.PolicyType, "mode", string(r.mode))

	if r.mode == ModeDeterministic || r.mode == ModeBoth {
		ledger, err := r.deterministic.ProduceLedger(ctx, doc)
		if err != nil {
			slog.Error("Deterministic analysis failed", "policy_type", doc.PolicyType, "error", err)
			result.Err = err
		} else {
			result.Deterministic = ledger
		}
	}

	if r.mode == ModeRetrieval || r.mode == ModeBoth {
		ledger, synth, err := r.retrieval.Analyze(ctx, doc)
		if err != nil {
			// An oracle failure aborts only this strategy; a computed
			// deterministic ledger is still reported.
			slog.Error("Retrieval-augmented analysis failed", "policy_type", doc.PolicyType, "error", err)
			if result.Deterministic == nil {
				result.Err = err
			}
		} else {
			result.Retrieval = ledger
			result.Synthesis = synth
			result.Err = nil
		}
	}

	return result
}
