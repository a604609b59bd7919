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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/policygap/services/coverage"
	"github.com/AleutianAI/policygap/services/gap"
	"github.com/AleutianAI/policygap/services/synthesis"
	"github.com/AleutianAI/policygap/services/taxonomy"
)

var tracer = otel.Tracer("policygap.analysis")

// Strategy produces a gap ledger for one policy document. Implementations
// must be safe to reuse across documents.
type Strategy interface {
	Name() gap.Strategy
	ProduceLedger(ctx context.Context, doc Document) (*gap.Ledger, error)
}

// =============================================================================
// Deterministic strategy
// =============================================================================

// Deterministic checks every relevant taxonomy requirement against the
// policy text with the keyword-coverage scorer. It needs no oracle and is
// the fallback path when one is unreachable.
type Deterministic struct {
	store  *taxonomy.Store
	scorer *coverage.Scorer
}

// NewDeterministic loads the taxonomy and severity-tier tables.
func NewDeterministic() (*Deterministic, error) {
	store, err := taxonomy.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	scorer, err := coverage.NewScorer()
	if err != nil {
		return nil, fmt.Errorf("failed to load coverage scorer: %w", err)
	}
	return &Deterministic{store: store, scorer: scorer}, nil
}

// Name implements the Strategy interface.
func (d *Deterministic) Name() gap.Strategy { return gap.StrategyDeterministic }

// ProduceLedger implements the Strategy interface. Every uncovered
// requirement of the functions relevant to the policy type becomes one gap.
func (d *Deterministic) ProduceLedger(ctx context.Context, doc Document) (*gap.Ledger, error) {
	_, span := tracer.Start(ctx, "Deterministic.ProduceLedger")
	defer span.End()
	span.SetAttributes(attribute.String("analysis.policy_type", doc.PolicyType))

	functions := d.store.ForPolicyType(doc.PolicyType)
	ledger := gap.NewLedger(doc.PolicyType, taxonomy.FunctionNames(functions))

	for _, req := range taxonomy.Requirements(functions) {
		if d.scorer.IsCovered(doc.Content, req) {
			continue
		}
		g := gap.NewGap(d.scorer.Classify(req.Text), gap.StrategyDeterministic)
		g.Function = req.Function
		g.Category = req.Category
		g.Requirement = req.Text
		g.Evidence = "Not addressed"
		g.Recommendation = "Implement controls and procedures to address: " + req.Text
		ledger.Append(g)
	}

	span.SetAttributes(attribute.Int("analysis.gap_count", len(ledger.Gaps)))
	slog.Info("Deterministic analysis complete",
		"policy_type", doc.PolicyType, "gaps", len(ledger.Gaps))
	return ledger, nil
}

// =============================================================================
// Retrieval strategy
// =============================================================================

// Retrieval runs the synthesis pipeline and extracts its consolidated gaps
// into a ledger. Stateless; one instance serves concurrent documents.
type Retrieval struct {
	orchestrator *synthesis.Orchestrator
}

// NewRetrieval wires the synthesis orchestrator.
func NewRetrieval(orchestrator *synthesis.Orchestrator) (*Retrieval, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("analysis: synthesis orchestrator is required")
	}
	return &Retrieval{orchestrator: orchestrator}, nil
}

// Name implements the Strategy interface.
func (r *Retrieval) Name() gap.Strategy { return gap.StrategyRetrieval }

// ProduceLedger implements the Strategy interface by running the full
// synthesis pipeline. Oracle failures propagate so the caller can fall back
// to the deterministic ledger.
func (r *Retrieval) ProduceLedger(ctx context.Context, doc Document) (*gap.Ledger, error) {
	ledger, _, err := r.Analyze(ctx, doc)
	return ledger, err
}

// Analyze runs the synthesis pipeline and returns both the ledger and the
// full pipeline output (revised policy, roadmap buckets) for the assembler.
// Results belong to the caller; nothing is retained on the strategy.
func (r *Retrieval) Analyze(ctx context.Context, doc Document) (*gap.Ledger, *synthesis.Result, error) {
	ctx, span := tracer.Start(ctx, "Retrieval.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("analysis.policy_type", doc.PolicyType))

	result, err := r.orchestrator.Run(ctx, doc.PolicyType, doc.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	ledger := gap.NewLedger(doc.PolicyType, nil)
	ledger.Append(result.Gaps...)

	span.SetAttributes(attribute.Int("analysis.gap_count", len(ledger.Gaps)))
	slog.Info("Retrieval-augmented analysis complete",
		"policy_type", doc.PolicyType, "gaps", len(ledger.Gaps))
	return ledger, result, nil
}
