// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synthesis drives the retrieval-augmented gap analysis pipeline:
// per-chunk gap extraction grounded on retrieved reference passages, a
// cross-chunk consolidation pass, and drafting passes that turn the
// consolidated gaps into revised policy language and a phased roadmap.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/policygap/services/chunker"
	"github.com/AleutianAI/policygap/services/gap"
	"github.com/AleutianAI/policygap/services/llm"
	"github.com/AleutianAI/policygap/services/retrieval"
)

var tracer = otel.Tracer("policygap.synthesis")

// DefaultMaxConcurrency bounds parallel extraction calls. Local oracles
// degrade badly past a handful of simultaneous generations.
const DefaultMaxConcurrency = 4

// Config controls one synthesis run.
type Config struct {
	Window         int
	Overlap        int
	TopK           int
	MaxConcurrency int
	Timeout        time.Duration
	Temperature    float32
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		Window:         chunker.DefaultWindow,
		Overlap:        chunker.DefaultOverlap,
		TopK:           retrieval.DefaultTopK,
		MaxConcurrency: DefaultMaxConcurrency,
		Timeout:        llm.DefaultTimeout,
		Temperature:    llm.DefaultTemperature,
	}
}

// Result is the output of a completed synthesis run.
type Result struct {
	// Consolidated is the raw consolidated gap list from the reduce pass.
	Consolidated string
	// Gaps is the structured form of Consolidated.
	Gaps []gap.Gap
	// RevisedPolicy is the original policy text with drafted remediation
	// sections appended.
	RevisedPolicy string
	// Roadmap is the phased remediation plan, parsed into timeline buckets.
	Roadmap []TimelineBucket
}

// Orchestrator runs the four-stage pipeline. Stages are strictly
// sequential: extraction must finish for every chunk before consolidation
// starts, and each drafting pass consumes the full consolidated output.
type Orchestrator struct {
	oracle llm.Oracle
	router *retrieval.Router
	cfg    Config
}

// NewOrchestrator wires the oracle and the reference-corpus router.
func NewOrchestrator(oracle llm.Oracle, router *retrieval.Router, cfg Config) (*Orchestrator, error) {
	if oracle == nil {
		return nil, fmt.Errorf("synthesis: oracle is required")
	}
	if router == nil {
		return nil, fmt.Errorf("synthesis: retrieval router is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = chunker.DefaultWindow
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Window {
		cfg.Overlap = chunker.DefaultOverlap
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = llm.DefaultTemperature
	}
	return &Orchestrator{oracle: oracle, router: router, cfg: cfg}, nil
}

// Run executes the full pipeline for one policy document. An empty policy
// yields an empty Result, not an error. Any oracle failure aborts the run;
// no partial results are substituted.
func (o *Orchestrator) Run(ctx context.Context, policyType, policyContent string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()
	span.SetAttributes(attribute.String("synthesis.policy_type", policyType))

	chunks, err := chunker.Windows(policyContent, chunker.SourcePolicy, o.cfg.Window, o.cfg.Overlap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("synthesis.chunk_count", len(chunks)))
	if len(chunks) == 0 {
		slog.Info("Policy document is empty, nothing to synthesize", "policy_type", policyType)
		return &Result{}, nil
	}

	findings, err := o.extractAll(ctx, policyType, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	consolidated, err := o.consolidate(ctx, policyType, findings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	revised, err := o.revise(ctx, policyContent, consolidated)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	roadmap, err := o.roadmap(ctx, consolidated)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &Result{
		Consolidated:  consolidated,
		Gaps:          parseConsolidated(consolidated),
		RevisedPolicy: revised,
		Roadmap:       roadmap,
	}, nil
}

// extractAll runs the per-chunk extraction calls through a bounded worker
// pool and joins on all of them before returning. Findings are slotted by
// chunk offset, so output order mirrors chunk order regardless of
// completion order.
func (o *Orchestrator) extractAll(ctx context.Context, policyType string, chunks []chunker.Chunk) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.extractAll")
	defer span.End()
	span.SetAttributes(attribute.Int("synthesis.workers", o.cfg.MaxConcurrency))

	slog.Info("Extracting gaps per chunk", "chunks", len(chunks), "workers", o.cfg.MaxConcurrency)

	// The first failed chunk cancels the rest of the fan-out.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	findings := make([]string, len(chunks))
	errs := make([]error, len(chunks))
	sem := newSemaphore(o.cfg.MaxConcurrency)

	var wg sync.WaitGroup
	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk chunker.Chunk) {
			defer wg.Done()
			i := chunk.Offset
			if err := sem.acquire(ctx); err != nil {
				errs[i] = err
				return
			}
			defer sem.release()
			findings[i], errs[i] = o.extractChunk(ctx, policyType, chunk)
			if errs[i] != nil {
				cancel()
			}
		}(chunk)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("chunk %d extraction failed: %w", i, err)
		}
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("chunk %d extraction failed: %w", i, err)
		}
	}
	return findings, nil
}

func (o *Orchestrator) extractChunk(ctx context.Context, policyType string, chunk chunker.Chunk) (string, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.extractChunk")
	defer span.End()
	span.SetAttributes(attribute.Int("synthesis.chunk_offset", chunk.Offset))

	passages, err := o.router.Route(ctx, chunk.Text, o.cfg.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return o.generate(ctx, extractPrompt(policyType, chunk.Text, passages))
}

func (o *Orchestrator) consolidate(ctx context.Context, policyType string, findings []string) (string, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.consolidate")
	defer span.End()

	slog.Info("Consolidating findings across chunks", "chunks", len(findings))
	combined := strings.Join(findings, "\n\n")
	return o.generate(ctx, consolidatePrompt(policyType, combined))
}

func (o *Orchestrator) revise(ctx context.Context, policyContent, consolidated string) (string, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.revise")
	defer span.End()

	slog.Info("Drafting revised policy sections")
	response, err := o.generate(ctx, revisePrompt(policyContent, consolidated))
	if err != nil {
		return "", err
	}
	return policyContent + "\n\n## RECOMMENDED ADDITIONS\n\n" + response, nil
}

func (o *Orchestrator) roadmap(ctx context.Context, consolidated string) ([]TimelineBucket, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.roadmap")
	defer span.End()

	slog.Info("Drafting phased roadmap")
	response, err := o.generate(ctx, roadmapPrompt(consolidated))
	if err != nil {
		return nil, err
	}
	return parseRoadmap(response), nil
}

// generate issues one bounded oracle call.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	temp := o.cfg.Temperature
	return o.oracle.Generate(callCtx, prompt, llm.GenerationParams{Temperature: &temp})
}
