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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/policygap/cmd/policygap/config"
	"github.com/AleutianAI/policygap/services/analysis"
	"github.com/AleutianAI/policygap/services/chunker"
	"github.com/AleutianAI/policygap/services/index"
	"github.com/AleutianAI/policygap/services/llm"
	"github.com/AleutianAI/policygap/services/retrieval"
	"github.com/AleutianAI/policygap/services/synthesis"
	"github.com/AleutianAI/policygap/services/taxonomy"
)

// Exit codes: success, findings-with-failures, hard error.
const (
	exitOK      = 0
	exitPartial = 1
	exitError   = 2
)

// partialFailure marks a batch where some policies failed. main exits with
// exitPartial after the command returns, so deferred tracing shutdown and
// the PersistentPostRun logger close still run.
var partialFailure bool

// outputJSON pretty-prints a value to stdout.
func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// setupTracing installs a stdout span exporter when --trace is set. The
// returned shutdown func flushes pending spans.
func setupTracing() (func(), error) {
	if !enableTrace {
		return func() {}, nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Warn("Failed to flush trace spans", "error", err)
		}
	}, nil
}

// buildOracle constructs the configured oracle/embedder backend. The
// --model flag overrides the configured model.
func buildOracle() (llm.Oracle, llm.Embedder, error) {
	cfg := config.Global.Oracle
	model := cfg.Model
	if modelOverride != "" {
		model = modelOverride
	}

	switch cfg.Type {
	case "openai":
		client, err := llm.NewOpenAIClient(model, cfg.EmbedModel)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		client, err := llm.NewOllamaClient(cfg.BaseURL, model, cfg.EmbedModel)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
}

// buildRetrievalStrategy assembles the full retrieval pipeline: reference
// corpus, embedding index, router, and orchestrator.
//
// The default reference corpus is the framework requirement text itself;
// --reference files are chunked and added to ground the analysis in
// organization-specific material.
func buildRetrievalStrategy(ctx context.Context, oracle llm.Oracle, embedder llm.Embedder) (*analysis.Retrieval, error) {
	corpus, err := referenceCorpus()
	if err != nil {
		return nil, err
	}

	slog.Info("Building reference index",
		"backend", config.Global.Index.Backend, "chunks", len(corpus))
	idx, err := buildIndex(ctx, corpus, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to build reference index: %w", err)
	}
	router, err := retrieval.NewRouter(idx, corpus, embedder)
	if err != nil {
		return nil, err
	}

	synthCfg := config.Global.Synthesis
	orch, err := synthesis.NewOrchestrator(oracle, router, synthesis.Config{
		Window:         synthCfg.Window,
		Overlap:        synthCfg.Overlap,
		TopK:           synthCfg.TopK,
		MaxConcurrency: synthCfg.MaxConcurrency,
		Timeout:        time.Duration(synthCfg.TimeoutSeconds) * time.Second,
		Temperature:    synthCfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return analysis.NewRetrieval(orch)
}

// buildIndex constructs the configured vector-index backend over the
// reference corpus.
func buildIndex(ctx context.Context, corpus []string, embedder llm.Embedder) (index.Index, error) {
	if config.Global.Index.Backend != "weaviate" {
		return index.BuildMemory(ctx, corpus, embedder)
	}

	parsedURL, err := url.Parse(config.Global.Index.WeaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid weaviate_url %q: %w", config.Global.Index.WeaviateURL, err)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return index.BuildWeaviate(ctx, client, corpus, embedder)
}

// referenceCorpus collects the retrieval grounding passages: one passage
// per framework category plus chunks of any --reference documents.
func referenceCorpus() ([]string, error) {
	store, err := taxonomy.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}

	var corpus []string
	for _, fn := range store.All() {
		for _, cat := range fn.Categories {
			var b strings.Builder
			fmt.Fprintf(&b, "%s / %s:\n", fn.Name, cat.Name)
			for _, req := range cat.Requirements {
				fmt.Fprintf(&b, "- %s\n", req)
			}
			corpus = append(corpus, b.String())
		}
	}

	for _, path := range referenceDirs {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference document %s: %w", path, err)
		}
		chunks, err := chunker.SplitReference(path, string(content),
			config.Global.Synthesis.Window, config.Global.Synthesis.Overlap)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk reference document %s: %w", path, err)
		}
		corpus = append(corpus, chunks...)
	}
	return corpus, nil
}
