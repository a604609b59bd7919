// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval routes a policy chunk to the reference-corpus passages
// most relevant to it. It is the bridge between the chunked policy document
// and the per-chunk analysis prompt.
package retrieval

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/policygap/services/index"
	"github.com/AleutianAI/policygap/services/llm"
)

var tracer = otel.Tracer("policygap.retrieval")

// DefaultTopK is the number of reference passages retrieved per policy
// chunk when the caller does not override it.
const DefaultTopK = 5

// Router resolves policy chunks against a built reference index. It holds
// the original chunk texts so index positions can be mapped back to
// passages for prompt assembly.
type Router struct {
	index    index.Index
	chunks   []string
	embedder llm.Embedder
}

// NewRouter wires an index, the corpus it was built from, and the embedder
// used for queries. The chunks slice must be the exact corpus the index was
// built over, in the same order.
func NewRouter(idx index.Index, chunks []string, embedder llm.Embedder) (*Router, error) {
	if idx == nil {
		return nil, fmt.Errorf("retrieval: index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder is required")
	}
	if idx.Len() != len(chunks) {
		return nil, fmt.Errorf("retrieval: index holds %d vectors but corpus has %d chunks", idx.Len(), len(chunks))
	}
	return &Router{index: idx, chunks: chunks, embedder: embedder}, nil
}

// Route embeds the policy chunk and returns the k most similar reference
// passages, nearest first. k <= 0 falls back to DefaultTopK.
func (r *Router) Route(ctx context.Context, policyChunk string, k int) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Router.Route")
	defer span.End()

	if k <= 0 {
		k = DefaultTopK
	}
	span.SetAttributes(attribute.Int("retrieval.k", k))

	vector, err := r.embedder.Embed(ctx, policyChunk)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed policy chunk: %w", err)
	}

	results, err := r.index.Query(ctx, vector, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query reference index: %w", err)
	}

	passages := make([]string, 0, len(results))
	for _, res := range results {
		if res.Position < 0 || res.Position >= len(r.chunks) {
			return nil, fmt.Errorf("retrieval: index returned out-of-range position %d", res.Position)
		}
		passages = append(passages, r.chunks[res.Position])
	}
	return passages, nil
}
