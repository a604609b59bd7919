// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides nearest-neighbor search over embedded reference
// chunks. An index is built once per reference corpus (single writer) and
// queried once per policy chunk; implementations must support concurrent
// read-only queries.
//
// Two backends exist: an in-process exact index for the default offline
// path, and a Weaviate-backed index for corpora that outgrow memory or are
// shared between runs.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/policygap/services/llm"
)

var memoryTracer = otel.Tracer("policygap.index.memory")

// ErrEmptyCorpus is returned when an index is built over zero chunks.
// Callers treat it as "nothing to analyze" and report an empty ledger
// rather than failing the run.
var ErrEmptyCorpus = errors.New("index: no chunks to index")

// Result is one nearest-neighbor match: the position of a reference chunk
// in the corpus the index was built from, and its squared Euclidean
// distance to the query vector.
type Result struct {
	Position int
	Distance float32
}

// Index answers top-k nearest-neighbor queries over a fixed corpus.
// Results are ordered ascending by distance. If k exceeds the corpus size
// the full corpus is returned.
type Index interface {
	Query(ctx context.Context, vector []float32, k int) ([]Result, error)
	Len() int
}

// =============================================================================
// In-memory exact index
// =============================================================================

// Memory is a brute-force exact nearest-neighbor index. Vectors are fixed
// after build, so queries need no locking.
type Memory struct {
	vectors [][]float32
	dims    int
}

// BuildMemory embeds every chunk and stores the vectors. Single-writer:
// must complete before any query.
func BuildMemory(ctx context.Context, chunks []string, embedder llm.Embedder) (*Memory, error) {
	ctx, span := memoryTracer.Start(ctx, "BuildMemory")
	defer span.End()
	span.SetAttributes(attribute.Int("index.chunk_count", len(chunks)))

	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	vectors, err := embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed reference corpus: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dims)
		}
	}

	return &Memory{vectors: vectors, dims: dims}, nil
}

// Len returns the corpus size.
func (m *Memory) Len() int { return len(m.vectors) }

// Query scans the full corpus and returns the k closest entries by squared
// Euclidean distance, ascending. Ties break by corpus position for
// reproducible output.
func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	_, span := memoryTracer.Start(ctx, "Memory.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("index.k", k))

	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}
	if len(vector) != m.dims {
		return nil, fmt.Errorf("index: query vector has %d dimensions, corpus has %d", len(vector), m.dims)
	}

	results := make([]Result, len(m.vectors))
	for i, v := range m.vectors {
		var dist float32
		for j := range v {
			d := v[j] - vector[j]
			dist += d * d
		}
		results[i] = Result{Position: i, Distance: dist}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Position < results[j].Position
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}
