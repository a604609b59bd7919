// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/policygap/services/llm"
)

var weaviateTracer = otel.Tracer("policygap.index.weaviate")

// ReferenceChunkClass is the Weaviate class holding embedded reference
// corpus chunks.
const ReferenceChunkClass = "ReferenceChunk"

// Weaviate is a vector-store-backed index. Chunks are stored with
// pre-computed vectors (vectorizer "none") and queried with the store's
// l2-squared distance, matching the in-memory index's metric.
type Weaviate struct {
	client *weaviate.Client
	count  int
}

// BuildWeaviate embeds the chunks and loads them into the ReferenceChunk
// class, replacing any previous corpus. Object IDs are derived from the
// chunk content so re-ingesting the same corpus is idempotent.
func BuildWeaviate(ctx context.Context, client *weaviate.Client, chunks []string, embedder llm.Embedder) (*Weaviate, error) {
	ctx, span := weaviateTracer.Start(ctx, "BuildWeaviate")
	defer span.End()
	span.SetAttributes(attribute.Int("index.chunk_count", len(chunks)))

	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	if err := ensureReferenceClass(ctx, client); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	vectors, err := embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed reference corpus: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	batcher := client.Batch().ObjectsBatcher()
	for i, chunk := range chunks {
		hash := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", i, chunk)))
		id, err := uuid.FromBytes(hash[:16])
		if err != nil {
			return nil, fmt.Errorf("failed to derive chunk ID: %w", err)
		}
		batcher = batcher.WithObjects(&models.Object{
			Class:  ReferenceChunkClass,
			ID:     strfmt.UUID(id.String()),
			Vector: vectors[i],
			Properties: map[string]interface{}{
				"content":  chunk,
				"position": i,
			},
		})
	}

	resp, err := batcher.Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to batch-insert reference chunks: %w", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil {
			return nil, fmt.Errorf("weaviate rejected chunk %s", obj.ID)
		}
	}

	slog.Info("Loaded reference corpus into Weaviate", "class", ReferenceChunkClass, "chunks", len(chunks))
	return &Weaviate{client: client, count: len(chunks)}, nil
}

// ensureReferenceClass creates the ReferenceChunk class if missing. The
// class stores externally computed vectors and uses squared Euclidean
// distance to stay interchangeable with the in-memory index.
func ensureReferenceClass(ctx context.Context, client *weaviate.Client) error {
	_, err := client.Schema().ClassGetter().WithClassName(ReferenceChunkClass).Do(ctx)
	if err == nil {
		return nil
	}

	class := &models.Class{
		Class:      ReferenceChunkClass,
		Vectorizer: "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": "l2-squared",
		},
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "position", DataType: []string{"int"}},
		},
	}
	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %s: %w", ReferenceChunkClass, err)
	}
	slog.Info("Created Weaviate class", "class", ReferenceChunkClass)
	return nil
}

// Len returns the number of chunks loaded by this build.
func (w *Weaviate) Len() int { return w.count }

// Query implements the Index interface via a nearVector GraphQL search.
func (w *Weaviate) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	ctx, span := weaviateTracer.Start(ctx, "Weaviate.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("index.k", k))

	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	resp, err := w.client.GraphQL().Get().
		WithClassName(ReferenceChunkClass).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(
			graphql.Field{Name: "position"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("weaviate nearVector query failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate nearVector query failed: %s", resp.Errors[0].Message)
	}

	data, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected Weaviate response shape")
	}
	items, ok := data[ReferenceChunkClass].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected Weaviate response shape for class %s", ReferenceChunkClass)
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		position, ok := obj["position"].(float64)
		if !ok {
			continue
		}
		var distance float32
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			if d, ok := add["distance"].(float64); ok {
				distance = float32(d)
			}
		}
		results = append(results, Result{Position: int(position), Distance: distance})
	}
	return results, nil
}
