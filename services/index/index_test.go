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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder maps each text to a fixed vector for deterministic geometry.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newLineEmbedder() *stubEmbedder {
	// Four corpus points on a line; query at origin sees them in order.
	return &stubEmbedder{vectors: map[string][]float32{
		"far":     {10, 0},
		"near":    {1, 0},
		"mid":     {5, 0},
		"nearest": {0.5, 0},
	}}
}

func TestBuildMemoryEmptyCorpus(t *testing.T) {
	_, err := BuildMemory(context.Background(), nil, newLineEmbedder())
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestMemoryQueryOrdersByDistance(t *testing.T) {
	idx, err := BuildMemory(context.Background(), []string{"far", "near", "mid", "nearest"}, newLineEmbedder())
	require.NoError(t, err)
	require.Equal(t, 4, idx.Len())

	results, err := idx.Query(context.Background(), []float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// nearest (0.5) then near (1) then mid (5); far is cut off.
	assert.Equal(t, 3, results[0].Position)
	assert.Equal(t, 1, results[1].Position)
	assert.Equal(t, 2, results[2].Position)
	assert.InDelta(t, 0.25, results[0].Distance, 1e-6)
	assert.InDelta(t, 1.0, results[1].Distance, 1e-6)
	assert.InDelta(t, 25.0, results[2].Distance, 1e-6)
}

func TestMemoryQueryClampsK(t *testing.T) {
	idx, err := BuildMemory(context.Background(), []string{"near", "far"}, newLineEmbedder())
	require.NoError(t, err)

	results, err := idx.Query(context.Background(), []float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryQueryRejectsBadInput(t *testing.T) {
	idx, err := BuildMemory(context.Background(), []string{"near"}, newLineEmbedder())
	require.NoError(t, err)

	_, err = idx.Query(context.Background(), []float32{0, 0}, 0)
	assert.Error(t, err)

	_, err = idx.Query(context.Background(), []float32{0, 0, 0}, 1)
	assert.Error(t, err)
}

func TestMemoryQueryTieBreaksByPosition(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
		"c": {-1, 0},
	}}
	idx, err := BuildMemory(context.Background(), []string{"a", "b", "c"}, emb)
	require.NoError(t, err)

	// All three are equidistant from the origin.
	results, err := idx.Query(context.Background(), []float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, results[0].Position)
	assert.Equal(t, 1, results[1].Position)
	assert.Equal(t, 2, results[2].Position)
}

func TestBuildMemoryInconsistentDims(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {1, 0, 0},
	}}
	_, err := BuildMemory(context.Background(), []string{"a", "b"}, emb)
	assert.Error(t, err)
}
