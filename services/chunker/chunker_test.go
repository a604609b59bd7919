// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// words builds a synthetic document of n distinct tokens.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestWordWindowsThousandWords(t *testing.T) {
	// 1000 words with window=600, overlap=100 yields exactly two chunks:
	// words[0:600] and words[500:1000].
	chunks, err := WordWindows(words(1000), 600, 100)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	assert.Len(t, first, 600)
	assert.Len(t, second, 500)
	assert.Equal(t, "w0", first[0])
	assert.Equal(t, "w599", first[599])
	assert.Equal(t, "w500", second[0])
	assert.Equal(t, "w999", second[499])
}

// TestWordWindowsOverlapInvariant checks that every adjacent pair of chunks
// shares exactly `overlap` tokens at the boundary and that the chunks cover
// the input exactly once outside the overlaps.
func TestWordWindowsOverlapInvariant(t *testing.T) {
	cases := []struct {
		n, window, overlap int
	}{
		{50, 10, 3},
		{100, 25, 24},
		{601, 600, 100},
		{1200, 600, 100},
		{7, 10, 2}, // shorter than one window
	}

	for _, tc := range cases {
		chunks, err := WordWindows(words(tc.n), tc.window, tc.overlap)
		require.NoError(t, err, "n=%d window=%d overlap=%d", tc.n, tc.window, tc.overlap)
		require.NotEmpty(t, chunks)

		step := tc.window - tc.overlap
		total := 0
		for i, c := range chunks {
			toks := strings.Fields(c)
			assert.Equal(t, fmt.Sprintf("w%d", i*step), toks[0], "chunk %d start", i)
			if i > 0 {
				prev := strings.Fields(chunks[i-1])
				if len(prev) == tc.window {
					shared := prev[len(prev)-tc.overlap:]
					assert.Equal(t, shared, toks[:tc.overlap], "chunk %d overlap", i)
				}
				total += len(toks) - tc.overlap
			} else {
				total += len(toks)
			}
		}
		assert.Equal(t, tc.n, total, "token spans must cover input exactly once outside overlaps")
	}
}

func TestWordWindowsEmptyInput(t *testing.T) {
	chunks, err := WordWindows("", 600, 100)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = WordWindows("   \n\t  ", 600, 100)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestWordWindowsInvalidArguments(t *testing.T) {
	for _, tc := range []struct{ window, overlap int }{
		{0, 0},
		{-1, 0},
		{10, 10}, // overlap == window would never advance
		{10, 11},
		{10, -1},
	} {
		_, err := WordWindows("a b c", tc.window, tc.overlap)
		assert.ErrorIs(t, err, ErrInvalidWindow, "window=%d overlap=%d", tc.window, tc.overlap)
	}
}

func TestWindowsAttachesMetadata(t *testing.T) {
	chunks, err := Windows(words(30), SourcePolicy, 10, 2)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, SourcePolicy, c.Source)
		assert.Equal(t, i, c.Offset)
		assert.NotEmpty(t, c.Text)
	}
}

func TestSplitterForSelectsMarkdown(t *testing.T) {
	// Both splitters must at minimum round-trip small inputs unchanged.
	for _, name := range []string{"guide.md", "guide.MARKDOWN", "guide.txt", "guide"} {
		out, err := SplitterFor(name).SplitText("short reference text")
		require.NoError(t, err, name)
		require.Len(t, out, 1, name)
		assert.Equal(t, "short reference text", out[0], name)
	}
}

func TestSplitReferenceShortDocument(t *testing.T) {
	chunks, err := SplitReference("guide.md", words(50), 600, 100)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Len(t, strings.Fields(chunks[0]), 50)
}
