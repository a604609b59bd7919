// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chunker splits documents into the overlapping windows used as the
// unit of retrieval and oracle prompting.
//
// WordWindows is the primary splitter: fixed-size windows of whitespace
// tokens where adjacent windows share exactly `overlap` tokens, so a finding
// near a window boundary is visible to both neighbors. SplitterFor offers
// format-aware character splitting for pre-processing large reference guides
// before windowing.
package chunker

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults used when the configuration does not override them.
const (
	DefaultWindow  = 600
	DefaultOverlap = 100
)

// ErrInvalidWindow is returned when the window/overlap pair could never
// advance through the input. It fails fast, before any oracle call.
var ErrInvalidWindow = errors.New("chunker: window must be positive and overlap must be smaller than window")

// Source tags where a chunk came from. Chunks from different sources are
// never conflated: the reference corpus feeds the index, policy chunks feed
// the queries.
type Source string

const (
	SourceReference Source = "reference"
	SourcePolicy    Source = "policy"
)

// Chunk is one window of a document. Offset is the chunk's position within
// its source document; ordering within a source is significant.
type Chunk struct {
	Source Source `json:"source"`
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// WordWindows splits text on whitespace and emits consecutive windows of
// `window` tokens. Each new window starts window-overlap tokens after the
// previous one, so adjacent chunks share exactly `overlap` tokens. The final
// window may be shorter. Empty input yields an empty slice, not an error.
func WordWindows(text string, window, overlap int) ([]string, error) {
	if window <= 0 || overlap < 0 || overlap >= window {
		return nil, ErrInvalidWindow
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}, nil
	}

	step := window - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}

// Windows is WordWindows with chunk metadata attached.
func Windows(text string, source Source, window, overlap int) ([]Chunk, error) {
	texts, err := WordWindows(text, window, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Source: source, Text: t, Offset: i}
	}
	return chunks, nil
}

// Character-splitter sizing for reference-document pre-processing.
var (
	sectionChunkSize    = 4000
	sectionChunkOverlap = sectionChunkSize / 10

	defaultSeparators = []string{"\n\n", "\n", " ", ""}

	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
)

// SplitterFor returns a character splitter tuned to the file's format.
// Markdown reference guides split along heading boundaries so windows do not
// straddle unrelated sections; everything else uses paragraph separators.
func SplitterFor(filename string) textsplitter.TextSplitter {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(sectionChunkSize),
			textsplitter.WithChunkOverlap(sectionChunkOverlap),
			textsplitter.WithSeparators(markdownSeparators),
		)
	default:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(sectionChunkSize),
			textsplitter.WithChunkOverlap(sectionChunkOverlap),
			textsplitter.WithSeparators(defaultSeparators),
		)
	}
}

// SplitReference pre-splits a reference document into format-aware sections,
// then word-windows each section. Sections shorter than one window pass
// through as single chunks.
func SplitReference(filename, content string, window, overlap int) ([]string, error) {
	sections, err := SplitterFor(filename).SplitText(content)
	if err != nil {
		return nil, err
	}

	var chunks []string
	for _, section := range sections {
		windows, err := WordWindows(section, window, overlap)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, windows...)
	}
	return chunks, nil
}
