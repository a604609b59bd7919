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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/policygap/services/gap"
	"github.com/AleutianAI/policygap/services/index"
	"github.com/AleutianAI/policygap/services/llm"
	"github.com/AleutianAI/policygap/services/retrieval"
	"github.com/AleutianAI/policygap/services/synthesis"
)

// =============================================================================
// Documents
// =============================================================================

func TestLoadDocumentRejectsUnsupportedFormat(t *testing.T) {
	_, err := LoadDocument("/tmp/policy.pdf", "ISMS")
	require.Error(t, err)
	assert.True(t, IsFileFormat(err))
	assert.Contains(t, err.Error(), ".pdf")
}

func TestLoadDocumentInfersPolicyType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access_control_policy.md")
	require.NoError(t, os.WriteFile(path, []byte("policy text"), 0o644))

	doc, err := LoadDocument(path, "")
	require.NoError(t, err)
	assert.Equal(t, "Access Control Policy", doc.PolicyType)
	assert.Equal(t, "policy text", doc.Content)
}

func TestLoadDocumentKeepsExplicitType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	doc, err := LoadDocument(path, "Risk Management Policy")
	require.NoError(t, err)
	assert.Equal(t, "Risk Management Policy", doc.PolicyType)
}

func TestLoadDirectorySkipsUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "isms_policy.md"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patch_policy.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("c"), 0o644))

	docs, errs := LoadDirectory(dir)
	assert.Empty(t, errs)
	require.Len(t, docs, 2)
	assert.Equal(t, "Isms Policy", docs[0].PolicyType)
	assert.Equal(t, "Patch Policy", docs[1].PolicyType)
}

// =============================================================================
// Strategies and runner
// =============================================================================

func TestDeterministicFindsGapsInThinPolicy(t *testing.T) {
	det, err := NewDeterministic()
	require.NoError(t, err)

	doc := Document{PolicyType: "Risk Management Policy", Content: "We take security seriously."}
	ledger, err := det.ProduceLedger(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"IDENTIFY", "RESPOND", "RECOVER"}, ledger.Functions)
	assert.NotEmpty(t, ledger.Gaps)
	assert.Equal(t, gap.Tally(ledger.Gaps), ledger.Summary)
	for _, g := range ledger.Gaps {
		assert.Equal(t, gap.StrategyDeterministic, g.Strategy)
		assert.Equal(t, "Not addressed", g.Evidence)
		assert.True(t, strings.HasPrefix(g.Recommendation, "Implement controls and procedures to address: "))
	}
}

type unavailableOracle struct{}

func (unavailableOracle) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return "", llm.ErrOracleUnavailable
}

type fixedOracle struct{ text string }

func (f fixedOracle) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return f.text, nil
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1}, nil }
func (unitEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func newRetrievalStrategy(t *testing.T, oracle llm.Oracle) *Retrieval {
	t.Helper()
	corpus := []string{"reference material"}
	idx, err := index.BuildMemory(context.Background(), corpus, unitEmbedder{})
	require.NoError(t, err)
	router, err := retrieval.NewRouter(idx, corpus, unitEmbedder{})
	require.NoError(t, err)
	orch, err := synthesis.NewOrchestrator(oracle, router, synthesis.DefaultConfig())
	require.NoError(t, err)
	ret, err := NewRetrieval(orch)
	require.NoError(t, err)
	return ret
}

func TestRunnerKeepsDeterministicLedgerWhenOracleFails(t *testing.T) {
	det, err := NewDeterministic()
	require.NoError(t, err)
	ret := newRetrievalStrategy(t, unavailableOracle{})

	runner, err := NewRunner(ModeBoth, det, ret)
	require.NoError(t, err)

	docs := []Document{{PolicyType: "ISMS", Content: "short policy"}}
	results := runner.Run(context.Background(), docs)
	require.Len(t, results, 1)

	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Deterministic)
	assert.Nil(t, results[0].Retrieval)
}

func TestRunnerRetrievalOnlyReportsOracleFailure(t *testing.T) {
	det, err := NewDeterministic()
	require.NoError(t, err)
	ret := newRetrievalStrategy(t, unavailableOracle{})

	runner, err := NewRunner(ModeRetrieval, det, ret)
	require.NoError(t, err)

	results := runner.Run(context.Background(), []Document{{PolicyType: "ISMS", Content: "text"}})
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.True(t, llm.IsUnavailable(results[0].Err))
}

func TestRunnerBothMergesStrategies(t *testing.T) {
	det, err := NewDeterministic()
	require.NoError(t, err)
	ret := newRetrievalStrategy(t, fixedOracle{text: "1. [High] Missing incident runbook"})

	runner, err := NewRunner(ModeBoth, det, ret)
	require.NoError(t, err)

	results := runner.Run(context.Background(), []Document{{PolicyType: "ISMS", Content: "minimal policy"}})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Retrieval)
	require.NotNil(t, results[0].Synthesis)
	assert.NotEmpty(t, results[0].Retrieval.Gaps)
	assert.Equal(t, gap.StrategyRetrieval, results[0].Retrieval.Gaps[0].Strategy)
}

// meetOracle blocks the first caller until a second arrives, forcing two
// pipeline runs to overlap in time.
type meetOracle struct {
	mu      sync.Mutex
	waiting chan struct{}
	met     bool
}

func (o *meetOracle) Generate(ctx context.Context, _ string, _ llm.GenerationParams) (string, error) {
	o.mu.Lock()
	switch {
	case o.met:
		o.mu.Unlock()
	case o.waiting == nil:
		o.waiting = make(chan struct{})
		ch := o.waiting
		o.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	default:
		o.met = true
		close(o.waiting)
		o.mu.Unlock()
	}
	return "1. [High] Missing control", nil
}

func TestSharedRetrievalServesConcurrentRuns(t *testing.T) {
	det, err := NewDeterministic()
	require.NoError(t, err)
	ret := newRetrievalStrategy(t, &meetOracle{})

	runner, err := NewRunner(ModeRetrieval, det, ret)
	require.NoError(t, err)

	docs := []Document{
		{PolicyType: "Patch Policy", Content: "patch management body alpha"},
		{PolicyType: "ISMS", Content: "information security body omega"},
	}

	results := make([]DocumentResult, len(docs))
	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc Document) {
			defer wg.Done()
			out := runner.Run(context.Background(), []Document{doc})
			results[i] = out[0]
		}(i, doc)
	}
	wg.Wait()

	// Each run keeps its own pipeline output; nothing leaks across runs.
	for i, doc := range docs {
		require.NoError(t, results[i].Err)
		require.NotNil(t, results[i].Synthesis, doc.PolicyType)
		assert.True(t, strings.HasPrefix(results[i].Synthesis.RevisedPolicy, doc.Content), doc.PolicyType)
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Mode
	}{
		{"deterministic", ModeDeterministic},
		{"Retrieval", ModeRetrieval},
		{" both ", ModeBoth},
	} {
		mode, err := ParseMode(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, mode)
	}

	_, err := ParseMode("hybrid")
	assert.Error(t, err)
}

// =============================================================================
// Assembler
// =============================================================================

func newLedgerFixture() *gap.Ledger {
	ledger := gap.NewLedger("Information Security Policy", []string{"PROTECT"})
	g1 := gap.NewGap(gap.SeverityCritical, gap.StrategyDeterministic)
	g1.Function = "PROTECT"
	g1.Category = "Data Security"
	g1.Requirement = "Data-at-rest is protected"
	g1.Recommendation = "Implement controls and procedures to address: Data-at-rest is protected"
	g2 := gap.NewGap(gap.SeverityHigh, gap.StrategyDeterministic)
	g2.Function = "PROTECT"
	g2.Category = "Awareness and Training"
	g2.Requirement = "Users are trained"
	ledger.Append(g1, g2)
	return ledger
}

func TestAssemblerWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	asm := &Assembler{OutputDir: dir}

	result := DocumentResult{
		Document:      Document{PolicyType: "Information Security Policy", Content: "original text"},
		Deterministic: newLedgerFixture(),
	}
	require.NoError(t, asm.WriteResults(result))

	for _, name := range []string{
		"information_security_policy_gap_analysis.json",
		"information_security_policy_revised_policy.md",
		"information_security_policy_improvement_roadmap.json",
		"information_security_policy_summary_report.md",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	revised, err := os.ReadFile(filepath.Join(dir, "information_security_policy_revised_policy.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(revised), "original text"))
	assert.Contains(t, string(revised), "## RECOMMENDED POLICY ADDITIONS")
	assert.Contains(t, string(revised), "#### Critical Requirements")

	report, err := os.ReadFile(filepath.Join(dir, "information_security_policy_summary_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Total Gaps Identified: **2**")
	assert.Contains(t, string(report), "### Phase 1: Critical Priority (0-3 months)")
}

func TestAssemblerPrefersSynthesizedRevision(t *testing.T) {
	dir := t.TempDir()
	asm := &Assembler{OutputDir: dir}

	result := DocumentResult{
		Document:      Document{PolicyType: "ISMS", Content: "original"},
		Deterministic: newLedgerFixture(),
		Synthesis: &synthesis.Result{
			RevisedPolicy: "original\n\n## RECOMMENDED ADDITIONS\n\ndrafted",
			Roadmap:       []synthesis.TimelineBucket{{Timeline: "0-3 months", Actions: []string{"act"}}},
		},
	}
	require.NoError(t, asm.WriteResults(result))

	revised, err := os.ReadFile(filepath.Join(dir, "isms_revised_policy.md"))
	require.NoError(t, err)
	assert.Contains(t, string(revised), "drafted")

	roadmap, err := os.ReadFile(filepath.Join(dir, "isms_improvement_roadmap.json"))
	require.NoError(t, err)
	assert.Contains(t, string(roadmap), "0-3 months")
	assert.Contains(t, string(roadmap), "buckets")
}

func TestAssemblerNoLedger(t *testing.T) {
	asm := &Assembler{OutputDir: t.TempDir()}
	err := asm.WriteResults(DocumentResult{Document: Document{Path: "x.md"}})
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "information_security_policy", Slug("Information Security Policy"))
	assert.Equal(t, "policy", Slug("  "))
	assert.Equal(t, "data_privacy_2024", Slug("Data Privacy (2024)"))
}
