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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/policygap/services/gap"
	"github.com/AleutianAI/policygap/services/synthesis"
)

// maxReportGaps caps the critical/high findings listed in the summary
// report.
const maxReportGaps = 10

// retrievalRoadmap is the file shape of the synthesized roadmap, kept
// separate from the deterministic roadmap's phase table.
type retrievalRoadmap struct {
	PolicyType string                     `json:"policy_type"`
	Buckets    []synthesis.TimelineBucket `json:"buckets"`
}

// Assembler writes the per-policy output artifacts. One assembler serves a
// whole batch; files land in OutputDir, prefixed with a slug of the policy
// type.
type Assembler struct {
	OutputDir string
}

// WriteResults persists all artifacts for one analyzed document: the gap
// ledger, the revised policy, the improvement roadmap, and the summary
// report. A document with no ledger at all is skipped.
func (a *Assembler) WriteResults(result DocumentResult) error {
	ledger := result.Deterministic
	if ledger == nil {
		ledger = result.Retrieval
	}
	if ledger == nil {
		return fmt.Errorf("no ledger to write for %s", result.Document.Path)
	}

	if err := os.MkdirAll(a.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	slug := Slug(result.Document.PolicyType)

	// Merge both ledgers for reporting when the run produced two.
	merged := mergeLedgers(result.Deterministic, result.Retrieval)

	if err := a.writeJSON(slug+"_gap_analysis.json", merged); err != nil {
		return err
	}

	revised := a.revisedPolicy(result, merged)
	if err := a.writeFile(slug+"_revised_policy.md", revised); err != nil {
		return err
	}

	roadmap := gap.BuildRoadmap(merged.Gaps)
	if result.Synthesis != nil && len(result.Synthesis.Roadmap) > 0 {
		if err := a.writeJSON(slug+"_improvement_roadmap.json", retrievalRoadmap{
			PolicyType: merged.PolicyType,
			Buckets:    result.Synthesis.Roadmap,
		}); err != nil {
			return err
		}
	} else {
		if err := a.writeJSON(slug+"_improvement_roadmap.json", roadmap); err != nil {
			return err
		}
	}

	report := summaryReport(merged, roadmap)
	if err := a.writeFile(slug+"_summary_report.md", report); err != nil {
		return err
	}

	slog.Info("Analysis artifacts written", "policy_type", merged.PolicyType, "output_dir", a.OutputDir)
	return nil
}

// revisedPolicy prefers the oracle-drafted revision and falls back to the
// template-based one when the pipeline did not run.
func (a *Assembler) revisedPolicy(result DocumentResult, merged *gap.Ledger) string {
	if result.Synthesis != nil && result.Synthesis.RevisedPolicy != "" {
		return result.Synthesis.RevisedPolicy
	}
	return TemplateRevision(result.Document.Content, merged)
}

func (a *Assembler) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return a.writeFile(name, string(data))
}

func (a *Assembler) writeFile(name, content string) error {
	path := filepath.Join(a.OutputDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Slug converts a policy type label into a file-name prefix:
// "Information Security Policy" becomes "information_security_policy".
func Slug(policyType string) string {
	fields := strings.FieldsFunc(strings.ToLower(policyType), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	if len(fields) == 0 {
		return "policy"
	}
	return strings.Join(fields, "_")
}

// mergeLedgers combines the two strategies' ledgers into one record for
// reporting. With a single input ledger the input is returned as is.
func mergeLedgers(det, ret *gap.Ledger) *gap.Ledger {
	if det == nil {
		return ret
	}
	if ret == nil {
		return det
	}
	merged := gap.NewLedger(det.PolicyType, det.Functions)
	merged.AnalyzedAt = det.AnalyzedAt
	merged.Append(det.Gaps...)
	merged.Append(ret.Gaps...)
	return merged
}

// TemplateRevision appends template-generated remediation sections to the
// policy: gaps grouped by taxonomy function, the top five critical and top
// five high requirements per function. Used when no oracle is available.
func TemplateRevision(policyContent string, ledger *gap.Ledger) string {
	var b strings.Builder
	b.WriteString(policyContent)
	b.WriteString("\n\n## RECOMMENDED POLICY ADDITIONS\n\n")
	b.WriteString("*Generated based on NIST Cybersecurity Framework gap analysis*\n")

	var functions []string
	byFunction := make(map[string][]gap.Gap)
	for _, g := range ledger.Gaps {
		fn := g.Function
		if fn == "" {
			fn = "GENERAL"
		}
		if _, seen := byFunction[fn]; !seen {
			functions = append(functions, fn)
		}
		byFunction[fn] = append(byFunction[fn], g)
	}

	for _, fn := range functions {
		fmt.Fprintf(&b, "\n### %s\n", fn)

		var critical, high []gap.Gap
		for _, g := range byFunction[fn] {
			switch g.Severity {
			case gap.SeverityCritical:
				critical = append(critical, g)
			case gap.SeverityHigh:
				high = append(high, g)
			}
		}

		if len(critical) > 0 {
			b.WriteString("\n#### Critical Requirements\n")
			for _, g := range capGaps(critical, 5) {
				fmt.Fprintf(&b, "- %s\n", g.Summary())
				fmt.Fprintf(&b, "  *Recommendation: %s*\n", g.Recommendation)
			}
		}
		if len(high) > 0 {
			b.WriteString("\n#### High Priority Requirements\n")
			for _, g := range capGaps(high, 5) {
				fmt.Fprintf(&b, "- %s\n", g.Summary())
			}
		}
	}
	return b.String()
}

func capGaps(gaps []gap.Gap, n int) []gap.Gap {
	if len(gaps) > n {
		return gaps[:n]
	}
	return gaps
}

// summaryReport renders the human-readable report: executive summary,
// functions analyzed, top critical/high gaps, and the roadmap phase
// overview.
func summaryReport(ledger *gap.Ledger, roadmap gap.Roadmap) string {
	var b strings.Builder
	b.WriteString("# Policy Gap Analysis Report\n")
	fmt.Fprintf(&b, "\n**Policy Type:** %s\n", ledger.PolicyType)
	fmt.Fprintf(&b, "\n**Analysis Date:** %s\n", ledger.AnalyzedAt.Format("2006-01-02T15:04:05Z07:00"))
	b.WriteString("\n**Analysis Framework:** NIST Cybersecurity Framework (CIS MS-ISAC 2024)\n")

	b.WriteString("\n\n## Executive Summary\n\n")
	fmt.Fprintf(&b, "Total Gaps Identified: **%d**\n\n", len(ledger.Gaps))
	fmt.Fprintf(&b, "- Critical: %d\n", ledger.Summary.Critical)
	fmt.Fprintf(&b, "- High: %d\n", ledger.Summary.High)
	fmt.Fprintf(&b, "- Medium: %d\n", ledger.Summary.Medium)
	fmt.Fprintf(&b, "- Low: %d\n", ledger.Summary.Low)

	if len(ledger.Functions) > 0 {
		b.WriteString("\n## NIST Functions Analyzed\n\n")
		for _, fn := range ledger.Functions {
			fmt.Fprintf(&b, "- %s\n", fn)
		}
	}

	b.WriteString("\n## Top 10 Critical Gaps\n")
	i := 0
	for _, g := range gap.SortedBySeverity(ledger.Gaps) {
		if g.Severity != gap.SeverityCritical && g.Severity != gap.SeverityHigh {
			break
		}
		i++
		if i > maxReportGaps {
			break
		}
		fmt.Fprintf(&b, "\n### %d. [%s] %s\n", i, strings.ToUpper(string(g.Severity)), g.Category)
		fmt.Fprintf(&b, "**Requirement:** %s\n", g.Summary())
		fmt.Fprintf(&b, "**Recommendation:** %s\n", g.Recommendation)
	}

	b.WriteString("\n## Improvement Roadmap\n")
	for _, phase := range roadmap.Phases {
		fmt.Fprintf(&b, "\n### Phase %d: %s Priority (%s)\n", phase.Number, phase.Priority.Title(), phase.Timeline)
		fmt.Fprintf(&b, "**Focus:** %s\n", phase.Focus)
		fmt.Fprintf(&b, "**Key Actions:** %d items\n", len(phase.Actions))
	}

	return b.String()
}
