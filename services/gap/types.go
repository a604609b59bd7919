// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gap defines the gap ledger data model shared by both analysis
// strategies, plus the deterministic severity/roadmap aggregator.
//
// A Gap is one control requirement judged unaddressed by a policy. A Ledger
// collects the gaps found in one analysis run together with a severity
// summary that is always recomputed from the gap list, never incrementally
// updated. Each strategy owns its own ledger; ledgers are only combined at
// final report assembly.
package gap

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Severity
// =============================================================================

// Severity classifies how urgent a gap is. Values serialize lowercase to
// match the ledger file format.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists all severities in fixed priority order, highest first.
// Roadmap phase ordering and ledger sorting both derive from this slice.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank returns the priority rank of the severity: 0 for critical through
// 3 for low. Unknown severities rank after low.
func (s Severity) Rank() int {
	for i, sev := range Severities {
		if s == sev {
			return i
		}
	}
	return len(Severities)
}

// Title returns the display form of the severity (e.g. "Critical").
func (s Severity) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ParseSeverity maps a free-form label to a Severity. Returns false when the
// label is not one of the four known levels.
func ParseSeverity(label string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(label))) {
	case SeverityCritical:
		return SeverityCritical, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityLow:
		return SeverityLow, true
	}
	return "", false
}

// =============================================================================
// Gap
// =============================================================================

// Strategy identifies which analysis strategy produced a gap.
type Strategy string

const (
	// StrategyDeterministic marks gaps from the keyword-coverage scorer.
	StrategyDeterministic Strategy = "deterministic"
	// StrategyRetrieval marks gaps from the retrieval-augmented synthesis
	// pipeline.
	StrategyRetrieval Strategy = "retrieval"
)

// Gap is one unaddressed control requirement.
//
// Deterministic gaps reference a taxonomy requirement via the Function,
// Category and Requirement fields. Retrieval gaps carry a free-text
// Description instead; their taxonomy fields are empty.
type Gap struct {
	ID             string   `json:"id"`
	Function       string   `json:"nist_function,omitempty"`
	Category       string   `json:"nist_category,omitempty"`
	Requirement    string   `json:"requirement,omitempty"`
	Description    string   `json:"description,omitempty"`
	Severity       Severity `json:"severity"`
	Evidence       string   `json:"evidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Strategy       Strategy `json:"source_strategy"`
}

// NewGap returns a Gap with a fresh ID and the given severity and strategy.
func NewGap(severity Severity, strategy Strategy) Gap {
	return Gap{
		ID:       uuid.NewString(),
		Severity: severity,
		Strategy: strategy,
	}
}

// Summary returns the requirement text for deterministic gaps and the
// description for retrieval gaps.
func (g Gap) Summary() string {
	if g.Requirement != "" {
		return g.Requirement
	}
	return g.Description
}

// =============================================================================
// Ledger
// =============================================================================

// SeveritySummary tallies gaps per severity level.
type SeveritySummary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Tally recomputes a severity summary from a gap list.
func Tally(gaps []Gap) SeveritySummary {
	var s SeveritySummary
	for _, g := range gaps {
		switch g.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		}
	}
	return s
}

// Total returns the number of gaps counted by the summary.
func (s SeveritySummary) Total() int {
	return s.Critical + s.High + s.Medium + s.Low
}

// Ledger is the ordered gap record for one analysis run of one policy.
//
// Summary always equals Tally(Gaps). Append maintains that invariant; code
// mutating Gaps directly must call Recompute afterwards.
type Ledger struct {
	PolicyType string          `json:"policy_type"`
	AnalyzedAt time.Time       `json:"analysis_date"`
	Functions  []string        `json:"nist_functions_analyzed,omitempty"`
	Gaps       []Gap           `json:"identified_gaps"`
	Summary    SeveritySummary `json:"severity_summary"`
}

// NewLedger returns an empty ledger stamped with the current time.
func NewLedger(policyType string, functions []string) *Ledger {
	return &Ledger{
		PolicyType: policyType,
		AnalyzedAt: time.Now().UTC(),
		Functions:  functions,
		Gaps:       []Gap{},
	}
}

// Append adds gaps to the ledger and recomputes the severity summary.
func (l *Ledger) Append(gaps ...Gap) {
	l.Gaps = append(l.Gaps, gaps...)
	l.Recompute()
}

// Recompute refreshes the severity summary from the current gap list.
func (l *Ledger) Recompute() {
	l.Summary = Tally(l.Gaps)
}

// SortedBySeverity returns the gaps ordered critical first. The sort is
// stable: gaps of equal severity keep their ledger order.
func SortedBySeverity(gaps []Gap) []Gap {
	out := make([]Gap, len(gaps))
	copy(out, gaps)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}
