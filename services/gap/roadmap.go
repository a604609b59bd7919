// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gap

// maxActionsPerPhase caps how many gap-derived actions one roadmap phase
// carries. Input order is preserved; there is no re-ranking inside a bucket.
const maxActionsPerPhase = 10

// Action is one roadmap entry derived from a gap.
type Action struct {
	Gap      string `json:"gap"`
	Category string `json:"nist_category,omitempty"`
}

// Phase groups actions of one severity into a remediation timeline bucket.
// Phase numbers are fixed per severity (critical is always phase 1) so that
// reports stay comparable across runs even when a bucket is empty.
type Phase struct {
	Number   int      `json:"phase"`
	Timeline string   `json:"timeline"`
	Priority Severity `json:"priority"`
	Focus    string   `json:"focus"`
	Actions  []Action `json:"actions"`
}

// Overview summarizes the gap population the roadmap was built from.
type Overview struct {
	TotalGaps int `json:"total_gaps"`
	Critical  int `json:"critical"`
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Low       int `json:"low"`
}

// Roadmap is the phased remediation plan produced by the deterministic
// aggregator. Phases appear in fixed priority order critical through low;
// a severity bucket with zero gaps produces no phase, so a roadmap holds
// between zero and four phases.
type Roadmap struct {
	Overview Overview `json:"overview"`
	Phases   []Phase  `json:"phases"`
}

// phaseSpec fixes the number, timeline and focus text for each severity
// bucket. The table is ordered; BuildRoadmap walks it top to bottom.
var phaseSpecs = []struct {
	severity Severity
	number   int
	timeline string
	focus    string
}{
	{SeverityCritical, 1, "0-3 months", "Address critical security gaps"},
	{SeverityHigh, 2, "3-6 months", "Strengthen security controls"},
	{SeverityMedium, 3, "6-12 months", "Enhance organizational maturity"},
	{SeverityLow, 4, "12+ months", "Achieve comprehensive coverage"},
}

// BuildRoadmap partitions gaps by severity and emits one phase per non-empty
// bucket, capped at the first ten gaps of each bucket in stable input order.
func BuildRoadmap(gaps []Gap) Roadmap {
	summary := Tally(gaps)
	roadmap := Roadmap{
		Overview: Overview{
			TotalGaps: len(gaps),
			Critical:  summary.Critical,
			High:      summary.High,
			Medium:    summary.Medium,
			Low:       summary.Low,
		},
	}

	for _, spec := range phaseSpecs {
		var actions []Action
		for _, g := range gaps {
			if g.Severity != spec.severity {
				continue
			}
			actions = append(actions, Action{Gap: g.Summary(), Category: g.Category})
			if len(actions) == maxActionsPerPhase {
				break
			}
		}
		if len(actions) == 0 {
			continue
		}
		roadmap.Phases = append(roadmap.Phases, Phase{
			Number:   spec.number,
			Timeline: spec.timeline,
			Priority: spec.severity,
			Focus:    spec.focus,
			Actions:  actions,
		})
	}

	return roadmap
}
