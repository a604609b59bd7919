// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synthesis

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/policygap/services/gap"
)

// findingPattern matches one consolidated finding line: optional numbering
// or bullet, a severity marker in either "[Critical]" or "Critical:" form,
// then the finding text.
var findingPattern = regexp.MustCompile(`(?i)^\s*(?:\d+[.)]\s*|[-*]\s*)?(?:\[(critical|high|medium|low)\]|(critical|high|medium|low):)\s*(.+)$`)

// bucketPattern matches a roadmap timeline heading like "## 0-3 months".
var bucketPattern = regexp.MustCompile(`(?i)^#{0,3}\s*(\d+\s*[-–]\s*\d+\+?\s*months?)\s*:?\s*$`)

// parseConsolidated turns the consolidation stage's output into structured
// gap records. Model output is free text, so parsing is lenient: lines
// without a recognizable severity marker become Medium findings, and
// obvious non-finding lines (headings, "no gaps" notices) are skipped.
func parseConsolidated(consolidated string) []gap.Gap {
	var gaps []gap.Gap
	for _, line := range strings.Split(consolidated, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isNonFinding(line) {
			continue
		}

		severity := gap.SeverityMedium
		text := line
		if m := findingPattern.FindStringSubmatch(line); m != nil {
			label := m[1]
			if label == "" {
				label = m[2]
			}
			severity, _ = gap.ParseSeverity(label)
			text = strings.TrimSpace(m[3])
		} else {
			text = strings.TrimLeft(text, "-*0123456789.) ")
			text = strings.TrimSpace(text)
		}
		if text == "" {
			continue
		}

		description := text
		recommendation := ""
		if before, after, found := strings.Cut(text, "| Recommendation:"); found {
			description = strings.TrimSpace(before)
			recommendation = strings.TrimSpace(after)
		}

		g := gap.NewGap(severity, gap.StrategyRetrieval)
		g.Description = description
		g.Evidence = "Identified by retrieval-augmented analysis"
		g.Recommendation = recommendation
		if g.Recommendation == "" {
			g.Recommendation = "Implement controls and procedures to address: " + description
		}
		gaps = append(gaps, g)
	}
	return gaps
}

// isNonFinding filters heading and filler lines from model output.
func isNonFinding(line string) bool {
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "#") {
		return true
	}
	if strings.HasPrefix(lower, "consolidated gaps") || strings.HasPrefix(lower, "findings") {
		return true
	}
	return strings.Contains(lower, "no gaps identified")
}

// TimelineBucket is one phase of the synthesized roadmap: a timeline label
// and its prioritized action lines.
type TimelineBucket struct {
	Timeline string   `json:"timeline"`
	Actions  []string `json:"actions"`
}

// parseRoadmap splits the roadmap stage's output into timeline buckets.
// Lines before the first recognized heading are dropped; a response with no
// recognizable headings yields a single unlabeled bucket holding every
// non-empty line, so the model's plan is never silently lost.
func parseRoadmap(text string) []TimelineBucket {
	var buckets []TimelineBucket
	current := -1
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := bucketPattern.FindStringSubmatch(line); m != nil {
			buckets = append(buckets, TimelineBucket{Timeline: normalizeTimeline(m[1])})
			current = len(buckets) - 1
			continue
		}
		if current < 0 {
			continue
		}
		action := strings.TrimSpace(strings.TrimLeft(line, "-*0123456789.) "))
		if action != "" {
			buckets[current].Actions = append(buckets[current].Actions, action)
		}
	}

	if len(buckets) == 0 && strings.TrimSpace(text) != "" {
		fallback := TimelineBucket{Timeline: "unscheduled"}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				fallback.Actions = append(fallback.Actions, line)
			}
		}
		buckets = append(buckets, fallback)
	}
	return buckets
}

func normalizeTimeline(label string) string {
	label = strings.ToLower(label)
	label = strings.ReplaceAll(label, "–", "-")
	label = strings.Join(strings.Fields(label), " ")
	label = strings.ReplaceAll(label, " - ", "-")
	if !strings.HasSuffix(label, "s") {
		label += "s"
	}
	return label
}
