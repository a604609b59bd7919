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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/policygap/services/gap"
	"github.com/AleutianAI/policygap/services/llm"
)

// maxRevisionGaps caps how many gaps the standalone revision prompt lists.
const maxRevisionGaps = 10

// DraftRevision asks the oracle to draft remediation sections for an
// existing gap ledger, outside the full pipeline. Used when the
// deterministic strategy ran alone but an oracle is available for the
// revision step.
func DraftRevision(ctx context.Context, oracle llm.Oracle, policyContent string, gaps []gap.Gap, timeout time.Duration, temperature float32) (string, error) {
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	if temperature <= 0 {
		temperature = llm.DefaultTemperature
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := oracle.Generate(callCtx, revisePrompt(policyContent, formatGaps(gaps)), llm.GenerationParams{
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to draft revised policy: %w", err)
	}
	return policyContent + "\n\n## RECOMMENDED ADDITIONS\n\n" + response, nil
}

// formatGaps renders the highest-priority gaps as numbered prompt lines.
func formatGaps(gaps []gap.Gap) string {
	sorted := gap.SortedBySeverity(gaps)
	if len(sorted) > maxRevisionGaps {
		sorted = sorted[:maxRevisionGaps]
	}
	var b strings.Builder
	for i, g := range sorted {
		label := g.Category
		if label == "" {
			label = string(g.Strategy)
		}
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, strings.ToUpper(string(g.Severity)), label, g.Summary())
	}
	return b.String()
}
