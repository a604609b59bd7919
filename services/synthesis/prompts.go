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
	"fmt"
	"strings"
)

// revisePolicyExcerptLimit bounds how much of the original policy is quoted
// in the revision prompt so it fits small local-model context windows.
const revisePolicyExcerptLimit = 2000

func extractPrompt(policyType, chunk string, passages []string) string {
	var refs strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&refs, "REFERENCE %d:\n%s\n\n", i+1, p)
	}
	return fmt.Sprintf(`You are a cybersecurity policy expert reviewing an excerpt of an organizational %s against reference security framework material.

POLICY EXCERPT:
%s

%sTASK:
Compare the policy excerpt against the reference material and your own knowledge of security best practice. Identify controls that are missing, weak, or incomplete in the excerpt. Merge findings that describe the same underlying gap. For each finding, output one line in the form:

N. [Severity] Finding description

where Severity is exactly one of Critical, High, Medium, or Low. Output only the numbered findings, nothing else. If the excerpt has no gaps, output "No gaps identified."

FINDINGS:`, policyType, chunk, refs.String())
}

func consolidatePrompt(policyType, combined string) string {
	return fmt.Sprintf(`You are a cybersecurity policy expert. Below are gap findings from independent reviews of different excerpts of the same %s. Because excerpts overlap, the findings contain duplicates, and a control flagged as missing in one excerpt may be addressed in another.

RAW FINDINGS:
%s

TASK:
Merge duplicate and overlapping findings into a single consolidated list. Discard findings addressed elsewhere in the document. Be skeptical of Low-severity findings: keep only those that describe a genuine gap, and drop the rest. For each remaining gap, output one line in the form:

N. [Severity] Gap description | Recommendation: specific remediation guidance

where Severity is exactly one of Critical, High, Medium, or Low. Output only the numbered list, nothing else.

CONSOLIDATED GAPS:`, policyType, combined)
}

func revisePrompt(policyContent, consolidated string) string {
	excerpt := policyContent
	truncated := ""
	if len(excerpt) > revisePolicyExcerptLimit {
		excerpt = excerpt[:revisePolicyExcerptLimit]
		truncated = "... [truncated]"
	}
	return fmt.Sprintf(`You are a cybersecurity policy expert. Your task is to revise an organizational policy to address identified gaps based on the NIST Cybersecurity Framework.

ORIGINAL POLICY:
%s%s

IDENTIFIED GAPS:
%s

TASK:
Generate ONLY the missing sections that need to be added to the policy to address the critical and high-severity gaps. Format each section with:
1. Section title
2. Clear policy statements
3. Specific requirements

Focus on the top 5 most critical gaps. Be concise and specific.

REVISED POLICY SECTIONS:`, excerpt, truncated, consolidated)
}

func roadmapPrompt(consolidated string) string {
	return fmt.Sprintf(`You are a cybersecurity policy expert. Below is a consolidated list of gaps identified in an organizational policy.

IDENTIFIED GAPS:
%s

TASK:
Produce a phased remediation roadmap with exactly three timeline buckets, in this order and with these exact headings:

## 0-3 months
## 3-9 months
## 9-18 months

Under each heading, list the actions to take in that window as bullet points, most important first. Critical and High gaps belong in the earliest bucket they can realistically be closed in. Every gap must appear in exactly one bucket. Output only the three headed sections, nothing else.

ROADMAP:`, consolidated)
}
