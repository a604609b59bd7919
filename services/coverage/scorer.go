// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coverage implements the deterministic keyword-coverage scorer.
//
// A requirement counts as covered when at least 60% of its extracted
// keywords appear as substrings of the lowercased policy text. The heuristic
// is recall-oriented on purpose: false negatives surface as gaps (the safe
// direction), while the 0.6 threshold guards against false positives.
//
// Severity for uncovered requirements comes from ordered keyword tiers.
// Tier matching is literal substring search, so requirement wordings that
// paraphrase a tier keyword ("Data-at-rest protected" vs "data protection")
// fall through to low. That blind spot matches the shipped tier tables and
// is pinned by tests; fixing it is a data change in tiers.yaml, not a code
// change here.
package coverage

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/policygap/services/gap"
	"github.com/AleutianAI/policygap/services/taxonomy"
)

//go:embed tiers.yaml
var tiersYAML []byte

var wordPattern = regexp.MustCompile(`\w+`)

type tier struct {
	Severity gap.Severity `yaml:"severity"`
	Keywords []string     `yaml:"keywords"`
}

type scoringConfig struct {
	Threshold        float64  `yaml:"threshold"`
	MinKeywordLength int      `yaml:"min_keyword_length"`
	StopWords        []string `yaml:"stop_words"`
	Tiers            []tier   `yaml:"tiers"`
}

// Scorer checks requirement coverage against policy text. Read-only after
// construction; safe for concurrent use.
type Scorer struct {
	cfg       scoringConfig
	stopWords map[string]struct{}
}

var (
	loadOnce  sync.Once
	loadedErr error
	loaded    *Scorer
)

// NewScorer loads the embedded scoring configuration. The result is cached;
// repeated calls return the same scorer.
func NewScorer() (*Scorer, error) {
	loadOnce.Do(func() {
		var cfg scoringConfig
		if err := yaml.Unmarshal(tiersYAML, &cfg); err != nil {
			loadedErr = fmt.Errorf("failed to parse scoring config: %w", err)
			return
		}
		if cfg.Threshold <= 0 || cfg.Threshold > 1 {
			loadedErr = fmt.Errorf("scoring threshold %v out of range (0,1]", cfg.Threshold)
			return
		}
		s := &Scorer{
			cfg:       cfg,
			stopWords: make(map[string]struct{}, len(cfg.StopWords)),
		}
		for _, w := range cfg.StopWords {
			s.stopWords[w] = struct{}{}
		}
		loaded = s
	})
	return loaded, loadedErr
}

// Keywords extracts the meaningful terms of a requirement: word tokens,
// lowercased, with stop words and short tokens dropped. Duplicate tokens are
// kept so repeated terms weigh into the ratio the same way each occurrence
// would need to be addressed.
func (s *Scorer) Keywords(text string) []string {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) < s.cfg.MinKeywordLength {
			continue
		}
		if _, stop := s.stopWords[tok]; stop {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}

// Ratio computes the fraction of requirement keywords present as substrings
// of the lowercased policy text. An empty keyword set scores 0.
func (s *Scorer) Ratio(policyText, requirementText string) float64 {
	keywords := s.Keywords(requirementText)
	if len(keywords) == 0 {
		return 0
	}
	policyLower := strings.ToLower(policyText)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(policyLower, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// IsCovered reports whether the policy addresses the requirement per the
// configured threshold. Deterministic for identical inputs.
func (s *Scorer) IsCovered(policyText string, req taxonomy.Requirement) bool {
	return s.Ratio(policyText, req.Text) >= s.cfg.Threshold
}

// Classify assigns a severity to an uncovered requirement by testing its
// lowercased text against the ordered keyword tiers. The first tier with any
// substring match wins; no match means low. The fixed order is a deliberate
// tie-break: a requirement mentioning both "risk" and "training" classifies
// high because tiers short-circuit critical -> high -> medium.
func (s *Scorer) Classify(requirementText string) gap.Severity {
	lower := strings.ToLower(requirementText)
	for _, t := range s.cfg.Tiers {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, kw) {
				return t.Severity
			}
		}
	}
	return gap.SeverityLow
}
