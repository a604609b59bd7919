// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

// PolicyGapConfig is the persisted CLI configuration. Flags override these
// values per invocation.
type PolicyGapConfig struct {
	// Oracle selects the generative backend for the retrieval strategy.
	Oracle OracleConfig `yaml:"oracle" validate:"required"`

	// Synthesis tunes the retrieval-augmented pipeline.
	Synthesis SynthesisConfig `yaml:"synthesis"`

	// Index selects the vector-index backend for retrieval.
	Index IndexConfig `yaml:"index"`

	// Output is where analysis artifacts are written.
	Output OutputConfig `yaml:"output"`

	// Logging controls structured log destinations.
	Logging LoggingConfig `yaml:"logging"`
}

type OracleConfig struct {
	// Type can be "ollama" or "openai".
	Type       string `yaml:"type" validate:"oneof=ollama openai"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Model      string `yaml:"model" validate:"required"`
	EmbedModel string `yaml:"embed_model,omitempty"`
}

type SynthesisConfig struct {
	Window         int     `yaml:"window" validate:"gt=0"`
	Overlap        int     `yaml:"overlap" validate:"gte=0,ltfield=Window"`
	TopK           int     `yaml:"top_k" validate:"gt=0"`
	MaxConcurrency int     `yaml:"max_concurrency" validate:"gt=0"`
	TimeoutSeconds int     `yaml:"timeout_seconds" validate:"gt=0"`
	Temperature    float32 `yaml:"temperature" validate:"gte=0,lte=1"`
}

type IndexConfig struct {
	// Backend can be "memory" (in-process, default) or "weaviate".
	Backend string `yaml:"backend" validate:"omitempty,oneof=memory weaviate"`
	// WeaviateURL is required when Backend is "weaviate".
	WeaviateURL string `yaml:"weaviate_url,omitempty" validate:"required_if=Backend weaviate,omitempty,url"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() PolicyGapConfig {
	return PolicyGapConfig{
		Oracle: OracleConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2:3b",
		},
		Synthesis: SynthesisConfig{
			Window:         600,
			Overlap:        100,
			TopK:           5,
			MaxConcurrency: 4,
			TimeoutSeconds: 180,
			Temperature:    0.3,
		},
		Index: IndexConfig{
			Backend: "memory",
		},
		Output: OutputConfig{
			Dir: "analysis_results",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
