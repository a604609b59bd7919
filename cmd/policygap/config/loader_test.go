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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, Validate(&cfg))
}

func TestDefaultConfigRoundTripsYAML(t *testing.T) {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	var parsed PolicyGapConfig
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, cfg, parsed)
}

func TestValidateRejectsBadOracleType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Oracle.Type = "carrier-pigeon"
	assert.Error(t, Validate(&cfg))
}

func TestValidateRejectsOverlapNotBelowWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Synthesis.Overlap = cfg.Synthesis.Window
	assert.Error(t, Validate(&cfg))
}

func TestValidateRejectsMissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Oracle.Model = ""
	assert.Error(t, Validate(&cfg))
}

func TestValidateIndexBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.Backend = "faiss"
	assert.Error(t, Validate(&cfg))

	cfg.Index.Backend = "weaviate"
	assert.Error(t, Validate(&cfg), "weaviate backend requires a URL")

	cfg.Index.WeaviateURL = "http://localhost:8080"
	assert.NoError(t, Validate(&cfg))

	cfg.Index = IndexConfig{}
	assert.NoError(t, Validate(&cfg), "empty index section defaults to memory")
}
