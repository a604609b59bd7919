// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A failed artifact write must record the partial failure and return
// normally so deferred cleanup still runs; the exit code is applied in main.
func TestAnalyzeRecordsPartialFailureWithoutExiting(t *testing.T) {
	policyDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(policyDir, "risk_policy.txt"),
		[]byte("minimal policy text"), 0o644))

	// A regular file where the output directory should go makes every
	// artifact write fail.
	occupied := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(occupied, nil, 0o644))

	policyDirPath = policyDir
	outputDir = filepath.Join(occupied, "results")
	strategyName = "deterministic"
	partialFailure = false
	t.Cleanup(func() {
		policyDirPath = ""
		outputDir = ""
		strategyName = "deterministic"
		partialFailure = false
	})

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	err := runAnalyzeCommand(cmd, nil)
	assert.NoError(t, err)
	assert.True(t, partialFailure)
}
