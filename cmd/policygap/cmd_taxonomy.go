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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/policygap/services/taxonomy"
)

// runTaxonomyList prints the framework functions with their category and
// requirement counts.
func runTaxonomyList(cmd *cobra.Command, args []string) error {
	store, err := taxonomy.Load()
	if err != nil {
		return err
	}

	fmt.Printf("Framework version: %s\n\n", store.Version())
	for _, fn := range store.All() {
		requirements := 0
		for _, cat := range fn.Categories {
			requirements += len(cat.Requirements)
		}
		fmt.Printf("%-10s %d categories, %d requirements\n", fn.Name, len(fn.Categories), requirements)
		if fn.Description != "" {
			fmt.Printf("           %s\n", fn.Description)
		}
	}
	return nil
}

// runTaxonomyShow prints every requirement of a single function as JSON.
func runTaxonomyShow(cmd *cobra.Command, args []string) error {
	store, err := taxonomy.Load()
	if err != nil {
		return err
	}

	name := strings.ToUpper(args[0])
	for _, fn := range store.All() {
		if fn.Name == name {
			return outputJSON(fn)
		}
	}
	return fmt.Errorf("unknown framework function %q (expected one of %s)",
		args[0], strings.Join(taxonomy.FunctionNames(store.All()), ", "))
}
