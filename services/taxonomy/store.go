// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package taxonomy holds the hierarchical control taxonomy the analyzer
// scores policies against: Function -> Category -> Requirement, sourced from
// the CIS MS-ISAC NIST CSF Policy Template Guide (2024).
//
// The data ships embedded as YAML so it can be versioned and updated
// independently of the matching code. The store is read-only after Load and
// safe for concurrent use.
package taxonomy

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed nist_csf.yaml
var frameworkYAML []byte

// Requirement is one control statement, identified by its (Function,
// Category, Text) triple. Values are immutable.
type Requirement struct {
	Function string `json:"nist_function"`
	Category string `json:"nist_category"`
	Text     string `json:"requirement"`
}

// Category is a named group of requirements within a function.
type Category struct {
	Name         string   `yaml:"name" json:"name"`
	Requirements []string `yaml:"requirements" json:"requirements"`
}

// Function is a top-level taxonomy entry (IDENTIFY, PROTECT, ...).
type Function struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Categories  []Category `yaml:"categories" json:"categories"`
}

// Store provides lookup over the loaded taxonomy.
type Store struct {
	version   string
	functions []Function
	byName    map[string]Function
}

var (
	loadOnce  sync.Once
	loadedErr error
	loaded    *Store
)

// Load parses the embedded framework data. The result is cached; repeated
// calls return the same store.
func Load() (*Store, error) {
	loadOnce.Do(func() {
		var doc struct {
			Version   string     `yaml:"version"`
			Functions []Function `yaml:"functions"`
		}
		if err := yaml.Unmarshal(frameworkYAML, &doc); err != nil {
			loadedErr = fmt.Errorf("failed to parse embedded taxonomy: %w", err)
			return
		}
		if len(doc.Functions) == 0 {
			loadedErr = fmt.Errorf("embedded taxonomy contains no functions")
			return
		}
		s := &Store{
			version:   doc.Version,
			functions: doc.Functions,
			byName:    make(map[string]Function, len(doc.Functions)),
		}
		for _, fn := range doc.Functions {
			s.byName[fn.Name] = fn
		}
		loaded = s
	})
	return loaded, loadedErr
}

// Version returns the taxonomy data version string.
func (s *Store) Version() string { return s.version }

// All returns every function in taxonomy order.
func (s *Store) All() []Function {
	out := make([]Function, len(s.functions))
	copy(out, s.functions)
	return out
}

// policyTypeRoute maps a policy-type substring to the functions relevant for
// that policy type. Routes are evaluated in order; the first match wins.
var policyTypeRoutes = []struct {
	substrings []string
	functions  []string
}{
	{[]string{"isms", "information security"}, nil}, // nil means all functions
	{[]string{"data privacy", "data security"}, []string{"IDENTIFY", "PROTECT", "DETECT"}},
	{[]string{"patch"}, []string{"IDENTIFY", "PROTECT", "DETECT"}},
	{[]string{"risk"}, []string{"IDENTIFY", "RESPOND", "RECOVER"}},
}

// ForPolicyType selects the functions relevant to a policy type by
// case-insensitive substring matching. Unmatched types get the full
// taxonomy, so the result is never empty.
func (s *Store) ForPolicyType(policyType string) []Function {
	lower := strings.ToLower(policyType)
	for _, route := range policyTypeRoutes {
		for _, sub := range route.substrings {
			if !strings.Contains(lower, sub) {
				continue
			}
			if route.functions == nil {
				return s.All()
			}
			out := make([]Function, 0, len(route.functions))
			for _, name := range route.functions {
				if fn, ok := s.byName[name]; ok {
					out = append(out, fn)
				}
			}
			return out
		}
	}
	return s.All()
}

// Requirements flattens the given functions into individual requirements,
// preserving taxonomy order.
func Requirements(functions []Function) []Requirement {
	var out []Requirement
	for _, fn := range functions {
		for _, cat := range fn.Categories {
			for _, text := range cat.Requirements {
				out = append(out, Requirement{
					Function: fn.Name,
					Category: cat.Name,
					Text:     text,
				})
			}
		}
	}
	return out
}

// FunctionNames returns the names of the given functions in order.
func FunctionNames(functions []Function) []string {
	names := make([]string, len(functions))
	for i, fn := range functions {
		names[i] = fn.Name
	}
	return names
}
