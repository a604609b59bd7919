// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis runs the gap analysis strategies over policy documents
// and assembles the per-policy output artifacts: the gap ledger, the
// revised policy, the improvement roadmap, and the summary report.
package analysis

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one policy document loaded for analysis.
type Document struct {
	Path       string
	PolicyType string
	Content    string
}

// FileFormatError reports an input file with an unsupported extension. It
// aborts only the offending document's analysis, never a batch.
type FileFormatError struct {
	Path string
	Ext  string
}

// Error implements the error interface for FileFormatError.
func (e *FileFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q for %s: use .txt or .md", e.Ext, e.Path)
}

// IsFileFormat checks if an error is a *FileFormatError.
func IsFileFormat(err error) bool {
	var fe *FileFormatError
	return errors.As(err, &fe)
}

// LoadDocument reads a .txt or .md policy file. An empty policyType is
// inferred from the file stem ("access_control_policy" becomes
// "Access Control Policy").
func LoadDocument(path, policyType string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" && ext != ".md" {
		return Document{}, &FileFormatError{Path: path, Ext: ext}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	if policyType == "" {
		policyType = policyTypeFromStem(path)
	}
	return Document{Path: path, PolicyType: policyType, Content: string(content)}, nil
}

// LoadDirectory loads every .txt and .md file in dir, inferring each policy
// type from its file name. Unsupported files are skipped silently; loading
// errors are returned per file alongside the successfully loaded documents.
func LoadDirectory(dir string) ([]Document, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read policy directory: %w", err)}
	}

	var docs []Document
	var errs []error
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		doc, err := LoadDocument(filepath.Join(dir, name), "")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

// policyTypeFromStem turns "access_control_policy.md" into
// "Access Control Policy".
func policyTypeFromStem(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	words := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
