// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the external collaborator interfaces of the analyzer:
// the generative text oracle and the embedding model. Both are black boxes
// to the rest of the system; Ollama and OpenAI backends are provided.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults matching the analyzer's oracle usage: single-shot prompts with
// conservative sampling and a bounded wait per call.
const (
	DefaultTimeout     = 180 * time.Second
	DefaultTemperature = float32(0.3)
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Oracle is the generative text collaborator. Calls are blocking and
// single-shot: no conversational state is carried between prompts, so every
// prompt must embed all needed context.
type Oracle interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Embedder is the embedding-model collaborator. Vectors have fixed
// dimensionality per model instance.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrOracleUnavailable is returned when the oracle endpoint cannot be
// reached at all. The deterministic strategy requires no oracle and remains
// usable when this error occurs.
var ErrOracleUnavailable = errors.New("llm: oracle is not reachable")

// TimeoutError is returned when a single oracle or embedding call exceeds
// its bounded wait. The synthesis run aborts rather than substituting
// partial results.
type TimeoutError struct {
	Op   string
	Wait time.Duration
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llm: %s timed out after %s", e.Op, e.Wait)
}

// IsTimeout checks if an error is a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsUnavailable checks if an error wraps ErrOracleUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrOracleUnavailable)
}

// classifyTransportError maps a failed HTTP round trip to the package error
// taxonomy: a deadline hit becomes TimeoutError, anything else (connection
// refused, DNS failure) means the collaborator is unavailable.
func classifyTransportError(ctx context.Context, op string, wait time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Wait: wait}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
}
