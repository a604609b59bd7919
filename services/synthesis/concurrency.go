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

import "context"

// semaphore is a counting semaphore bounding concurrent oracle calls during
// the extraction stage. Local models fall over under unbounded fan-out.
//
// Thread Safety: Safe for concurrent use.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &semaphore{ch: make(chan struct{}, capacity)}
}

// acquire takes a slot, blocking until one is available or the context is
// cancelled.
func (s *semaphore) acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release returns a slot. Must follow a successful acquire.
func (s *semaphore) release() {
	select {
	case <-s.ch:
	default:
		panic("semaphore: release without acquire")
	}
}
