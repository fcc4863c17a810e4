// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefetchPlanInitialWindow(t *testing.T) {
	oriented := []string{"A", "B", "C", "D", "E"}

	// Traversal at B with an untouched window: request up to the lookahead
	// bound, capped at the end of the sequence.
	batch, nextLast := prefetchPlan(oriented, "B", "B", 3, 0)
	assert.Equal(t, []string{"C", "D", "E"}, batch)
	assert.Equal(t, "E", nextLast)
}

func TestPrefetchPlanNeverRepeatsKeys(t *testing.T) {
	oriented := []string{"A", "B", "C", "D", "E", "F", "G"}

	batch, nextLast := prefetchPlan(oriented, "A", "A", 3, 0)
	assert.Equal(t, []string{"B", "C", "D"}, batch)
	assert.Equal(t, "D", nextLast)

	// The appended continuation reaches D; the window only extends past D.
	batch, nextLast = prefetchPlan(oriented, "D", nextLast, 3, 2)
	assert.Equal(t, []string{"E"}, batch)
	assert.Equal(t, "E", nextLast)
}

func TestPrefetchPlanExhaustedSequence(t *testing.T) {
	oriented := []string{"A", "B", "C"}

	batch, nextLast := prefetchPlan(oriented, "B", "C", 10, 1)
	assert.Empty(t, batch)
	assert.Equal(t, "C", nextLast)
}

func TestPrefetchPlanSatisfiedLookahead(t *testing.T) {
	oriented := []string{"A", "B", "C", "D", "E"}

	// cachedAhead consumes the whole lookahead budget: nothing to request,
	// window state unchanged.
	batch, nextLast := prefetchPlan(oriented, "A", "B", 1, 1)
	assert.Empty(t, batch)
	assert.Equal(t, "B", nextLast)
}

func TestPrefetchPlanUnknownKeys(t *testing.T) {
	oriented := []string{"A", "B", "C"}

	batch, nextLast := prefetchPlan(oriented, "X", "A", 3, 0)
	assert.Empty(t, batch)
	assert.Equal(t, "A", nextLast)

	batch, nextLast = prefetchPlan(oriented, "A", "X", 3, 0)
	assert.Empty(t, batch)
	assert.Equal(t, "X", nextLast)
}

func TestPrefetchPlanEmptySequence(t *testing.T) {
	batch, nextLast := prefetchPlan(nil, "A", "A", 3, 0)
	assert.Empty(t, batch)
	assert.Equal(t, "A", nextLast)
}

func TestOrientKeys(t *testing.T) {
	keys := []string{"A", "B", "C"}

	assert.Equal(t, []string{"A", "B", "C"}, orientKeys(keys, DirectionNext))
	assert.Equal(t, []string{"C", "B", "A"}, orientKeys(keys, DirectionPrev))
	// Original slice is untouched by reversal.
	assert.Equal(t, []string{"A", "B", "C"}, keys)
}
