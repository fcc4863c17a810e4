// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/panowalk/services/playback"
)

func newTestGraph(t *testing.T) *MemoryGraph {
	t.Helper()
	g := NewMemoryGraph()
	g.AddSequence("seq",
		playback.Node{Key: "a"},
		playback.Node{Key: "b"},
		playback.Node{Key: "c"},
	)
	return g
}

func TestAddSequenceWiresEdges(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	status, err := g.ResolveEdges(ctx, "b", playback.EdgeKindSequence)
	require.NoError(t, err)
	require.True(t, status.Resolved)

	next, ok := status.MatchingEdge(playback.DirectionNext)
	require.True(t, ok)
	assert.Equal(t, "c", next.ToKey)

	prev, ok := status.MatchingEdge(playback.DirectionPrev)
	require.True(t, ok)
	assert.Equal(t, "a", prev.ToKey)
}

func TestSequenceEndpointsHaveOneEdge(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	status, err := g.ResolveEdges(ctx, "c", playback.EdgeKindSequence)
	require.NoError(t, err)
	_, ok := status.MatchingEdge(playback.DirectionNext)
	assert.False(t, ok, "last node must have no next edge")
	_, ok = status.MatchingEdge(playback.DirectionPrev)
	assert.True(t, ok)
}

func TestResolveNode(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	node, err := g.ResolveNode(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", node.Key)
	assert.Equal(t, "seq", node.SequenceKey)

	_, err = g.ResolveNode(ctx, "zz")
	assert.ErrorIs(t, err, playback.ErrNodeNotFound)
}

func TestResolveSequenceUnknown(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.ResolveSequence(context.Background(), "nope", "")
	assert.ErrorIs(t, err, playback.ErrSequenceNotFound)
}

func TestResolveSequenceScoped(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	// A member scope reaches the full chain.
	seq, err := g.ResolveSequence(ctx, "seq", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seq.NodeKeys)

	// A scope outside the sequence reaches none of it.
	_, err = g.ResolveSequence(ctx, "seq", "zz")
	assert.ErrorIs(t, err, playback.ErrSequenceNotFound)
}

func TestInjectedFailuresAreConsumed(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	g.FailNode("a", 2)
	_, err := g.ResolveNode(ctx, "a")
	require.Error(t, err)
	_, err = g.ResolveNode(ctx, "a")
	require.Error(t, err)

	node, err := g.ResolveNode(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", node.Key)
}

func TestBlockedEdgesHonorContext(t *testing.T) {
	g := newTestGraph(t)
	g.BlockEdges("a", true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.ResolveEdges(ctx, "a", playback.EdgeKindSequence)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSequenceOnlyModeHidesSpatialEdges(t *testing.T) {
	g := newTestGraph(t)
	g.AddSpatialEdge("a", "b", playback.DirectionForward)
	ctx := context.Background()

	status, err := g.ResolveEdges(ctx, "a", playback.EdgeKindSpatial)
	require.NoError(t, err)
	_, ok := status.MatchingEdge(playback.DirectionForward)
	require.True(t, ok)

	g.SetGraphMode(playback.ModeSequenceOnly)
	status, err = g.ResolveEdges(ctx, "a", playback.EdgeKindSpatial)
	require.NoError(t, err)
	assert.Empty(t, status.Edges)
}

func TestConcurrentSequenceResolutionsDeduplicated(t *testing.T) {
	g := newTestGraph(t)
	g.SetLatency(50 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := g.ResolveSequence(context.Background(), "seq", "")
			assert.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, seq.NodeKeys)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), g.SequenceCalls(), "concurrent resolutions must coalesce")
}

func TestSequenceResolutionsWithDistinctScopesNotDeduplicated(t *testing.T) {
	g := newTestGraph(t)
	g.SetLatency(50 * time.Millisecond)

	var wg sync.WaitGroup
	for _, scope := range []string{"a", "b"} {
		scope := scope
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.ResolveSequence(context.Background(), "seq", scope)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(2), g.SequenceCalls(), "different scopes are distinct resolutions")
}
