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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/panowalk/services/playback"
)

func newTestCache(t *testing.T) (*NodeCache, *MemoryGraph) {
	t.Helper()
	graph := newTestGraph(t)
	cache, err := NewNodeCache(graph, InMemoryCacheConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, graph
}

func TestNodeCacheValidation(t *testing.T) {
	_, err := NewNodeCache(nil, InMemoryCacheConfig())
	assert.Error(t, err)

	_, err = NewNodeCache(NewMemoryGraph(), CacheConfig{})
	assert.Error(t, err, "persistent cache requires a path")
}

func TestNodeCacheReadThrough(t *testing.T) {
	cache, graph := newTestCache(t)
	ctx := context.Background()

	node, err := cache.ResolveNode(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", node.Key)
	assert.Equal(t, int64(0), cache.Hits())
	assert.Equal(t, int64(1), cache.Misses())

	// Second resolution is served from the cache, not the upstream.
	node, err = cache.ResolveNode(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", node.Key)
	assert.Equal(t, int64(1), cache.Hits())
	assert.Equal(t, int64(1), graph.NodeCalls())
}

func TestNodeCacheDoesNotCacheFailures(t *testing.T) {
	cache, graph := newTestCache(t)
	ctx := context.Background()

	graph.FailNode("a", 1)
	_, err := cache.ResolveNode(ctx, "a")
	require.Error(t, err)

	node, err := cache.ResolveNode(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", node.Key)
	assert.Equal(t, int64(2), graph.NodeCalls())
}

func TestNodeCachePersistsAcrossSessions(t *testing.T) {
	graph := newTestGraph(t)
	dir := t.TempDir()

	cache, err := NewNodeCache(graph, DefaultCacheConfig(dir))
	require.NoError(t, err)
	_, err = cache.ResolveNode(context.Background(), "c")
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	reopened, err := NewNodeCache(graph, DefaultCacheConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	node, err := reopened.ResolveNode(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "c", node.Key)
	assert.Equal(t, int64(1), reopened.Hits())
	assert.Equal(t, int64(1), graph.NodeCalls())
}

func TestNodeCacheDelegatesAdjacency(t *testing.T) {
	cache, graph := newTestCache(t)
	ctx := context.Background()

	seq, err := cache.ResolveSequence(ctx, "seq", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seq.NodeKeys)

	status, err := cache.ResolveEdges(ctx, "a", playback.EdgeKindSequence)
	require.NoError(t, err)
	assert.True(t, status.Resolved)

	cache.SetGraphMode(playback.ModeSequenceOnly)
	assert.Equal(t, playback.ModeSequenceOnly, graph.GraphMode())
	assert.Equal(t, playback.ModeSequenceOnly, cache.GraphMode())
}
