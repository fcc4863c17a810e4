// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphstore provides reference implementations of the playback
// graph collaborator: an in-memory graph for simulations and tests, and a
// BadgerDB-backed node cache that can be layered over any graph service.
package graphstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/panowalk/services/playback"
)

// MemoryGraph is a deterministic in-memory node graph.
//
// # Description
//
// Holds nodes, sequences, and per-kind adjacency. Resolution latency and
// per-key failure injection make the retry and timeout paths of the engine
// exercisable without a network. Concurrent sequence resolutions for the
// same key are deduplicated through singleflight.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryGraph struct {
	mu        sync.RWMutex
	mode      playback.GraphMode
	nodes     map[string]playback.Node
	sequences map[string]playback.Sequence
	edges     map[playback.EdgeKind]map[string][]playback.Edge

	latency       time.Duration
	sequenceFails map[string]int
	nodeFails     map[string]int
	edgeFails     map[string]int
	edgeBlock     map[string]bool

	flight singleflight.Group

	sequenceCalls int64
	nodeCalls     int64
}

// NewMemoryGraph creates an empty graph in full-spatial mode.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		mode:      playback.ModeFullSpatial,
		nodes:     make(map[string]playback.Node),
		sequences: make(map[string]playback.Sequence),
		edges: map[playback.EdgeKind]map[string][]playback.Edge{
			playback.EdgeKindSequence: {},
			playback.EdgeKindSpatial:  {},
		},
		sequenceFails: make(map[string]int),
		nodeFails:     make(map[string]int),
		edgeFails:     make(map[string]int),
		edgeBlock:     make(map[string]bool),
	}
}

// AddSequence registers a capture path and its member nodes, wiring the
// Next/Prev sequence edges between consecutive nodes.
func (g *MemoryGraph) AddSequence(key string, nodes ...playback.Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seq := playback.Sequence{Key: key}
	for i, n := range nodes {
		n.SequenceKey = key
		g.nodes[n.Key] = n
		seq.NodeKeys = append(seq.NodeKeys, n.Key)

		if i > 0 {
			prev := nodes[i-1].Key
			g.edges[playback.EdgeKindSequence][prev] = append(g.edges[playback.EdgeKindSequence][prev],
				playback.Edge{ToKey: n.Key, Direction: playback.DirectionNext})
			g.edges[playback.EdgeKindSequence][n.Key] = append(g.edges[playback.EdgeKindSequence][n.Key],
				playback.Edge{ToKey: prev, Direction: playback.DirectionPrev})
		}
	}
	g.sequences[key] = seq
}

// AddSpatialEdge registers a directed spatial adjacency.
func (g *MemoryGraph) AddSpatialEdge(fromKey, toKey string, d playback.Direction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[playback.EdgeKindSpatial][fromKey] = append(g.edges[playback.EdgeKindSpatial][fromKey],
		playback.Edge{ToKey: toKey, Direction: d})
}

// SetLatency injects a fixed resolution delay.
func (g *MemoryGraph) SetLatency(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latency = d
}

// FailSequence makes the next n resolutions of a sequence key fail.
func (g *MemoryGraph) FailSequence(key string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sequenceFails[key] = n
}

// FailNode makes the next n resolutions of a node key fail.
func (g *MemoryGraph) FailNode(key string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodeFails[key] = n
}

// FailEdges makes the next n edge resolutions for a node key fail.
func (g *MemoryGraph) FailEdges(key string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edgeFails[key] = n
}

// BlockEdges makes edge resolution for a node key hang until its context
// expires, simulating a status that never resolves.
func (g *MemoryGraph) BlockEdges(key string, blocked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edgeBlock[key] = blocked
}

// ResolveSequence implements playback.GraphService.
//
// A non-empty scopeKey must be a member of the sequence; every member
// reaches the whole chain along its Next/Prev edges, so a valid scope
// yields the complete key list. Scoped and unscoped resolutions are
// distinct flights and never deduplicate against each other.
func (g *MemoryGraph) ResolveSequence(ctx context.Context, sequenceKey, scopeKey string) (playback.Sequence, error) {
	v, err, _ := g.flight.Do("seq:"+sequenceKey+":"+scopeKey, func() (interface{}, error) {
		if err := g.simulate(ctx); err != nil {
			return playback.Sequence{}, err
		}

		g.mu.Lock()
		g.sequenceCalls++
		if n := g.sequenceFails[sequenceKey]; n > 0 {
			g.sequenceFails[sequenceKey] = n - 1
			g.mu.Unlock()
			return playback.Sequence{}, fmt.Errorf("resolve sequence %s: injected failure", sequenceKey)
		}
		seq, ok := g.sequences[sequenceKey]
		g.mu.Unlock()

		if !ok {
			return playback.Sequence{}, fmt.Errorf("resolve sequence %s: %w", sequenceKey, playback.ErrSequenceNotFound)
		}
		if scopeKey != "" && !slices.Contains(seq.NodeKeys, scopeKey) {
			return playback.Sequence{}, fmt.Errorf("resolve sequence %s: scope %s: %w", sequenceKey, scopeKey, playback.ErrSequenceNotFound)
		}
		return seq, nil
	})
	if err != nil {
		return playback.Sequence{}, err
	}
	return v.(playback.Sequence), nil
}

// ResolveNode implements playback.GraphService.
func (g *MemoryGraph) ResolveNode(ctx context.Context, key string) (playback.Node, error) {
	if err := g.simulate(ctx); err != nil {
		return playback.Node{}, err
	}

	g.mu.Lock()
	g.nodeCalls++
	if n := g.nodeFails[key]; n > 0 {
		g.nodeFails[key] = n - 1
		g.mu.Unlock()
		return playback.Node{}, fmt.Errorf("resolve node %s: injected failure", key)
	}
	node, ok := g.nodes[key]
	g.mu.Unlock()

	if !ok {
		return playback.Node{}, fmt.Errorf("resolve node %s: %w", key, playback.ErrNodeNotFound)
	}
	return node, nil
}

// ResolveEdges implements playback.GraphService.
func (g *MemoryGraph) ResolveEdges(ctx context.Context, key string, kind playback.EdgeKind) (playback.EdgeStatus, error) {
	g.mu.RLock()
	blocked := g.edgeBlock[key]
	g.mu.RUnlock()
	if blocked {
		<-ctx.Done()
		return playback.EdgeStatus{}, ctx.Err()
	}

	if err := g.simulate(ctx); err != nil {
		return playback.EdgeStatus{}, err
	}

	g.mu.Lock()
	if n := g.edgeFails[key]; n > 0 {
		g.edgeFails[key] = n - 1
		g.mu.Unlock()
		return playback.EdgeStatus{}, fmt.Errorf("resolve edges %s: injected failure", key)
	}
	edges := append([]playback.Edge(nil), g.edges[kind][key]...)
	mode := g.mode
	g.mu.Unlock()

	// Sequence-only mode hides spatial adjacency entirely.
	if mode == playback.ModeSequenceOnly && kind == playback.EdgeKindSpatial {
		edges = nil
	}
	return playback.EdgeStatus{Resolved: true, Edges: edges}, nil
}

// SetGraphMode implements playback.GraphService.
func (g *MemoryGraph) SetGraphMode(mode playback.GraphMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = mode
}

// GraphMode implements playback.GraphService.
func (g *MemoryGraph) GraphMode() playback.GraphMode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// SequenceCalls returns how many sequence resolutions reached the store.
func (g *MemoryGraph) SequenceCalls() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sequenceCalls
}

// NodeCalls returns how many node resolutions reached the store.
func (g *MemoryGraph) NodeCalls() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodeCalls
}

// simulate applies the injected latency, honoring cancellation.
func (g *MemoryGraph) simulate(ctx context.Context) error {
	g.mu.RLock()
	latency := g.latency
	g.mu.RUnlock()

	if latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ playback.GraphService = (*MemoryGraph)(nil)
