// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package playback_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/panowalk/services/playback"
	"github.com/AleutianAI/panowalk/services/playback/graphstore"
	"github.com/AleutianAI/panowalk/services/playback/trajectory"
)

// testConfig returns the default engine config with a short edge wait so
// timeout paths finish within test deadlines.
func testConfig() playback.Config {
	cfg := playback.DefaultConfig()
	cfg.EdgeWaitTimeout = 200 * time.Millisecond
	return cfg
}

// newEngine builds a controller over one linear sequence of n nodes.
func newEngine(t *testing.T, cfg playback.Config, n int) (*playback.Controller, *graphstore.MemoryGraph, *trajectory.Log) {
	t.Helper()

	graph := graphstore.NewMemoryGraph()
	nodes := make([]playback.Node, n)
	for i := range nodes {
		nodes[i] = playback.Node{Key: fmt.Sprintf("n%02d", i)}
	}
	graph.AddSequence("seq", nodes...)

	seed := nodes[0]
	seed.SequenceKey = "seq"
	traj, err := trajectory.NewLog(seed)
	require.NoError(t, err)

	ctrl := playback.NewController(cfg, graph, traj, nil)
	t.Cleanup(ctrl.Stop)
	return ctrl, graph, traj
}

func TestPlayIsIdempotent(t *testing.T) {
	ctrl, _, _ := newEngine(t, testConfig(), 5)

	ctrl.Play()
	require.True(t, ctrl.Playing())

	// A second Play must not restart the session.
	ctrl.Play()
	assert.True(t, ctrl.Playing())

	ctrl.Stop()
	assert.False(t, ctrl.Playing())
}

func TestStopWhenStoppedIsNoOp(t *testing.T) {
	ctrl, _, _ := newEngine(t, testConfig(), 5)

	ch, cancel := ctrl.Subscribe()
	defer cancel()

	ctrl.Stop()
	assert.False(t, ctrl.Playing())

	select {
	case ev := <-ch:
		t.Fatalf("expected no state change, got %+v", ev)
	default:
	}
}

func TestSpeedClampedAndPropagatedWhilePlaying(t *testing.T) {
	ctrl, _, traj := newEngine(t, testConfig(), 5)

	// Stopped: the trajectory keeps its passthrough pace.
	ctrl.SetSpeed(0.9)
	assert.Equal(t, 0.9, ctrl.Speed())
	assert.Equal(t, playback.PassthroughRate, traj.AdvanceRate())

	ctrl.Play()
	assert.InDelta(t, playback.AdvanceRate(0.9), traj.AdvanceRate(), 1e-12)

	ctrl.SetSpeed(1.7)
	assert.Equal(t, 1.0, ctrl.Speed())
	assert.InDelta(t, playback.AdvanceRate(1.0), traj.AdvanceRate(), 1e-12)
}

func TestStopResetsCollaborators(t *testing.T) {
	ctrl, graph, traj := newEngine(t, testConfig(), 5)

	ctrl.SetSpeed(0.8)
	ctrl.Play()

	require.Eventually(t, func() bool {
		return graph.GraphMode() == playback.ModeSequenceOnly
	}, 2*time.Second, 10*time.Millisecond)

	ctrl.Stop()
	assert.Equal(t, playback.ModeFullSpatial, graph.GraphMode())
	assert.Equal(t, playback.PassthroughRate, traj.AdvanceRate())
}

func TestSequenceOnlyModeFollowsSpeedThreshold(t *testing.T) {
	ctrl, graph, _ := newEngine(t, testConfig(), 5)
	ctrl.Play()

	// 0.54 itself stays in full spatial mode; only strictly above switches.
	ctrl.SetSpeed(0.54)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, playback.ModeFullSpatial, graph.GraphMode())

	ctrl.SetSpeed(0.55)
	require.Eventually(t, func() bool {
		return graph.GraphMode() == playback.ModeSequenceOnly
	}, 2*time.Second, 10*time.Millisecond)

	ctrl.SetSpeed(0.3)
	require.Eventually(t, func() bool {
		return graph.GraphMode() == playback.ModeFullSpatial
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTrajectoryExtendsWhilePlaying(t *testing.T) {
	ctrl, _, traj := newEngine(t, testConfig(), 8)
	ctrl.Play()

	// The append worker fills the continuation one node per frame until the
	// sequence runs out.
	require.Eventually(t, func() bool {
		return traj.Len() == 8
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, ctrl.Playing(), "reaching the end of the window must not stop playback by itself")
}

func TestAutoStopAtGraphEnd(t *testing.T) {
	ctrl, _, traj := newEngine(t, testConfig(), 3)
	ctrl.Play()

	// Drive the head forward like a rendering loop; once it sits on the
	// final node with no edge in the active direction, the engine stops
	// itself.
	require.Eventually(t, func() bool {
		traj.Advance()
		return !ctrl.Playing()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "n02", traj.CurrentNode().Key)

	// Exhaustion is terminal: a direction change that would restore a valid
	// edge (a Prev edge exists from the final node) must not auto-resume.
	ctrl.SetDirection(playback.DirectionPrev)
	time.Sleep(100 * time.Millisecond)
	assert.False(t, ctrl.Playing())
	assert.Equal(t, playback.DirectionPrev, ctrl.Direction())
}

func TestPrefetchSkipsFailingSequenceCyclesAndRecovers(t *testing.T) {
	ctrl, graph, traj := newEngine(t, testConfig(), 8)

	// Six injected failures outlast one whole cycle (one initial attempt
	// plus three retries), so at least one full prefetch cycle is skipped.
	graph.FailSequence("seq", 6)
	ctrl.Play()

	// Failing sequence fetches never take the session down; the trajectory
	// keeps extending regardless.
	require.Eventually(t, func() bool {
		return traj.Len() == 8
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, ctrl.Playing())

	// A later cycle drains the remaining failures and reaches the store
	// again: calls beyond the injected count are successful resolutions.
	require.Eventually(t, func() bool {
		return graph.SequenceCalls() > 6
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEdgeWaitTimeoutStopsPlayback(t *testing.T) {
	cfg := testConfig()
	ctrl, graph, _ := newEngine(t, cfg, 5)

	// The seed's adjacency never resolves: the session must stop itself
	// once the edge wait expires.
	graph.BlockEdges("n00", true)
	ctrl.Play()

	require.Eventually(t, func() bool {
		return !ctrl.Playing()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDirectionChangeWhileStopped(t *testing.T) {
	ctrl, _, _ := newEngine(t, testConfig(), 5)

	ctrl.SetDirection(playback.DirectionPrev)
	assert.Equal(t, playback.DirectionPrev, ctrl.Direction())
	assert.False(t, ctrl.Playing(), "direction changes never start playback")
}

func TestHistoryTrimmedDuringPlayback(t *testing.T) {
	cfg := testConfig()
	cfg.TrimInterval = 2
	ctrl, _, traj := newEngine(t, cfg, 10)
	ctrl.Play()

	require.Eventually(t, func() bool {
		traj.Advance()
		// After the first trim the seed node is gone from the log.
		return traj.Nodes()[0].Key != "n00"
	}, 5*time.Second, 10*time.Millisecond)
}
