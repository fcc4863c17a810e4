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
	"context"
	"errors"
	"sync/atomic"
)

// =============================================================================
// Append Worker
// =============================================================================

// appendWorker advances the trajectory by exactly one node per eligible
// frame: whenever cachedAhead drops below the lookahead depth, it resolves
// the tail node's adjacency, follows the edge matching the active
// direction, fetches the target node, and appends it.
//
// # Description
//
// Adjacency resolution is bounded by the edge wait timeout. Expiry or a
// resolution error is fatal to the session: without adjacency data forward
// progress is impossible, so the worker logs and stops playback with no
// retry. A missing matching edge is not an error here; end-of-graph
// handling belongs to the termination watcher.
//
// A newer eligible frame supersedes an in-flight resolution for a stale
// tail (latest-wins): the generation captured at dispatch is compared on
// completion and stale results are discarded.
type appendWorker struct {
	c         *Controller
	sessionID uint64
	gen       atomic.Uint64
}

func (a *appendWorker) run(ctx context.Context, frames <-chan TrajectoryFrame) {
	// The first extension is driven by the frame state at activation; each
	// successful append publishes a new frame, so the worker sustains itself.
	a.maybeAdvance(ctx, a.c.traj.CurrentFrame())

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			a.maybeAdvance(ctx, frame)
		}
	}
}

// maybeAdvance dispatches a single-step extension when the pre-resolved
// horizon is below the lookahead depth.
func (a *appendWorker) maybeAdvance(ctx context.Context, frame TrajectoryFrame) {
	snap := a.c.state.Snapshot()
	if frame.CachedAhead >= snap.Lookahead {
		return
	}
	gen := a.gen.Add(1)
	go a.advance(ctx, gen, frame, snap.Direction)
}

// advance performs one asynchronous single-step extension of the trajectory.
func (a *appendWorker) advance(ctx context.Context, gen uint64, frame TrajectoryFrame, d Direction) {
	edgeCtx, cancel := context.WithTimeout(ctx, a.c.cfg.EdgeWaitTimeout)
	defer cancel()

	status, err := a.c.graph.ResolveEdges(edgeCtx, frame.TailKey, KindFor(d))
	if a.gen.Load() != gen {
		appendsSuperseded.Inc()
		return
	}
	if err == nil && !status.Resolved {
		err = ErrEdgeUnresolved
	}
	if err != nil {
		a.fatal(ctx, "edge status resolution failed", frame.TailKey, err)
		return
	}

	edge, ok := status.MatchingEdge(d)
	if !ok {
		// No edge in the active direction: nothing to append. The
		// termination watcher decides whether this ends the session.
		return
	}

	node, err := a.c.graph.ResolveNode(ctx, edge.ToKey)
	if a.gen.Load() != gen {
		appendsSuperseded.Inc()
		return
	}
	if err != nil {
		a.fatal(ctx, "target node fetch failed", edge.ToKey, err)
		return
	}

	applied := a.c.withSession(a.sessionID, func() {
		if err := a.c.traj.AppendNode(node); err != nil {
			a.c.log.Error("trajectory append rejected", "key", node.Key, "error", err)
			return
		}
		trajectoryAppends.Inc()
	})
	if !applied {
		appendsSuperseded.Inc()
	}
}

// fatal logs the failure and stops playback. Cancellation of the session
// itself is not a failure and is ignored.
func (a *appendWorker) fatal(ctx context.Context, msg, key string, err error) {
	if ctx.Err() != nil {
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrEdgeWaitTimeout
	}
	a.c.log.Error("append worker: "+msg, "key", key, "error", err)
	a.c.stopFromWorker("edge_wait_fatal")
}
