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
	"sync/atomic"
)

// =============================================================================
// Clear Worker
// =============================================================================

// clearWorker bounds trajectory memory: after the 1st head-advance event and
// every TrimInterval-th thereafter it trims all history preceding the
// current head. Purely housekeeping; it never affects playback decisions.
type clearWorker struct {
	c         *Controller
	sessionID uint64
}

func (w *clearWorker) run(ctx context.Context, frames <-chan TrajectoryFrame) {
	lastHead := w.c.traj.CurrentFrame().HeadKey
	advances := 0

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if frame.HeadKey == lastHead {
				continue
			}
			lastHead = frame.HeadKey
			advances++
			if advances%w.c.cfg.TrimInterval != 1 && w.c.cfg.TrimInterval != 1 {
				continue
			}
			if w.c.withSession(w.sessionID, func() { w.c.traj.TrimHistoryBeforeHead() }) {
				historyTrims.Inc()
				w.c.log.Debug("trajectory history trimmed", "head", frame.HeadKey, "advances", advances)
			}
		}
	}
}

// =============================================================================
// Termination Watcher
// =============================================================================

// terminationWatcher detects end-of-graph and auto-stops the session.
//
// # Description
//
// Re-evaluated on every (head node, direction) change, latest-wins. The
// head's edge status is resolved under the same wait bound as the append
// worker, but here a timeout or error is fail-safe: it is treated as "no
// matching edge" rather than propagated. The first evaluation without a
// matching edge stops playback exactly once; a later direction change that
// would restore a valid edge does not auto-resume.
type terminationWatcher struct {
	c         *Controller
	sessionID uint64
	gen       atomic.Uint64
}

func (w *terminationWatcher) run(ctx context.Context, frames <-chan TrajectoryFrame, events <-chan StateChange) {
	head := w.c.traj.CurrentFrame().HeadKey
	direction := w.c.state.Snapshot().Direction
	w.evaluate(ctx, head, direction)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if frame.HeadKey == head {
				continue
			}
			head = frame.HeadKey
			w.evaluate(ctx, head, direction)
		case ev, ok := <-events:
			if !ok {
				return
			}
			// The feed conflates: a direction change can survive only inside
			// a later event of another kind, so read the direction from the
			// snapshot rather than the event kind.
			if ev.State.Direction == direction {
				continue
			}
			direction = ev.State.Direction
			w.evaluate(ctx, head, direction)
		}
	}
}

// evaluate dispatches an asynchronous edge check for the given head and
// direction, superseding any check still in flight.
func (w *terminationWatcher) evaluate(ctx context.Context, head string, d Direction) {
	if head == "" {
		return
	}
	gen := w.gen.Add(1)

	go func() {
		edgeCtx, cancel := context.WithTimeout(ctx, w.c.cfg.EdgeWaitTimeout)
		defer cancel()

		status, err := w.c.graph.ResolveEdges(edgeCtx, head, KindFor(d))
		if w.gen.Load() != gen || ctx.Err() != nil {
			return
		}

		hasEdge := false
		if err == nil && status.Resolved {
			_, hasEdge = status.MatchingEdge(d)
		}
		if hasEdge {
			return
		}

		w.c.log.Info("traversal exhausted, stopping playback",
			"head", head,
			"direction", d,
			"edge_error", err,
		)
		w.c.stopFromWorker("graph_exhausted")
	}()
}
