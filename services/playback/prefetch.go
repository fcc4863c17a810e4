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

	"golang.org/x/sync/semaphore"
)

// =============================================================================
// Prefetch Scheduler
// =============================================================================

// prefetchScheduler keeps a rolling window of pre-resolved node keys ahead
// of the traversal so cachedAhead stays at or above the lookahead depth
// without unbounded over-fetching.
//
// # Description
//
// A cycle runs for every trajectory frame and for every state change. The
// scheduler resolves the active sequence (with retries; a persistently
// failing fetch only skips the cycle), orients its keys by direction, and
// emits the slice between the last requested key and the lookahead bound.
// Window state is kept per sequence: lastRequestedKey only ever advances
// forward along the oriented sequence, so no key is requested twice for a
// given traversal.
//
// Emitted keys fan out to a bounded fetch pool. A failed individual fetch
// is dropped silently; it never aborts the batch or the scheduler.
type prefetchScheduler struct {
	c         *Controller
	sessionID uint64
	pool      *semaphore.Weighted

	// Window state, reset whenever the active sequence key changes.
	sequenceKey      string
	lastRequestedKey string
	seeded           bool
}

func newPrefetchScheduler(c *Controller, sessionID uint64) *prefetchScheduler {
	return &prefetchScheduler{
		c:         c,
		sessionID: sessionID,
		pool:      semaphore.NewWeighted(int64(c.cfg.PrefetchConcurrency)),
	}
}

func (p *prefetchScheduler) run(ctx context.Context, frames <-chan TrajectoryFrame, events <-chan StateChange) {
	frame := p.c.traj.CurrentFrame()
	p.cycle(ctx, frame)

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			frame = f
			p.cycle(ctx, frame)
		case _, ok := <-events:
			if !ok {
				return
			}
			// Direction, lookahead, or mode inputs changed; re-plan against
			// the latest frame.
			p.cycle(ctx, frame)
		}
	}
}

// cycle runs one planning pass against the given frame.
func (p *prefetchScheduler) cycle(ctx context.Context, frame TrajectoryFrame) {
	snap := p.c.state.Snapshot()

	// Prefetch along a sequence is undefined for free/spatial directions.
	if !snap.Direction.IsSequential() {
		prefetchCyclesSkipped.WithLabelValues("non_sequential").Inc()
		return
	}
	if frame.TailKey == "" || frame.SequenceKey == "" {
		prefetchCyclesSkipped.WithLabelValues("empty_window").Inc()
		return
	}

	scope := ""
	if p.c.graph.GraphMode() == ModeSequenceOnly {
		scope = frame.TailKey
	}

	seq, err := p.resolveSequence(ctx, frame.SequenceKey, scope)
	if err != nil {
		// Transient: skip this cycle, a later frame retries naturally.
		prefetchCyclesSkipped.WithLabelValues("fetch_failed").Inc()
		p.c.log.Warn("sequence fetch failed, skipping prefetch cycle",
			"sequence", frame.SequenceKey,
			"error", err,
		)
		return
	}

	oriented := orientKeys(seq.NodeKeys, snap.Direction)

	// First observation of a sequence seeds the window at the tail.
	if !p.seeded || p.sequenceKey != frame.SequenceKey {
		p.sequenceKey = frame.SequenceKey
		p.lastRequestedKey = frame.TailKey
		p.seeded = true
	}

	if frame.CachedAhead >= snap.Lookahead {
		prefetchCyclesSkipped.WithLabelValues("satisfied").Inc()
		return
	}

	batch, nextLast := prefetchPlan(oriented, frame.TailKey, p.lastRequestedKey, snap.Lookahead, frame.CachedAhead)
	if len(batch) == 0 {
		prefetchCyclesSkipped.WithLabelValues("exhausted").Inc()
		return
	}
	p.lastRequestedKey = nextLast

	prefetchKeys.Add(float64(len(batch)))
	for _, key := range batch {
		key := key
		if err := p.pool.Acquire(ctx, 1); err != nil {
			return
		}
		go func() {
			defer p.pool.Release(1)
			if _, err := p.c.graph.ResolveNode(ctx, key); err != nil {
				prefetchFetchFailures.Inc()
				p.c.log.Debug("prefetch node fetch dropped", "key", key, "error", err)
			}
		}()
	}
}

// resolveSequence fetches the sequence, retrying up to the configured count
// before reporting failure for this cycle.
func (p *prefetchScheduler) resolveSequence(ctx context.Context, sequenceKey, scopeKey string) (Sequence, error) {
	var lastErr error
	for attempt := 0; attempt <= p.c.cfg.SequenceFetchRetries; attempt++ {
		if attempt > 0 {
			sequenceFetchRetries.Inc()
		}
		seq, err := p.c.graph.ResolveSequence(ctx, sequenceKey, scopeKey)
		if err == nil {
			return seq, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return Sequence{}, lastErr
}

// orientKeys returns the sequence keys in traversal order: capture order
// for Next, reversed for Prev.
func orientKeys(keys []string, d Direction) []string {
	if d != DirectionPrev {
		return keys
	}
	reversed := make([]string, len(keys))
	for i, k := range keys {
		reversed[len(keys)-1-i] = k
	}
	return reversed
}

// prefetchPlan computes the next window batch.
//
// # Description
//
// Given the oriented sequence keys, the traversal tail, and the window
// state, returns the slice of keys to request next and the new value of
// lastRequestedKey. The batch is empty when the traversal is exhausted
// (lastRequestedKey already sits on the oriented sequence's final key),
// when the tail or window anchor cannot be located, or when the lookahead
// deficit leaves no room.
//
// The returned nextLast equals lastRequestedKey when nothing was emitted,
// so window state never moves backward.
func prefetchPlan(oriented []string, tailKey, lastRequestedKey string, lookahead, cachedAhead int) (batch []string, nextLast string) {
	nextLast = lastRequestedKey
	if len(oriented) == 0 {
		return nil, nextLast
	}
	if oriented[len(oriented)-1] == lastRequestedKey {
		return nil, nextLast
	}

	currentIndex := indexOfKey(oriented, tailKey)
	anchorIndex := indexOfKey(oriented, lastRequestedKey)
	if currentIndex < 0 || anchorIndex < 0 {
		return nil, nextLast
	}

	startIndex := anchorIndex + 1
	endIndex := currentIndex + lookahead - cachedAhead
	if last := len(oriented) - 1; endIndex > last {
		endIndex = last
	}
	endIndex++

	if endIndex <= startIndex {
		return nil, nextLast
	}
	batch = oriented[startIndex:endIndex]
	nextLast = oriented[endIndex-1]
	return batch, nextLast
}

func indexOfKey(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
