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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Playback Engine
// =============================================================================

var (
	// playTransitions counts controller state transitions.
	// Labels: op (play, stop), cause (requested, edge_wait_fatal, graph_exhausted)
	playTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "transitions_total",
		Help:      "Controller play/stop transitions",
	}, []string{"op", "cause"})

	// prefetchKeys counts node keys handed to the prefetch pool.
	prefetchKeys = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "prefetch_keys_total",
		Help:      "Node keys requested by the prefetch scheduler",
	})

	// prefetchCyclesSkipped counts prefetch cycles that emitted no batch.
	// Labels: reason (non_sequential, fetch_failed, satisfied, exhausted, empty_window)
	prefetchCyclesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "prefetch_cycles_skipped_total",
		Help:      "Prefetch cycles that produced no batch, by reason",
	}, []string{"reason"})

	// prefetchFetchFailures counts individual node fetches dropped silently.
	prefetchFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "prefetch_fetch_failures_total",
		Help:      "Individual prefetch node fetches that failed",
	})

	// sequenceFetchRetries counts sequence resolution retry attempts.
	sequenceFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "sequence_fetch_retries_total",
		Help:      "Sequence fetch retry attempts in the prefetch scheduler",
	})

	// trajectoryAppends counts nodes appended by the append worker.
	trajectoryAppends = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "trajectory_appends_total",
		Help:      "Nodes appended to the trajectory during playback",
	})

	// appendsSuperseded counts in-flight advancements discarded by a newer frame.
	appendsSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "appends_superseded_total",
		Help:      "In-flight trajectory advancements discarded as stale",
	})

	// modeSwitches counts graph mode applications.
	// Labels: mode (full_spatial, sequence_only)
	modeSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "mode_switches_total",
		Help:      "Graph mode changes applied by the mode switcher",
	}, []string{"mode"})

	// historyTrims counts trajectory history trims.
	historyTrims = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "panowalk",
		Subsystem: "playback",
		Name:      "history_trims_total",
		Help:      "Trajectory history trims issued by the clear worker",
	})
)
