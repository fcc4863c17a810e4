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
	"log/slog"
	"sync"
)

// =============================================================================
// Playback Controller
// =============================================================================

// Controller orchestrates the playback session: it owns the shared playback
// state and the lifecycle of the five workers (mode switcher, prefetch
// scheduler, append worker, clear worker, termination watcher).
//
// # Description
//
// The controller is a two-state machine (stopped, playing). Play starts the
// workers as independent subscriptions on the state and frame feeds; Stop
// tears them down in a deterministic order and resets the collaborators.
// Stop may be triggered externally or by a worker (fatal append failure,
// graph exhaustion) and is terminal until the next explicit Play.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. State mutation happens
// synchronously inside controller methods under one mutex and is then
// broadcast atomically; external side effects issued by workers are guarded
// by a session generation so nothing lands after Stop returns.
type Controller struct {
	cfg   Config
	log   *slog.Logger
	graph GraphService
	traj  TrajectoryService
	state *State

	mu         sync.Mutex
	session    *session
	sessionSeq uint64
}

// session is one activation of the engine. workers is ordered by teardown:
// termination watcher, mode switcher, prefetch scheduler, append worker,
// clear worker. The order is deterministic so no worker ever observes a
// half-torn-down controller.
type session struct {
	id      uint64
	workers []worker
}

// worker is a handle to a running subscription: cancel stops its context,
// detach removes its feed subscriptions.
type worker struct {
	name   string
	cancel context.CancelFunc
	detach func()
}

// NewController creates a stopped controller wired to its collaborators.
//
// The logger may be nil, in which case slog.Default() is used. The config
// is validated; invalid values fall back to DefaultConfig().
func NewController(cfg Config, graph GraphService, traj TrajectoryService, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		log.Warn("invalid playback config, using defaults", "error", err)
		cfg = DefaultConfig()
	}
	return &Controller{
		cfg:   cfg,
		log:   log.With("component", "playback"),
		graph: graph,
		traj:  traj,
		state: NewState(DirectionNext),
	}
}

// Play activates autonomous playback. No-op when already playing.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return
	}

	snap := c.state.Snapshot()
	rate := AdvanceRate(snap.UISpeed)

	// Any continuation appended before activation is unresolved relative to
	// the new traversal; drop it and let the workers rebuild the horizon.
	c.traj.CutPendingExtension()
	c.traj.SetAdvanceRate(rate)

	c.sessionSeq++
	sess := &session{id: c.sessionSeq}
	sess.workers = []worker{
		c.startTerminationWatcher(sess.id),
		c.startModeSwitcher(sess.id),
		c.startPrefetchScheduler(sess.id),
		c.startAppendWorker(sess.id),
		c.startClearWorker(sess.id),
	}
	c.session = sess

	c.state.setPlaying(true)
	playTransitions.WithLabelValues("play", "requested").Inc()
	c.log.Info("playback started",
		"session", sess.id,
		"direction", snap.Direction,
		"ui_speed", snap.UISpeed,
		"advance_rate", rate,
		"lookahead", snap.Lookahead,
	)
}

// Stop deactivates playback. No-op when already stopped.
func (c *Controller) Stop() {
	c.stop("requested")
}

// stop tears down the active session. cause is recorded in logs and metrics.
func (c *Controller) stop(cause string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.session
	if sess == nil {
		return
	}
	c.session = nil

	// Teardown order is fixed: termination watcher first so it cannot react
	// to the resets below, housekeeping last.
	for _, w := range sess.workers {
		w.cancel()
		w.detach()
	}

	c.traj.SetAdvanceRate(PassthroughRate)
	c.graph.SetGraphMode(ModeFullSpatial)
	c.traj.CutPendingExtension()

	c.state.setPlaying(false)
	playTransitions.WithLabelValues("stop", cause).Inc()
	c.log.Info("playback stopped", "session", sess.id, "cause", cause)
}

// SetDirection updates the shared direction. It takes effect on the next
// event observed by each running worker and never starts or stops playback.
func (c *Controller) SetDirection(d Direction) {
	c.state.setDirection(d)
}

// SetSpeed updates the UI speed, clamped to [0, 1]. No-op if the clamped
// value is unchanged. While playing, the derived advance rate is propagated
// to the trajectory immediately.
func (c *Controller) SetSpeed(uiSpeed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.setSpeed(uiSpeed) {
		return
	}
	if c.session != nil {
		c.traj.SetAdvanceRate(AdvanceRate(ClampSpeed(uiSpeed)))
	}
}

// Playing reports whether a session is active.
func (c *Controller) Playing() bool {
	return c.state.Snapshot().Playing
}

// Direction returns the current traversal direction.
func (c *Controller) Direction() Direction {
	return c.state.Snapshot().Direction
}

// Speed returns the current UI speed.
func (c *Controller) Speed() float64 {
	return c.state.Snapshot().UISpeed
}

// StateSnapshot returns a consistent copy of the full playback state.
func (c *Controller) StateSnapshot() Snapshot {
	return c.state.Snapshot()
}

// Subscribe registers a latest-wins subscription to playback state changes.
func (c *Controller) Subscribe() (<-chan StateChange, func()) {
	return c.state.Subscribe()
}

// withSession runs fn under the controller mutex if and only if the session
// with the given id is still active. This is the discard point for results
// of fetches that were in flight when Stop ran: they complete, fail the
// session check, and are never applied.
func (c *Controller) withSession(id uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.id != id {
		return false
	}
	fn()
	return true
}

// stopFromWorker is the auto-stop entry point for workers. Idempotent.
func (c *Controller) stopFromWorker(cause string) {
	c.stop(cause)
}

// startModeSwitcher launches the graph mode switcher subscription.
func (c *Controller) startModeSwitcher(id uint64) worker {
	ctx, cancel := context.WithCancel(context.Background())
	events, unsub := c.state.Subscribe()

	m := &modeSwitcher{c: c, sessionID: id}
	go m.run(ctx, events)

	return worker{name: "mode_switcher", cancel: cancel, detach: unsub}
}

// startPrefetchScheduler launches the window-bounded prefetch subscription.
func (c *Controller) startPrefetchScheduler(id uint64) worker {
	ctx, cancel := context.WithCancel(context.Background())
	frames, unsubFrames := c.traj.SubscribeFrames()
	events, unsubEvents := c.state.Subscribe()

	p := newPrefetchScheduler(c, id)
	go p.run(ctx, frames, events)

	return worker{
		name:   "prefetch_scheduler",
		cancel: cancel,
		detach: func() { unsubFrames(); unsubEvents() },
	}
}

// startAppendWorker launches the single-step trajectory advancement
// subscription.
func (c *Controller) startAppendWorker(id uint64) worker {
	ctx, cancel := context.WithCancel(context.Background())
	frames, unsub := c.traj.SubscribeFrames()

	a := &appendWorker{c: c, sessionID: id}
	go a.run(ctx, frames)

	return worker{name: "append_worker", cancel: cancel, detach: unsub}
}

// startClearWorker launches the history trimming subscription.
func (c *Controller) startClearWorker(id uint64) worker {
	ctx, cancel := context.WithCancel(context.Background())
	frames, unsub := c.traj.SubscribeFrames()

	w := &clearWorker{c: c, sessionID: id}
	go w.run(ctx, frames)

	return worker{name: "clear_worker", cancel: cancel, detach: unsub}
}

// startTerminationWatcher launches the end-of-graph detection subscription.
func (c *Controller) startTerminationWatcher(id uint64) worker {
	ctx, cancel := context.WithCancel(context.Background())
	frames, unsubFrames := c.traj.SubscribeFrames()
	events, unsubEvents := c.state.Subscribe()

	w := &terminationWatcher{c: c, sessionID: id}
	go w.run(ctx, frames, events)

	return worker{
		name:   "termination_watcher",
		cancel: cancel,
		detach: func() { unsubFrames(); unsubEvents() },
	}
}
