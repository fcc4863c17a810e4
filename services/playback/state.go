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

import "sync"

// ChangeKind identifies which part of the playback state changed.
type ChangeKind string

const (
	// ChangeSpeed signals a UI speed (and lookahead) update.
	ChangeSpeed ChangeKind = "speed"

	// ChangeDirection signals a direction update.
	ChangeDirection ChangeKind = "direction"

	// ChangePlaying signals a playing flag transition.
	ChangePlaying ChangeKind = "playing"
)

// Snapshot is an immutable copy of the playback state, broadcast atomically
// with every change. Subscribers never observe partial writes.
type Snapshot struct {
	Direction Direction
	UISpeed   float64
	Playing   bool
	Lookahead int
}

// StateChange pairs a change kind with the full state after the change.
type StateChange struct {
	Kind  ChangeKind
	State Snapshot
}

// State is the mutable shared playback configuration.
//
// # Description
//
// Owned exclusively by the Controller; mutated only through the controller's
// public setters. Writes fully replace the previous value under one mutex
// and are then broadcast to all subscribers through a conflating feed, so
// no torn reads are observable.
type State struct {
	mu        sync.RWMutex
	direction Direction
	uiSpeed   float64
	playing   bool
	lookahead int

	changes *Feed[StateChange]
}

// NewState creates playback state with the given initial direction and a
// UI speed of 0.5 (advance rate 1).
func NewState(direction Direction) *State {
	uiSpeed := 0.5
	return &State{
		direction: direction,
		uiSpeed:   uiSpeed,
		lookahead: LookaheadDepth(AdvanceRate(uiSpeed)),
		changes:   NewFeed[StateChange](),
	}
}

// Snapshot returns a consistent copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Direction: s.direction,
		UISpeed:   s.uiSpeed,
		Playing:   s.playing,
		Lookahead: s.lookahead,
	}
}

// Subscribe registers a latest-wins subscription to state changes.
func (s *State) Subscribe() (<-chan StateChange, func()) {
	return s.changes.Subscribe()
}

// setSpeed stores a clamped speed plus its derived lookahead and broadcasts.
// Returns false without broadcasting when the clamped value is unchanged.
func (s *State) setSpeed(uiSpeed float64) bool {
	clamped := ClampSpeed(uiSpeed)

	s.mu.Lock()
	if s.uiSpeed == clamped {
		s.mu.Unlock()
		return false
	}
	s.uiSpeed = clamped
	s.lookahead = LookaheadDepth(AdvanceRate(clamped))
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changes.Publish(StateChange{Kind: ChangeSpeed, State: snap})
	return true
}

// setDirection stores a new direction and broadcasts.
func (s *State) setDirection(d Direction) {
	s.mu.Lock()
	if s.direction == d {
		s.mu.Unlock()
		return
	}
	s.direction = d
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changes.Publish(StateChange{Kind: ChangeDirection, State: snap})
}

// setPlaying stores the playing flag and broadcasts.
func (s *State) setPlaying(playing bool) {
	s.mu.Lock()
	if s.playing == playing {
		s.mu.Unlock()
		return
	}
	s.playing = playing
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changes.Publish(StateChange{Kind: ChangePlaying, State: snap})
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Direction: s.direction,
		UISpeed:   s.uiSpeed,
		Playing:   s.playing,
		Lookahead: s.lookahead,
	}
}
