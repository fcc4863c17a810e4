// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trajectory provides the reference in-memory implementation of the
// trajectory collaborator: the canonical ordered log of visited nodes plus
// the pre-resolved continuation the playback engine keeps filled.
package trajectory

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/panowalk/services/playback"
)

// baseAdvancesPerSecond is the head advancement pace at an advance rate of
// 1 (the passthrough value).
const baseAdvancesPerSecond = 1.0

// ErrEmptyTrajectory is returned when a log is created without a seed node.
var ErrEmptyTrajectory = errors.New("trajectory requires a seed node")

// Log is an in-memory trajectory: nodes[0:head] is presented history,
// nodes[head] the current node, nodes[head+1:] the pending continuation.
//
// # Thread Safety
//
// Safe for concurrent use. Every mutation publishes a frame snapshot
// through a conflating feed.
type Log struct {
	mu      sync.Mutex
	nodes   []playback.Node
	head    int
	rate    float64
	limiter *rate.Limiter
	frames  *playback.Feed[playback.TrajectoryFrame]
}

// NewLog creates a trajectory seeded at the given node, paced at the
// passthrough rate.
func NewLog(seed playback.Node) (*Log, error) {
	if seed.Key == "" {
		return nil, ErrEmptyTrajectory
	}
	return &Log{
		nodes:   []playback.Node{seed},
		rate:    playback.PassthroughRate,
		limiter: rate.NewLimiter(rate.Limit(baseAdvancesPerSecond), 1),
		frames:  playback.NewFeed[playback.TrajectoryFrame](),
	}, nil
}

// CurrentNode returns the node at the head.
func (l *Log) CurrentNode() playback.Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nodes[l.head]
}

// CurrentFrame returns the latest trajectory snapshot.
func (l *Log) CurrentFrame() playback.TrajectoryFrame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frameLocked()
}

// SubscribeFrames registers a latest-wins frame subscription.
func (l *Log) SubscribeFrames() (<-chan playback.TrajectoryFrame, func()) {
	return l.frames.Subscribe()
}

// SetAdvanceRate sets the head advancement rate relative to the base pace.
func (l *Log) SetAdvanceRate(r float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r <= 0 {
		r = playback.PassthroughRate
	}
	l.rate = r
	l.limiter.SetLimit(rate.Limit(baseAdvancesPerSecond * r))
}

// AdvanceRate returns the current advancement rate.
func (l *Log) AdvanceRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// Limiter exposes the pacing limiter for player loops that drive the head.
func (l *Log) Limiter() *rate.Limiter {
	return l.limiter
}

// AppendNode appends one node to the tail.
func (l *Log) AppendNode(node playback.Node) error {
	if node.Key == "" {
		return fmt.Errorf("append node: empty key")
	}

	l.mu.Lock()
	l.nodes = append(l.nodes, node)
	frame := l.frameLocked()
	l.mu.Unlock()

	l.frames.Publish(frame)
	return nil
}

// Advance moves the head one node forward into the pending continuation.
// Returns false when no resolved node lies ahead.
func (l *Log) Advance() bool {
	l.mu.Lock()
	if l.head >= len(l.nodes)-1 {
		l.mu.Unlock()
		return false
	}
	l.head++
	frame := l.frameLocked()
	l.mu.Unlock()

	l.frames.Publish(frame)
	return true
}

// CutPendingExtension discards the continuation after the head.
func (l *Log) CutPendingExtension() {
	l.mu.Lock()
	if l.head >= len(l.nodes)-1 {
		l.mu.Unlock()
		return
	}
	l.nodes = l.nodes[:l.head+1]
	frame := l.frameLocked()
	l.mu.Unlock()

	l.frames.Publish(frame)
}

// TrimHistoryBeforeHead drops all nodes preceding the head.
func (l *Log) TrimHistoryBeforeHead() {
	l.mu.Lock()
	if l.head == 0 {
		l.mu.Unlock()
		return
	}
	l.nodes = append([]playback.Node(nil), l.nodes[l.head:]...)
	l.head = 0
	frame := l.frameLocked()
	l.mu.Unlock()

	l.frames.Publish(frame)
}

// Len returns the current trajectory length.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nodes)
}

// Nodes returns a copy of the trajectory contents.
func (l *Log) Nodes() []playback.Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]playback.Node(nil), l.nodes...)
}

func (l *Log) frameLocked() playback.TrajectoryFrame {
	tail := l.nodes[len(l.nodes)-1]
	return playback.TrajectoryFrame{
		SequenceKey: tail.SequenceKey,
		TailKey:     tail.Key,
		HeadKey:     l.nodes[l.head].Key,
		CachedAhead: len(l.nodes) - 1 - l.head,
	}
}

var _ playback.TrajectoryService = (*Log)(nil)
