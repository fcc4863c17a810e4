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
	"sync"

	"github.com/google/uuid"
)

// Feed is a conflating broadcast channel registry.
//
// # Description
//
// Each subscriber owns a buffer-1 channel. Publish never blocks: when a
// subscriber has not consumed the previous value, the stale value is dropped
// and replaced by the newest one (latest-wins). This matches the engine's
// event model, where workers only ever care about the most recent state or
// frame, never the full history.
//
// # Thread Safety
//
// Safe for concurrent use.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[uuid.UUID]chan T
}

// NewFeed creates an empty feed.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[uuid.UUID]chan T)}
}

// Subscribe registers a new subscriber and returns its receive channel plus
// a cancel function. After cancel returns, no further values are delivered
// and the channel is closed.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New()
	ch := make(chan T, 1)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers v to every subscriber, replacing any undelivered
// previous value.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
			// Subscriber lagging: drop the stale value, keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Len returns the current subscriber count.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
