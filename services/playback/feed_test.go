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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedLatestWins(t *testing.T) {
	feed := NewFeed[int]()
	ch, cancel := feed.Subscribe()
	defer cancel()

	// Publish several values without the subscriber consuming: only the
	// newest survives.
	feed.Publish(1)
	feed.Publish(2)
	feed.Publish(3)

	got := <-ch
	assert.Equal(t, 3, got)

	select {
	case v := <-ch:
		t.Fatalf("expected no buffered value, got %d", v)
	default:
	}
}

func TestFeedPublishNeverBlocks(t *testing.T) {
	feed := NewFeed[string]()
	_, cancel := feed.Subscribe()
	defer cancel()

	// A lagging subscriber must not stall the publisher.
	for i := 0; i < 100; i++ {
		feed.Publish("value")
	}
}

func TestFeedCancelClosesChannel(t *testing.T) {
	feed := NewFeed[int]()
	ch, cancel := feed.Subscribe()
	require.Equal(t, 1, feed.Len())

	cancel()
	assert.Equal(t, 0, feed.Len())

	_, open := <-ch
	assert.False(t, open, "canceled subscription channel must be closed")

	// Cancel is idempotent.
	cancel()
}

func TestFeedMultipleSubscribers(t *testing.T) {
	feed := NewFeed[int]()
	ch1, cancel1 := feed.Subscribe()
	ch2, cancel2 := feed.Subscribe()
	defer cancel1()
	defer cancel2()

	feed.Publish(7)
	assert.Equal(t, 7, <-ch1)
	assert.Equal(t, 7, <-ch2)
}
