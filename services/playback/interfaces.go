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

import "context"

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// GraphService is the graph/cache collaborator consumed by the engine.
//
// # Description
//
// Resolution methods are the engine's only asynchronous boundaries to the
// graph subsystem. Implementations own caching, storage retries, and the
// actual fetching of node data; the engine only decides which keys to
// request and when.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: the prefetch pool issues
// up to PrefetchConcurrency ResolveNode calls at once.
type GraphService interface {
	// ResolveSequence resolves the ordered key list of a capture path.
	//
	// scopeKey restricts resolution to the portion of the sequence
	// reachable from that node; an empty scopeKey resolves graph-wide.
	// The engine scopes to the trajectory tail under sequence-only mode.
	ResolveSequence(ctx context.Context, sequenceKey, scopeKey string) (Sequence, error)

	// ResolveNode fetches and caches a node by key.
	ResolveNode(ctx context.Context, key string) (Node, error)

	// ResolveEdges blocks until the node's adjacency of the given kind is
	// resolved, the context expires, or resolution fails.
	ResolveEdges(ctx context.Context, key string, kind EdgeKind) (EdgeStatus, error)

	// SetGraphMode applies a traversal mode to the graph.
	SetGraphMode(mode GraphMode)

	// GraphMode returns the currently applied traversal mode.
	GraphMode() GraphMode
}

// TrajectoryService is the trajectory/state collaborator holding the
// canonical sequence of visited nodes.
//
// # Description
//
// The trajectory is a log of nodes [history..., head, ...pending]: nodes
// before the head have been presented, the head is current, and nodes after
// it are the pre-resolved continuation the engine keeps filled. Frames are
// broadcast on every change through a conflating feed.
type TrajectoryService interface {
	// CurrentNode returns the node at the trajectory head.
	CurrentNode() Node

	// CurrentFrame returns the latest trajectory snapshot.
	CurrentFrame() TrajectoryFrame

	// SubscribeFrames registers a latest-wins frame subscription. The
	// cancel function detaches it.
	SubscribeFrames() (<-chan TrajectoryFrame, func())

	// SetAdvanceRate sets the head advancement rate. PassthroughRate is
	// the manual-navigation equivalent.
	SetAdvanceRate(rate float64)

	// CutPendingExtension discards the unresolved continuation after the
	// head.
	CutPendingExtension()

	// TrimHistoryBeforeHead drops all trajectory history preceding the
	// current head.
	TrimHistoryBeforeHead()

	// AppendNode appends exactly one node to the trajectory tail.
	AppendNode(node Node) error
}
