// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package playback implements the autonomous playback and prefetch engine for
// panowalk node graphs.
//
// A node graph is a set of captured panoramic nodes connected by directional
// edges: sequence edges (Next/Prev along a capture path) and spatial edges
// (adjacency in space). Once activated via Controller.Play, the engine
// advances a traversal through the graph at a user-chosen speed, keeps a
// rolling horizon of nodes pre-resolved so playback never stalls, and stops
// itself cleanly when the graph is exhausted or adjacency resolution fails.
//
// The engine is a pure in-process orchestration layer. It decides which node
// keys to request and when to stop; resolving, caching, and rendering belong
// to the graph and trajectory collaborators (see interfaces.go).
package playback

// Direction identifies the edge family a traversal follows from its
// current node.
type Direction string

const (
	// DirectionNext follows the capture path forward.
	DirectionNext Direction = "next"

	// DirectionPrev follows the capture path backward.
	DirectionPrev Direction = "prev"

	// DirectionForward steps to the spatially adjacent node ahead.
	DirectionForward Direction = "forward"

	// DirectionBackward steps to the spatially adjacent node behind.
	DirectionBackward Direction = "backward"

	// DirectionLeft steps to the spatially adjacent node on the left.
	DirectionLeft Direction = "left"

	// DirectionRight steps to the spatially adjacent node on the right.
	DirectionRight Direction = "right"
)

// ParseDirection maps a wire or CLI string to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionNext, DirectionPrev, DirectionForward,
		DirectionBackward, DirectionLeft, DirectionRight:
		return Direction(s), true
	}
	return "", false
}

// IsSequential reports whether d follows sequence edges rather than
// spatial edges. Prefetching along a sequence is only defined for
// sequential directions.
func (d Direction) IsSequential() bool {
	return d == DirectionNext || d == DirectionPrev
}

// EdgeKind selects which adjacency family to resolve for a node.
type EdgeKind string

const (
	// EdgeKindSequence selects Next/Prev edges along the capture path.
	EdgeKindSequence EdgeKind = "sequence"

	// EdgeKindSpatial selects edges derived from spatial adjacency.
	EdgeKindSpatial EdgeKind = "spatial"
)

// KindFor returns the edge family a direction traverses.
func KindFor(d Direction) EdgeKind {
	if d.IsSequential() {
		return EdgeKindSequence
	}
	return EdgeKindSpatial
}

// GraphMode restricts how much of the graph the collaborator exposes to
// traversal and prefetch.
type GraphMode string

const (
	// ModeFullSpatial allows the entire adjacency graph.
	ModeFullSpatial GraphMode = "full_spatial"

	// ModeSequenceOnly restricts traversal to the active sequence. Cheaper
	// to prefetch; acceptable only while following a strict forward or
	// backward path at speed.
	ModeSequenceOnly GraphMode = "sequence_only"
)

// Node is the atomic traversal unit: a captured panorama with a unique key,
// member of exactly one sequence and of the spatial adjacency graph.
type Node struct {
	// Key uniquely identifies the node.
	Key string `json:"key"`

	// SequenceKey identifies the capture path this node belongs to.
	SequenceKey string `json:"sequence_key"`

	// Lat and Lon are the capture position in degrees.
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// CapturedAtMilli is the capture timestamp in Unix milliseconds.
	CapturedAtMilli int64 `json:"captured_at_milli"`
}

// Sequence is the immutable ordered chain of node keys captured along one
// continuous capture path. Sequences are fetched on demand per traversal;
// the engine never caches them itself.
type Sequence struct {
	// Key uniquely identifies the sequence.
	Key string `json:"key"`

	// NodeKeys are the member node keys in capture order.
	NodeKeys []string `json:"node_keys"`
}

// Edge is a directed adjacency between two nodes tagged with the direction
// a traversal would follow to cross it.
type Edge struct {
	// ToKey is the destination node key.
	ToKey string `json:"to_key"`

	// Direction is the direction kind of this edge.
	Direction Direction `json:"direction"`
}

// EdgeStatus is the asynchronously resolved adjacency of a single node.
type EdgeStatus struct {
	// Resolved is true once the graph collaborator has finished computing
	// the node's edges. An unresolved status carries no usable edges.
	Resolved bool `json:"resolved"`

	// Edges are the outgoing edges of the node.
	Edges []Edge `json:"edges"`
}

// MatchingEdge returns the first edge whose direction equals d, or false
// when the node has no edge in that direction.
func (s EdgeStatus) MatchingEdge(d Direction) (Edge, bool) {
	for _, e := range s.Edges {
		if e.Direction == d {
			return e, true
		}
	}
	return Edge{}, false
}

// TrajectoryFrame is a snapshot emitted by the trajectory collaborator
// whenever the traversal changes.
type TrajectoryFrame struct {
	// SequenceKey is the sequence of the tail node.
	SequenceKey string `json:"sequence_key"`

	// TailKey is the last node appended to the trajectory.
	TailKey string `json:"tail_key"`

	// HeadKey is the node currently presented to the viewer.
	HeadKey string `json:"head_key"`

	// CachedAhead counts how many already-resolved nodes lie ahead of the
	// current head.
	CachedAhead int `json:"cached_ahead"`
}
