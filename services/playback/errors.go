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

import "errors"

// Sentinel errors used across the engine. None of them escape the public
// controller API; failures degrade to a Playing() == false transition plus
// a logged diagnostic.
var (
	// ErrEdgeWaitTimeout indicates an edge status did not resolve within
	// the configured wait.
	ErrEdgeWaitTimeout = errors.New("edge status wait timed out")

	// ErrEdgeUnresolved indicates the graph collaborator returned an edge
	// status that never reached the resolved state.
	ErrEdgeUnresolved = errors.New("edge status not resolved")

	// ErrNodeNotFound indicates a node key unknown to the graph
	// collaborator.
	ErrNodeNotFound = errors.New("node not found")

	// ErrSequenceNotFound indicates a sequence key unknown to the graph
	// collaborator.
	ErrSequenceNotFound = errors.New("sequence not found")
)
