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

import "math"

// =============================================================================
// Speed Model
// =============================================================================

// The speed model maps the UI slider position (0..1) to the internal
// trajectory advance rate and the prefetch lookahead depth. Both functions
// are pure; all engine components derive their pacing from them.

// PassthroughRate is the advance rate equivalent to manual navigation.
// The controller resets the trajectory to this rate on Stop.
const PassthroughRate = 1.0

// AdvanceRate maps a UI speed in [0, 1] to the internal advance rate.
//
// With x = 2·uiSpeed − 1 the rate is 10^x − 0.2x, a monotonically
// increasing curve with AdvanceRate(0.5) == 1 exactly. Inputs outside
// [0, 1] are clamped.
func AdvanceRate(uiSpeed float64) float64 {
	x := 2*ClampSpeed(uiSpeed) - 1
	return math.Pow(10, x) - 0.2*x
}

// LookaheadDepth maps an advance rate to the target number of pre-resolved
// nodes ahead of the trajectory head. The result is always an integer in
// [10, 50] and non-decreasing in the rate.
func LookaheadDepth(advanceRate float64) int {
	depth := 8 + 6*advanceRate
	if depth < minLookahead {
		depth = minLookahead
	}
	if depth > maxLookahead {
		depth = maxLookahead
	}
	return int(math.Round(depth))
}

// ClampSpeed clamps a UI speed into [0, 1]. Out-of-range input is not an
// error anywhere in the engine; it is silently clamped.
func ClampSpeed(uiSpeed float64) float64 {
	switch {
	case uiSpeed < 0:
		return 0
	case uiSpeed > 1:
		return 1
	default:
		return uiSpeed
	}
}

const (
	minLookahead = 10
	maxLookahead = 50
)
