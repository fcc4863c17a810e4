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

// modeSwitcher watches the UI speed and applies the derived graph mode to
// the graph collaborator, edge-triggered: only a change in the derived mode
// results in a SetGraphMode call, never every speed tick.
//
// Sequence-restricted traversal is cheaper to prefetch and acceptable only
// while following a strict forward/backward path at speed, hence the switch
// above the threshold.
type modeSwitcher struct {
	c         *Controller
	sessionID uint64

	applied *GraphMode
}

func (m *modeSwitcher) run(ctx context.Context, events <-chan StateChange) {
	// Seed from the speed at activation.
	m.apply(m.c.state.Snapshot().UISpeed)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			// The feed conflates: a speed change can survive only inside a
			// later event of another kind. Every event carries the full
			// snapshot, so act on the speed unconditionally; apply dedupes.
			m.apply(ev.State.UISpeed)
		}
	}
}

// apply computes the desired mode for a speed and pushes it to the graph
// when it differs from the last applied mode.
func (m *modeSwitcher) apply(uiSpeed float64) {
	desired := ModeFullSpatial
	if uiSpeed > m.c.cfg.SequenceOnlyThreshold {
		desired = ModeSequenceOnly
	}
	if m.applied != nil && *m.applied == desired {
		return
	}

	if m.c.withSession(m.sessionID, func() { m.c.graph.SetGraphMode(desired) }) {
		m.applied = &desired
		modeSwitches.WithLabelValues(string(desired)).Inc()
		m.c.log.Debug("graph mode applied", "mode", desired, "ui_speed", uiSpeed)
	}
}
