// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package behavior provides the scored behavioral events of a recording.
package behavior

import (
	"errors"

	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
)

var (
	// ErrNoTrace indicates a recording without an event trace.
	ErrNoTrace = errors.New("behavior: no event trace")
	// ErrBadTrace indicates an event trace that cannot be parsed.
	ErrBadTrace = errors.New("behavior: malformed event trace")
)

// Event is one scored occurrence of a behavior, in video frames.
type Event struct {
	Label  string
	Onset  pulse.Frame
	Offset pulse.Frame
	Trial  int
	Day    int    // Recording day as scored, 0 when the trace has none
	Raw    string // Description as scored, before classification
}

// Frames returns the event duration in frames.
func (e Event) Frames() int {
	return int(e.Offset - e.Onset)
}

// Source provides the events of one behavior in a recording, in scoring order.
type Source interface {
	Events(id recording.Identity, label string) ([]Event, error)
}

// SliceSource serves a fixed list of events per recording id.
type SliceSource map[string][]Event

// Events returns the events of rec with the given label, in list order.
func (s SliceSource) Events(id recording.Identity, label string) ([]Event, error) {
	var events []Event
	for _, e := range s[id.RecordingID] {
		if e.Label == label {
			events = append(events, e)
		}
	}
	return events, nil
}
