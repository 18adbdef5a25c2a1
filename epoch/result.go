// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package epoch

import (
	"github.com/LisanneBorst/Acute-social-colonies/behavior"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
)

// State is the processing state of one event.
type State string

const (
	Pending    State = "pending"
	Translated State = "translated"
	Loaded     State = "loaded"
	Accepted   State = "accepted"
	Rejected   State = "rejected"
	Skipped    State = "skipped"
)

// Terminal reports whether no further transition leaves the state.
func (s State) Terminal() bool {
	return s == Accepted || s == Rejected || s == Skipped
}

// Outcome records how one event was handled.
type Outcome struct {
	Event      behavior.Event
	State      State
	Reason     string       // Why the event was skipped or rejected
	EpochStart pulse.Sample // Valid from Translated on
	Missing    int          // Valid from Loaded on
}

// Result holds the accepted epochs of one recording and behavior.
type Result struct {
	RecordingID string
	Behavior    string
	Params      Params
	SFreq       float64
	Channels    []recording.Channel

	// Epochs is indexed [epoch][channel][sample].
	Epochs   [][][]float64
	Metadata []Metadata

	// Outcomes has one entry per event, in event order.
	Outcomes []Outcome
}

// Len returns the number of accepted epochs.
func (r *Result) Len() int {
	return len(r.Epochs)
}

// Count returns the number of events that ended in the given state.
func (r *Result) Count(s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// candidate is an epoch that was read and is awaiting the quality gate.
type candidate struct {
	data     [][]float64
	metadata Metadata
}

// keepMasked returns the tensor and metadata of the candidates kept by mask.
// Both are filtered by the same mask.
func keepMasked(candidates []candidate, keep []bool) ([][][]float64, []Metadata) {
	epochs := [][][]float64{}
	metadata := []Metadata{}
	for i, c := range candidates {
		if keep[i] {
			epochs = append(epochs, c.data)
			metadata = append(metadata, c.metadata)
		}
	}
	return epochs, metadata
}
