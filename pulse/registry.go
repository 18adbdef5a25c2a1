// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulse

import "fmt"

// DefaultTicksPerPulse is the number of video frames between two pulses in the colony setup.
const DefaultTicksPerPulse = 30

// Frame is a position in the video frame clock.
type Frame int

// Sample is a position in the electrophysiology sample clock.
type Sample int

// Registry is the read-only pulse train of one recording and arena.
type Registry struct {
	pulses        []Sample
	ticksPerPulse int
}

// NewRegistry builds a registry from the ordered sample index of every pulse.
// The slice is copied.
func NewRegistry(pulses []Sample, ticksPerPulse int) (*Registry, error) {
	if ticksPerPulse <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadCadence, ticksPerPulse)
	}
	if len(pulses) == 0 {
		return nil, ErrEmptyTrain
	}
	for i := 1; i < len(pulses); i++ {
		if pulses[i] <= pulses[i-1] {
			return nil, fmt.Errorf("%w: pulse %d at sample %d follows sample %d", ErrNotIncreasing, i+1, pulses[i], pulses[i-1])
		}
	}

	return &Registry{
		pulses:        append([]Sample(nil), pulses...),
		ticksPerPulse: ticksPerPulse,
	}, nil
}

// Lookup returns the sample index of the given 1-indexed pulse number.
func (r *Registry) Lookup(pulseNumber int) (Sample, error) {
	if pulseNumber < 1 || pulseNumber > len(r.pulses) {
		return 0, fmt.Errorf("%w: pulse %d of %d", ErrOutOfRange, pulseNumber, len(r.pulses))
	}
	return r.pulses[pulseNumber-1], nil
}

// Len returns the number of registered pulses.
func (r *Registry) Len() int {
	return len(r.pulses)
}

// TicksPerPulse returns the number of video frames between two pulses.
func (r *Registry) TicksPerPulse() int {
	return r.ticksPerPulse
}

// FrameOf returns the video frame the given pulse number corresponds to.
func (r *Registry) FrameOf(pulseNumber int) Frame {
	return Frame((pulseNumber - 1) * r.ticksPerPulse)
}
