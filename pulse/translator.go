// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulse

import (
	"fmt"
	"math"
)

// DefaultFPS is the video frame rate of the colony recordings.
const DefaultFPS = 30.0

// Translator converts video frames into electrophysiology samples.
type Translator struct {
	registry *Registry
	fps      float64
	sfreq    float64
}

// NewTranslator returns a translator over the given registry for a video
// running at fps frames per second and a signal sampled at sfreq Hz.
func NewTranslator(registry *Registry, fps, sfreq float64) (*Translator, error) {
	if fps <= 0 || sfreq <= 0 || math.IsNaN(fps) || math.IsNaN(sfreq) {
		return nil, fmt.Errorf("%w: fps=%v sfreq=%v", ErrBadRate, fps, sfreq)
	}
	return &Translator{registry: registry, fps: fps, sfreq: sfreq}, nil
}

// SFreq returns the sampling rate of the target clock.
func (t *Translator) SFreq() float64 {
	return t.sfreq
}

// Translate returns the best-estimate sample index of the given frame.
//
// A frame that is a multiple of the pulse cadence maps to pulse frame/ticks
// without interpolation. Any other frame is bracketed by the previous and the
// next pulse; both are extrapolated towards the frame and the truncated
// midpoint of the two estimates is returned. An error wrapping ErrOutOfRange
// is returned when a required pulse is not registered.
func (t *Translator) Translate(frame Frame) (Sample, error) {
	ticks := t.registry.ticksPerPulse
	f := int(frame)
	if f < 0 {
		return 0, fmt.Errorf("%w: negative frame %d", ErrOutOfRange, f)
	}

	if f%ticks == 0 {
		return t.registry.Lookup(f / ticks)
	}

	lastPulse := (f-1)/ticks + 1
	lastFrame := (lastPulse - 1) * ticks
	nextPulse := (f+ticks-1)/ticks + 1
	nextFrame := (nextPulse - 1) * ticks

	lastSample, err := t.registry.Lookup(lastPulse)
	if err != nil {
		return 0, fmt.Errorf("frame %d: %w", f, err)
	}
	nextSample, err := t.registry.Lookup(nextPulse)
	if err != nil {
		return 0, fmt.Errorf("frame %d: %w", f, err)
	}

	// Elapsed seconds from the previous pulse and to the next pulse.
	delta1 := float64(f-lastFrame) / t.fps
	delta2 := float64(nextFrame-f) / t.fps

	x1 := int(math.Round(delta1*t.sfreq)) + int(lastSample)
	x2 := int(nextSample) - int(math.Round(delta2*t.sfreq))

	return Sample((x1 + x2) / 2), nil
}

// Duration returns the number of samples spanned by the given number of frames.
func (t *Translator) Duration(frames int) int {
	return int(t.sfreq * float64(frames) / t.fps)
}
