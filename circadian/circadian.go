// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package circadian labels video frames with the light/dark phase they fall in.
package circadian

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadTagger indicates a tagger with a non-positive rate or phase length, or an unknown start phase.
var ErrBadTagger = errors.New("circadian: invalid tagger configuration")

// Phase is a light/dark circadian phase.
type Phase string

const (
	Dark  Phase = "dark"
	Light Phase = "light"
)

// Other returns the opposite phase.
func (p Phase) Other() Phase {
	if p == Dark {
		return Light
	}
	return Dark
}

// Tagger derives the circadian phase of a frame from the elapsed recording
// time, assuming the recording starts at the beginning of the Start phase and
// that phases alternate every HoursPerPhase hours.
type Tagger struct {
	FPS            float64
	SecondsPerHour float64
	HoursPerPhase  float64
	Start          Phase
}

// DefaultTagger returns the colony convention: 30 fps video, 12 hour phases,
// recordings starting at lights off.
func DefaultTagger() Tagger {
	return Tagger{
		FPS:            30,
		SecondsPerHour: 3600,
		HoursPerPhase:  12,
		Start:          Dark,
	}
}

// Validate checks the tagger configuration.
func (t Tagger) Validate() error {
	if t.FPS <= 0 || t.SecondsPerHour <= 0 || t.HoursPerPhase <= 0 {
		return fmt.Errorf("%w: fps=%v seconds_per_hour=%v hours_per_phase=%v", ErrBadTagger, t.FPS, t.SecondsPerHour, t.HoursPerPhase)
	}
	if t.Start != Dark && t.Start != Light {
		return fmt.Errorf("%w: start phase %q", ErrBadTagger, t.Start)
	}
	return nil
}

// Phase returns the phase of the given frame. Events are labelled with the
// frame they end on, so an event crossing a phase boundary belongs to the
// phase it concludes in.
func (t Tagger) Phase(offsetFrame int) Phase {
	hours := float64(offsetFrame) / (t.FPS * t.SecondsPerHour)
	if math.Mod(math.Floor(hours/t.HoursPerPhase), 2) == 0 {
		return t.Start
	}
	return t.Start.Other()
}
