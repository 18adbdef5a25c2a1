// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package recording

import (
	"fmt"

	"github.com/LisanneBorst/Acute-social-colonies/quality"
)

// Accessor reads filtered signal and quality masks of an open recording
// over the same sample ranges.
type Accessor struct {
	handle Handle
	band   quality.Band
}

// NewAccessor prepares an accessor. A missing or malformed quality band is a
// configuration error for the whole recording.
func NewAccessor(h Handle) (*Accessor, error) {
	band, err := h.QualityBand()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := band.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return &Accessor{handle: h, band: band}, nil
}

// Band returns the quality band in use.
func (a *Accessor) Band() quality.Band {
	return a.band
}

// ReadSignal returns the filtered signal of every channel over [start, end).
func (a *Accessor) ReadSignal(start, end int) (Segment, error) {
	if start < 0 || end < start {
		return Segment{}, fmt.Errorf("%w: [%d, %d)", ErrRangeOutside, start, end)
	}
	return a.handle.Signal(Filtered, start, end)
}

// ReadQuality returns the raw signal of every channel over [start, end) with
// lost and artefactual samples replaced by NaN.
func (a *Accessor) ReadQuality(start, end int) (Segment, error) {
	if start < 0 || end < start {
		return Segment{}, fmt.Errorf("%w: [%d, %d)", ErrRangeOutside, start, end)
	}
	raw, err := a.handle.Signal(Raw, start, end)
	if err != nil {
		return Segment{}, err
	}

	masked := Segment{Start: raw.Start, Channels: raw.Channels, Data: make([][]float64, len(raw.Data))}
	for i, samples := range raw.Data {
		masked.Data[i] = a.band.Mask(samples)
	}
	return masked, nil
}

// MissingCounts returns the number of missing samples per channel over [start, end).
func (a *Accessor) MissingCounts(start, end int) ([]int, error) {
	masked, err := a.ReadQuality(start, end)
	if err != nil {
		return nil, err
	}
	missing := make([]int, len(masked.Data))
	for i, samples := range masked.Data {
		missing[i] = quality.Missing(samples)
	}
	return missing, nil
}

// Window is the filtered signal of a sample range together with the number
// of missing samples per channel.
type Window struct {
	Signal  Segment
	Missing []int // Missing[i] belongs to Signal.Channels[i]
}

// WorstMissing returns the largest per-channel missing-sample count.
func (w Window) WorstMissing() int {
	worst := 0
	for _, n := range w.Missing {
		worst = max(worst, n)
	}
	return worst
}

// ReadWindow reads the signal and quality of [start, end). Both reads must
// describe the same channels in the same order and with the same length,
// otherwise an error wrapping ErrChannelMismatch is returned.
func (a *Accessor) ReadWindow(start, end int) (Window, error) {
	signal, err := a.ReadSignal(start, end)
	if err != nil {
		return Window{}, err
	}
	masked, err := a.ReadQuality(start, end)
	if err != nil {
		return Window{}, err
	}

	if len(signal.Channels) != len(masked.Channels) || len(signal.Data) != len(masked.Data) {
		return Window{}, fmt.Errorf("%w: %d signal channels, %d quality channels", ErrChannelMismatch, len(signal.Channels), len(masked.Channels))
	}
	missing := make([]int, len(signal.Channels))
	for i := range signal.Channels {
		if signal.Channels[i].Location != masked.Channels[i].Location {
			return Window{}, fmt.Errorf("%w: channel %d is %q in signal, %q in quality", ErrChannelMismatch, i, signal.Channels[i].Location, masked.Channels[i].Location)
		}
		if len(signal.Data[i]) != end-start || len(masked.Data[i]) != end-start {
			return Window{}, fmt.Errorf("%w: channel %q has %d signal and %d quality samples, want %d", ErrChannelMismatch, signal.Channels[i].Location, len(signal.Data[i]), len(masked.Data[i]), end-start)
		}
		missing[i] = quality.Missing(masked.Data[i])
	}

	return Window{Signal: signal, Missing: missing}, nil
}
