// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package recording gives read-only access to the electrophysiology side of
// a colony recording: its multi-channel signal streams, TTL pulse trains,
// identity and quality parameters.
package recording

import (
	"errors"
	"strings"

	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/quality"
)

var (
	// ErrNotFound indicates a recording id unknown to the store.
	ErrNotFound = errors.New("recording: not found")
	// ErrRangeOutside indicates a sample range that is not fully inside the recording.
	ErrRangeOutside = errors.New("recording: sample range outside recording")
	// ErrChannelMismatch indicates signal and quality reads disagreeing on the channel set.
	ErrChannelMismatch = errors.New("recording: signal and quality channels differ")
	// ErrConfig indicates recording-level configuration that prevents any extraction.
	ErrConfig = errors.New("recording: invalid recording configuration")
)

// Stream names a signal stream of a recording.
type Stream string

const (
	// Raw is the signal as digitized, used for quality assessment.
	Raw Stream = "raw"
	// Filtered is the band-passed signal epochs are cut from.
	Filtered Stream = "filtered"
)

// ChannelType distinguishes EEG from EMG electrodes.
type ChannelType string

const (
	EEG ChannelType = "eeg"
	EMG ChannelType = "emg"
)

// Channel is one electrode of a recording, named by its brain location.
type Channel struct {
	Location string      `json:"location"`
	Type     ChannelType `json:"type"`
}

// NewChannel types a channel from its location; EMG electrodes carry "EMG" in their location.
func NewChannel(location string) Channel {
	if strings.Contains(location, "EMG") {
		return Channel{Location: location, Type: EMG}
	}
	return Channel{Location: location, Type: EEG}
}

// Segment is a multi-channel sample range. Data[i] belongs to Channels[i].
type Segment struct {
	Start    int
	Channels []Channel
	Data     [][]float64
}

// Len returns the number of samples per channel.
func (s Segment) Len() int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data[0])
}

// Identity describes who and where a recording was made.
type Identity struct {
	RecordingID   string
	AnimalID      string
	Arena         int
	ArenaPosition int
	Day           int
}

// Handle is an open recording. Implementations need not be safe for concurrent use.
type Handle interface {
	Identity() Identity
	ChannelLocations() []Channel
	SamplingRate(stream Stream) (float64, error)
	// Signal returns the samples [start, end) of every channel of the stream,
	// ordered as ChannelLocations.
	Signal(stream Stream, start, end int) (Segment, error)
	// PulseTrain returns the TTL pulse sample indices of the given arena input.
	PulseTrain(arena int) ([]pulse.Sample, error)
	// QualityBand returns the quality parameters the filtered stream was produced with.
	QualityBand() (quality.Band, error)
	Close() error
}

// Store opens recordings by id.
type Store interface {
	Open(recordingID string) (Handle, error)
}

// Lister enumerates the recordings of a store.
type Lister interface {
	List() ([]string, error)
}
