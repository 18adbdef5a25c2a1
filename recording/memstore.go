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
	"sort"
	"sync"

	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/quality"
)

// Recording is an in-memory recording. Raw and Filtered hold one sample
// slice per channel, ordered as Channels.
type Recording struct {
	Identity Identity
	Channels []Channel
	SFreq    float64
	Raw      [][]float64
	Filtered [][]float64
	// FilteredChannels overrides the channel list of the filtered stream when set.
	FilteredChannels []Channel
	Pulses           map[int][]pulse.Sample
	Band             quality.Band
}

// MemStore keeps recordings in memory. It is safe for concurrent use.
type MemStore struct {
	mu         sync.RWMutex
	recordings map[string]*Recording
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{recordings: make(map[string]*Recording)}
}

// Put adds or replaces a recording. The recording must not be modified afterwards.
func (s *MemStore) Put(rec *Recording) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings[rec.Identity.RecordingID] = rec
}

// Open returns a handle on a stored recording.
func (s *MemStore) Open(recordingID string) (Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recordings[recordingID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, recordingID)
	}
	return memHandle{rec: rec}, nil
}

// List returns the ids of the stored recordings, sorted.
func (s *MemStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.recordings))
	for id := range s.recordings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type memHandle struct {
	rec *Recording
}

func (h memHandle) Identity() Identity {
	return h.rec.Identity
}

func (h memHandle) ChannelLocations() []Channel {
	return append([]Channel(nil), h.rec.Channels...)
}

func (h memHandle) SamplingRate(Stream) (float64, error) {
	return h.rec.SFreq, nil
}

func (h memHandle) Signal(stream Stream, start, end int) (Segment, error) {
	data, channels := h.rec.Raw, h.rec.Channels
	switch stream {
	case Raw:
	case Filtered:
		data = h.rec.Filtered
		if h.rec.FilteredChannels != nil {
			channels = h.rec.FilteredChannels
		}
	default:
		return Segment{}, fmt.Errorf("unknown stream %q", stream)
	}

	seg := Segment{Start: start, Channels: append([]Channel(nil), channels...), Data: make([][]float64, len(data))}
	for i, samples := range data {
		if start < 0 || end < start || end > len(samples) {
			return Segment{}, fmt.Errorf("%w: [%d, %d) of %d samples", ErrRangeOutside, start, end, len(samples))
		}
		seg.Data[i] = append([]float64(nil), samples[start:end]...)
	}
	return seg, nil
}

func (h memHandle) PulseTrain(arena int) ([]pulse.Sample, error) {
	return append([]pulse.Sample(nil), h.rec.Pulses[arena]...), nil
}

func (h memHandle) QualityBand() (quality.Band, error) {
	return h.rec.Band, nil
}

func (h memHandle) Close() error {
	return nil
}
