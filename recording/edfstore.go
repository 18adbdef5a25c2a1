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
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/LisanneBorst/Acute-social-colonies/edf"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/quality"
)

// FilteredSuffix is appended to a recording id to name its filtered EDF file.
const FilteredSuffix = "_filtered"

// EDFStore serves recordings from a directory of EDF+ files. Recording <id>
// consists of <id>.edf, holding the raw signal and the SYNC annotations, and
// <id>_filtered.edf, holding the filtered signal with the quality band in the
// prefiltering field of its signals.
type EDFStore struct {
	Dir string
}

// NewEDFStore returns a store over the given directory.
func NewEDFStore(dir string) *EDFStore {
	return &EDFStore{Dir: dir}
}

// List returns the ids of the recordings in the directory, sorted. A
// recording is listed when its raw file exists.
func (s *EDFStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", s.Dir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".edf") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if strings.HasSuffix(id, FilteredSuffix) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Open opens both EDF files of a recording.
func (s *EDFStore) Open(recordingID string) (Handle, error) {
	rawPath := filepath.Join(s.Dir, recordingID+".edf")
	filteredPath := filepath.Join(s.Dir, recordingID+FilteredSuffix+".edf")

	raw, err := openEDF(rawPath)
	if err != nil {
		return nil, err
	}
	filtered, err := openEDF(filteredPath)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	h := &edfHandle{raw: raw, filtered: filtered}
	hdr := raw.reader.Header()
	h.identity, err = ParseIdentity(recordingID, hdr.PatientID, hdr.RecordingID, rawPath)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

type edfFile struct {
	f        *os.File
	reader   *edf.Reader
	channels []Channel
	indices  []int // EDF signal index of each channel
	sfreq    float64
}

func openEDF(path string) (*edfFile, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}

	reader, err := edf.Open(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	ef := &edfFile{f: f, reader: reader}
	hdr := reader.Header()
	for i, sig := range hdr.Signals {
		if sig.IsAnnotations() {
			continue
		}
		rate := hdr.SampleRate(i)
		if ef.sfreq == 0 {
			ef.sfreq = rate
		} else if math.Abs(rate-ef.sfreq) > 1e-9 {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s mixes sampling rates %v and %v", ErrConfig, path, ef.sfreq, rate)
		}
		ef.channels = append(ef.channels, NewChannel(sig.Label))
		ef.indices = append(ef.indices, i)
	}
	if len(ef.channels) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s has no signal channels", ErrConfig, path)
	}
	return ef, nil
}

func (ef *edfFile) Close() error {
	return ef.f.Close()
}

type edfHandle struct {
	raw      *edfFile
	filtered *edfFile
	identity Identity
}

func (h *edfHandle) file(stream Stream) (*edfFile, error) {
	switch stream {
	case Raw:
		return h.raw, nil
	case Filtered:
		return h.filtered, nil
	}
	return nil, fmt.Errorf("unknown stream %q", stream)
}

func (h *edfHandle) Identity() Identity {
	return h.identity
}

func (h *edfHandle) ChannelLocations() []Channel {
	return append([]Channel(nil), h.raw.channels...)
}

func (h *edfHandle) SamplingRate(stream Stream) (float64, error) {
	ef, err := h.file(stream)
	if err != nil {
		return 0, err
	}
	return ef.sfreq, nil
}

func (h *edfHandle) Signal(stream Stream, start, end int) (Segment, error) {
	ef, err := h.file(stream)
	if err != nil {
		return Segment{}, err
	}

	seg := Segment{Start: start, Channels: append([]Channel(nil), ef.channels...), Data: make([][]float64, len(ef.channels))}
	for i, idx := range ef.indices {
		seg.Data[i], err = ef.reader.ReadRange(idx, start, end)
		if errors.Is(err, edf.ErrSampleRange) {
			return Segment{}, fmt.Errorf("%w: [%d, %d): %w", ErrRangeOutside, start, end, err)
		} else if err != nil {
			return Segment{}, fmt.Errorf("error reading %s channel %q: %w", stream, ef.channels[i].Location, err)
		}
	}
	return seg, nil
}

func (h *edfHandle) PulseTrain(arena int) ([]pulse.Sample, error) {
	annotations, err := h.raw.reader.Annotations()
	if err != nil {
		return nil, fmt.Errorf("error reading annotations: %w", err)
	}
	trains, err := pulse.DecodeSync(annotations, h.raw.sfreq)
	if err != nil {
		return nil, err
	}
	return trains[arena], nil
}

func (h *edfHandle) QualityBand() (quality.Band, error) {
	hdr := h.filtered.reader.Header()
	return quality.ParseBand(hdr.Signals[h.filtered.indices[0]].Prefiltering)
}

func (h *edfHandle) Close() error {
	return errors.Join(h.raw.Close(), h.filtered.Close())
}
