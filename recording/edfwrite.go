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
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/edf"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
)

// WriteEDF stores an in-memory recording in the layout EDFStore reads: the
// raw signal with its pulse trains encoded as SYNC annotations, and the
// filtered signal carrying the quality band. The sampling rate must be a
// whole number of samples per second; a trailing partial second is padded
// with zeros.
func WriteEDF(dir string, rec *Recording, start time.Time) error {
	perRecord := int(rec.SFreq)
	if perRecord <= 0 || float64(perRecord) != rec.SFreq {
		return fmt.Errorf("%w: sampling rate %v is not a whole number of samples per second", ErrConfig, rec.SFreq)
	}

	id := rec.Identity
	session := fmt.Sprintf("Startdate %s colonies_%s_Day%d Colony/Arena_%d_Position_%d",
		start.Format("02-Jan-2006"), id.AnimalID, id.Day, id.Arena, id.ArenaPosition)

	raw := edf.Header{
		Version:            edf.Version0,
		PatientID:          id.AnimalID,
		RecordingID:        session,
		StartTime:          start,
		Reserved:           edf.ReservedEDFPlusContinuous,
		DataRecordDuration: time.Second,
	}
	raw.Signals = signalHeaders(rec.Channels, rec.Raw, perRecord, "")

	records := recordCount(rec.Raw, perRecord)
	annotations := syncAnnotations(rec.Pulses, rec.SFreq)
	perSecond := make([][]edf.Annotation, records)
	for _, a := range annotations {
		sec := min(int(a.Onset/time.Second), records-1)
		perSecond[sec] = append(perSecond[sec], a)
	}
	longest := 0
	for _, list := range perSecond {
		longest = max(longest, len(list))
	}
	raw.Signals = append(raw.Signals, edf.Signal{
		Label:            edf.AnnotationsLabel,
		PhysicalMin:      -1,
		PhysicalMax:      1,
		DigitalMin:       -32768,
		DigitalMax:       32767,
		SamplesPerRecord: 16 + longest*16, // 32 bytes per annotation covers "+<onset>\x14SYNC_<n>\x14\x00"
	})
	raw.SignalCount = len(raw.Signals)

	if err := writeEDF(filepath.Join(dir, id.RecordingID+".edf"), raw, rec.Raw, perRecord, records, perSecond); err != nil {
		return err
	}

	channels := rec.Channels
	if rec.FilteredChannels != nil {
		channels = rec.FilteredChannels
	}
	filtered := edf.Header{
		Version:            edf.Version0,
		PatientID:          id.AnimalID,
		RecordingID:        session,
		StartTime:          start,
		Reserved:           edf.ReservedEDFPlusContinuous,
		DataRecordDuration: time.Second,
		Signals:            signalHeaders(channels, rec.Filtered, perRecord, "Bandpass, "+rec.Band.String()),
	}
	filtered.SignalCount = len(filtered.Signals)

	return writeEDF(filepath.Join(dir, id.RecordingID+FilteredSuffix+".edf"), filtered, rec.Filtered, perRecord, recordCount(rec.Filtered, perRecord), nil)
}

func recordCount(data [][]float64, perRecord int) int {
	if len(data) == 0 {
		return 0
	}
	return (len(data[0]) + perRecord - 1) / perRecord
}

// signalHeaders describes each channel with a symmetric physical range that
// covers its largest absolute value.
func signalHeaders(channels []Channel, data [][]float64, perRecord int, prefiltering string) []edf.Signal {
	signals := make([]edf.Signal, len(channels))
	for i, ch := range channels {
		bound := 1.0
		if i < len(data) {
			for _, v := range data[i] {
				if !math.IsNaN(v) {
					bound = math.Max(bound, math.Abs(v))
				}
			}
		}
		bound = math.Ceil(bound)
		signals[i] = edf.Signal{
			Label:             ch.Location,
			TransducerType:    string(ch.Type) + " electrode",
			PhysicalDimension: "uV",
			PhysicalMin:       -bound,
			PhysicalMax:       bound,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			Prefiltering:      prefiltering,
			SamplesPerRecord:  perRecord,
		}
	}
	return signals
}

func writeEDF(path string, hdr edf.Header, data [][]float64, perRecord, records int, annotations [][]edf.Annotation) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer f.Close()

	ew, err := edf.Create(f, hdr)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}

	signals := make([][]float64, len(hdr.Signals))
	for rec := 0; rec < records; rec++ {
		for i := range data {
			block := make([]float64, perRecord)
			lo := rec * perRecord
			if lo < len(data[i]) {
				copy(block, data[i][lo:min(lo+perRecord, len(data[i]))])
			}
			signals[i] = block
		}
		var recAnnotations []edf.Annotation
		if annotations != nil {
			recAnnotations = annotations[rec]
		}
		if err := ew.WriteRecord(signals, recAnnotations...); err != nil {
			return fmt.Errorf("error writing record %d of %s: %w", rec, path, err)
		}
	}

	if err := ew.Close(); err != nil {
		return fmt.Errorf("error finalizing %s: %w", path, err)
	}
	return f.Close()
}

// syncAnnotations encodes pulse trains as SYNC_<n> input states: the bit of
// an arena is raised on each of its pulses and lowered one sample later.
func syncAnnotations(trains map[int][]pulse.Sample, sfreq float64) []edf.Annotation {
	type edge struct {
		sample pulse.Sample
		bit    uint64
		rise   bool
	}

	var edges []edge
	for arena, train := range trains {
		if arena < 1 || arena > pulse.SyncInputs {
			continue
		}
		for _, s := range train {
			edges = append(edges, edge{sample: s, bit: 1 << (arena - 1), rise: true}, edge{sample: s + 1, bit: 1 << (arena - 1)})
		}
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].sample < edges[j].sample })

	annotations := []edf.Annotation{{Onset: 0, Description: "SYNC_0"}}
	var state uint64
	for i := 0; i < len(edges); {
		// Apply every edge of one sample before emitting the resulting state.
		j := i
		for ; j < len(edges) && edges[j].sample == edges[i].sample; j++ {
			if edges[j].rise {
				state |= edges[j].bit
			} else {
				state &^= edges[j].bit
			}
		}
		onset := time.Duration(math.Ceil(float64(edges[i].sample) * float64(time.Second) / sfreq))
		annotations = append(annotations, edf.Annotation{Onset: onset, Description: "SYNC_" + strconv.FormatUint(state, 10)})
		i = j
	}
	return annotations
}
