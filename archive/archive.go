// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package archive stores extraction results as EDF epoch files with a JSON
// metadata sidecar.
//
// The epochs of one recording and behavior are written to
// <recording id>_<behavior>_epochs.edf, every epoch occupying one or more
// consecutive data records, and their metadata to the .json file of the same
// name. Both files are written to temporary names and renamed into place,
// the sidecar last, so a sidecar only ever describes a complete EDF file.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/edf"
	"github.com/LisanneBorst/Acute-social-colonies/epoch"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
)

var (
	// ErrEmpty indicates a result without accepted epochs.
	ErrEmpty = errors.New("archive: no epochs to store")
	// ErrNotFound indicates a missing archive.
	ErrNotFound = errors.New("archive: not found")
	// ErrCorrupt indicates an EDF file that disagrees with its sidecar.
	ErrCorrupt = errors.New("archive: epoch file does not match its metadata")
)

// maxRecordBytes is the data record size the EDF standard recommends not to exceed.
const maxRecordBytes = 61440

// Sidecar is the JSON document stored next to an epoch file.
type Sidecar struct {
	RecordingID     string              `json:"recording_id"`
	Behavior        string              `json:"behavior"`
	Created         time.Time           `json:"created"`
	SFreq           float64             `json:"sfreq"`
	EpochLength     float64             `json:"epoch_length_s"`
	RelativeStart   float64             `json:"relative_start_s"`
	PlossThreshold  float64             `json:"ploss_threshold_ms"`
	EpochSamples    int                 `json:"epoch_samples"`
	RecordsPerEpoch int                 `json:"records_per_epoch"`
	Channels        []recording.Channel `json:"channels"`
	Metadata        []epoch.Metadata    `json:"metadata"`
	SkippedEvents   int                 `json:"skipped_events"`
	RejectedEpochs  int                 `json:"rejected_epochs"`
}

// Name returns the base name, without extension, of the archive of a recording and behavior.
func Name(recordingID, behavior string) string {
	return recordingID + "_" + behavior + "_epochs"
}

// Paths returns the EDF and sidecar paths of an archive in dir.
func Paths(dir, recordingID, behavior string) (edfPath, sidecarPath string) {
	base := filepath.Join(dir, Name(recordingID, behavior))
	return base + ".edf", base + ".json"
}

// Exists reports whether a complete archive is present.
func Exists(dir, recordingID, behavior string) bool {
	_, sidecarPath := Paths(dir, recordingID, behavior)
	_, err := os.Stat(sidecarPath)
	return err == nil
}

// Write stores the accepted epochs of res in dir.
func Write(dir string, res *epoch.Result, created time.Time) error {
	if res.Len() == 0 {
		return fmt.Errorf("%w: %s %s", ErrEmpty, res.RecordingID, res.Behavior)
	}
	samples := len(res.Epochs[0][0])
	perRecord, records := recordLayout(samples, len(res.Channels))
	if perRecord == 0 {
		return fmt.Errorf("epoch of %d samples on %d channels does not fit an EDF data record", samples, len(res.Channels))
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          patientID(res),
		RecordingID:        "Startdate " + created.Format("02-Jan-2006") + " " + res.Behavior,
		StartTime:          created,
		DataRecordDuration: time.Duration(float64(time.Second) * float64(perRecord) / res.SFreq),
		SignalCount:        len(res.Channels),
	}
	for c, ch := range res.Channels {
		lo, hi := physicalRange(res.Epochs, c)
		hdr.Signals = append(hdr.Signals, edf.Signal{
			Label:             ch.Location,
			TransducerType:    string(ch.Type) + " electrode",
			PhysicalDimension: "uV",
			PhysicalMin:       lo,
			PhysicalMax:       hi,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  perRecord,
		})
	}

	edfPath, sidecarPath := Paths(dir, res.RecordingID, res.Behavior)
	err := writeAtomic(edfPath, func(f *os.File) error {
		ew, err := edf.Create(f, hdr)
		if err != nil {
			return err
		}
		signals := make([][]float64, len(res.Channels))
		for i, ep := range res.Epochs {
			for r := 0; r < records; r++ {
				for c := range signals {
					signals[c] = ep[c][r*perRecord : (r+1)*perRecord]
				}
				if err := ew.WriteRecord(signals); err != nil {
					return fmt.Errorf("error writing epoch %d: %w", i, err)
				}
			}
		}
		return ew.Close()
	})
	if err != nil {
		return err
	}

	sidecar := Sidecar{
		RecordingID:     res.RecordingID,
		Behavior:        res.Behavior,
		Created:         created,
		SFreq:           res.SFreq,
		EpochLength:     res.Params.EpochLength.Seconds(),
		RelativeStart:   res.Params.RelativeStart.Seconds(),
		PlossThreshold:  float64(res.Params.PlossThreshold) / float64(time.Millisecond),
		EpochSamples:    samples,
		RecordsPerEpoch: records,
		Channels:        res.Channels,
		Metadata:        res.Metadata,
		SkippedEvents:   res.Count(epoch.Skipped),
		RejectedEpochs:  res.Count(epoch.Rejected),
	}
	return writeAtomic(sidecarPath, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(sidecar)
	})
}

// Load reads an archive back into a result. Outcomes are not archived and
// are left empty.
func Load(dir, recordingID, behavior string) (*epoch.Result, error) {
	edfPath, sidecarPath := Paths(dir, recordingID, behavior)

	b, err := os.ReadFile(sidecarPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sidecarPath)
	} else if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", sidecarPath, err)
	}
	var sidecar Sidecar
	if err := json.Unmarshal(b, &sidecar); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", sidecarPath, err)
	}

	f, err := os.Open(edfPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, edfPath)
	} else if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", edfPath, err)
	}
	defer f.Close()

	er, err := edf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", edfPath, err)
	}
	hdr := er.Header()
	n := len(sidecar.Metadata)
	if hdr.SignalCount != len(sidecar.Channels) || hdr.Samples(0) != n*sidecar.EpochSamples {
		return nil, fmt.Errorf("%w: %s holds %d signals of %d samples, want %d of %d",
			ErrCorrupt, edfPath, hdr.SignalCount, hdr.Samples(0), len(sidecar.Channels), n*sidecar.EpochSamples)
	}

	res := &epoch.Result{
		RecordingID: sidecar.RecordingID,
		Behavior:    sidecar.Behavior,
		Params: epoch.Params{
			EpochLength:    time.Duration(sidecar.EpochLength * float64(time.Second)),
			RelativeStart:  time.Duration(sidecar.RelativeStart * float64(time.Second)),
			PlossThreshold: time.Duration(sidecar.PlossThreshold * float64(time.Millisecond)),
		},
		SFreq:    sidecar.SFreq,
		Channels: sidecar.Channels,
		Epochs:   make([][][]float64, n),
		Metadata: sidecar.Metadata,
	}
	for i := range res.Epochs {
		res.Epochs[i] = make([][]float64, len(sidecar.Channels))
	}
	for c := range sidecar.Channels {
		data, err := er.ReadRange(c, 0, n*sidecar.EpochSamples)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", edfPath, err)
		}
		for i := range res.Epochs {
			res.Epochs[i][c] = data[i*sidecar.EpochSamples : (i+1)*sidecar.EpochSamples]
		}
	}
	return res, nil
}

// recordLayout splits an epoch into the fewest equal data records that fit
// the recommended record size. It returns zero samples per record when no
// split fits.
func recordLayout(samples, channels int) (perRecord, records int) {
	for records = 1; records <= samples; records++ {
		if samples%records != 0 {
			continue
		}
		perRecord = samples / records
		if perRecord*channels*2 <= maxRecordBytes {
			return perRecord, records
		}
	}
	return 0, 0
}

// physicalRange returns the value range of channel c over all epochs. A flat
// channel gets a unit range.
func physicalRange(epochs [][][]float64, c int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, ep := range epochs {
		for _, v := range ep[c] {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if lo > hi {
		return -1, 1
	}
	lo, hi = math.Floor(lo), math.Ceil(hi)
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	return lo, hi
}

// patientID fits the animal ids of the epochs into the EDF patient field.
func patientID(res *epoch.Result) string {
	id := res.Metadata[0].AnimalID
	if len(id) > 80 {
		id = id[:80]
	}
	return id
}

// writeAtomic writes path through a temporary file in the same directory
// that is renamed into place once fill succeeded.
func writeAtomic(path string, fill func(f *os.File) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("error syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error renaming %s: %w", path, err)
	}
	return nil
}
