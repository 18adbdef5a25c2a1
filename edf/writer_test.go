// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/edf"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "test.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "78244",
		RecordingID:        "colonies_78244_Day1",
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		SignalCount:        1,
		Signals: []edf.Signal{
			{
				Label:             "OFC_R",
				TransducerType:    "EEG electrode",
				PhysicalDimension: "uV",
				PhysicalMin:       -1000,
				PhysicalMax:       1000,
				DigitalMin:        -32768,
				DigitalMax:        32767,
				SamplesPerRecord:  256,
			},
		},
	}

	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)

	// Write some data records
	record := make([]float64, 256)
	for i := range record {
		record[i] = float64(i) // physical value
	}

	// Write the first data record
	err = ew.WriteRecord([][]float64{record})
	require.NoError(t, err)

	for i := range record {
		record[i] = float64(i + 256)
	}

	// Write the second data record
	err = ew.WriteRecord([][]float64{record})
	require.NoError(t, err)

	// Close the writer (this writes the header)
	require.NoError(t, ew.Close())

	// Rewind the file
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	// Read the file
	er, err := edf.Open(f)
	require.NoError(t, err)
	require.Equal(t, 2, er.Header().DataRecords)
	require.InDelta(t, 256.0, er.Header().SampleRate(0), 1e-9)

	sr, err := er.Signal(0)
	require.NoError(t, err)

	samples := make([]float64, 512)
	n, err := sr.Read(samples)
	require.NoError(t, err)
	require.Equal(t, 512, n)

	// Verify the samples match what was written.
	for i := range samples {
		require.InDelta(t, float64(i), samples[i], 0.05)
	}

	// Reader should now return EOF
	_, err = sr.Read(samples)
	require.Equal(t, io.EOF, err)
}

func TestWriterClipsOutOfRangeValues(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "clip.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		SignalCount:        1,
		Signals: []edf.Signal{
			{Label: "EMG", PhysicalMin: -10, PhysicalMax: 10, DigitalMin: -2048, DigitalMax: 2047, SamplesPerRecord: 2},
		},
	})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([][]float64{{-50, 50}}))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	er, err := edf.Open(f)
	require.NoError(t, err)

	samples, err := er.ReadRange(0, 0, 2)
	require.NoError(t, err)
	require.InDelta(t, -10.0, samples[0], 0.01)
	require.InDelta(t, 10.0, samples[1], 0.01)
}

func TestWriterRejectsShortSignal(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "short.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		SignalCount:        1,
		Signals:            []edf.Signal{{Label: "EEG", PhysicalMin: -1, PhysicalMax: 1, DigitalMin: -1, DigitalMax: 1, SamplesPerRecord: 4}},
	})
	require.NoError(t, err)
	require.Error(t, ew.WriteRecord([][]float64{{0, 0}}))
}

func TestWriterFractionalRecordDuration(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "half.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		DataRecordDuration: 500 * time.Millisecond,
		SignalCount:        1,
		Signals:            []edf.Signal{{Label: "EEG", PhysicalMin: -1, PhysicalMax: 1, DigitalMin: -100, DigitalMax: 100, SamplesPerRecord: 3}},
	})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([][]float64{{0, 0.5, 1}}))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	er, err := edf.Open(f)
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, er.Header().DataRecordDuration)
	require.InDelta(t, 6.0, er.Header().SampleRate(0), 1e-9)
}
