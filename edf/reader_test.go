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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRamp writes an EDF+ file with a ramp signal (sample i has value i) and
// an annotation signal holding one SYNC annotation per record.
func writeRamp(t *testing.T, records, samplesPerRecord int) *os.File {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "ramp.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		PatientID:          "78244",
		RecordingID:        "Startdate X colonies_78244_Day2 Colony/Arena_1_Position_3",
		StartTime:          time.Date(2023, 5, 1, 9, 30, 0, 0, time.UTC),
		Reserved:           edf.ReservedEDFPlusContinuous,
		DataRecordDuration: time.Second,
		SignalCount:        2,
		Signals: []edf.Signal{
			{
				Label:             "OFC_R",
				TransducerType:    "EEG electrode",
				PhysicalDimension: "uV",
				PhysicalMin:       -32768,
				PhysicalMax:       32767,
				DigitalMin:        -32768,
				DigitalMax:        32767,
				SamplesPerRecord:  samplesPerRecord,
			},
			{
				Label:            edf.AnnotationsLabel,
				DigitalMin:       -32768,
				DigitalMax:       32767,
				PhysicalMin:      -1,
				PhysicalMax:      1,
				SamplesPerRecord: 30,
			},
		},
	})
	require.NoError(t, err)

	for rec := 0; rec < records; rec++ {
		ramp := make([]float64, samplesPerRecord)
		for i := range ramp {
			ramp[i] = float64(rec*samplesPerRecord + i)
		}
		onset := time.Duration(rec)*time.Second + 250*time.Millisecond
		require.NoError(t, ew.WriteRecord([][]float64{ramp, nil}, edf.Annotation{
			Onset:       onset,
			Description: "SYNC_1",
		}))
	}
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	return f
}

func TestReaderHeader(t *testing.T) {
	f := writeRamp(t, 3, 100)

	er, err := edf.Open(f)
	require.NoError(t, err)

	hdr := er.Header()
	assert.Equal(t, "78244", hdr.PatientID)
	assert.Equal(t, "Startdate X colonies_78244_Day2 Colony/Arena_1_Position_3", hdr.RecordingID)
	assert.Equal(t, edf.ReservedEDFPlusContinuous, hdr.Reserved)
	assert.Equal(t, 3, hdr.DataRecords)
	assert.Equal(t, 2, hdr.SignalCount)
	assert.Equal(t, 1, hdr.SignalIndex(edf.AnnotationsLabel))
	assert.Equal(t, -1, hdr.SignalIndex("missing"))
	assert.Equal(t, 300, hdr.Samples(0))
	assert.Equal(t, 300, er.Header().Samples(0))
	assert.InDelta(t, 100.0, er.Header().SampleRate(0), 1e-9)
	assert.Equal(t, time.Date(2023, 5, 1, 9, 30, 0, 0, time.UTC), hdr.StartTime)
}

func TestReaderReadRange(t *testing.T) {
	f := writeRamp(t, 3, 100)

	er, err := edf.Open(f)
	require.NoError(t, err)

	// Spans the boundary between the first and second record.
	samples, err := er.ReadRange(0, 95, 105)
	require.NoError(t, err)
	require.Len(t, samples, 10)
	for i, v := range samples {
		assert.InDelta(t, float64(95+i), v, 0.5)
	}

	_, err = er.ReadRange(0, 250, 301)
	require.ErrorIs(t, err, edf.ErrSampleRange)

	_, err = er.ReadRange(0, 10, 5)
	require.ErrorIs(t, err, edf.ErrSampleRange)
}

func TestSignalReaderSeek(t *testing.T) {
	f := writeRamp(t, 2, 50)

	er, err := edf.Open(f)
	require.NoError(t, err)

	sr, err := er.Signal(0)
	require.NoError(t, err)
	require.NoError(t, sr.Seek(70))

	samples := make([]float64, 40)
	n, err := sr.Read(samples)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 30, n)
	assert.InDelta(t, 70.0, samples[0], 0.5)
	assert.InDelta(t, 99.0, samples[29], 0.5)

	require.ErrorIs(t, sr.Seek(-1), edf.ErrSampleRange)
	require.ErrorIs(t, sr.Seek(101), edf.ErrSampleRange)
}

func TestReaderAnnotations(t *testing.T) {
	f := writeRamp(t, 3, 100)

	er, err := edf.Open(f)
	require.NoError(t, err)

	annotations, err := er.Annotations()
	require.NoError(t, err)
	require.Len(t, annotations, 3)
	for i, a := range annotations {
		assert.Equal(t, time.Duration(i)*time.Second+250*time.Millisecond, a.Onset)
		assert.Equal(t, "SYNC_1", a.Description)
		assert.Zero(t, a.Duration)
	}
}

func TestWriterAnnotationsOverflow(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "overflow.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		Reserved:           edf.ReservedEDFPlusContinuous,
		DataRecordDuration: time.Second,
		SignalCount:        1,
		Signals:            []edf.Signal{{Label: edf.AnnotationsLabel, SamplesPerRecord: 4}},
	})
	require.NoError(t, err)

	err = ew.WriteRecord([][]float64{nil}, edf.Annotation{Onset: time.Second, Description: "a long annotation text"})
	require.Error(t, err)
}
