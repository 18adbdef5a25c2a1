// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import "time"

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

const (
	// ReservedEDFPlusContinuous marks an EDF+ file with uninterrupted data records.
	ReservedEDFPlusContinuous = "EDF+C"
	// ReservedEDFPlusDiscontinuous marks an EDF+ file whose data records may have gaps.
	ReservedEDFPlusDiscontinuous = "EDF+D"

	// AnnotationsLabel is the label of an EDF+ annotation signal.
	AnnotationsLabel = "EDF Annotations"
)

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	Reserved           string        // "EDF+C" or "EDF+D" for EDF+ files, empty otherwise
	DataRecordDuration time.Duration // Duration of a single data record
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// SampleRate returns the sampling frequency of the signal at index i in Hz.
func (h Header) SampleRate(i int) float64 {
	if i < 0 || i >= len(h.Signals) || h.DataRecordDuration <= 0 {
		return 0
	}
	return float64(h.Signals[i].SamplesPerRecord) / h.DataRecordDuration.Seconds()
}

// Samples returns the total number of samples stored for the signal at index i.
func (h Header) Samples(i int) int {
	if i < 0 || i >= len(h.Signals) || h.DataRecords < 0 {
		return 0
	}
	return h.Signals[i].SamplesPerRecord * h.DataRecords
}

// SignalIndex returns the index of the first signal with the given label, or -1.
func (h Header) SignalIndex(label string) int {
	for i, sig := range h.Signals {
		if sig.Label == label {
			return i
		}
	}
	return -1
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., EEG Fpz-Cz)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., uV, mV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// IsAnnotations reports whether the signal carries EDF+ annotations rather than samples.
func (s Signal) IsAnnotations() bool {
	return s.Label == AnnotationsLabel
}

// Annotation is a single EDF+ time-stamped annotation.
type Annotation struct {
	Onset       time.Duration // Offset from the start of the recording
	Duration    time.Duration // Zero when the annotation has no duration
	Description string
}
