// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrSampleRange is returned when a requested sample lies outside the stored signal.
var ErrSampleRange = errors.New("edf: sample out of range")

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	// Parse fields based on EDF/EDF+ specifications
	hdr := &Header{}
	hdr.Version = Version(strings.TrimSpace(string(b[0:8])))
	hdr.PatientID = strings.TrimSpace(string(b[8:88]))
	hdr.RecordingID = strings.TrimSpace(string(b[88:168]))
	dateStr := strings.TrimSpace(string(b[168:176]))
	timeStr := strings.TrimSpace(string(b[176:184]))

	// Parse start date and time
	startDate, err := time.Parse("02.01.06", dateStr)
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", timeStr)
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	hdr.HeaderBytes, err = strconv.Atoi(strings.TrimSpace(string(b[184:192])))
	if err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}

	hdr.Reserved = strings.TrimSpace(string(b[192:236]))

	hdr.DataRecords, err = strconv.Atoi(strings.TrimSpace(string(b[236:244])))
	if err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}

	hdr.DataRecordDuration, err = time.ParseDuration(fmt.Sprintf("%ss", strings.TrimSpace(string(b[244:252]))))
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}

	hdr.SignalCount, err = strconv.Atoi(strings.TrimSpace(string(b[252:256])))
	if err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}

	// Signal headers are stored field by field, each field repeated for every signal.
	hdr.Signals = make([]Signal, hdr.SignalCount)
	fields := []struct {
		width int
		set   func(sig *Signal, b []byte)
	}{
		{16, func(sig *Signal, b []byte) { sig.Label = strings.TrimSpace(string(b)) }},
		{80, func(sig *Signal, b []byte) { sig.TransducerType = strings.TrimSpace(string(b)) }},
		{8, func(sig *Signal, b []byte) { sig.PhysicalDimension = strings.TrimSpace(string(b)) }},
		{8, func(sig *Signal, b []byte) { sig.PhysicalMin = parseFloat(b) }},
		{8, func(sig *Signal, b []byte) { sig.PhysicalMax = parseFloat(b) }},
		{8, func(sig *Signal, b []byte) { sig.DigitalMin = parseInt(b) }},
		{8, func(sig *Signal, b []byte) { sig.DigitalMax = parseInt(b) }},
		{80, func(sig *Signal, b []byte) { sig.Prefiltering = strings.TrimSpace(string(b)) }},
		{8, func(sig *Signal, b []byte) { sig.SamplesPerRecord = parseInt(b) }},
		{32, func(sig *Signal, b []byte) { sig.Reserved = strings.TrimSpace(string(b)) }},
	}
	for _, field := range fields {
		b := make([]byte, field.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(reader, b); err != nil {
				return nil, fmt.Errorf("error reading signal headers: %w", err)
			}
			field.set(&hdr.Signals[i], b)
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

// Header returns a copy of the parsed file header.
func (er *Reader) Header() Header {
	hdr := *er.hdr
	hdr.Signals = append([]Signal(nil), er.hdr.Signals...)
	return hdr
}

// recordLayout returns the size in bytes of one data record and the byte
// offset of the given signal inside a record.
func (er *Reader) recordLayout(signalIndex int) (recordSize, signalOffset int) {
	for i, sig := range er.hdr.Signals {
		if i < signalIndex {
			signalOffset += sig.SamplesPerRecord * 2
		}
		recordSize += sig.SamplesPerRecord * 2
	}
	return recordSize, signalOffset
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r                io.ReadSeeker
	hdr              *Header
	signalIndex      int // Index of the signal to read
	currentRecord    int // Current record being processed
	currentSample    int // Current sample in the record
	recordSize       int // Total size of one data record
	signalOffset     int // Byte offset of the signal in a record
	samplesPerRecord int // Number of samples per record for the signal
	buf              []byte
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index out of range")
	}

	recordSize, signalOffset := er.recordLayout(signalIndex)

	return &SignalReader{
		r:                er.r,
		hdr:              er.hdr,
		signalIndex:      signalIndex,
		recordSize:       recordSize,
		signalOffset:     signalOffset,
		samplesPerRecord: er.hdr.Signals[signalIndex].SamplesPerRecord,
	}, nil
}

// Seek positions the reader at the given zero-based sample of the signal.
func (sr *SignalReader) Seek(sample int) error {
	if sample < 0 || sample > sr.samplesPerRecord*sr.hdr.DataRecords {
		return fmt.Errorf("%w: sample %d of %d", ErrSampleRange, sample, sr.samplesPerRecord*sr.hdr.DataRecords)
	}
	sr.currentRecord = sample / sr.samplesPerRecord
	sr.currentSample = sample % sr.samplesPerRecord
	return nil
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	signal := sr.hdr.Signals[sr.signalIndex]

	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords {
			return n, io.EOF // End of data records
		}

		// Read the rest of this signal's block in the current record in one go.
		count := min(sr.samplesPerRecord-sr.currentSample, len(data)-n)
		pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset) + int64(sr.currentSample*2)
		if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
			return n, fmt.Errorf("error seeking to position: %w", err)
		}

		if cap(sr.buf) < count*2 {
			sr.buf = make([]byte, count*2)
		}
		buf := sr.buf[:count*2]
		if _, err := io.ReadFull(sr.r, buf); err != nil {
			return n, fmt.Errorf("error reading sample data: %w", err)
		}
		for i := 0; i < count; i++ {
			digitalValue := int16(binary.LittleEndian.Uint16(buf[i*2:]))
			data[n+i] = convertDigitalToPhysical(digitalValue, signal.DigitalMin, signal.DigitalMax, signal.PhysicalMin, signal.PhysicalMax)
		}

		n += count

		// Move to the next sample
		sr.currentSample += count
		if sr.currentSample >= sr.samplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

// ReadRange reads the samples [start, end) of the signal at signalIndex.
func (er *Reader) ReadRange(signalIndex, start, end int) ([]float64, error) {
	if end < start {
		return nil, fmt.Errorf("%w: invalid range [%d, %d)", ErrSampleRange, start, end)
	}
	if end > er.hdr.Samples(signalIndex) {
		return nil, fmt.Errorf("%w: range end %d exceeds %d samples", ErrSampleRange, end, er.hdr.Samples(signalIndex))
	}

	sr, err := er.Signal(signalIndex)
	if err != nil {
		return nil, err
	}
	if err := sr.Seek(start); err != nil {
		return nil, err
	}

	data := make([]float64, end-start)
	if _, err := sr.Read(data); err != nil {
		return nil, fmt.Errorf("error reading signal %d: %w", signalIndex, err)
	}
	return data, nil
}

// Annotations returns every annotation stored in the EDF+ annotation signals of the file,
// in record order. Record time-keeping entries are omitted.
func (er *Reader) Annotations() ([]Annotation, error) {
	var annotations []Annotation
	for idx, sig := range er.hdr.Signals {
		if !sig.IsAnnotations() {
			continue
		}

		recordSize, signalOffset := er.recordLayout(idx)
		buf := make([]byte, sig.SamplesPerRecord*2)
		for rec := 0; rec < er.hdr.DataRecords; rec++ {
			pos := int64(er.hdr.HeaderBytes) + int64(rec)*int64(recordSize) + int64(signalOffset)
			if _, err := er.r.Seek(pos, io.SeekStart); err != nil {
				return nil, fmt.Errorf("error seeking to position: %w", err)
			}
			if _, err := io.ReadFull(er.r, buf); err != nil {
				return nil, fmt.Errorf("error reading annotation data: %w", err)
			}

			parsed, err := parseTALs(buf)
			if err != nil {
				return nil, fmt.Errorf("error parsing annotations in record %d: %w", rec, err)
			}
			annotations = append(annotations, parsed...)
		}
	}
	return annotations, nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

func parseFloat(b []byte) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(b []byte) int {
	i, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return i
}
