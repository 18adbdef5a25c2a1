// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package quality flags lost or artefactual samples of a raw signal segment.
//
// A sample is missing when it falls outside the open amplitude band
// (Low, High), which is where the wireless transmitter parks dropped packets,
// or, when an artefact multiplier is configured, when it lies further than
// Art standard deviations from the mean of the in-band samples of the same
// segment.
package quality

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// ErrBadBand indicates malformed or inconsistent quality band parameters.
var ErrBadBand = errors.New("quality: invalid quality band")

// Band holds the quality parameters of a recording.
type Band struct {
	Low    float64
	High   float64
	Art    float64 // Outlier multiplier, only used when HasArt is set
	HasArt bool
}

var bandPattern = regexp.MustCompile(`low_val:\s*([^,\s]+).*high_val:\s*([^,\s]+).*art:\s*([^,\s]+)`)

// ParseBand reads the band from a filtering description such as
// "Bandpass 0.5-200 Hz, low_val:-3000, high_val:3000, art:3". An art value
// of "None" disables the outlier rule.
func ParseBand(description string) (Band, error) {
	m := bandPattern.FindStringSubmatch(description)
	if m == nil {
		return Band{}, fmt.Errorf("%w: no low_val/high_val/art in %q", ErrBadBand, description)
	}

	var b Band
	var err error
	if b.Low, err = strconv.ParseFloat(m[1], 64); err != nil {
		return Band{}, fmt.Errorf("%w: low_val %q", ErrBadBand, m[1])
	}
	if b.High, err = strconv.ParseFloat(m[2], 64); err != nil {
		return Band{}, fmt.Errorf("%w: high_val %q", ErrBadBand, m[2])
	}
	if !strings.EqualFold(m[3], "None") {
		if b.Art, err = strconv.ParseFloat(m[3], 64); err != nil {
			return Band{}, fmt.Errorf("%w: art %q", ErrBadBand, m[3])
		}
		b.HasArt = true
	}

	return b, b.Validate()
}

// String formats the band the way ParseBand reads it.
func (b Band) String() string {
	art := "None"
	if b.HasArt {
		art = strconv.FormatFloat(b.Art, 'g', -1, 64)
	}
	return fmt.Sprintf("low_val:%s, high_val:%s, art:%s",
		strconv.FormatFloat(b.Low, 'g', -1, 64), strconv.FormatFloat(b.High, 'g', -1, 64), art)
}

// Validate checks that the band is non-empty and the multiplier positive.
func (b Band) Validate() error {
	if math.IsNaN(b.Low) || math.IsNaN(b.High) || b.Low >= b.High {
		return fmt.Errorf("%w: low_val %v must be below high_val %v", ErrBadBand, b.Low, b.High)
	}
	if b.HasArt && !(b.Art > 0) {
		return fmt.Errorf("%w: art must be positive, got %v", ErrBadBand, b.Art)
	}
	return nil
}

// Mask returns a copy of signal with every missing sample replaced by NaN.
func (b Band) Mask(signal []float64) []float64 {
	masked := make([]float64, len(signal))
	valid := make([]float64, 0, len(signal))
	for i, v := range signal {
		if v > b.Low && v < b.High {
			masked[i] = v
			valid = append(valid, v)
		} else {
			masked[i] = math.NaN()
		}
	}

	if !b.HasArt || len(valid) == 0 {
		return masked
	}

	mean, std := stat.PopMeanStdDev(valid, nil)
	lower, upper := mean-b.Art*std, mean+b.Art*std
	for i, v := range masked {
		if v > upper || v < lower {
			masked[i] = math.NaN()
		}
	}
	return masked
}

// Missing returns the number of NaN samples in a masked signal.
func Missing(masked []float64) int {
	n := 0
	for _, v := range masked {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Threshold returns the largest number of missing samples an epoch sampled
// at sfreq may carry on any channel for the given loss allowance in milliseconds.
func Threshold(sfreq, lossMillis float64) int {
	return int(math.Floor(sfreq * lossMillis / 1000))
}
