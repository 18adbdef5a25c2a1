// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package epoch

import (
	"fmt"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/quality"
)

// Params are the per-behavior extraction parameters.
type Params struct {
	// EpochLength is the duration of every extracted epoch.
	EpochLength time.Duration
	// RelativeStart shifts the epoch start away from the event onset; negative
	// values start the epoch before the onset.
	RelativeStart time.Duration
	// PlossThreshold is the package loss an epoch may carry on any channel.
	PlossThreshold time.Duration
}

// Validate checks that the epoch has a length and the loss allowance is not negative.
func (p Params) Validate() error {
	if p.EpochLength <= 0 {
		return fmt.Errorf("%w: epoch length %v", ErrBadParams, p.EpochLength)
	}
	if p.PlossThreshold < 0 {
		return fmt.Errorf("%w: package loss threshold %v", ErrBadParams, p.PlossThreshold)
	}
	return nil
}

// LengthSamples returns the epoch length in samples at sfreq Hz.
func (p Params) LengthSamples(sfreq float64) int {
	return int(p.EpochLength.Seconds() * sfreq)
}

// OffsetSamples returns the relative start in samples at sfreq Hz, truncated towards zero.
func (p Params) OffsetSamples(sfreq float64) int {
	return int(p.RelativeStart.Seconds() * sfreq)
}

// MaxMissing returns the largest per-channel missing-sample count an epoch
// sampled at sfreq Hz may carry and still be accepted.
func (p Params) MaxMissing(sfreq float64) int {
	return quality.Threshold(sfreq, float64(p.PlossThreshold)/float64(time.Millisecond))
}
