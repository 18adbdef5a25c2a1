// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/edf"
)

const (
	syncPrefix = "SYNC_"
	// SyncInputs is the number of TTL inputs encoded in a SYNC state.
	SyncInputs = 12
)

// DecodeSync extracts the pulse train of every TTL input from the SYNC_<n>
// annotations of a recording. Each annotation carries the state of all
// inputs as a bit mask; a pulse of arena k is a 0 -> 1 transition of bit k-1
// between consecutive annotations, timed at the later annotation. Onsets are
// converted to samples at sfreq. Annotations without the SYNC_ prefix are
// ignored.
func DecodeSync(annotations []edf.Annotation, sfreq float64) (map[int][]Sample, error) {
	if sfreq <= 0 {
		return nil, fmt.Errorf("%w: sfreq=%v", ErrBadRate, sfreq)
	}

	type state struct {
		onset time.Duration
		bits  uint64
	}

	var states []state
	for _, a := range annotations {
		if !strings.HasPrefix(a.Description, syncPrefix) {
			continue
		}
		bits, err := strconv.ParseUint(strings.TrimPrefix(a.Description, syncPrefix), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadSync, a.Description, err)
		}
		states = append(states, state{onset: a.Onset, bits: bits})
	}

	trains := make(map[int][]Sample)
	for i := 1; i < len(states); i++ {
		rising := states[i].bits &^ states[i-1].bits
		for bit := 0; bit < SyncInputs; bit++ {
			if rising&(1<<bit) == 0 {
				continue
			}
			trains[bit+1] = append(trains[bit+1], OnsetToSample(states[i].onset, sfreq))
		}
	}
	return trains, nil
}

// OnsetToSample converts a time offset into the index of the sample it falls in.
func OnsetToSample(onset time.Duration, sfreq float64) Sample {
	return Sample(float64(onset.Nanoseconds()) * sfreq / float64(time.Second))
}
