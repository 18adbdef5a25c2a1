// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulse

import "errors"

var (
	// ErrOutOfRange indicates a pulse number below 1 or beyond the last registered pulse.
	ErrOutOfRange = errors.New("pulse: pulse number out of range")
	// ErrEmptyTrain indicates a registry built from zero pulses.
	ErrEmptyTrain = errors.New("pulse: pulse train is empty")
	// ErrNotIncreasing indicates pulse sample indices that are not strictly increasing.
	ErrNotIncreasing = errors.New("pulse: pulse samples must be strictly increasing")
	// ErrBadCadence indicates a non-positive number of frames per pulse.
	ErrBadCadence = errors.New("pulse: ticks per pulse must be positive")
	// ErrBadRate indicates a non-positive frame rate or sampling rate.
	ErrBadRate = errors.New("pulse: rates must be positive")
	// ErrBadSync indicates an annotation that does not encode a SYNC input state.
	ErrBadSync = errors.New("pulse: malformed SYNC annotation")
)
