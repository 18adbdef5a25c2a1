// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package pulse aligns the video frame clock with the electrophysiology
// sample clock using the TTL synchronization pulses recorded alongside the
// signal.
//
// What:
//
//   - Registry holds the ordered sample index of every pulse of one arena,
//     addressed 1..N by pulse number. Pulse k belongs to frame (k-1)*ticks.
//   - Translator converts a frame number into a sample index. Frames on a
//     pulse map straight to that pulse; frames between two pulses are placed
//     by averaging a forward estimate from the previous pulse and a backward
//     estimate from the next one.
//   - DecodeSync turns the SYNC_<n> annotations of a recording into the
//     pulse train of each arena input.
//
// Errors:
//
//   - ErrOutOfRange: a pulse number has no registered sample.
//   - ErrEmptyTrain, ErrNotIncreasing, ErrBadCadence: invalid registry input.
//   - ErrBadRate: a non-positive frame or sample rate.
//   - ErrBadSync: an annotation description is not a SYNC_<n> state.
package pulse
