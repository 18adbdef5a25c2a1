// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package epoch cuts fixed-length, quality-gated EEG epochs around scored
// behavioral events.
//
// For every event of one behavior in one recording the Extractor
//
//   - translates the onset frame into a sample index through the recording's
//     TTL pulse train (package pulse),
//   - reads the filtered signal and the quality mask of the epoch window
//     (package recording),
//   - rejects the epoch when any channel misses more samples than the
//     package-loss allowance (package quality),
//   - and describes the epoch with a Metadata record, including the
//     circadian phase the event ended in (package circadian).
//
// Every event ends in exactly one terminal State. Accepted epochs and their
// metadata are filtered with one shared mask, so row i of Result.Metadata
// always describes Result.Epochs[i].
//
// Complexity: O(E·C·L) time and memory for E events, C channels and epochs of
// L samples.
package epoch
