// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package epoch

import "errors"

var (
	// ErrNoEvents indicates a recording without events of the requested
	// behavior. It describes an empty result, not a failure.
	ErrNoEvents = errors.New("epoch: no events for behavior")

	// ErrBadParams indicates invalid extraction parameters or extractor options.
	ErrBadParams = errors.New("epoch: invalid extraction parameters")
)
