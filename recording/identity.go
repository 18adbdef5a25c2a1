// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package recording

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	subjectPattern  = regexp.MustCompile(`colonies_([^_\s]+)_Day`)
	dayPattern      = regexp.MustCompile(`Day(\d+)`)
	arenaPattern    = regexp.MustCompile(`Colony/Arena_(\d+)`)
	positionPattern = regexp.MustCompile(`Position_(\d+)`)
	trailingDigits  = regexp.MustCompile(`(\d+)$`)
)

// FileInfo is the metadata encoded in a transmitter EDF file name:
// <prefix>_<transmitter>_<batch>_<day>_<subject>_<surgery>_<injection>_<date>_<time>_<session>.
type FileInfo struct {
	Transmitter string
	Batch       string
	Day         int
	Subject     string
	Surgery     string
	Injection   string
	Date        string
	Time        string
	Session     string
}

// ParseFileName parses a transmitter EDF file name. The extension is ignored.
func ParseFileName(name string) (FileInfo, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) < 10 {
		return FileInfo{}, fmt.Errorf("%w: file name %q has %d fields, want 10", ErrConfig, name, len(parts))
	}

	m := trailingDigits.FindStringSubmatch(parts[3])
	if m == nil {
		return FileInfo{}, fmt.Errorf("%w: file name %q has no day number in %q", ErrConfig, name, parts[3])
	}
	day, _ := strconv.Atoi(m[1])

	return FileInfo{
		Transmitter: parts[1],
		Batch:       parts[2],
		Day:         day,
		Subject:     parts[4],
		Surgery:     parts[5],
		Injection:   parts[6],
		Date:        parts[7],
		Time:        parts[8],
		Session:     parts[9],
	}, nil
}

// ParseIdentity builds the identity of a recording from its EDF header
// fields ("colonies_<subject>_Day<n>" and "Colony/Arena_<n>_Position_<m>"),
// falling back to the file name for the subject and day. The arena is
// required since it selects the pulse train.
func ParseIdentity(recordingID, patient, session, fileName string) (Identity, error) {
	id := Identity{RecordingID: recordingID}

	if m := subjectPattern.FindStringSubmatch(session); m != nil {
		id.AnimalID = m[1]
	} else if fields := strings.Fields(patient); len(fields) > 0 && fields[0] != "X" {
		id.AnimalID = fields[0]
	}
	if m := dayPattern.FindStringSubmatch(session); m != nil {
		id.Day, _ = strconv.Atoi(m[1])
	}

	if id.AnimalID == "" || id.Day == 0 {
		if info, err := ParseFileName(fileName); err == nil {
			if id.AnimalID == "" {
				id.AnimalID = info.Subject
			}
			if id.Day == 0 {
				id.Day = info.Day
			}
		}
	}

	m := arenaPattern.FindStringSubmatch(session)
	if m == nil {
		return Identity{}, fmt.Errorf("%w: no arena in recording field %q", ErrConfig, session)
	}
	id.Arena, _ = strconv.Atoi(m[1])
	if m := positionPattern.FindStringSubmatch(session); m != nil {
		id.ArenaPosition, _ = strconv.Atoi(m[1])
	}

	if id.AnimalID == "" {
		return Identity{}, fmt.Errorf("%w: no subject id for %q", ErrConfig, recordingID)
	}
	return id, nil
}
