// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package behavior

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
)

// TraceSuffix is appended to a recording id to name its event trace file.
const TraceSuffix = "_events.csv"

// CSVSource reads event traces from <Dir>/<recording id>_events.csv. A trace
// has a header row with the columns start_frame, end_frame and event, and
// optionally trial and day. The event column holds either a behavior label or a raw
// ethogram description, which is classified for the recording's arena
// position when Classify is set.
type CSVSource struct {
	Dir      string
	Classify bool
}

// NewCSVSource returns a source over dir that classifies raw descriptions.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir, Classify: true}
}

// Events returns the events of the recording with the given label, in file order.
func (s *CSVSource) Events(id recording.Identity, label string) ([]Event, error) {
	path := filepath.Join(s.Dir, id.RecordingID+TraceSuffix)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoTrace, path)
	} else if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	var classifier *Classifier
	if s.Classify {
		classifier = NewClassifier(id.ArenaPosition)
	}

	events, err := ReadTrace(f, label, classifier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// ReadTrace parses a CSV event trace and returns the events with the given
// label. Rows whose event column equals the label match directly; other rows
// match when the classifier, if any, assigns them the label.
func ReadTrace(r io.Reader, label string, classifier *Classifier) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadTrace, err)
	}

	columns := map[string]int{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"start_frame", "end_frame", "event"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrBadTrace, required)
		}
	}
	trialColumn, hasTrial := columns["trial"]
	dayColumn, hasDay := columns["day"]

	var events []Event
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadTrace, err)
		}

		raw := row[columns["event"]]
		if raw != label && (classifier == nil || !classifier.Is(raw, label)) {
			continue
		}

		onset, err := strconv.Atoi(strings.TrimSpace(row[columns["start_frame"]]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: start_frame: %w", ErrBadTrace, line, err)
		}
		offset, err := strconv.Atoi(strings.TrimSpace(row[columns["end_frame"]]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: end_frame: %w", ErrBadTrace, line, err)
		}
		if onset < 0 || offset < onset {
			return nil, fmt.Errorf("%w: line %d: frames %d..%d", ErrBadTrace, line, onset, offset)
		}

		e := Event{Label: label, Onset: pulse.Frame(onset), Offset: pulse.Frame(offset), Raw: raw}
		if hasTrial {
			if e.Trial, err = strconv.Atoi(strings.TrimSpace(row[trialColumn])); err != nil {
				return nil, fmt.Errorf("%w: line %d: trial: %w", ErrBadTrace, line, err)
			}
		}
		if hasDay {
			if e.Day, err = strconv.Atoi(strings.TrimSpace(row[dayColumn])); err != nil {
				return nil, fmt.Errorf("%w: line %d: day: %w", ErrBadTrace, line, err)
			}
		}
		events = append(events, e)
	}
	return events, nil
}
