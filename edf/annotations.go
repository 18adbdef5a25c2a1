// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Separators of an EDF+ Time-stamped Annotation List (TAL).
const (
	talDuration = 0x15
	talText     = 0x14
	talEnd      = 0x00
)

// parseTALs decodes the TALs stored in the annotation signal of one data record.
func parseTALs(b []byte) ([]Annotation, error) {
	var annotations []Annotation
	for _, tal := range bytes.Split(b, []byte{talEnd}) {
		if len(tal) == 0 {
			continue // Padding
		}

		parts := bytes.Split(tal, []byte{talText})
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed TAL %q", tal)
		}

		timing := parts[0]
		var durationStr []byte
		if i := bytes.IndexByte(timing, talDuration); i >= 0 {
			timing, durationStr = timing[:i], timing[i+1:]
		}

		onset, err := parseSeconds(string(timing))
		if err != nil {
			return nil, fmt.Errorf("error parsing annotation onset: %w", err)
		}
		var duration time.Duration
		if len(durationStr) > 0 {
			if duration, err = parseSeconds(string(durationStr)); err != nil {
				return nil, fmt.Errorf("error parsing annotation duration: %w", err)
			}
		}

		// Empty texts are record time-keeping entries.
		for _, text := range parts[1:] {
			if len(text) == 0 {
				continue
			}
			annotations = append(annotations, Annotation{
				Onset:       onset,
				Duration:    duration,
				Description: string(text),
			})
		}
	}
	return annotations, nil
}

// encodeTALs encodes the time-keeping TAL of a record starting at recordOnset,
// followed by the given annotations, padded with zeros to size bytes.
func encodeTALs(recordOnset time.Duration, annotations []Annotation, size int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(formatSeconds(recordOnset, true))
	buf.Write([]byte{talText, talText, talEnd})

	for _, a := range annotations {
		buf.WriteString(formatSeconds(a.Onset, true))
		if a.Duration > 0 {
			buf.WriteByte(talDuration)
			buf.WriteString(formatSeconds(a.Duration, false))
		}
		buf.WriteByte(talText)
		buf.WriteString(a.Description)
		buf.Write([]byte{talText, talEnd})
	}

	if buf.Len() > size {
		return nil, fmt.Errorf("annotations need %d bytes, signal holds %d", buf.Len(), size)
	}
	out := make([]byte, size)
	copy(out, buf.Bytes())
	return out, nil
}

func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimPrefix(s, "+")
	return time.ParseDuration(s + "s")
}

func formatSeconds(d time.Duration, signed bool) string {
	s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	if signed && d >= 0 {
		return "+" + s
	}
	return s
}
