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
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Ethogram description patterns per behavior label. The placeholder {} is the
// arena position of the animal of interest; active labels match when that
// animal initiates the behavior, passive labels when it receives it.
var patterns = map[string]string{
	"social_contact":          `Social Contact.*\[? ?[^#^\d]{}(?:\[#\d+\])?`,
	"social_approach":         `Social Approach \[? ?{}(?:\[#\d+\])? to \d+(?:\[#\d+\])? ?\]?`,
	"social_passive_approach": `Social Approach \[? ?\d+(?:\[#\d+\])? to {}(?:\[#\d+\])? ?\]?`,
	"social_follow":           `Social Follow \[? ?{}(?:\[#\d+\])? follow \d+(?:\[#\d+\])? ?\]?`,
	"social_leave":            `Social Leave \[? ?{}(?:\[#\d+\])? from \d+(?:\[#\d+\])? ?\]?`,
	"social_passive_follow":   `Social Follow \[? ?\d+(?:\[#\d+\])? follow {}(?:\[#\d+\])? ?\]?`,
	"social_sniff":            `Social Sniff \[? ?{}(?:\[#\d+\])? sniff \d+(?:\[#\d+\])? ?\]?`,
	"social_passive_sniff":    `Social Sniff \[? ?\d(?:\[#\d+\])? sniff {}(?:\[#\d+\])? ?\]?`,
	"hide_in_nest":            `Animal {}.* Hide in Nest`,
	"contact_nest":            `Animal {}.* Contact Nest`,
	"social_hide":             `Social Hide.*\[? ?[^#^\d]{}(?:\[#\d+\])?.+ Nest \d+`,
	"in_area":                 `Area:Mouse {}.*In`,
}

// Labels returns every label the classifier knows, sorted.
func Labels() []string {
	labels := make([]string, 0, len(patterns))
	for label := range patterns {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Classifier maps raw ethogram descriptions to behavior labels for the
// animal at one arena position.
type Classifier struct {
	position int
	labels   []string
	compiled []*regexp.Regexp
}

// NewClassifier compiles the patterns for the animal at the given arena position.
func NewClassifier(position int) *Classifier {
	c := &Classifier{position: position}
	for _, label := range Labels() {
		expr := strings.ReplaceAll(patterns[label], "{}", strconv.Itoa(position))
		c.labels = append(c.labels, label)
		c.compiled = append(c.compiled, regexp.MustCompile(expr))
	}
	return c
}

// Classify returns the labels whose pattern occurs in the description, sorted.
func (c *Classifier) Classify(description string) []string {
	var matched []string
	for i, re := range c.compiled {
		if re.MatchString(description) {
			matched = append(matched, c.labels[i])
		}
	}
	return matched
}

// Is reports whether the description is an occurrence of label.
func (c *Classifier) Is(description, label string) bool {
	for i, l := range c.labels {
		if l == label {
			return c.compiled[i].MatchString(description)
		}
	}
	return false
}
