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
	"github.com/LisanneBorst/Acute-social-colonies/behavior"
	"github.com/LisanneBorst/Acute-social-colonies/circadian"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
)

// Metadata describes one extracted epoch.
type Metadata struct {
	AnimalID       string          `json:"animal_id"`
	Arena          int             `json:"arena"`
	Day            int             `json:"day"`
	CircPhase      circadian.Phase `json:"circ_phase"`
	Behavior       string          `json:"behavior_label"`
	StartFrame     pulse.Frame     `json:"beh_start_frame"`
	EndFrame       pulse.Frame     `json:"beh_end_frame"`
	DurFrame       int             `json:"beh_dur_frame"`
	StartSample    pulse.Sample    `json:"beh_start_sample"`
	EndSample      pulse.Sample    `json:"beh_end_sample"`
	DurSample      int             `json:"beh_dur_sample"`
	EpochStart     pulse.Sample    `json:"epoch_start_sample"`
	MissingSamples int             `json:"missing_samples"`
}

// Window locates an epoch candidate in the sample clock.
type Window struct {
	Onset   pulse.Sample // Event onset
	Start   pulse.Sample // First sample of the epoch
	Missing int          // Worst per-channel missing-sample count
}

// Assembler builds the metadata records of one recording and behavior.
type Assembler struct {
	identity   recording.Identity
	label      string
	translator *pulse.Translator
}

// NewAssembler returns an assembler for the recording identified by id.
// The translator converts event durations into samples.
func NewAssembler(id recording.Identity, label string, translator *pulse.Translator) *Assembler {
	return &Assembler{identity: id, label: label, translator: translator}
}

// Build describes the epoch cut for event e at window w.
func (a *Assembler) Build(e behavior.Event, w Window, phase circadian.Phase) Metadata {
	day := a.identity.Day
	if day == 0 {
		day = e.Day
	}
	durSample := a.translator.Duration(e.Frames())

	return Metadata{
		AnimalID:       a.identity.AnimalID,
		Arena:          a.identity.Arena,
		Day:            day,
		CircPhase:      phase,
		Behavior:       a.label,
		StartFrame:     e.Onset,
		EndFrame:       e.Offset,
		DurFrame:       e.Frames(),
		StartSample:    w.Onset,
		EndSample:      w.Onset + pulse.Sample(durSample),
		DurSample:      durSample,
		EpochStart:     w.Start,
		MissingSamples: w.Missing,
	}
}
