// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package epoch_test

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/behavior"
	"github.com/LisanneBorst/Acute-social-colonies/circadian"
	"github.com/LisanneBorst/Acute-social-colonies/epoch"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/quality"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordingID = "TAINI_1044_b1_Day2_78244_sham_saline_2023-05-01_09-30-00_0001"

// colony returns a ten second, 1000 Hz recording with a TTL pulse on arena 1
// every second at sample s*1000+120. Frame 30k therefore maps to sample
// (k-1)*1000+120. Channel OFC_R loses 5 samples at [3200, 3205) and channel
// EMG_R loses 6 samples at [4300, 4306).
func colony() *recording.Recording {
	const (
		sfreq   = 1000
		seconds = 10
	)
	channels := []recording.Channel{
		recording.NewChannel("OFC_R"),
		recording.NewChannel("CG"),
		recording.NewChannel("EMG_R"),
	}
	raw := make([][]float64, len(channels))
	filtered := make([][]float64, len(channels))
	for c := range channels {
		raw[c] = make([]float64, seconds*sfreq)
		filtered[c] = make([]float64, seconds*sfreq)
		for i := range raw[c] {
			raw[c][i] = 200 * math.Sin(2*math.Pi*float64(i)/125+float64(c))
			filtered[c][i] = float64(c*100000 + i)
		}
	}
	for i := 3200; i < 3205; i++ {
		raw[0][i] = 5000
	}
	for i := 4300; i < 4306; i++ {
		raw[2][i] = -5000
	}

	var pulses []pulse.Sample
	for s := 0; s < seconds; s++ {
		pulses = append(pulses, pulse.Sample(s*sfreq+120))
	}

	return &recording.Recording{
		Identity: recording.Identity{RecordingID: recordingID, AnimalID: "78244", Arena: 1, ArenaPosition: 3, Day: 2},
		Channels: channels,
		SFreq:    sfreq,
		Raw:      raw,
		Filtered: filtered,
		Pulses:   map[int][]pulse.Sample{1: pulses},
		Band:     quality.Band{Low: -3000, High: 3000, Art: 4, HasArt: true},
	}
}

func events() behavior.SliceSource {
	return behavior.SliceSource{
		recordingID: {
			{Label: "social_contact", Onset: 60, Offset: 90},   // sample 1120, clean
			{Label: "social_contact", Onset: 120, Offset: 140}, // sample 3120, 5 missing
			{Label: "social_contact", Onset: 150, Offset: 200}, // sample 4120, 6 missing
			{Label: "social_contact", Onset: 0, Offset: 10},    // pulse 0
			{Label: "social_contact", Onset: 285, Offset: 290}, // needs pulse 11
			{Label: "social_contact", Onset: 270, Offset: 290}, // sample 8120, clean
			{Label: "social_approach", Onset: 30, Offset: 45},  // other behavior
		},
	}
}

var params = epoch.Params{
	EpochLength:    500 * time.Millisecond,
	PlossThreshold: 5 * time.Millisecond,
}

// hourly flips the circadian phase every 150 frames.
var hourly = circadian.Tagger{FPS: 30, SecondsPerHour: 1, HoursPerPhase: 5, Start: circadian.Dark}

func newExtractor(t *testing.T, rec *recording.Recording, src behavior.Source, opts ...epoch.Option) *epoch.Extractor {
	t.Helper()
	store := recording.NewMemStore()
	store.Put(rec)
	return epoch.NewExtractor(store, src, opts...)
}

func TestExtract(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	x := newExtractor(t, colony(), events(), epoch.WithLogger(logger), epoch.WithTagger(hourly))

	res, err := x.Extract(recordingID, "social_contact", params)
	require.NoError(t, err)

	assert.Equal(t, recordingID, res.RecordingID)
	assert.Equal(t, "social_contact", res.Behavior)
	assert.InDelta(t, 1000.0, res.SFreq, 1e-12)
	require.Len(t, res.Channels, 3)
	assert.Equal(t, recording.EMG, res.Channels[2].Type)

	require.Equal(t, 3, res.Len())
	require.Len(t, res.Metadata, 3)
	for i := range res.Epochs {
		require.Len(t, res.Epochs[i], 3)
		for c := range res.Epochs[i] {
			assert.Len(t, res.Epochs[i][c], 500)
		}
	}

	assert.Equal(t, epoch.Metadata{
		AnimalID:    "78244",
		Arena:       1,
		Day:         2,
		CircPhase:   circadian.Dark,
		Behavior:    "social_contact",
		StartFrame:  60,
		EndFrame:    90,
		DurFrame:    30,
		StartSample: 1120,
		EndSample:   2120,
		DurSample:   1000,
		EpochStart:  1120,
	}, res.Metadata[0])
	assert.Equal(t, pulse.Frame(120), res.Metadata[1].StartFrame)
	assert.Equal(t, 5, res.Metadata[1].MissingSamples)
	assert.Equal(t, pulse.Frame(270), res.Metadata[2].StartFrame)
	assert.Equal(t, circadian.Light, res.Metadata[2].CircPhase)

	states := make([]epoch.State, len(res.Outcomes))
	for i, o := range res.Outcomes {
		states[i] = o.State
		assert.True(t, o.State.Terminal())
	}
	assert.Equal(t, []epoch.State{epoch.Accepted, epoch.Accepted, epoch.Rejected, epoch.Skipped, epoch.Skipped, epoch.Accepted}, states)
	assert.Equal(t, 6, res.Outcomes[2].Missing)
	assert.Contains(t, res.Outcomes[3].Reason, pulse.ErrOutOfRange.Error())

	assert.Contains(t, logs.String(), `"msg":"Skipped event"`)
	assert.Contains(t, logs.String(), `"msg":"Rejected epoch"`)
	assert.Contains(t, logs.String(), `"recording":"`+recordingID+`"`)
}

func TestExtractLockStep(t *testing.T) {
	rec := colony()
	x := newExtractor(t, rec, events())

	res, err := x.Extract(recordingID, "social_contact", params)
	require.NoError(t, err)
	require.Equal(t, len(res.Epochs), len(res.Metadata))

	// The filtered fixture stores the sample index, so every epoch must start
	// exactly at the sample its metadata names.
	for i, m := range res.Metadata {
		for c := range res.Channels {
			assert.Equal(t, rec.Filtered[c][m.EpochStart], res.Epochs[i][c][0], "epoch %d channel %d", i, c)
			assert.Equal(t, float64(c*100000+int(m.EpochStart)+499), res.Epochs[i][c][499])
		}
	}
}

func TestExtractQualityGateBoundary(t *testing.T) {
	cases := []struct {
		name      string
		threshold time.Duration
		accepted  int
	}{
		{"BelowFive", 4 * time.Millisecond, 2},
		{"Five", 5 * time.Millisecond, 3},
		{"Six", 6 * time.Millisecond, 4},
		{"Fractional", 5900 * time.Microsecond, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := newExtractor(t, colony(), events())
			p := params
			p.PlossThreshold = tc.threshold

			res, err := x.Extract(recordingID, "social_contact", p)
			require.NoError(t, err)
			assert.Equal(t, tc.accepted, res.Len())
			assert.Equal(t, tc.accepted, res.Count(epoch.Accepted))
			assert.Equal(t, 4-tc.accepted, res.Count(epoch.Rejected))
		})
	}
}

func TestExtractRelativeStart(t *testing.T) {
	x := newExtractor(t, colony(), events())
	p := params
	p.RelativeStart = -100 * time.Millisecond

	res, err := x.Extract(recordingID, "social_contact", p)
	require.NoError(t, err)
	require.NotEmpty(t, res.Metadata)
	assert.Equal(t, pulse.Sample(1120), res.Metadata[0].StartSample)
	assert.Equal(t, pulse.Sample(1020), res.Metadata[0].EpochStart)
}

func TestExtractWindowOutsideRecording(t *testing.T) {
	x := newExtractor(t, colony(), events())
	p := params
	p.RelativeStart = -2 * time.Second

	res, err := x.Extract(recordingID, "social_contact", p)
	require.NoError(t, err)

	// The first event now starts before the recording.
	assert.Equal(t, epoch.Skipped, res.Outcomes[0].State)
	assert.Contains(t, res.Outcomes[0].Reason, recording.ErrRangeOutside.Error())

	p.RelativeStart = 0
	p.EpochLength = 2 * time.Second
	res, err = x.Extract(recordingID, "social_contact", p)
	require.NoError(t, err)
	assert.Equal(t, epoch.Skipped, res.Outcomes[5].State)
}

func TestExtractNoEvents(t *testing.T) {
	x := newExtractor(t, colony(), events())

	_, err := x.Extract(recordingID, "social_sniff", params)
	require.ErrorIs(t, err, epoch.ErrNoEvents)
}

func TestExtractChannelMismatch(t *testing.T) {
	rec := colony()
	rec.FilteredChannels = []recording.Channel{
		recording.NewChannel("OFC_R"),
		recording.NewChannel("PrL"),
		recording.NewChannel("EMG_R"),
	}
	x := newExtractor(t, rec, events())

	res, err := x.Extract(recordingID, "social_contact", params)
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Empty(t, res.Metadata)
	assert.Equal(t, 4, res.Count(epoch.Rejected))
	assert.Equal(t, 2, res.Count(epoch.Skipped))
}

func TestExtractFatalErrors(t *testing.T) {
	t.Run("BadParams", func(t *testing.T) {
		x := newExtractor(t, colony(), events())
		_, err := x.Extract(recordingID, "social_contact", epoch.Params{})
		require.ErrorIs(t, err, epoch.ErrBadParams)

		_, err = x.Extract(recordingID, "social_contact", epoch.Params{EpochLength: time.Second, PlossThreshold: -time.Millisecond})
		require.ErrorIs(t, err, epoch.ErrBadParams)

		_, err = x.Extract(recordingID, "social_contact", epoch.Params{EpochLength: time.Microsecond})
		require.ErrorIs(t, err, epoch.ErrBadParams)
	})

	t.Run("BadTagger", func(t *testing.T) {
		x := newExtractor(t, colony(), events(), epoch.WithTagger(circadian.Tagger{}))
		_, err := x.Extract(recordingID, "social_contact", params)
		require.ErrorIs(t, err, epoch.ErrBadParams)
		require.ErrorIs(t, err, circadian.ErrBadTagger)
	})

	t.Run("BadBand", func(t *testing.T) {
		rec := colony()
		rec.Band = quality.Band{Low: 1, High: 1}
		x := newExtractor(t, rec, events())
		_, err := x.Extract(recordingID, "social_contact", params)
		require.ErrorIs(t, err, recording.ErrConfig)
	})

	t.Run("NoPulses", func(t *testing.T) {
		rec := colony()
		rec.Identity.Arena = 4
		x := newExtractor(t, rec, events())
		_, err := x.Extract(recordingID, "social_contact", params)
		require.ErrorIs(t, err, recording.ErrConfig)
		require.ErrorIs(t, err, pulse.ErrEmptyTrain)
	})

	t.Run("UnknownRecording", func(t *testing.T) {
		x := newExtractor(t, colony(), events())
		_, err := x.Extract("missing", "social_contact", params)
		require.ErrorIs(t, err, recording.ErrNotFound)
	})
}

func TestExtractTicksPerPulse(t *testing.T) {
	rec := colony()
	// Every second pulse only: one pulse every 60 frames.
	var sparse []pulse.Sample
	for i, s := range rec.Pulses[1] {
		if i%2 == 0 {
			sparse = append(sparse, s)
		}
	}
	rec.Pulses[1] = sparse
	src := behavior.SliceSource{recordingID: {{Label: "social_contact", Onset: 90, Offset: 120}}}
	x := newExtractor(t, rec, src, epoch.WithTicksPerPulse(60))

	res, err := x.Extract(recordingID, "social_contact", params)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	// Frame 90 lies halfway between pulse 2 (frame 60, sample 2120) and
	// pulse 3 (frame 120, sample 4120).
	assert.Equal(t, pulse.Sample(3120), res.Metadata[0].StartSample)
}

func TestAssembler(t *testing.T) {
	reg, err := pulse.NewRegistry([]pulse.Sample{100, 1100}, 30)
	require.NoError(t, err)
	tr, err := pulse.NewTranslator(reg, 30, 250)
	require.NoError(t, err)

	a := epoch.NewAssembler(recording.Identity{AnimalID: "80111", Arena: 3}, "social_sniff", tr)
	m := a.Build(behavior.Event{Onset: 10, Offset: 25, Day: 4}, epoch.Window{Onset: 183, Start: 200, Missing: 2}, circadian.Light)

	assert.Equal(t, epoch.Metadata{
		AnimalID:       "80111",
		Arena:          3,
		Day:            4,
		CircPhase:      circadian.Light,
		Behavior:       "social_sniff",
		StartFrame:     10,
		EndFrame:       25,
		DurFrame:       15,
		StartSample:    183,
		EndSample:      308,
		DurSample:      125,
		EpochStart:     200,
		MissingSamples: 2,
	}, m)
}

func TestExtractEDFStore(t *testing.T) {
	dir := t.TempDir()
	rec := colony()
	require.NoError(t, recording.WriteEDF(dir, rec, time.Date(2023, 5, 1, 9, 30, 0, 0, time.UTC)))

	mem, err := newExtractor(t, rec, events()).Extract(recordingID, "social_contact", params)
	require.NoError(t, err)

	x := epoch.NewExtractor(recording.NewEDFStore(dir), events())
	res, err := x.Extract(recordingID, "social_contact", params)
	require.NoError(t, err)

	assert.Equal(t, mem.Metadata, res.Metadata)
	assert.Equal(t, mem.Channels, res.Channels)
	require.Equal(t, mem.Len(), res.Len())
	for i := range res.Epochs {
		for c := range res.Epochs[i] {
			assert.InDelta(t, mem.Epochs[i][c][0], res.Epochs[i][c][0], 10)
		}
	}
}
