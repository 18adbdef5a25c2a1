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
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/LisanneBorst/Acute-social-colonies/behavior"
	"github.com/LisanneBorst/Acute-social-colonies/circadian"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
)

// Options configures an Extractor.
type Options struct {
	Logger        *slog.Logger
	Tagger        circadian.Tagger
	FPS           float64 // Video frame rate of the event traces
	TicksPerPulse int     // Video frames between two TTL pulses
}

// Option represents a functional option for configuring an Extractor.
type Option func(*Options)

// WithLogger sets the logger skips and rejections are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTagger sets the circadian convention.
func WithTagger(t circadian.Tagger) Option {
	return func(o *Options) {
		o.Tagger = t
	}
}

// WithFPS sets the video frame rate.
func WithFPS(fps float64) Option {
	return func(o *Options) {
		o.FPS = fps
	}
}

// WithTicksPerPulse sets the number of frames between two TTL pulses.
func WithTicksPerPulse(ticks int) Option {
	return func(o *Options) {
		o.TicksPerPulse = ticks
	}
}

// DefaultOptions returns the colony conventions: 30 fps video, a pulse every
// 30 frames and recordings starting at lights off.
func DefaultOptions() Options {
	return Options{
		Logger:        slog.Default(),
		Tagger:        circadian.DefaultTagger(),
		FPS:           pulse.DefaultFPS,
		TicksPerPulse: pulse.DefaultTicksPerPulse,
	}
}

// Extractor cuts behavioral epochs out of the recordings of a store.
// An Extractor holds no per-call state and may be shared between goroutines
// when its store and event source allow it.
type Extractor struct {
	store  recording.Store
	events behavior.Source
	opts   Options
}

// NewExtractor returns an extractor reading signals from store and events from events.
func NewExtractor(store recording.Store, events behavior.Source, opts ...Option) *Extractor {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Extractor{store: store, events: events, opts: o}
}

// Extract returns the accepted epochs of every event with the given behavior
// label in the recording.
//
// Events whose onset cannot be translated or whose window leaves the
// recording are skipped; epochs whose signal and quality channels differ or
// whose package loss exceeds the allowance are rejected. Both are logged and
// recorded in Result.Outcomes. A recording without such events returns an
// error wrapping ErrNoEvents. Invalid parameters and recording configuration
// errors (recording.ErrConfig) are returned before any event is processed.
func (x *Extractor) Extract(recordingID, label string, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := x.opts.Tagger.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadParams, err)
	}

	h, err := x.store.Open(recordingID)
	if err != nil {
		return nil, fmt.Errorf("error opening recording %s: %w", recordingID, err)
	}
	defer h.Close()

	id := h.Identity()
	events, err := x.events.Events(id, label)
	if err != nil {
		return nil, fmt.Errorf("error reading %s events of %s: %w", label, recordingID, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoEvents, label, recordingID)
	}

	accessor, err := recording.NewAccessor(h)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", recordingID, err)
	}
	sfreq, err := samplingRate(h)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", recordingID, err)
	}
	translator, err := x.translator(h, id, sfreq)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", recordingID, err)
	}

	ex := &extraction{
		logger:     x.opts.Logger.With(slog.String("recording", recordingID), slog.String("behavior", label)),
		accessor:   accessor,
		translator: translator,
		assembler:  NewAssembler(id, label, translator),
		tagger:     x.opts.Tagger,
		length:     p.LengthSamples(sfreq),
		offset:     p.OffsetSamples(sfreq),
		maxMissing: p.MaxMissing(sfreq),
	}
	if ex.length <= 0 {
		return nil, fmt.Errorf("%w: epoch length %v is shorter than one sample at %v Hz", ErrBadParams, p.EpochLength, sfreq)
	}

	result := &Result{
		RecordingID: recordingID,
		Behavior:    label,
		Params:      p,
		SFreq:       sfreq,
		Channels:    h.ChannelLocations(),
		Outcomes:    make([]Outcome, len(events)),
	}

	var candidates []candidate
	var keep []bool
	for i, e := range events {
		o, c, err := ex.process(i, e)
		if err != nil {
			return nil, fmt.Errorf("recording %s, event %d: %w", recordingID, i, err)
		}
		result.Outcomes[i] = o
		if c != nil {
			candidates = append(candidates, *c)
			keep = append(keep, o.State == Accepted)
		}
	}
	result.Epochs, result.Metadata = keepMasked(candidates, keep)
	if ex.channels != nil {
		result.Channels = ex.channels
	}

	ex.logger.Info("Extracted epochs",
		slog.Int("events", len(events)),
		slog.Int("accepted", result.Count(Accepted)),
		slog.Int("rejected", result.Count(Rejected)),
		slog.Int("skipped", result.Count(Skipped)))

	return result, nil
}

func (x *Extractor) translator(h recording.Handle, id recording.Identity, sfreq float64) (*pulse.Translator, error) {
	train, err := h.PulseTrain(id.Arena)
	if err != nil {
		return nil, fmt.Errorf("%w: pulse train of arena %d: %w", recording.ErrConfig, id.Arena, err)
	}
	registry, err := pulse.NewRegistry(train, x.opts.TicksPerPulse)
	if err != nil {
		return nil, fmt.Errorf("%w: pulse train of arena %d: %w", recording.ErrConfig, id.Arena, err)
	}
	translator, err := pulse.NewTranslator(registry, x.opts.FPS, sfreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadParams, err)
	}
	return translator, nil
}

// samplingRate returns the common rate of the raw and filtered streams.
func samplingRate(h recording.Handle) (float64, error) {
	raw, err := h.SamplingRate(recording.Raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", recording.ErrConfig, err)
	}
	filtered, err := h.SamplingRate(recording.Filtered)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", recording.ErrConfig, err)
	}
	if raw != filtered {
		return 0, fmt.Errorf("%w: raw stream at %v Hz, filtered stream at %v Hz", recording.ErrConfig, raw, filtered)
	}
	return filtered, nil
}

// extraction is the state of one Extract call.
type extraction struct {
	logger     *slog.Logger
	accessor   *recording.Accessor
	translator *pulse.Translator
	assembler  *Assembler
	tagger     circadian.Tagger
	length     int
	offset     int
	maxMissing int

	// channels is the channel set of the first candidate; every later
	// candidate must match it.
	channels []recording.Channel
}

// process moves one event from Pending to a terminal state. It returns a
// candidate for every event that reached Loaded. Errors other than the
// per-event skip and reject conditions are returned.
func (r *extraction) process(index int, e behavior.Event) (Outcome, *candidate, error) {
	o := Outcome{Event: e, State: Pending}

	onset, err := r.translator.Translate(e.Onset)
	if errors.Is(err, pulse.ErrOutOfRange) {
		return r.skip(index, o, err), nil, nil
	} else if err != nil {
		return o, nil, err
	}
	o.State = Translated
	o.EpochStart = onset + pulse.Sample(r.offset)

	start := int(o.EpochStart)
	w, err := r.accessor.ReadWindow(start, start+r.length)
	switch {
	case errors.Is(err, recording.ErrRangeOutside):
		return r.skip(index, o, err), nil, nil
	case errors.Is(err, recording.ErrChannelMismatch):
		return r.reject(index, o, err.Error()), nil, nil
	case err != nil:
		return o, nil, err
	}
	if r.channels == nil {
		r.channels = w.Signal.Channels
	} else if !slices.Equal(r.channels, w.Signal.Channels) {
		return r.reject(index, o, fmt.Sprintf("%v: channel set differs from earlier epochs", recording.ErrChannelMismatch)), nil, nil
	}
	o.State = Loaded
	o.Missing = w.WorstMissing()

	c := &candidate{
		data: w.Signal.Data,
		metadata: r.assembler.Build(e, Window{
			Onset:   onset,
			Start:   o.EpochStart,
			Missing: o.Missing,
		}, r.tagger.Phase(int(e.Offset))),
	}

	if o.Missing > r.maxMissing {
		return r.reject(index, o, fmt.Sprintf("%d missing samples exceed the allowance of %d", o.Missing, r.maxMissing)), c, nil
	}
	o.State = Accepted
	r.logger.Debug("Accepted epoch",
		slog.Int("event", index),
		slog.Int("onset_frame", int(e.Onset)),
		slog.Int("epoch_start", start),
		slog.Int("missing", o.Missing))
	return o, c, nil
}

func (r *extraction) skip(index int, o Outcome, err error) Outcome {
	o.State = Skipped
	o.Reason = err.Error()
	r.logger.Warn("Skipped event",
		slog.Int("event", index),
		slog.Int("onset_frame", int(o.Event.Onset)),
		slog.String("reason", o.Reason))
	return o
}

func (r *extraction) reject(index int, o Outcome, reason string) Outcome {
	o.State = Rejected
	o.Reason = reason
	r.logger.Info("Rejected epoch",
		slog.Int("event", index),
		slog.Int("onset_frame", int(o.Event.Onset)),
		slog.String("reason", o.Reason))
	return o
}
