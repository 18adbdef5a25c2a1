// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package batch runs the extraction of every configured behavior over a set
// of recordings, archiving and cataloguing the results.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/archive"
	"github.com/LisanneBorst/Acute-social-colonies/epoch"
	"github.com/LisanneBorst/Acute-social-colonies/ledger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Ledger records completed extractions.
type Ledger interface {
	Done(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key, runID string) error
}

// Catalog stores epoch metadata.
type Catalog interface {
	Save(ctx context.Context, runID uuid.UUID, res *epoch.Result) error
}

// Job is the extraction of one behavior.
type Job struct {
	Label  string
	Params epoch.Params
}

// Summary counts what a run did.
type Summary struct {
	Recordings int // Recordings processed without a recording-level failure
	Failed     int // Recordings aborted by a failure
	Done       int // Jobs skipped because the ledger had them
	Empty      int // Jobs without events or without accepted epochs
	Archived   int // Jobs whose epochs were archived
	Epochs     int // Accepted epochs archived
}

// Runner runs jobs over recordings. Ledger and Catalog are optional.
type Runner struct {
	Extractor *epoch.Extractor
	Jobs      []Job
	EpochsDir string
	Ledger    Ledger
	Catalog   Catalog
	Workers   int
	Logger    *slog.Logger
	RunID     uuid.UUID
	Now       func() time.Time

	mu      sync.Mutex
	summary Summary
}

// Run processes the recordings with at most Workers in parallel. A failing
// recording is logged and does not stop the others; Run only returns an error
// when ctx ends before every recording was processed.
func (r *Runner) Run(ctx context.Context, recordingIDs []string) (Summary, error) {
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	r.summary = Summary{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Workers, 1))
	for _, id := range recordingIDs {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			if err := r.recording(gctx, id); err != nil {
				r.Logger.Error("Recording failed", slog.String("recording", id), slog.String("error", err.Error()))
				r.count(func(s *Summary) { s.Failed++ })
				return nil
			}
			r.count(func(s *Summary) { s.Recordings++ })
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return r.summary, fmt.Errorf("batch interrupted: %w", err)
	}
	return r.summary, nil
}

func (r *Runner) count(f func(*Summary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f(&r.summary)
}

// recording runs every job on one recording.
func (r *Runner) recording(ctx context.Context, id string) error {
	for _, job := range r.Jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.job(ctx, id, job); err != nil {
			return fmt.Errorf("%s: %w", job.Label, err)
		}
	}
	return nil
}

func (r *Runner) job(ctx context.Context, id string, job Job) error {
	logger := r.Logger.With(slog.String("recording", id), slog.String("behavior", job.Label))
	key := ledger.Key(id, job.Label, job.Params)

	if r.Ledger != nil {
		done, err := r.Ledger.Done(ctx, key)
		if err != nil {
			return err
		}
		if done {
			logger.Debug("Already extracted")
			r.count(func(s *Summary) { s.Done++ })
			return nil
		}
	}

	res, err := r.Extractor.Extract(id, job.Label, job.Params)
	switch {
	case errors.Is(err, epoch.ErrNoEvents):
		logger.Info("No events")
		r.count(func(s *Summary) { s.Empty++ })
		return r.mark(ctx, key)
	case err != nil:
		return err
	case res.Len() == 0:
		logger.Info("No accepted epochs", slog.Int("events", len(res.Outcomes)))
		r.count(func(s *Summary) { s.Empty++ })
		return r.mark(ctx, key)
	}

	if err := archive.Write(r.EpochsDir, res, r.Now()); err != nil {
		return err
	}
	if r.Catalog != nil {
		if err := r.Catalog.Save(ctx, r.RunID, res); err != nil {
			return err
		}
	}
	logger.Info("Archived epochs", slog.Int("epochs", res.Len()))
	r.count(func(s *Summary) {
		s.Archived++
		s.Epochs += res.Len()
	})
	return r.mark(ctx, key)
}

func (r *Runner) mark(ctx context.Context, key string) error {
	if r.Ledger == nil {
		return nil
	}
	return r.Ledger.Mark(ctx, key, r.RunID.String())
}
