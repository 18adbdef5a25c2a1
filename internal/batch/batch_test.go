// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package batch_test

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/archive"
	"github.com/LisanneBorst/Acute-social-colonies/behavior"
	"github.com/LisanneBorst/Acute-social-colonies/epoch"
	"github.com/LisanneBorst/Acute-social-colonies/internal/batch"
	"github.com/LisanneBorst/Acute-social-colonies/ledger"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/LisanneBorst/Acute-social-colonies/quality"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog remembers saved results.
type fakeCatalog struct {
	mu    sync.Mutex
	saved map[string]int
}

func (c *fakeCatalog) Save(_ context.Context, _ uuid.UUID, res *epoch.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saved == nil {
		c.saved = map[string]int{}
	}
	c.saved[res.RecordingID+"/"+res.Behavior] += res.Len()
	return nil
}

// fiveSeconds returns a clean 1000 Hz recording with a pulse every second.
func fiveSeconds(id string, arena int) *recording.Recording {
	data := make([]float64, 5000)
	for i := range data {
		data[i] = 50 * math.Sin(float64(i)/10)
	}
	var pulses []pulse.Sample
	for s := 0; s < 5; s++ {
		pulses = append(pulses, pulse.Sample(s*1000+250))
	}
	return &recording.Recording{
		Identity: recording.Identity{RecordingID: id, AnimalID: "a-" + id, Arena: arena, Day: 1},
		Channels: []recording.Channel{recording.NewChannel("OFC_L")},
		SFreq:    1000,
		Raw:      [][]float64{data},
		Filtered: [][]float64{data},
		Pulses:   map[int][]pulse.Sample{arena: pulses},
		Band:     quality.Band{Low: -1000, High: 1000},
	}
}

func setup(t *testing.T) (*batch.Runner, *fakeCatalog, *bytes.Buffer) {
	t.Helper()
	store := recording.NewMemStore()
	store.Put(fiveSeconds("rec1", 1))
	store.Put(fiveSeconds("rec2", 2))
	broken := fiveSeconds("rec3", 3)
	broken.Pulses = nil
	store.Put(broken)

	events := behavior.SliceSource{
		"rec1": {
			{Label: "social_sniff", Onset: 30, Offset: 40},
			{Label: "social_sniff", Onset: 60, Offset: 75},
			{Label: "social_approach", Onset: 0, Offset: 20}, // pulse 0 is out of range
		},
		"rec2": {{Label: "social_sniff", Onset: 90, Offset: 100}},
		"rec3": {{Label: "social_approach", Onset: 30, Offset: 40}},
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	catalog := &fakeCatalog{}

	srv := miniredis.RunT(t)
	l, err := ledger.Connect(context.Background(), srv.Addr(), ledger.DefaultSet)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, l.Close())
	})

	return &batch.Runner{
		Extractor: epoch.NewExtractor(store, events, epoch.WithLogger(logger)),
		Jobs: []batch.Job{
			{Label: "social_approach", Params: epoch.Params{EpochLength: time.Second, PlossThreshold: 5 * time.Millisecond}},
			{Label: "social_sniff", Params: epoch.Params{EpochLength: 500 * time.Millisecond, PlossThreshold: 5 * time.Millisecond}},
		},
		EpochsDir: t.TempDir(),
		Ledger:    l,
		Catalog:   catalog,
		Workers:   2,
		Logger:    logger,
		RunID:     uuid.New(),
		Now:       func() time.Time { return time.Date(2023, 5, 1, 9, 30, 0, 0, time.UTC) },
	}, catalog, &logs
}

func TestRun(t *testing.T) {
	r, catalog, logs := setup(t)

	summary, err := r.Run(context.Background(), []string{"rec1", "rec2", "rec3", "missing"})
	require.NoError(t, err)

	assert.Equal(t, batch.Summary{
		Recordings: 2,
		Failed:     2,
		Empty:      2, // rec1 approach has no accepted epoch, rec2 has no approach events
		Archived:   2,
		Epochs:     3,
	}, summary)
	assert.Equal(t, map[string]int{"rec1/social_sniff": 2, "rec2/social_sniff": 1}, catalog.saved)

	assert.True(t, archive.Exists(r.EpochsDir, "rec1", "social_sniff"))
	assert.False(t, archive.Exists(r.EpochsDir, "rec1", "social_approach"))

	res, err := archive.Load(r.EpochsDir, "rec2", "social_sniff")
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "a-rec2", res.Metadata[0].AnimalID)
	assert.Equal(t, 2, res.Metadata[0].Arena)

	assert.Contains(t, logs.String(), `"msg":"Recording failed"`)
	assert.Contains(t, logs.String(), `"recording":"rec3"`)
}

func TestRunCompletesWithoutError(t *testing.T) {
	r, _, _ := setup(t)
	ctx := context.Background()

	summary, err := r.Run(ctx, []string{"rec1"})
	require.NoError(t, err)
	require.NoError(t, ctx.Err())
	assert.Equal(t, batch.Summary{Recordings: 1, Empty: 1, Archived: 1, Epochs: 2}, summary)
}

func TestRunSkipsCompletedJobs(t *testing.T) {
	r, catalog, _ := setup(t)
	ids := []string{"rec1", "rec2"}

	_, err := r.Run(context.Background(), ids)
	require.NoError(t, err)

	summary, err := r.Run(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, batch.Summary{Recordings: 2, Done: 4}, summary)
	assert.Equal(t, 2, catalog.saved["rec1/social_sniff"])
}

func TestRunCancelled(t *testing.T) {
	r, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Run(ctx, []string{"rec1", "rec2"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Archived)
}
