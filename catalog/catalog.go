// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package catalog stores the metadata of extracted epochs in Cassandra, one
// row per epoch, partitioned by recording and behavior.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/circadian"
	"github.com/LisanneBorst/Acute-social-colonies/epoch"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// batchSize is the number of rows written per unlogged batch.
const batchSize = 50

const createTable = `CREATE TABLE IF NOT EXISTS epochs (
	recording_id text,
	behavior text,
	run_id uuid,
	epoch_index int,
	animal_id text,
	arena int,
	day int,
	circ_phase text,
	beh_start_frame int,
	beh_end_frame int,
	beh_dur_frame int,
	beh_start_sample int,
	beh_end_sample int,
	beh_dur_sample int,
	epoch_start_sample int,
	missing_samples int,
	PRIMARY KEY ((recording_id, behavior), run_id, epoch_index)
)`

const insertRow = `INSERT INTO epochs (recording_id, behavior, run_id, epoch_index,
	animal_id, arena, day, circ_phase,
	beh_start_frame, beh_end_frame, beh_dur_frame,
	beh_start_sample, beh_end_sample, beh_dur_sample,
	epoch_start_sample, missing_samples)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRows = `SELECT epoch_index, animal_id, arena, day, circ_phase,
	beh_start_frame, beh_end_frame, beh_dur_frame,
	beh_start_sample, beh_end_sample, beh_dur_sample,
	epoch_start_sample, missing_samples
	FROM epochs WHERE recording_id = ? AND behavior = ? AND run_id = ?`

// Row is one catalog entry.
type Row struct {
	RecordingID string
	RunID       uuid.UUID
	Index       int
	Metadata    epoch.Metadata
}

// Rows maps the metadata of a result to catalog rows, in epoch order.
func Rows(runID uuid.UUID, res *epoch.Result) []Row {
	rows := make([]Row, len(res.Metadata))
	for i, m := range res.Metadata {
		rows[i] = Row{RecordingID: res.RecordingID, RunID: runID, Index: i, Metadata: m}
	}
	return rows
}

// values returns the bind values of insertRow.
func (r Row) values() []interface{} {
	m := r.Metadata
	return []interface{}{
		r.RecordingID, m.Behavior, gocql.UUID(r.RunID), r.Index,
		m.AnimalID, m.Arena, m.Day, string(m.CircPhase),
		int(m.StartFrame), int(m.EndFrame), m.DurFrame,
		int(m.StartSample), int(m.EndSample), m.DurSample,
		int(m.EpochStart), m.MissingSamples,
	}
}

// Catalog writes and reads epoch rows.
type Catalog struct {
	session *gocql.Session
}

// New returns a catalog over an open session.
func New(session *gocql.Session) *Catalog {
	return &Catalog{session: session}
}

// Connect establishes a connection to the Cassandra cluster.
func Connect(hosts []string, keyspace string) (*Catalog, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Cassandra: %w", err)
	}
	return New(session), nil
}

// EnsureSchema creates the epochs table if it does not exist.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if err := c.session.Query(createTable).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to create epochs table: %w", err)
	}
	return nil
}

// Save inserts one row per accepted epoch of res.
func (c *Catalog) Save(ctx context.Context, runID uuid.UUID, res *epoch.Result) error {
	rows := Rows(runID, res)
	for lo := 0; lo < len(rows); lo += batchSize {
		batch := c.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
		for _, r := range rows[lo:min(lo+batchSize, len(rows))] {
			batch.Query(insertRow, r.values()...)
		}
		if err := c.session.ExecuteBatch(batch); err != nil {
			return fmt.Errorf("failed to save epochs of %s: %w", res.RecordingID, err)
		}
	}
	return nil
}

// Epochs returns the metadata saved by a run for a recording and behavior, in epoch order.
func (c *Catalog) Epochs(ctx context.Context, recordingID, behavior string, runID uuid.UUID) ([]epoch.Metadata, error) {
	iter := c.session.Query(selectRows, recordingID, behavior, gocql.UUID(runID)).WithContext(ctx).Iter()

	var metadata []epoch.Metadata
	var m epoch.Metadata
	var phase string
	var index, startFrame, endFrame, startSample, endSample, epochStart int
	for iter.Scan(&index, &m.AnimalID, &m.Arena, &m.Day, &phase,
		&startFrame, &endFrame, &m.DurFrame,
		&startSample, &endSample, &m.DurSample,
		&epochStart, &m.MissingSamples) {
		m.Behavior = behavior
		m.CircPhase = circadian.Phase(phase)
		m.StartFrame, m.EndFrame = pulse.Frame(startFrame), pulse.Frame(endFrame)
		m.StartSample, m.EndSample = pulse.Sample(startSample), pulse.Sample(endSample)
		m.EpochStart = pulse.Sample(epochStart)
		metadata = append(metadata, m)
		m = epoch.Metadata{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("error fetching epochs of %s: %w", recordingID, err)
	}
	return metadata, nil
}

// Close closes the Cassandra session.
func (c *Catalog) Close() {
	c.session.Close()
}
