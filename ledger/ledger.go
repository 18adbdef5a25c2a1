// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package ledger records which extractions are complete, keyed by recording,
// behavior and extraction parameters, in a Redis set.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/LisanneBorst/Acute-social-colonies/epoch"
	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultSet is the Redis set completed keys are stored in.
const DefaultSet = "epochs:done"

// Ledger is a completion ledger backed by Redis. It is safe for concurrent use.
type Ledger struct {
	client *redis.Client
	set    string
	runs   string
}

// New returns a ledger over an existing client, storing keys in set.
func New(client *redis.Client, set string) *Ledger {
	return &Ledger{client: client, set: set, runs: set + ":runs"}
}

// Connect establishes a connection to the Redis server at addr.
func Connect(ctx context.Context, addr, set string) (*Ledger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client, set), nil
}

// Key identifies one extraction. Any change of the parameters yields a new key.
func Key(recordingID, behavior string, p epoch.Params) string {
	params := strings.Join([]string{
		strconv.FormatInt(int64(p.EpochLength), 10),
		strconv.FormatInt(int64(p.RelativeStart), 10),
		strconv.FormatInt(int64(p.PlossThreshold), 10),
	}, "|")
	return fmt.Sprintf("%s/%s/%016x", recordingID, behavior, xxhash.Sum64String(params))
}

// Done reports whether key was marked complete.
func (l *Ledger) Done(ctx context.Context, key string) (bool, error) {
	done, err := l.client.SIsMember(ctx, l.set, key).Result()
	if err != nil {
		return false, fmt.Errorf("error checking ledger: %w", err)
	}
	return done, nil
}

// Mark records key as completed by the given run.
func (l *Ledger) Mark(ctx context.Context, key, runID string) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, l.set, key)
		pipe.HSet(ctx, l.runs, key, runID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error marking %s complete: %w", key, err)
	}
	return nil
}

// Run returns the id of the run that completed key, and false if key is not complete.
func (l *Ledger) Run(ctx context.Context, key string) (string, bool, error) {
	runID, err := l.client.HGet(ctx, l.runs, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("error reading ledger: %w", err)
	}
	return runID, true, nil
}

// Forget removes key so that the extraction runs again.
func (l *Ledger) Forget(ctx context.Context, key string) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, l.set, key)
		pipe.HDel(ctx, l.runs, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error forgetting %s: %w", key, err)
	}
	return nil
}

// Count returns the number of completed keys.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	n, err := l.client.SCard(ctx, l.set).Result()
	if err != nil {
		return 0, fmt.Errorf("error counting ledger: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (l *Ledger) Close() error {
	return l.client.Close()
}
