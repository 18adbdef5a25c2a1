// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command epochctl extracts behavioral EEG epochs from every recording of the
// configured EDF folder.
//
// Usage:
//
//	epochctl [-settings settings.json] [recording id ...]
//
// Without recording ids every recording of the EDF folder is processed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LisanneBorst/Acute-social-colonies/behavior"
	"github.com/LisanneBorst/Acute-social-colonies/catalog"
	"github.com/LisanneBorst/Acute-social-colonies/epoch"
	"github.com/LisanneBorst/Acute-social-colonies/internal/batch"
	"github.com/LisanneBorst/Acute-social-colonies/internal/config"
	"github.com/LisanneBorst/Acute-social-colonies/ledger"
	"github.com/LisanneBorst/Acute-social-colonies/recording"
	"github.com/google/uuid"
)

func main() {
	settingsPath := flag.String("settings", "settings.json", "path to the JSON settings file, empty for defaults")
	flag.Parse()

	if err := run(*settingsPath, flag.Args()); err != nil {
		slog.Error("Extraction failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(settingsPath string, ids []string) error {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	logger := config.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.EpochsFolder, 0o755); err != nil {
		return fmt.Errorf("error creating %s: %w", cfg.EpochsFolder, err)
	}

	store := recording.NewEDFStore(cfg.EDFFolder)
	if len(ids) == 0 {
		if ids, err = store.List(); err != nil {
			return err
		}
	}

	runner := &batch.Runner{
		Extractor: epoch.NewExtractor(store, behavior.NewCSVSource(cfg.EventsFolder),
			epoch.WithLogger(logger),
			epoch.WithTagger(cfg.Tagger()),
			epoch.WithFPS(cfg.FPS),
			epoch.WithTicksPerPulse(cfg.TicksPerPulse)),
		EpochsDir: cfg.EpochsFolder,
		Workers:   cfg.Workers,
		Logger:    logger,
		RunID:     uuid.New(),
	}
	for _, label := range cfg.Labels() {
		runner.Jobs = append(runner.Jobs, batch.Job{Label: label, Params: cfg.Params(label)})
	}

	if cfg.RedisAddr != "" {
		l, err := ledger.Connect(ctx, cfg.RedisAddr, cfg.RedisSet)
		if err != nil {
			return err
		}
		defer l.Close()
		runner.Ledger = l
		logger.Info("Connected to Redis", slog.String("addr", cfg.RedisAddr))
	}
	if len(cfg.CassandraHosts) > 0 {
		c, err := catalog.Connect(cfg.CassandraHosts, cfg.CassandraKeyspace)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.EnsureSchema(ctx); err != nil {
			return err
		}
		runner.Catalog = c
		logger.Info("Connected to Cassandra", slog.Any("hosts", cfg.CassandraHosts))
	}

	logger.Info("Starting extraction",
		slog.String("run_id", runner.RunID.String()),
		slog.Int("recordings", len(ids)),
		slog.Any("behaviors", cfg.Labels()),
		slog.Int("workers", cfg.Workers))

	summary, err := runner.Run(ctx, ids)
	logger.Info("Extraction finished",
		slog.String("run_id", runner.RunID.String()),
		slog.Int("recordings", summary.Recordings),
		slog.Int("failed", summary.Failed),
		slog.Int("already_done", summary.Done),
		slog.Int("empty", summary.Empty),
		slog.Int("archived", summary.Archived),
		slog.Int("epochs", summary.Epochs))
	return err
}
