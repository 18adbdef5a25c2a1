// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Lisanne Borst.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config loads the batch settings file and its environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LisanneBorst/Acute-social-colonies/circadian"
	"github.com/LisanneBorst/Acute-social-colonies/epoch"
	"github.com/LisanneBorst/Acute-social-colonies/ledger"
	"github.com/LisanneBorst/Acute-social-colonies/pulse"
)

// ErrInvalid indicates settings that cannot drive a batch run.
var ErrInvalid = errors.New("config: invalid settings")

// Settings mirrors the JSON settings file.
type Settings struct {
	EDFFolder    string `json:"edf_folder"`
	EventsFolder string `json:"event_trace_folder"`
	EpochsFolder string `json:"epochs_folder"`

	// Behaviors maps a behavior label to its epoch length in seconds.
	Behaviors map[string]float64 `json:"behaviors_and_lens"`
	// RelativeStart is the epoch start relative to the event onset, in seconds.
	RelativeStart float64 `json:"relative_start"`
	// PlossThreshold is the package loss allowance in milliseconds.
	PlossThreshold float64 `json:"ploss_threshold"`

	TicksPerPulse int             `json:"ticks_per_pulse"`
	FPS           float64         `json:"fps"`
	Circadian     CircadianConfig `json:"circadian"`
}

// CircadianConfig is the light/dark convention of the colony.
type CircadianConfig struct {
	SecondsPerHour float64 `json:"seconds_per_hour"`
	HoursPerPhase  float64 `json:"hours_per_phase"`
	Start          string  `json:"start_phase"`
}

// Config is the complete configuration of a batch run.
type Config struct {
	Settings

	RedisAddr         string
	RedisSet          string
	CassandraHosts    []string
	CassandraKeyspace string
	LogLevel          slog.Level
	Workers           int
}

// Default returns the settings of the colony pipeline.
func Default() Settings {
	return Settings{
		EDFFolder:    "edf",
		EventsFolder: "event_traces",
		EpochsFolder: "epochs",
		Behaviors: map[string]float64{
			"social_sniff":    0.5,
			"social_approach": 1,
			"social_contact":  2,
		},
		PlossThreshold: 5,
		TicksPerPulse:  pulse.DefaultTicksPerPulse,
		FPS:            pulse.DefaultFPS,
		Circadian: CircadianConfig{
			SecondsPerHour: 3600,
			HoursPerPhase:  12,
			Start:          string(circadian.Dark),
		},
	}
}

// Load reads the settings file at path over the defaults, applies the
// environment overrides and validates the result. An empty path uses the
// defaults only.
func Load(path string) (*Config, error) {
	settings := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading settings: %w", err)
		}
		defaults := settings.Behaviors
		settings.Behaviors = nil
		if err := json.Unmarshal(b, &settings); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
		}
		// A behavior list in the file replaces the default one.
		if settings.Behaviors == nil {
			settings.Behaviors = defaults
		}
	}

	cfg := &Config{
		Settings:          settings,
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisSet:          getEnv("REDIS_SET", ledger.DefaultSet),
		CassandraKeyspace: getEnv("CASSANDRA_KEYSPACE", "colonies"),
	}
	if hosts := getEnv("CASSANDRA_HOSTS", ""); hosts != "" {
		cfg.CassandraHosts = strings.Split(hosts, ",")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalid, err)
	}
	workers, err := strconv.Atoi(getEnv("EPOCH_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("%w: EPOCH_WORKERS: %w", ErrInvalid, err)
	}
	cfg.Workers = workers

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every behavior can be extracted.
func (c *Config) Validate() error {
	if c.EDFFolder == "" || c.EventsFolder == "" || c.EpochsFolder == "" {
		return fmt.Errorf("%w: edf, event trace and epochs folders are required", ErrInvalid)
	}
	if len(c.Behaviors) == 0 {
		return fmt.Errorf("%w: no behaviors configured", ErrInvalid)
	}
	for _, label := range c.Labels() {
		if err := c.Params(label).Validate(); err != nil {
			return fmt.Errorf("%w: behavior %s: %w", ErrInvalid, label, err)
		}
	}
	if c.TicksPerPulse <= 0 || c.FPS <= 0 {
		return fmt.Errorf("%w: ticks_per_pulse %d, fps %v", ErrInvalid, c.TicksPerPulse, c.FPS)
	}
	if err := c.Tagger().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: EPOCH_WORKERS must be positive, got %d", ErrInvalid, c.Workers)
	}
	return nil
}

// Labels returns the configured behavior labels, sorted.
func (c *Config) Labels() []string {
	labels := make([]string, 0, len(c.Behaviors))
	for label := range c.Behaviors {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Params returns the extraction parameters of a behavior.
func (c *Config) Params(label string) epoch.Params {
	return epoch.Params{
		EpochLength:    seconds(c.Behaviors[label]),
		RelativeStart:  seconds(c.RelativeStart),
		PlossThreshold: time.Duration(c.PlossThreshold * float64(time.Millisecond)),
	}
}

// Tagger returns the circadian convention.
func (c *Config) Tagger() circadian.Tagger {
	return circadian.Tagger{
		FPS:            c.FPS,
		SecondsPerHour: c.Circadian.SecondsPerHour,
		HoursPerPhase:  c.Circadian.HoursPerPhase,
		Start:          circadian.Phase(strings.ToLower(c.Circadian.Start)),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
