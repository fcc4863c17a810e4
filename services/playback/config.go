// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package playback

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the tunable constants of the playback engine.
//
// The defaults preserve the long-standing viewer behavior, including the
// historical magic numbers (the 0.54 sequence-only threshold, the 15-second
// edge wait, the 3-retry prefetch policy). They are exposed as configuration
// rather than re-derived; change them only with care.
type Config struct {
	// SequenceOnlyThreshold is the UI speed above which the graph is
	// switched to sequence-only mode.
	SequenceOnlyThreshold float64 `json:"sequence_only_threshold" yaml:"sequence_only_threshold" validate:"gte=0,lte=1"`

	// EdgeWaitTimeout bounds how long the engine waits for a node's edge
	// status to resolve. Expiry is definitive: the append worker treats it
	// as fatal, the termination watcher as "no edge".
	EdgeWaitTimeout time.Duration `json:"edge_wait_timeout" yaml:"edge_wait_timeout" validate:"gt=0"`

	// SequenceFetchRetries is how many times a failed sequence fetch is
	// retried before the prefetch cycle is skipped.
	SequenceFetchRetries int `json:"sequence_fetch_retries" yaml:"sequence_fetch_retries" validate:"gte=0"`

	// PrefetchConcurrency caps simultaneous in-flight node fetches issued
	// by the prefetch scheduler.
	PrefetchConcurrency int `json:"prefetch_concurrency" yaml:"prefetch_concurrency" validate:"gt=0"`

	// TrimInterval is the head-advance cadence of history trimming: the
	// trajectory is trimmed after the 1st advance and every TrimInterval-th
	// advance thereafter.
	TrimInterval int `json:"trim_interval" yaml:"trim_interval" validate:"gt=0"`
}

// DefaultConfig returns the production engine configuration.
func DefaultConfig() Config {
	return Config{
		SequenceOnlyThreshold: 0.54,
		EdgeWaitTimeout:       15 * time.Second,
		SequenceFetchRetries:  3,
		PrefetchConcurrency:   6,
		TrimInterval:          10,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML config file and merges it over the defaults.
// Fields absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read playback config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse playback config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
