// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/panowalk/services/playback"
)

// CacheConfig holds configuration for the BadgerDB node cache.
type CacheConfig struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent caches. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// A node cache is rebuildable, so this defaults to false.
	SyncWrites bool

	// TTL is the lifetime of a cached node entry.
	// Default: 30 minutes. Set to 0 to cache forever.
	TTL time.Duration

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultCacheConfig returns sensible defaults for a persistent node cache.
func DefaultCacheConfig(path string) CacheConfig {
	return CacheConfig{
		Path: path,
		TTL:  30 * time.Minute,
	}
}

// InMemoryCacheConfig returns configuration optimized for testing.
func InMemoryCacheConfig() CacheConfig {
	return CacheConfig{
		InMemory: true,
		TTL:      30 * time.Minute,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NodeCache layers a BadgerDB read-through cache over a graph service.
//
// # Description
//
// Node resolutions are served from the embedded store when present and
// written back on miss, so a prefetched node costs one upstream fetch for
// the whole session. Sequence and edge resolutions pass through untouched:
// adjacency is time-sensitive and must not be served stale.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying *badger.DB is safe for
// concurrent transactions.
type NodeCache struct {
	upstream playback.GraphService
	db       *badger.DB
	ttl      time.Duration
	logger   *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewNodeCache opens the backing store and wraps the upstream graph.
//
// Description:
//
//	Opens a BadgerDB at the configured path, or in memory if InMemory is
//	true. Creates the directory if it doesn't exist.
//
// Inputs:
//
//	upstream - The graph service to cache. Must not be nil.
//	cfg - Cache configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*NodeCache - The cache. Caller must call Close() when done.
//	error - Non-nil if inputs are invalid or the store cannot be opened.
func NewNodeCache(upstream playback.GraphService, cfg CacheConfig) (*NodeCache, error) {
	if upstream == nil {
		return nil, errors.New("upstream graph service must not be nil")
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open node cache: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeCache{
		upstream: upstream,
		db:       db,
		ttl:      cfg.TTL,
		logger:   logger,
	}, nil
}

// Close closes the backing store.
func (c *NodeCache) Close() error {
	return c.db.Close()
}

// Hits returns the number of node resolutions served from the cache.
func (c *NodeCache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of node resolutions that went upstream.
func (c *NodeCache) Misses() int64 {
	return c.misses.Load()
}

// ResolveNode implements playback.GraphService with read-through caching.
func (c *NodeCache) ResolveNode(ctx context.Context, key string) (playback.Node, error) {
	if node, ok := c.get(key); ok {
		c.hits.Add(1)
		cacheHits.Inc()
		return node, nil
	}
	c.misses.Add(1)
	cacheMisses.Inc()

	node, err := c.upstream.ResolveNode(ctx, key)
	if err != nil {
		return playback.Node{}, err
	}
	c.put(node)
	return node, nil
}

// ResolveSequence implements playback.GraphService, delegating upstream.
func (c *NodeCache) ResolveSequence(ctx context.Context, sequenceKey, scopeKey string) (playback.Sequence, error) {
	return c.upstream.ResolveSequence(ctx, sequenceKey, scopeKey)
}

// ResolveEdges implements playback.GraphService, delegating upstream.
func (c *NodeCache) ResolveEdges(ctx context.Context, key string, kind playback.EdgeKind) (playback.EdgeStatus, error) {
	return c.upstream.ResolveEdges(ctx, key, kind)
}

// SetGraphMode implements playback.GraphService, delegating upstream.
func (c *NodeCache) SetGraphMode(mode playback.GraphMode) {
	c.upstream.SetGraphMode(mode)
}

// GraphMode implements playback.GraphService, delegating upstream.
func (c *NodeCache) GraphMode() playback.GraphMode {
	return c.upstream.GraphMode()
}

func (c *NodeCache) get(key string) (playback.Node, bool) {
	var node playback.Node
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("node cache read failed", "key", key, "error", err)
		}
		return playback.Node{}, false
	}
	return node, true
}

func (c *NodeCache) put(node playback.Node) {
	data, err := json.Marshal(node)
	if err != nil {
		c.logger.Warn("node cache encode failed", "key", node.Key, "error", err)
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(nodeKey(node.Key), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		// A failed write only costs a future upstream fetch.
		c.logger.Warn("node cache write failed", "key", node.Key, "error", err)
	}
}

func nodeKey(key string) []byte {
	return []byte("node:" + key)
}

var _ playback.GraphService = (*NodeCache)(nil)
