// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/panowalk/services/playback"
	"github.com/AleutianAI/panowalk/services/playback/graphstore"
	"github.com/AleutianAI/panowalk/services/playback/trajectory"
)

// runSimulate drives a playback session over a synthetic capture sequence
// until the engine stops itself at the end of the graph.
func runSimulate(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Close()

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}

	direction, ok := playback.ParseDirection(simDirection)
	if !ok {
		return fmt.Errorf("unknown direction %q", simDirection)
	}
	if simNodes < 2 {
		return fmt.Errorf("need at least 2 nodes, got %d", simNodes)
	}

	graph, seed := buildSyntheticGraph(simNodes)
	graph.SetLatency(time.Duration(simLatencyMS) * time.Millisecond)

	traj, err := trajectory.NewLog(seed)
	if err != nil {
		return fmt.Errorf("create trajectory: %w", err)
	}

	ctrl := playback.NewController(cfg, graph, traj, logger.Slog())
	ctrl.SetDirection(direction)
	ctrl.SetSpeed(simSpeed)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	events, unsub := ctrl.Subscribe()
	defer unsub()

	start := time.Now()
	ctrl.Play()
	go drivePlayer(ctx, ctrl, traj)

	// Wait for the engine to stop itself (graph exhaustion) or for a signal.
wait:
	for {
		select {
		case <-ctx.Done():
			ctrl.Stop()
			break wait
		case ev := <-events:
			if ev.Kind == playback.ChangePlaying && !ev.State.Playing {
				break wait
			}
		}
	}

	elapsed := time.Since(start)
	final := traj.CurrentNode()
	fmt.Fprintf(os.Stdout, "simulation finished in %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stdout, "  final node:      %s\n", final.Key)
	fmt.Fprintf(os.Stdout, "  trajectory size: %d\n", traj.Len())
	fmt.Fprintf(os.Stdout, "  node fetches:    %d\n", graph.NodeCalls())
	fmt.Fprintf(os.Stdout, "  graph mode:      %s\n", graph.GraphMode())
	return nil
}

// drivePlayer advances the trajectory head at the paced rate while the
// session is active, standing in for the rendering loop of a real viewer.
func drivePlayer(ctx context.Context, ctrl *playback.Controller, traj *trajectory.Log) {
	for {
		if err := traj.Limiter().Wait(ctx); err != nil {
			return
		}
		if !ctrl.Playing() {
			return
		}
		traj.Advance()
	}
}

// buildSyntheticGraph creates one linear capture sequence of n nodes with
// spatial forward edges mirroring the sequence order.
func buildSyntheticGraph(n int) (*graphstore.MemoryGraph, playback.Node) {
	graph := graphstore.NewMemoryGraph()
	now := time.Now().UnixMilli()

	nodes := make([]playback.Node, n)
	for i := range nodes {
		nodes[i] = playback.Node{
			Key:             fmt.Sprintf("node-%04d", i),
			Lat:             47.60 + float64(i)*0.0001,
			Lon:             -122.33 + float64(i)*0.0001,
			CapturedAtMilli: now + int64(i)*1000,
		}
	}
	graph.AddSequence("seq-0001", nodes...)
	for i := 0; i < n-1; i++ {
		graph.AddSpatialEdge(nodes[i].Key, nodes[i+1].Key, playback.DirectionForward)
		graph.AddSpatialEdge(nodes[i+1].Key, nodes[i].Key, playback.DirectionBackward)
	}

	seed := nodes[0]
	seed.SequenceKey = "seq-0001"
	return graph, seed
}

// loadEngineConfig loads the YAML config when --config is set, otherwise
// the defaults.
func loadEngineConfig() (playback.Config, error) {
	if configPath == "" {
		return playback.DefaultConfig(), nil
	}
	cfg, err := playback.LoadConfig(configPath)
	if err != nil {
		return playback.Config{}, err
	}
	return cfg, nil
}
