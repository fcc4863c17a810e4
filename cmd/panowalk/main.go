// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command panowalk runs the panoramic graph playback engine.
//
// Usage:
//
//	panowalk simulate                # drive a synthetic graph to exhaustion
//	panowalk simulate --speed 0.7    # fast traversal in sequence-only mode
//	panowalk serve --port 8080       # HTTP control surface with /metrics
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/panowalk/pkg/logging"
)

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	logJSON    bool

	// simulate flags
	simSpeed     float64
	simDirection string
	simNodes     int
	simLatencyMS int

	// serve flags
	servePort  int
	serveDebug bool
	serveNodes int

	rootCmd = &cobra.Command{
		Use:   "panowalk",
		Short: "Playback engine for panoramic node graphs",
		Long: `Panowalk walks a graph of panoramic capture nodes: it plays a
traversal along capture sequences or spatial adjacency, prefetches a
rolling lookahead window, and stops itself at the end of the graph.`,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run a playback session over a synthetic graph until it exhausts",
		RunE:  runSimulate, // Defined in cmd_simulate.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the playback control API with Prometheus metrics",
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML engine configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	simulateCmd.Flags().Float64Var(&simSpeed, "speed", 0.5, "UI speed in [0,1]; 0.5 is real-time")
	simulateCmd.Flags().StringVar(&simDirection, "direction", "next", "Traversal direction: next, prev, forward, backward, left, right")
	simulateCmd.Flags().IntVar(&simNodes, "nodes", 40, "Number of nodes in the synthetic sequence")
	simulateCmd.Flags().IntVar(&simLatencyMS, "latency-ms", 5, "Simulated graph resolution latency in milliseconds")

	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode and request logging")
	serveCmd.Flags().IntVar(&serveNodes, "nodes", 40, "Number of nodes in the demo sequence")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the process logger from the persistent flags.
func newLogger() *logging.Logger {
	return logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		Service: "panowalk",
		JSON:    logJSON,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
