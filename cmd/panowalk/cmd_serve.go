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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/panowalk/services/playback"
	"github.com/AleutianAI/panowalk/services/playback/api"
	"github.com/AleutianAI/panowalk/services/playback/graphstore"
	"github.com/AleutianAI/panowalk/services/playback/telemetry"
	"github.com/AleutianAI/panowalk/services/playback/trajectory"
)

// runServe starts the playback control API over a demo graph, with
// Prometheus metrics and optional OTLP tracing.
func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Close()

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	if serveNodes < 2 {
		return fmt.Errorf("need at least 2 nodes, got %d", serveNodes)
	}
	graph, seed := buildSyntheticGraph(serveNodes)

	// Node resolutions are served through an embedded read-through cache so
	// prefetched nodes stay warm across sessions.
	cache, err := graphstore.NewNodeCache(graph, graphstore.InMemoryCacheConfig())
	if err != nil {
		return fmt.Errorf("open node cache: %w", err)
	}
	defer cache.Close()

	traj, err := trajectory.NewLog(seed)
	if err != nil {
		return fmt.Errorf("create trajectory: %w", err)
	}

	ctrl := playback.NewController(cfg, cache, traj, logger.Slog())

	go drivePlayer(ctx, ctrl, traj)

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if serveDebug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1/playback")
	api.RegisterRoutes(v1, api.NewHandlers(ctrl, traj))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	metricsHandler := telemetry.MetricsHandler()
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	addr := fmt.Sprintf(":%d", servePort)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down panowalk server")
		ctrl.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
	}()

	logger.Info("starting panowalk server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
