// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the playback engine over HTTP. All engine operations
// are fire-and-forget: requests acknowledge with the resulting state
// snapshot and never surface engine-internal errors.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/panowalk/services/playback"
)

// Handlers binds HTTP routes to a playback controller and its trajectory.
type Handlers struct {
	ctrl *playback.Controller
	traj playback.TrajectoryService
}

// NewHandlers creates the handler set for one playback session.
func NewHandlers(ctrl *playback.Controller, traj playback.TrajectoryService) *Handlers {
	return &Handlers{ctrl: ctrl, traj: traj}
}

// RegisterRoutes mounts the playback API under the given router group.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/play", h.Play)
	rg.POST("/stop", h.Stop)
	rg.PUT("/speed", h.SetSpeed)
	rg.PUT("/direction", h.SetDirection)
	rg.GET("/state", h.GetState)
	rg.GET("/frame", h.GetFrame)
}

// speedRequest is the body of PUT /speed. Speed is a pointer so a literal
// 0 is distinguishable from an absent field.
type speedRequest struct {
	Speed *float64 `json:"speed" binding:"required"`
}

// directionRequest is the body of PUT /direction.
type directionRequest struct {
	Direction string `json:"direction" binding:"required"`
}

// stateResponse is the snapshot returned by every mutating endpoint.
type stateResponse struct {
	Playing   bool    `json:"playing"`
	Direction string  `json:"direction"`
	Speed     float64 `json:"speed"`
	Lookahead int     `json:"lookahead"`
}

func (h *Handlers) snapshot() stateResponse {
	snap := h.ctrl.StateSnapshot()
	return stateResponse{
		Playing:   snap.Playing,
		Direction: string(snap.Direction),
		Speed:     snap.UISpeed,
		Lookahead: snap.Lookahead,
	}
}

// Play handles POST /play. Idempotent.
func (h *Handlers) Play(c *gin.Context) {
	h.ctrl.Play()
	c.JSON(http.StatusOK, h.snapshot())
}

// Stop handles POST /stop. Idempotent.
func (h *Handlers) Stop(c *gin.Context) {
	h.ctrl.Stop()
	c.JSON(http.StatusOK, h.snapshot())
}

// SetSpeed handles PUT /speed. Out-of-range values are clamped, not
// rejected, matching the engine's own contract.
func (h *Handlers) SetSpeed(c *gin.Context) {
	var req speedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.ctrl.SetSpeed(*req.Speed)
	c.JSON(http.StatusOK, h.snapshot())
}

// SetDirection handles PUT /direction.
func (h *Handlers) SetDirection(c *gin.Context) {
	var req directionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	direction, ok := playback.ParseDirection(req.Direction)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown direction: " + req.Direction})
		return
	}
	h.ctrl.SetDirection(direction)
	c.JSON(http.StatusOK, h.snapshot())
}

// GetState handles GET /state.
func (h *Handlers) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

// GetFrame handles GET /frame, returning the current trajectory snapshot.
func (h *Handlers) GetFrame(c *gin.Context) {
	c.JSON(http.StatusOK, h.traj.CurrentFrame())
}
