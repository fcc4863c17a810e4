// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/panowalk/services/playback"
	"github.com/AleutianAI/panowalk/services/playback/graphstore"
	"github.com/AleutianAI/panowalk/services/playback/trajectory"
)

func newTestRouter(t *testing.T) (*gin.Engine, *playback.Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	graph := graphstore.NewMemoryGraph()
	graph.AddSequence("seq",
		playback.Node{Key: "a"},
		playback.Node{Key: "b"},
		playback.Node{Key: "c"},
	)
	seed := playback.Node{Key: "a", SequenceKey: "seq"}
	traj, err := trajectory.NewLog(seed)
	require.NoError(t, err)

	ctrl := playback.NewController(playback.DefaultConfig(), graph, traj, nil)
	t.Cleanup(ctrl.Stop)

	router := gin.New()
	v1 := router.Group("/v1/playback")
	RegisterRoutes(v1, NewHandlers(ctrl, traj))
	return router, ctrl
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var resp stateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPlayStopRoundTrip(t *testing.T) {
	router, ctrl := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/playback/play", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeState(t, w).Playing)
	assert.True(t, ctrl.Playing())

	w = doJSON(t, router, http.MethodPost, "/v1/playback/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeState(t, w).Playing)
	assert.False(t, ctrl.Playing())
}

func TestSetSpeedClampsOutOfRange(t *testing.T) {
	router, ctrl := newTestRouter(t)

	speed := 3.5
	w := doJSON(t, router, http.MethodPut, "/v1/playback/speed", speedRequest{Speed: &speed})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decodeState(t, w).Speed)
	assert.Equal(t, 1.0, ctrl.Speed())
}

func TestSetSpeedRejectsMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/playback/speed", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetDirection(t *testing.T) {
	router, ctrl := newTestRouter(t)

	w := doJSON(t, router, http.MethodPut, "/v1/playback/direction", directionRequest{Direction: "prev"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prev", decodeState(t, w).Direction)
	assert.Equal(t, playback.DirectionPrev, ctrl.Direction())

	w = doJSON(t, router, http.MethodPut, "/v1/playback/direction", directionRequest{Direction: "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, playback.DirectionPrev, ctrl.Direction())
}

func TestGetState(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/playback/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeState(t, w)
	assert.False(t, state.Playing)
	assert.Equal(t, "next", state.Direction)
	assert.Equal(t, 0.5, state.Speed)
}

func TestGetFrame(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/playback/frame", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var frame playback.TrajectoryFrame
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frame))
	assert.Equal(t, "a", frame.HeadKey)
	assert.Equal(t, "seq", frame.SequenceKey)
}
