// Copyright 2025 The vodsync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point for the vodsync backend server.
//
// The application runs a Gin web server exposing a REST API for managing
// synchronization projects (participants, markers, clip decisions) and for
// driving batch exports: extracting clips with yt-dlp and rendering montages
// with ffmpeg. The server is instrumented with OpenTelemetry for logging,
// tracing, and metrics. Export progress streams to clients over SSE.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/project"
	"github.com/vodsync/vodsync/internal/core/services"
	"github.com/vodsync/vodsync/internal/core/workflow"
	"github.com/vodsync/vodsync/internal/telemetry"
)

func main() {
	config := GetConfig()

	telemetry.SetupLogging(config.Application.LogLevel)
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelShutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	r := gin.Default()
	r.Use(otelgin.Middleware(config.Application.Name))
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	{
		ProjectRouter(apiV1)
		ExportRouter(apiV1, ctx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Application.Port),
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
		}
	}()
	slog.Info("Server Ready", "port", config.Application.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	// Cancel the root context first so any in-flight batch export stops
	// between clips, then drain the HTTP server.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Error("Telemetry Shutdown Failed", "error", err)
	}

	log.Println("Server exiting")
}

type createProjectRequest struct {
	Name              string             `json:"name" binding:"required"`
	ReferenceName     string             `json:"reference_name" binding:"required"`
	ReferenceLocator  string             `json:"reference_locator"`
	ReferencePlatform model.PlatformKind `json:"reference_platform"`
}

type addParticipantRequest struct {
	DisplayName      string             `json:"display_name" binding:"required"`
	RecordingLocator string             `json:"recording_locator"`
	Platform         model.PlatformKind `json:"platform"`
}

type syncParticipantRequest struct {
	SyncOffsetSeconds float64 `json:"sync_offset_seconds"`
}

type referenceStartRequest struct {
	ReferenceStartTimeSeconds *float64 `json:"reference_start_time_seconds"`
}

type addMarkerRequest struct {
	Label            string  `json:"label" binding:"required"`
	EventTimeSeconds float64 `json:"event_time_seconds"`
}

type clipDecisionRequest struct {
	InOffsetSeconds  *float64          `json:"in_offset_seconds"`
	OutOffsetSeconds *float64          `json:"out_offset_seconds"`
	Status           *model.ClipStatus `json:"status"`
}

type startExportRequest struct {
	GroupBy           model.GroupBy        `json:"group_by"`
	TransitionSeconds float64              `json:"transition_seconds"`
	Overlay           *model.OverlayConfig `json:"overlay"`
}

// ProjectRouter registers the project CRUD and mutation endpoints. All
// business rules live in the project aggregate; the handlers only translate
// between HTTP and the core types.
func ProjectRouter(r *gin.RouterGroup) {
	projects := r.Group("/projects")
	{
		projects.POST("", func(c *gin.Context) {
			var req createProjectRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			agg, err := state.projectService.Create(req.Name, req.ReferenceName, req.ReferenceLocator, req.ReferencePlatform)
			if err != nil {
				writeCoreError(c, err)
				return
			}
			c.JSON(http.StatusCreated, agg.Snapshot())
		})

		projects.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, state.projectService.List())
		})

		projects.GET("/:id", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			c.JSON(http.StatusOK, agg.Snapshot())
		})

		projects.DELETE("/:id", func(c *gin.Context) {
			if err := state.projectService.Delete(c.Param("id")); err != nil {
				writeCoreError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		projects.PUT("/:id/reference-start", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			var req referenceStartRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			agg.SetReferenceStartTime(req.ReferenceStartTimeSeconds)
			c.JSON(http.StatusOK, agg.Snapshot())
		})

		projects.POST("/:id/participants", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			var req addParticipantRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			p, err := agg.AddParticipant(req.DisplayName, req.RecordingLocator, req.Platform)
			if err != nil {
				writeCoreError(c, err)
				return
			}
			c.JSON(http.StatusCreated, p)
		})

		projects.DELETE("/:id/participants/:pid", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			if err := agg.RemoveParticipant(c.Param("pid")); err != nil {
				writeCoreError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		projects.PUT("/:id/participants/:pid/sync", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			var req syncParticipantRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := agg.SynchronizeParticipant(c.Param("pid"), req.SyncOffsetSeconds); err != nil {
				writeCoreError(c, err)
				return
			}
			c.JSON(http.StatusOK, agg.Snapshot())
		})

		projects.PUT("/:id/participants/:pid/reference", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			if err := agg.SetReference(c.Param("pid")); err != nil {
				writeCoreError(c, err)
				return
			}
			c.JSON(http.StatusOK, agg.Snapshot())
		})

		projects.POST("/:id/markers", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			var req addMarkerRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, agg.AddMarker(req.Label, req.EventTimeSeconds))
		})

		projects.DELETE("/:id/markers/:mid", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			if err := agg.RemoveMarker(c.Param("mid")); err != nil {
				writeCoreError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		projects.PUT("/:id/clips/:mid/:pid", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			var req clipDecisionRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			patch := project.ClipPatch{
				InOffsetSeconds:  req.InOffsetSeconds,
				OutOffsetSeconds: req.OutOffsetSeconds,
				Status:           req.Status,
			}
			if err := agg.SetClipDecision(c.Param("mid"), c.Param("pid"), patch); err != nil {
				writeCoreError(c, err)
				return
			}
			c.JSON(http.StatusOK, agg.Snapshot())
		})

		projects.POST("/:id/clips/:mid/:pid/reset", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			if err := agg.ResetClipDecision(c.Param("mid"), c.Param("pid")); err != nil {
				writeCoreError(c, err)
				return
			}
			c.JSON(http.StatusOK, agg.Snapshot())
		})
	}
}

// ExportRouter registers the batch export endpoints. A started batch runs in
// the background under the server's root context; clients follow it on the
// SSE stream and pick the final result off the finished event or the clip
// listing.
func ExportRouter(r *gin.RouterGroup, rootCtx context.Context) {
	projects := r.Group("/projects")
	{
		projects.POST("/:id/export", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			var req startExportRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if req.GroupBy == "" {
				req.GroupBy = model.GroupByParticipant
			}

			snap := agg.Snapshot()
			params := workflow.BatchParams{
				GroupBy:           req.GroupBy,
				TransitionSeconds: req.TransitionSeconds,
				Overlay:           req.Overlay,
			}
			// StartBatch claims the in-flight slot before returning, so
			// racing requests get a reliable 409 instead of two 202s.
			if err := state.exportService.StartBatch(rootCtx, snap, params, batchSink(snap.Id)); err != nil {
				writeCoreError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"project_id": snap.Id, "status": "started"})
		})

		projects.GET("/:id/export/status", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			snap := agg.Snapshot()
			c.JSON(http.StatusOK, gin.H{
				"running": state.exportService.Running(snap.Id),
				"clips":   state.exportService.ClipStatus(snap),
			})
		})

		projects.GET("/:id/clips", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			clips, err := state.exportService.ListExtractedClips(c, agg.Name())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, clips)
		})

		projects.GET("/:id/export/events", func(c *gin.Context) {
			agg, err := state.projectService.Get(c.Param("id"))
			if err != nil {
				writeCoreError(c, err)
				return
			}
			events, cancel := state.progress.Subscribe(agg.Id())
			defer cancel()

			c.Stream(func(w io.Writer) bool {
				select {
				case ev, ok := <-events:
					if !ok {
						return false
					}
					c.SSEvent(string(ev.Kind), ev)
					return ev.Kind != export.EventBatchFinished
				case <-c.Request.Context().Done():
					return false
				}
			})
		})
	}
}

// batchSink composes the hub's streaming sink with structured logging for
// one batch run.
func batchSink(projectId string) export.Sink {
	return export.FanOut(export.LogSink{}, state.progress.Sink(projectId))
}

// writeCoreError maps core sentinel errors onto HTTP status codes.
func writeCoreError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, project.ErrParticipantNotFound),
		errors.Is(err, project.ErrMarkerNotFound),
		errors.Is(err, project.ErrDecisionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, project.ErrInvalidClipBounds),
		errors.Is(err, project.ErrEmptyDisplayName):
		status = http.StatusBadRequest
	case errors.Is(err, project.ErrCannotRemoveReference),
		errors.Is(err, project.ErrReferenceOffsetFixed):
		status = http.StatusConflict
	case errors.Is(err, services.ErrExportInFlight):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
