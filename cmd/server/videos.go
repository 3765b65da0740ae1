// Copyright 2024 Google, LLC
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

// Package main contains the API route definitions for the server. This file
// defines the video endpoints: submitting a video by direct upload or by
// YouTube URL, reading records back, driving records through the pipeline
// transitions, and deleting them.
package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"videobrief/internal/core/commands"
	"videobrief/internal/core/model"
)

// allowedUploadTypes maps the accepted source file extensions to the MIME
// type recorded for them. Anything outside this list is rejected before a
// record is created.
var allowedUploadTypes = map[string]string{
	"mp4":  "video/mp4",
	"m4v":  "video/x-m4v",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
}

// statusForKind maps the pipeline's error kinds to HTTP status codes.
func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrInvalidSource:
		return http.StatusBadRequest
	case model.ErrPrerequisiteMissing, model.ErrSourceMissing, model.ErrAudioMissing:
		return http.StatusConflict
	case model.ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrNoAudioStream, model.ErrUnsupportedContainer:
		return http.StatusUnprocessableEntity
	case model.ErrExtractionTimeout:
		return http.StatusGatewayTimeout
	case model.ErrDownloadFailed, model.ErrInferenceFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates a pipeline error into a JSON error response. Errors
// that are not pipeline errors map to a 500 without leaking internals.
func writeError(c *gin.Context, err error) {
	var pErr *model.PipelineError
	if errors.As(err, &pErr) {
		c.JSON(statusForKind(pErr.Kind), gin.H{
			"kind":  string(pErr.Kind),
			"error": pErr.Message,
		})
		return
	}
	slog.Error("unexpected error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// VideoRouter sets up the API routes for video-related actions.
//
// This function defines the following endpoints:
//   - POST /videos: Submits a video file as a multipart upload.
//   - POST /videos/youtube: Submits a video by YouTube URL.
//   - GET /videos: Lists the most recent records.
//   - GET /videos/:id: Retrieves a single record.
//   - POST /videos/:id/audio: Runs the audio extraction transition.
//   - POST /videos/:id/transcript: Runs the transcription transition.
//   - POST /videos/:id/summary: Runs the summarization transition.
//   - DELETE /videos/:id: Deletes a record and its staged artifacts.
func VideoRouter(r *gin.RouterGroup) {
	videos := r.Group("/videos")
	{
		videos.POST("", uploadVideo)

		videos.POST("/youtube", func(c *gin.Context) {
			var req struct {
				URL   string `json:"url" binding:"required"`
				Title string `json:"title"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "a url field is required"})
				return
			}
			video, err := state.pipeline.IngestFromURL(c.Request.Context(), req.URL, req.Title)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusCreated, video)
		})

		videos.GET("", func(c *gin.Context) {
			count, err := strconv.Atoi(c.DefaultQuery("count", "20"))
			if err != nil || count <= 0 {
				count = 20
			}
			out, err := state.pipeline.List(c.Request.Context(), count)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		videos.GET("/:id", func(c *gin.Context) {
			video, err := state.pipeline.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, video)
		})

		videos.POST("/:id/audio", func(c *gin.Context) {
			video, err := state.pipeline.ExtractAudio(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, video)
		})

		videos.POST("/:id/transcript", func(c *gin.Context) {
			video, err := state.pipeline.Transcribe(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, video)
		})

		videos.POST("/:id/summary", func(c *gin.Context) {
			video, err := state.pipeline.Summarize(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, video)
		})

		videos.DELETE("/:id", func(c *gin.Context) {
			if err := state.pipeline.Delete(c.Request.Context(), c.Param("id")); err != nil {
				writeError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}

// uploadVideo handles POST /videos. It accepts a single multipart file under
// the "video" field, stages it under a fresh ID, verifies the container by
// extension and by magic number, and creates the record in its uploaded
// stage. The magic-number check runs against the staged bytes, so a renamed
// non-video file is removed again before any record exists.
func uploadVideo(c *gin.Context) {
	fileHeader, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a video file field is required"})
		return
	}

	if fileHeader.Size > state.config.Storage.MaxUploadSizeBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the upload size limit"})
		return
	}

	name := filepath.Base(fileHeader.Filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	mimeType, ok := allowedUploadTypes[ext]
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unsupported container format"})
		return
	}
	if declared := fileHeader.Header.Get("Content-Type"); declared != "" &&
		!strings.HasPrefix(declared, "video/") && declared != "application/octet-stream" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "declared content type is not a video"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = name
	}

	id := uuid.NewString()
	sourcePath := state.pipeline.Staging.SourcePath(id, ext)
	if err := c.SaveUploadedFile(fileHeader, sourcePath); err != nil {
		slog.Error("failed to stage upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	if !stagedFileIsVideo(sourcePath) {
		if err := os.Remove(sourcePath); err != nil {
			slog.Warn("failed to remove rejected upload", "path", sourcePath, "error", err)
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "file content is not a recognized video container"})
		return
	}

	// Duration is informational. A probe failure leaves it at zero.
	duration, err := commands.ProbeDuration(c.Request.Context(), state.config.Tooling.FfprobePath, sourcePath)
	if err != nil {
		slog.Warn("failed to probe duration", "path", sourcePath, "error", err)
	}

	video := &model.Video{
		ID:              id,
		Title:           title,
		Stage:           model.StageUploaded,
		SourceLocation:  sourcePath,
		MimeType:        mimeType,
		SizeBytes:       fileHeader.Size,
		DurationSeconds: duration,
	}
	if err := state.pipeline.Repo.Create(c.Request.Context(), video); err != nil {
		slog.Error("failed to create record", "error", err)
		if err := os.Remove(sourcePath); err != nil {
			slog.Warn("failed to remove orphaned upload", "path", sourcePath, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create record"})
		return
	}

	c.JSON(http.StatusCreated, video)
}

// stagedFileIsVideo sniffs the magic number of a staged file and reports
// whether it is a recognized video container.
func stagedFileIsVideo(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 261)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false
	}
	return filetype.IsVideo(head[:n])
}
