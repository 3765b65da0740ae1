// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point for the video briefing server.
//
// This application sets up and runs a web server using the Gin framework. It
// provides a REST API for submitting videos (as direct uploads or YouTube
// URLs) and driving them through the processing pipeline: audio extraction,
// transcription, and summarization. The server is instrumented with
// OpenTelemetry for logging, tracing, and metrics.
//
// The main function initializes the application's configuration, sets up
// logging and telemetry, and initializes the application state, including
// the GenAI client, the SQLite store, and the media staging area. It defines
// the API routes and handles graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"videobrief/internal/telemetry"
)

// main orchestrates the setup of logging, telemetry, configuration, service
// clients, the web server, and API routes. It also handles graceful shutdown
// of the server upon receiving an interrupt signal.
func main() {
	// Load a .env file when present so GEMINI_API_KEY can be supplied
	// without exporting it in the shell. A missing file is not an error.
	_ = godotenv.Load()

	// Initialize structured logging for the application.
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	// Root context for the application. Cancelling it tears down every
	// client and in-flight background task.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load application configuration from TOML files.
	config := GetConfig()

	// Initialize OpenTelemetry for distributed tracing and metrics.
	otelShutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("Failed to shutdown OpenTelemetry", "error", err)
		}
	}()
	slog.Info("Tracing initialized")

	// Initialize the application's state: service clients, storage, and
	// the pipeline itself.
	InitState(ctx)
	slog.Info("Initialized State")

	// Set up the Gin web server with default middleware.
	r := gin.Default()

	// Trace incoming requests. This automatically creates a span per
	// request and propagates it into the handlers' contexts.
	r.Use(otelgin.Middleware(state.config.Application.Name))

	// cors.Default() is permissive, which suits a tool that is driven by
	// a local frontend during development.
	r.Use(cors.Default())

	// Liveness probe.
	startTime := time.Now()
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(startTime).String(),
		})
	})

	// Group routes under the "/api/v1" prefix.
	apiV1 := r.Group("/api/v1")
	{
		VideoRouter(apiV1)
		Dashboard(apiV1)
	}

	addr := fmt.Sprintf(":%d", state.config.Application.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	// Start the HTTP server in a separate goroutine so it doesn't block
	// the main thread.
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready", "addr", addr)

	// Block until an interrupt signal is received.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	// Give active requests 5 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}
