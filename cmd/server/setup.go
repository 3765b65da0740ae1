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

// Package main contains the setup and initialization logic for the
// application's state. This file is responsible for creating a centralized
// state manager that holds all shared dependencies: configuration, the
// GenAI service clients, the SQLite store, the staging area, and the
// pipeline service that ties them together.
//
// Functions:
//   - SetupOS: Configures the environment variables the configuration
//     loader depends on.
//   - GetConfig: A singleton accessor that loads the application's
//     configuration from TOML files exactly once.
//   - InitState: The core initialization function that creates all service
//     clients, opens local storage, builds the workflows, and wires the
//     pipeline service.
package main

import (
	"context"
	"log"
	"os"

	"videobrief/internal/cloud"
	"videobrief/internal/core/services"
	"videobrief/internal/core/workflow"
	"videobrief/internal/storage"
)

// Logical model names in the agent_models configuration table.
const (
	transcriberModelName = "transcriber"
	summarizerModelName  = "summarizer"
)

// StateManager holds all the shared dependencies for the application,
// acting as a centralized container for service clients and configuration.
// This avoids global variables and keeps dependency management in one
// place.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients
	pipeline *services.PipelineService
}

// state holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the environment variables the configuration loader uses to
// find the TOML files. The runtime defaults to "local"; an operator can
// override VIDEOBRIEF_RUNTIME before launch to select another profile.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig provides a singleton instance of the application configuration,
// loading it from the file system only once.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

// InitState initializes the entire application state: the GenAI clients,
// the SQLite store, the staging area, the media workflows, and the pipeline
// service the HTTP handlers call into.
func InitState(ctx context.Context) {
	config := GetConfig()

	// Initialize the GenAI client and the configured model wrappers.
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	// Open the record store and the media staging area.
	db, err := storage.Open(config.Storage.DatabasePath)
	if err != nil {
		panic(err)
	}
	staging, err := storage.NewStaging(config.Storage.StagingDir)
	if err != nil {
		panic(err)
	}

	// Build the media workflows. The transcription and summary workflows
	// panic on a malformed prompt template, which is a configuration error
	// worth failing startup over.
	extraction := workflow.NewAudioExtractionWorkflow(config)
	transcription := workflow.NewTranscriptionWorkflow(config, cloudClients, transcriberModelName)
	summary := workflow.NewSummaryWorkflow(config, cloudClients, summarizerModelName)
	ingest := workflow.NewRemoteIngestWorkflow(config)

	state.pipeline = &services.PipelineService{
		Repo:              storage.NewVideoRepository(db),
		Staging:           staging,
		Extractor:         extraction,
		Transcriber:       transcription,
		Summarizer:        summary,
		Ingester:          ingest,
		MaxAudioSizeBytes: config.Storage.MaxAudioSizeBytes,
	}
}
