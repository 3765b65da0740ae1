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

// Package test provides utility functions and sample data to support the
// application's test suite. It helps in setting up a consistent test
// environment and loading test-specific configurations.
package test

import (
	"log"
	"os"
	"testing"

	"videobrief/internal/cloud"
)

// StateManager acts as a simple in-memory cache for the application
// configuration during test runs. This prevents the need to reload
// configuration files for every test, speeding up the test suite.
type StateManager struct {
	config *cloud.Config
}

// state holds the singleton instance of StateManager, ensuring that the
// configuration is loaded only once per test run.
var state = &StateManager{}

// HandleErr is a simple test helper that checks if an error is not nil.
// If an error exists, it fails the test immediately by calling t.Errorf.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("Error reading config file: %v", err)
	}
}

// GetTestTranscriptText returns a short transcript used to exercise the
// summary workflow without a live transcription call.
func GetTestTranscriptText() string {
	return `Welcome everyone, thanks for joining. Today we are walking through
the quarterly roadmap. The first milestone is the ingestion rework, which
lands at the end of next month. The second milestone is the reporting
dashboard. Questions go in the chat and we will pick them up at the end.`
}

// SetupOS configures the environment variables that the configuration
// loader (cloud.LoadConfig) depends on. Setting these directs the loader
// to use the test-specific configuration files (configs/.env.test.toml)
// instead of the local development ones.
func SetupOS() (err error) {
	// Set the directory where the configuration files are located.
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Use the "test" runtime so the loader picks up ".env.test.toml"
	// for overrides.
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration. It ensures
// the configuration is loaded from TOML files only once and cached for
// subsequent calls.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}
