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

// Package cloud provides the clients for the external services the pipeline
// depends on. This file contains general-purpose utility functions that
// support the package: hierarchical configuration loading, resilient
// interaction with the GenAI API, and small factories for building
// multi-modal prompt content.
//
// Functions:
//   - LoadConfig: Implements a hierarchical configuration loader. It first
//     reads a base configuration file and then overwrites values with a
//     second, environment-specific file (e.g., .env.local.toml,
//     .env.test.toml). The environment is determined by an environment
//     variable.
//   - GenerateMultiModalResponse: A wrapper for calling a GenAI model that
//     records OpenTelemetry token-usage metrics and strips markdown fences
//     from the response text.
//   - NewTextContent, NewAudioContent: Factories for building prompt content.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"go.opentelemetry.io/otel/metric"

	"github.com/BurntSushi/toml"
	"google.golang.org/genai"
)

// Configuration loading constants.
const (
	ConfigFileBaseName  = ".env"                    // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"                   // The file extension for configuration files.
	ConfigSeparator     = "."                       // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "VIDEOBRIEF_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "VIDEOBRIEF_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test").
)

// fileExists checks if a file or directory exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig provides hierarchical configuration loading. It first loads a
// base configuration file and then overwrites its values with an
// environment-specific configuration file. The config directory and runtime
// name come from environment variables.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	// Default to the "local" runtime when the variable is not set.
	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "local"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	if fileExists(baseConfigFileName) {
		if _, err := toml.DecodeFile(baseConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	// Values in the environment-specific file overwrite the base config.
	if fileExists(envConfigFileName) {
		if _, err := toml.DecodeFile(envConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}

// GenerateMultiModalResponse executes a request against a generative model
// and extracts the text of the response. Token usage is recorded on the
// provided OpenTelemetry counters. Markdown code fences are stripped from
// the response so callers always see bare text.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	model *QuotaAwareGenerativeAIModel,
	content []*genai.Content) (string, error) {
	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(fmt.Sprint(part.Text))
		}
	}
	value := strings.TrimSpace(sb.String())
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimPrefix(value, "```")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value), nil
}

// NewTextContent builds prompt content from a plain string.
func NewTextContent(in string) []*genai.Content {
	return genai.Text(in)
}

// NewAudioContent builds prompt content pairing an instruction with raw
// audio bytes sent inline.
func NewAudioContent(instruction string, audio []byte, mimeType string) []*genai.Content {
	return []*genai.Content{{
		Parts: []*genai.Part{
			{Text: instruction},
			{InlineData: &genai.Blob{Data: audio, MIMEType: mimeType}},
		},
	}}
}
