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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files, and the clients for the external services the
// pipeline depends on (the Gemini API).
//
// This file centralizes all configuration-related structs, making it easy
// to understand and manage the application's configurable parameters.
//
// Structs:
//   - PromptTemplates: Holds the text templates for prompts sent to GenAI models.
//   - GeminiModel: Configuration for a single Gemini model.
//   - Storage: Configuration for the database and staging area.
//   - Tooling: Configuration for the external media tools (ffmpeg/ffprobe).
//   - Download: Configuration for remote source ingestion.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings defines the default content safety thresholds for
// GenAI models. These settings are non-restrictive, allowing all content
// categories to pass through without being blocked, which suits a pipeline
// that only ever processes media the operator submitted themselves.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// PromptTemplates holds the templates for the prompts sent to the models.
type PromptTemplates struct {
	TranscribePrompt string `toml:"transcribe"` // The template for transcription requests.
	SummaryPrompt    string `toml:"summary"`    // The template for summary requests.
}

// GeminiModel represents the configuration for a single Gemini model.
type GeminiModel struct {
	Model              string  `toml:"model"`               // The model identifier (e.g., "gemini-2.0-flash").
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the model.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter.
	TopP               float32 `toml:"top_p"`               // The top_p parameter.
	TopK               float32 `toml:"top_k"`               // The top_k parameter.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of output tokens.
	OutputFormat       string  `toml:"output_format"`       // The desired response MIME type.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit in requests per second.
}

// Storage represents the configuration for local persistence: the SQLite
// database file and the staging directory for media artifacts.
type Storage struct {
	DatabasePath       string `toml:"database_path"`         // Path to the SQLite database file.
	StagingDir         string `toml:"staging_dir"`           // Root directory of the media staging area.
	MaxUploadSizeBytes int64  `toml:"max_upload_size_bytes"` // Ceiling for uploaded source files.
	MaxAudioSizeBytes  int64  `toml:"max_audio_size_bytes"`  // Ceiling for audio sent to transcription.
}

// Tooling represents the configuration for the external media binaries.
type Tooling struct {
	FfmpegPath               string `toml:"ffmpeg_path"`                // Path to the ffmpeg binary.
	FfprobePath              string `toml:"ffprobe_path"`               // Path to the ffprobe binary.
	ExtractionTimeoutSeconds int    `toml:"extraction_timeout_seconds"` // Wall-clock budget for one extraction run.
}

// Download represents the configuration for remote source ingestion.
type Download struct {
	MaxAttempts    int `toml:"max_attempts"`    // Number of fetch attempts before giving up.
	TimeoutSeconds int `toml:"timeout_seconds"` // Overall budget for one download.
}

// Config represents the overall configuration for the application, loaded
// from TOML files. It acts as the root container for all other
// configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name           string `toml:"name"`             // The name of the application.
		Port           int    `toml:"port"`             // The HTTP listen port.
		ThreadPoolSize int    `toml:"thread_pool_size"` // The size of the worker pool for parallel processing tasks.
	} `toml:"application"`
	Storage         Storage                `toml:"storage"`          // Local persistence configuration.
	Tooling         Tooling                `toml:"tooling"`          // External media tool configuration.
	Download        Download               `toml:"download"`         // Remote ingestion configuration.
	PromptTemplates PromptTemplates        `toml:"prompt_templates"` // Prompt templates configuration.
	AgentModels     map[string]GeminiModel `toml:"agent_models"`     // A map of Gemini models, keyed by a logical name (e.g., "transcriber").
}

// NewConfig creates a new, initialized Config instance. The maps within the
// struct must be initialized to avoid nil pointer panics when the
// configuration loader populates them.
func NewConfig() *Config {
	return &Config{
		AgentModels: make(map[string]GeminiModel),
	}
}
