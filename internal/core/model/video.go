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

// Package model defines the core data structures for the application.
// This file defines the persisted Video record, which is the single source
// of truth for a media item's position in the processing pipeline.
//
// A Video moves through the pipeline one stage at a time:
//
//	uploaded -> audio_extracted -> transcribed -> summarized
//
// Records ingested from a remote URL skip straight to audio_extracted once
// the download has completed (passing through downloading while the fetch
// is in flight). Any non-terminal stage can fall into failed; recovery is
// always an explicit re-invocation of the step that failed.
package model

import "time"

// Stage is the canonical pipeline state of a Video record.
type Stage string

// The full set of pipeline stages. These values are persisted, so they must
// remain stable across releases.
const (
	StageUploaded       Stage = "uploaded"
	StageDownloading    Stage = "downloading"
	StageAudioExtracted Stage = "audio_extracted"
	StageTranscribed    Stage = "transcribed"
	StageSummarized     Stage = "summarized"
	StageFailed         Stage = "failed"
)

// Video is the persisted artifact record, one per ingested media item.
// SourceLocation and AudioLocation refer to files in the staging area and
// are only meaningful while the corresponding artifact exists on disk; the
// pipeline reclaims each upstream artifact as soon as the next one has been
// durably produced. Staging paths are internal and never serialized to API
// callers.
type Video struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Stage           Stage     `json:"stage"`
	SourceLocation  string    `json:"-"`
	AudioLocation   string    `json:"-"`
	MimeType        string    `json:"mime_type,omitempty"`
	SizeBytes       int64     `json:"size_bytes,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	Transcript      string    `json:"transcript,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	RemoteSourceURL string    `json:"remote_source_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RemoteMetadata is the transient result of resolving a remote source URL
// before any download begins. It is never persisted directly; the orchestrator
// copies the relevant fields onto the Video record it creates.
type RemoteMetadata struct {
	Title           string
	DurationSeconds float64
	IsCollection    bool
}
