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

package model

import (
	"errors"
	"fmt"
)

// ErrorKind is a closed enumeration of the failure categories the pipeline
// can surface. Handlers map kinds to HTTP status codes; callers should switch
// on the kind rather than match message text.
type ErrorKind string

const (
	// ErrNotFound indicates the referenced video record does not exist.
	ErrNotFound ErrorKind = "not_found"
	// ErrPrerequisiteMissing indicates the record has not yet reached the
	// stage a requested transition depends on.
	ErrPrerequisiteMissing ErrorKind = "prerequisite_missing"
	// ErrSourceMissing indicates the record references a source file that
	// is no longer present in the staging area.
	ErrSourceMissing ErrorKind = "source_missing"
	// ErrAudioMissing indicates the record references an audio file that
	// is no longer present in the staging area.
	ErrAudioMissing ErrorKind = "audio_missing"
	// ErrNoAudioStream indicates the source container holds no audio track.
	ErrNoAudioStream ErrorKind = "no_audio_stream"
	// ErrUnsupportedContainer indicates the source format cannot be
	// processed (including playlist URLs on remote ingestion).
	ErrUnsupportedContainer ErrorKind = "unsupported_container"
	// ErrExtractionTimeout indicates the audio extraction tool exceeded its
	// wall-clock budget and was killed.
	ErrExtractionTimeout ErrorKind = "extraction_timeout"
	// ErrExtractionFailed indicates the audio extraction tool exited with
	// an error or produced no output.
	ErrExtractionFailed ErrorKind = "extraction_failed"
	// ErrDownloadFailed indicates the remote fetch did not complete after
	// all retry attempts.
	ErrDownloadFailed ErrorKind = "download_failed"
	// ErrInferenceFailed indicates the generative model call failed or
	// returned an empty result.
	ErrInferenceFailed ErrorKind = "inference_failed"
	// ErrPayloadTooLarge indicates an artifact exceeds the configured size
	// ceiling for its operation.
	ErrPayloadTooLarge ErrorKind = "payload_too_large"
	// ErrInvalidSource indicates the submitted upload or URL was rejected
	// before a record was created.
	ErrInvalidSource ErrorKind = "invalid_source"
)

// PipelineError is the error type returned by all pipeline operations.
// It carries the failure kind, the affected video ID when known, and an
// optional wrapped cause.
type PipelineError struct {
	Kind    ErrorKind
	VideoID string
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.VideoID != "" {
		msg = fmt.Sprintf("%s (video %s)", msg, e.VideoID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// Is reports kind equality so callers can use errors.Is with a sentinel
// constructed via NewPipelineError(kind, ...).
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Kind == pe.Kind
	}
	return false
}

// NewPipelineError builds a PipelineError for the given kind.
func NewPipelineError(kind ErrorKind, videoID, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, VideoID: videoID, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from err, or returns the empty string when
// err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
