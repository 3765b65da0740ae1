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

// Package model_test contains unit tests for the data models defined in the
// model package. This file tests the pipeline error type: its message
// formatting, its cause chain, and the kind classification helpers.
package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"videobrief/internal/core/model"
)

func TestPipelineErrorMessage(t *testing.T) {
	err := model.NewPipelineError(model.ErrNoAudioStream, "vid-1", "source contains no audio stream", nil)

	assert.Contains(t, err.Error(), "(video vid-1)")
	assert.Contains(t, err.Error(), "source contains no audio stream")
}

func TestPipelineErrorFallsBackToKind(t *testing.T) {
	err := model.NewPipelineError(model.ErrNoAudioStream, "", "", nil)

	// With no message the kind itself is the message.
	assert.Equal(t, "no_audio_stream", err.Error())
}

func TestPipelineErrorWithoutVideoID(t *testing.T) {
	err := model.NewPipelineError(model.ErrInvalidSource, "", "not a recognized watch URL", nil)

	// Errors raised before a record exists carry no video reference.
	assert.NotContains(t, err.Error(), "(video")
}

func TestPipelineErrorCauseChain(t *testing.T) {
	cause := errors.New("exit status 1")
	err := model.NewPipelineError(model.ErrExtractionFailed, "vid-1", "ffmpeg run failed", cause)

	assert.Contains(t, err.Error(), "exit status 1")
	assert.ErrorIs(t, err, cause)
}

func TestKindOfUnwrapsThroughWrapping(t *testing.T) {
	inner := model.NewPipelineError(model.ErrExtractionTimeout, "vid-1", "extraction exceeded its time budget", nil)
	wrapped := fmt.Errorf("running chain: %w", inner)

	assert.Equal(t, model.ErrExtractionTimeout, model.KindOf(wrapped))
}

func TestKindOfUnknownError(t *testing.T) {
	assert.Equal(t, model.ErrorKind(""), model.KindOf(errors.New("plain error")))
	assert.Equal(t, model.ErrorKind(""), model.KindOf(nil))
}

func TestPipelineErrorIsMatchesByKind(t *testing.T) {
	a := model.NewPipelineError(model.ErrInferenceFailed, "vid-1", "transcription request failed", nil)
	b := model.NewPipelineError(model.ErrInferenceFailed, "vid-2", "summary request failed", nil)

	// Two errors of the same kind match regardless of record and message.
	assert.ErrorIs(t, a, b)
}
