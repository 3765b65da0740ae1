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

// Package workflow defines the high-level business logic orchestrations.
// This file implements the audio extraction workflow: probing a source
// container for an audio track and stripping it into a canonical WAV file.
package workflow

import (
	"context"
	"time"

	"videobrief/internal/cloud"
	"videobrief/internal/core/commands"
	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// AudioExtractionWorkflow turns a staged source video into an extracted
// audio artifact. It is structured as a Chain of Responsibility that first
// probes the container, then runs the extraction.
type AudioExtractionWorkflow struct {
	cor.BaseCommand
	config *cloud.Config
	chain  cor.Chain
}

// Execute runs the workflow by invoking the underlying chain.
func (w *AudioExtractionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the sequence of commands that make up this
// workflow. The probe rejects unreadable containers and video-only sources
// before any transcode work starts; the extract command then writes the WAV
// under the configured wall-clock budget.
func (w *AudioExtractionWorkflow) initializeChain() {
	timeout := time.Duration(w.config.Tooling.ExtractionTimeoutSeconds) * time.Second

	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewAudioProbeCommand("probe-audio-stream", w.config.Tooling.FfprobePath, timeout))
	out.AddCommand(commands.NewAudioExtractCommand("extract-audio", w.config.Tooling.FfmpegPath, ParamOutputPath, timeout))
	w.chain = out
}

// Extract runs the chain for a single source file, writing the extracted
// audio to outputPath. Failures come back as PipelineErrors from the closed
// error set.
func (w *AudioExtractionWorkflow) Extract(ctx context.Context, sourcePath, outputPath string) error {
	chainCtx := newChainContext(ctx)
	chainCtx.Add(cor.CtxIn, sourcePath)
	chainCtx.Add(ParamOutputPath, outputPath)
	w.Execute(chainCtx)
	return chainError(chainCtx, model.ErrExtractionFailed)
}

// NewAudioExtractionWorkflow is the constructor for AudioExtractionWorkflow.
func NewAudioExtractionWorkflow(config *cloud.Config) *AudioExtractionWorkflow {
	pipeline := &AudioExtractionWorkflow{
		BaseCommand: *cor.NewBaseCommand("audio-extraction-pipeline"),
		config:      config,
	}
	pipeline.initializeChain()
	return pipeline
}
