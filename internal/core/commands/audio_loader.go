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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that loads an extracted audio artifact from the staging area
// into memory so it can be sent inline to the transcription model.
package commands

import (
	"os"

	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// AudioFileLoader reads an audio file from disk. Its input is the audio
// file path; its output is the raw file contents.
type AudioFileLoader struct {
	cor.BaseCommand
}

// NewAudioFileLoader is the constructor for AudioFileLoader.
func NewAudioFileLoader(name string) *AudioFileLoader {
	return &AudioFileLoader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute reads the audio file into memory. A file that has disappeared
// between the orchestrator's existence check and this read is reported as
// missing audio, the same way the orchestrator itself would report it.
func (c *AudioFileLoader) Execute(context cor.Context) {
	audioPath := context.Get(c.GetInputParam()).(string)

	data, err := os.ReadFile(audioPath)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.NewPipelineError(
			model.ErrAudioMissing, "", "audio artifact could not be read", err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), data)
}
