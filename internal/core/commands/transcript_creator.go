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
// command that turns an extracted audio artifact into a text transcript.
//
// Logic Flow:
//  1. It receives the raw audio bytes from the previous command in the chain.
//  2. It renders the transcription instruction from a Go template.
//  3. It sends the instruction and the audio inline, in a single multi-modal
//     request, to the generative model.
//  4. The plain-text transcript is placed into the context for the
//     orchestrator to persist.
package commands

import (
	"bytes"
	"fmt"
	"text/template"

	"go.opentelemetry.io/otel/metric"

	"videobrief/internal/cloud"
	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// WavMimeType is the MIME type declared for extracted audio artifacts.
const WavMimeType = "audio/wav"

// TranscriptCreator is a command that uses a generative model to transcribe
// audio. Its input is the raw audio bytes; its output is the transcript text.
type TranscriptCreator struct {
	cor.BaseCommand
	generativeAIModel        *cloud.QuotaAwareGenerativeAIModel // The rate-limited generative model client.
	template                 *template.Template                 // The Go template for building the instruction.
	geminiInputTokenCounter  metric.Int64Counter                // OTel counter for input tokens.
	geminiOutputTokenCounter metric.Int64Counter                // OTel counter for output tokens.
}

// NewTranscriptCreator is the constructor for the TranscriptCreator command.
func NewTranscriptCreator(
	name string,
	generativeAIModel *cloud.QuotaAwareGenerativeAIModel,
	template *template.Template) *TranscriptCreator {

	out := &TranscriptCreator{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: generativeAIModel,
		template:          template,
	}
	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	return out
}

// Execute sends the audio to the model and records the transcript.
func (t *TranscriptCreator) Execute(context cor.Context) {
	audio := context.Get(t.GetInputParam()).([]byte)

	var buffer bytes.Buffer
	if err := t.template.Execute(&buffer, map[string]interface{}{}); err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("failed to execute transcription prompt template: %w", err))
		return
	}

	content := cloud.NewAudioContent(buffer.String(), audio, WavMimeType)
	out, err := cloud.GenerateMultiModalResponse(context.GetContext(),
		t.geminiInputTokenCounter, t.geminiOutputTokenCounter,
		t.generativeAIModel, content)
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), model.NewPipelineError(
			model.ErrInferenceFailed, "", "transcription request failed", err))
		return
	}
	if out == "" {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), model.NewPipelineError(
			model.ErrInferenceFailed, "", "transcription returned no text", nil))
		return
	}

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), out)
}
