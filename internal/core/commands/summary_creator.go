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
// command responsible for generating the final summary of a transcript.
//
// Logic Flow:
// This command is the last AI step of the pipeline. It takes the full
// transcript text produced by the transcription step and asks a generative
// model for a two-part digest: a short overview followed by a detailed
// bullet breakdown.
//
//  1. It receives the transcript string from the context.
//  2. It renders the summary prompt from a Go template, substituting the
//     transcript into the instruction.
//  3. It sends the prompt to the generative model as a text-only request.
//  4. The summary text is placed into the context for the orchestrator to
//     persist.
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

// SummaryCreator is a command that uses a generative model to produce a
// summary from a transcript. Its input is the transcript text; its output
// is the summary text.
type SummaryCreator struct {
	cor.BaseCommand
	generativeAIModel        *cloud.QuotaAwareGenerativeAIModel // The rate-limited generative model client.
	template                 *template.Template                 // The Go template for building the prompt.
	geminiInputTokenCounter  metric.Int64Counter                // OTel counter for input tokens.
	geminiOutputTokenCounter metric.Int64Counter                // OTel counter for output tokens.
}

// NewSummaryCreator is the constructor for the SummaryCreator command.
func NewSummaryCreator(
	name string,
	generativeAIModel *cloud.QuotaAwareGenerativeAIModel,
	template *template.Template) *SummaryCreator {

	out := &SummaryCreator{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: generativeAIModel,
		template:          template,
	}
	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	return out
}

// Execute prompts the generative model with the transcript and records the
// resulting summary.
func (t *SummaryCreator) Execute(context cor.Context) {
	transcript := context.Get(t.GetInputParam()).(string)

	var buffer bytes.Buffer
	params := map[string]interface{}{"TRANSCRIPT": transcript}
	if err := t.template.Execute(&buffer, params); err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("failed to execute summary prompt template: %w", err))
		return
	}

	out, err := cloud.GenerateMultiModalResponse(context.GetContext(),
		t.geminiInputTokenCounter, t.geminiOutputTokenCounter,
		t.generativeAIModel, cloud.NewTextContent(buffer.String()))
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), model.NewPipelineError(
			model.ErrInferenceFailed, "", "summary request failed", err))
		return
	}
	if out == "" {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), model.NewPipelineError(
			model.ErrInferenceFailed, "", "summary returned no text", nil))
		return
	}

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), out)
}
