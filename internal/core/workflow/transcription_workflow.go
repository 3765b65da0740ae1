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
// This file implements the transcription workflow: loading an extracted
// audio artifact and sending it to a generative model for speech-to-text.
package workflow

import (
	"context"
	"text/template"

	"videobrief/internal/cloud"
	"videobrief/internal/core/commands"
	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// TranscriptionWorkflow turns an extracted audio artifact into a text
// transcript. The chain loads the audio bytes from the staging area and
// passes them inline to the transcription model.
type TranscriptionWorkflow struct {
	cor.BaseCommand
	genaiModel         *cloud.QuotaAwareGenerativeAIModel
	transcribeTemplate *template.Template
	chain              cor.Chain
}

// Execute runs the workflow by invoking the underlying chain.
func (w *TranscriptionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *TranscriptionWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewAudioFileLoader("load-audio-artifact"))
	out.AddCommand(commands.NewTranscriptCreator("generate-transcript", w.genaiModel, w.transcribeTemplate))
	w.chain = out
}

// Transcribe runs the chain for a single audio file and returns the
// transcript text. Failures come back as PipelineErrors from the closed
// error set.
func (w *TranscriptionWorkflow) Transcribe(ctx context.Context, audioPath string) (string, error) {
	chainCtx := newChainContext(ctx)
	chainCtx.Add(cor.CtxIn, audioPath)
	w.Execute(chainCtx)
	if err := chainError(chainCtx, model.ErrInferenceFailed); err != nil {
		return "", err
	}
	// The chain's flip-flop leaves the final command's output under CtxIn.
	transcript, _ := chainCtx.Get(cor.CtxIn).(string)
	if transcript == "" {
		return "", model.NewPipelineError(model.ErrInferenceFailed, "", "transcription produced no text", nil)
	}
	return transcript, nil
}

// NewTranscriptionWorkflow is the constructor for TranscriptionWorkflow.
// It panics when the prompt template cannot be parsed, as the application
// cannot run without valid templates.
func NewTranscriptionWorkflow(config *cloud.Config, serviceClients *cloud.ServiceClients, agentModelName string) *TranscriptionWorkflow {
	transcribeTemplate, err := template.New("transcribe-template").Parse(config.PromptTemplates.TranscribePrompt)
	if err != nil {
		panic(err)
	}

	pipeline := &TranscriptionWorkflow{
		BaseCommand:        *cor.NewBaseCommand("transcription-pipeline"),
		genaiModel:         serviceClients.AgentModels[agentModelName],
		transcribeTemplate: transcribeTemplate,
	}
	pipeline.initializeChain()
	return pipeline
}
