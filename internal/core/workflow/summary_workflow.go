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
// This file implements the summary workflow: condensing a transcript into
// a short overview plus a detailed bullet breakdown.
package workflow

import (
	"context"
	"text/template"

	"videobrief/internal/cloud"
	"videobrief/internal/core/commands"
	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// SummaryWorkflow turns a transcript into a summary via a generative model.
type SummaryWorkflow struct {
	cor.BaseCommand
	genaiModel      *cloud.QuotaAwareGenerativeAIModel
	summaryTemplate *template.Template
	chain           cor.Chain
}

// Execute runs the workflow by invoking the underlying chain.
func (w *SummaryWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *SummaryWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewSummaryCreator("generate-summary", w.genaiModel, w.summaryTemplate))
	w.chain = out
}

// Summarize runs the chain for a single transcript and returns the summary
// text. Failures come back as PipelineErrors from the closed error set.
func (w *SummaryWorkflow) Summarize(ctx context.Context, transcript string) (string, error) {
	chainCtx := newChainContext(ctx)
	chainCtx.Add(cor.CtxIn, transcript)
	w.Execute(chainCtx)
	if err := chainError(chainCtx, model.ErrInferenceFailed); err != nil {
		return "", err
	}
	summary, _ := chainCtx.Get(cor.CtxIn).(string)
	if summary == "" {
		return "", model.NewPipelineError(model.ErrInferenceFailed, "", "summary produced no text", nil)
	}
	return summary, nil
}

// NewSummaryWorkflow is the constructor for SummaryWorkflow. It panics when
// the prompt template cannot be parsed.
func NewSummaryWorkflow(config *cloud.Config, serviceClients *cloud.ServiceClients, agentModelName string) *SummaryWorkflow {
	summaryTemplate, err := template.New("summary-template").Parse(config.PromptTemplates.SummaryPrompt)
	if err != nil {
		panic(err)
	}

	pipeline := &SummaryWorkflow{
		BaseCommand:     *cor.NewBaseCommand("summary-pipeline"),
		genaiModel:      serviceClients.AgentModels[agentModelName],
		summaryTemplate: summaryTemplate,
	}
	pipeline.initializeChain()
	return pipeline
}
