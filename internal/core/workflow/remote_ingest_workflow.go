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
// This file implements remote ingestion from YouTube. Resolution and
// download run as separate chains because the orchestrator commits a
// database record between the two: metadata is resolved first, the record
// is created in its downloading stage, and only then does the fetch start.
package workflow

import (
	"context"
	"os"
	"time"

	ytdl "github.com/kkdai/youtube/v2"

	"videobrief/internal/cloud"
	"videobrief/internal/core/commands"
	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// RemoteIngestWorkflow resolves and downloads remote YouTube sources.
type RemoteIngestWorkflow struct {
	cor.BaseCommand
	client        *ytdl.Client
	resolveChain  cor.Chain
	downloadChain cor.Chain
}

// Execute runs the download chain, the workflow's primary unit of work.
func (w *RemoteIngestWorkflow) Execute(context cor.Context) {
	w.downloadChain.Execute(context)
}

func (w *RemoteIngestWorkflow) initializeChains(config *cloud.Config) {
	timeout := time.Duration(config.Download.TimeoutSeconds) * time.Second

	resolve := cor.NewBaseChain("remote-resolve-chain")
	resolve.AddCommand(commands.NewRemoteResolveCommand("resolve-remote-source", w.client))
	w.resolveChain = resolve

	download := cor.NewBaseChain("remote-download-chain")
	download.AddCommand(commands.NewRemoteAudioDownloadCommand(
		"download-remote-audio", w.client, ParamOutputPath, config.Download.MaxAttempts, timeout))
	w.downloadChain = download
}

// Resolve looks up the metadata for a remote source URL without fetching
// any media.
func (w *RemoteIngestWorkflow) Resolve(ctx context.Context, url string) (*model.RemoteMetadata, error) {
	chainCtx := newChainContext(ctx)
	chainCtx.Add(cor.CtxIn, url)
	w.resolveChain.Execute(chainCtx)
	if err := chainError(chainCtx, model.ErrInvalidSource); err != nil {
		return nil, err
	}
	meta, _ := chainCtx.Get(cor.CtxIn).(*model.RemoteMetadata)
	if meta == nil {
		return nil, model.NewPipelineError(model.ErrInvalidSource, "", "remote source resolved to nothing", nil)
	}
	return meta, nil
}

// Download fetches the best audio-only stream of the remote source into
// outputPath and returns the downloaded size in bytes.
func (w *RemoteIngestWorkflow) Download(ctx context.Context, url, outputPath string) (int64, error) {
	chainCtx := newChainContext(ctx)
	chainCtx.Add(cor.CtxIn, url)
	chainCtx.Add(ParamOutputPath, outputPath)
	w.downloadChain.Execute(chainCtx)
	if err := chainError(chainCtx, model.ErrDownloadFailed); err != nil {
		return 0, err
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return 0, model.NewPipelineError(model.ErrDownloadFailed, "", "downloaded artifact is missing", err)
	}
	return info.Size(), nil
}

// NewRemoteIngestWorkflow is the constructor for RemoteIngestWorkflow.
func NewRemoteIngestWorkflow(config *cloud.Config) *RemoteIngestWorkflow {
	pipeline := &RemoteIngestWorkflow{
		BaseCommand: *cor.NewBaseCommand("remote-ingest-pipeline"),
		client:      &ytdl.Client{},
	}
	pipeline.initializeChains(config)
	return pipeline
}
