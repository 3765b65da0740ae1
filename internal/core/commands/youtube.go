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
// commands for ingesting media from a remote YouTube source: one resolves
// the URL into descriptive metadata before any record exists, and one
// downloads the best available audio-only stream into the staging area.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	ytdl "github.com/kkdai/youtube/v2"

	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// RemoteResolveCommand resolves a YouTube URL into metadata. Its input is
// the URL string; its output is a *model.RemoteMetadata.
type RemoteResolveCommand struct {
	cor.BaseCommand
	client *ytdl.Client
}

// NewRemoteResolveCommand is the constructor for RemoteResolveCommand.
func NewRemoteResolveCommand(name string, client *ytdl.Client) *RemoteResolveCommand {
	return &RemoteResolveCommand{
		BaseCommand: *cor.NewBaseCommand(name),
		client:      client,
	}
}

// collectionShape identifies URLs that reference a playlist without a
// single-video parameter.
var collectionShape = regexp.MustCompile(`youtube\.com/playlist\b|[?&]list=`)

// singleVideoShape identifies URLs carrying a single-video reference.
var singleVideoShape = regexp.MustCompile(`[?&]v=`)

// Execute looks up the video behind the URL. A URL that resolves to a
// playlist is reported as metadata with IsCollection set so callers can
// reject it; a URL the resolver cannot turn into a single video is rejected
// as an invalid source.
func (c *RemoteResolveCommand) Execute(chCtx cor.Context) {
	url := chCtx.Get(c.GetInputParam()).(string)

	if collectionShape.MatchString(url) && !singleVideoShape.MatchString(url) {
		if playlist, err := c.client.GetPlaylistContext(chCtx.GetContext(), url); err == nil {
			c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
			chCtx.Add(c.GetOutputParam(), &model.RemoteMetadata{
				Title:        playlist.Title,
				IsCollection: true,
			})
			return
		}
	}

	video, err := c.client.GetVideoContext(chCtx.GetContext(), url)
	if err != nil {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), model.NewPipelineError(
			model.ErrInvalidSource, "", "could not resolve remote source", err))
		return
	}

	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(c.GetOutputParam(), &model.RemoteMetadata{
		Title:           video.Title,
		DurationSeconds: video.Duration.Seconds(),
	})
}

// RemoteAudioDownloadCommand downloads the best audio-only stream of a
// YouTube video into the staging area. Its input is the URL string; its
// output is the path of the downloaded file.
type RemoteAudioDownloadCommand struct {
	cor.BaseCommand
	client          *ytdl.Client
	outputPathParam string        // Context key holding the destination file path.
	maxAttempts     int           // Fetch attempts before giving up.
	timeout         time.Duration // Overall budget for the whole download.
}

// NewRemoteAudioDownloadCommand is the constructor for
// RemoteAudioDownloadCommand. The destination path varies per execution, so
// it is read from the context under outputPathParam.
func NewRemoteAudioDownloadCommand(name string, client *ytdl.Client, outputPathParam string, maxAttempts int, timeout time.Duration) *RemoteAudioDownloadCommand {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RemoteAudioDownloadCommand{
		BaseCommand:     *cor.NewBaseCommand(name),
		client:          client,
		outputPathParam: outputPathParam,
		maxAttempts:     maxAttempts,
		timeout:         timeout,
	}
}

// Execute fetches the stream with exponential backoff between attempts. A
// failed attempt removes its partial file before the next try; running out
// of attempts is reported as a download failure.
func (c *RemoteAudioDownloadCommand) Execute(chCtx cor.Context) {
	url := chCtx.Get(c.GetInputParam()).(string)
	outputPath := chCtx.Get(c.outputPathParam).(string)

	runCtx, cancel := context.WithTimeout(chCtx.GetContext(), c.timeout)
	defer cancel()

	operation := func() error {
		return c.downloadOnce(runCtx, url, outputPath)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(2*time.Second)),
		uint64(c.maxAttempts-1)), runCtx)

	if err := backoff.Retry(operation, policy); err != nil {
		_ = os.Remove(outputPath)
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), model.NewPipelineError(
			model.ErrDownloadFailed, "",
			fmt.Sprintf("download failed after %d attempts", c.maxAttempts), err))
		return
	}

	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(c.GetOutputParam(), outputPath)
}

func (c *RemoteAudioDownloadCommand) downloadOnce(ctx context.Context, url, outputPath string) error {
	video, err := c.client.GetVideoContext(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to get video: %w", err)
	}

	format, err := selectBestAudioFormat(video)
	if err != nil {
		// No audio-only stream at all is permanent; retrying cannot help.
		return backoff.Permanent(err)
	}

	stream, _, err := c.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(outputPath)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create staging file: %w", err))
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("failed to download stream: %w", err)
	}
	return nil
}

// selectBestAudioFormat picks the highest-bitrate audio-only format.
func selectBestAudioFormat(video *ytdl.Video) (*ytdl.Format, error) {
	var audioFormats []*ytdl.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if strings.HasPrefix(f.MimeType, "audio/") {
			audioFormats = append(audioFormats, f)
		}
	}
	if len(audioFormats) == 0 {
		return nil, fmt.Errorf("no audio formats available for video %q", video.ID)
	}
	sort.Slice(audioFormats, func(i, j int) bool {
		return audioFormats[i].Bitrate > audioFormats[j].Bitrate
	})
	return audioFormats[0], nil
}
