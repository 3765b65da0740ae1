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
// commands that wrap the external ffmpeg/ffprobe binaries.
//
// Logic Flow:
// Audio extraction runs as two chained commands. The probe command inspects
// the source container first: a file whose format ffprobe cannot parse is
// rejected as unsupported, and a parseable file with no audio track is
// rejected before any transcode work starts. The extract command then
// strips the video track and writes a canonical PCM WAV file (16-bit
// little-endian samples, 44.1 kHz, stereo) under a wall-clock budget; when
// the budget is exceeded the process is killed and the partial output is
// removed.
package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// AudioProbeCommand verifies that a source container is readable and holds
// at least one audio stream. Its input is the path of the source file, which
// it passes through unchanged on success.
type AudioProbeCommand struct {
	cor.BaseCommand
	commandPath string        // Path to the ffprobe executable.
	timeout     time.Duration // Wall-clock budget for one probe run.
}

// NewAudioProbeCommand is the constructor for AudioProbeCommand.
func NewAudioProbeCommand(name string, commandPath string, timeout time.Duration) *AudioProbeCommand {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AudioProbeCommand{
		BaseCommand: *cor.NewBaseCommand(name),
		commandPath: commandPath,
		timeout:     timeout,
	}
}

// Execute runs ffprobe against the input file, asking only for the codec
// type of its audio streams. No output lines means no audio track. The run
// carries its own deadline so a pathological container cannot hold the
// pipeline open.
func (c *AudioProbeCommand) Execute(chCtx cor.Context) {
	sourcePath := chCtx.Get(c.GetInputParam()).(string)

	runCtx, cancel := context.WithTimeout(chCtx.GetContext(), c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.commandPath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		sourcePath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), model.NewPipelineError(
			model.ErrUnsupportedContainer, "",
			fmt.Sprintf("ffprobe could not read source: %s", strings.TrimSpace(stderr.String())), err))
		return
	}

	if strings.TrimSpace(stdout.String()) == "" {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), model.NewPipelineError(
			model.ErrNoAudioStream, "", "source contains no audio stream", nil))
		return
	}

	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(c.GetOutputParam(), sourcePath)
}

// AudioExtractCommand runs ffmpeg to strip the video track from a source
// file and write its audio as canonical PCM WAV. Its input is the source
// path; its output is the path of the extracted audio file.
type AudioExtractCommand struct {
	cor.BaseCommand
	commandPath     string        // Path to the ffmpeg executable.
	outputPathParam string        // Context key holding the destination WAV path.
	timeout         time.Duration // Wall-clock budget for one run.
}

// NewAudioExtractCommand is the constructor for AudioExtractCommand. The
// destination path varies per execution, so it is read from the context
// under outputPathParam rather than fixed at construction.
func NewAudioExtractCommand(name string, commandPath string, outputPathParam string, timeout time.Duration) *AudioExtractCommand {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AudioExtractCommand{
		BaseCommand:     *cor.NewBaseCommand(name),
		commandPath:     commandPath,
		outputPathParam: outputPathParam,
		timeout:         timeout,
	}
}

// Execute runs the extraction under a deadline. A run that exceeds the
// deadline is killed and reported as a timeout; any failed run leaves no
// partial output behind.
func (c *AudioExtractCommand) Execute(chCtx cor.Context) {
	sourcePath := chCtx.Get(c.GetInputParam()).(string)
	outputPath := chCtx.Get(c.outputPathParam).(string)

	runCtx, cancel := context.WithTimeout(chCtx.GetContext(), c.timeout)
	defer cancel()

	// -vn drops the video track; the remaining flags request 16-bit PCM at
	// 44.1 kHz stereo, the canonical format downstream transcription expects.
	cmd := exec.CommandContext(runCtx, c.commandPath,
		"-y", "-hide_banner",
		"-i", sourcePath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		outputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// A failed run must not leave a partial artifact behind.
		_ = os.Remove(outputPath)
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			chCtx.AddError(c.GetName(), model.NewPipelineError(
				model.ErrExtractionTimeout, "",
				fmt.Sprintf("ffmpeg exceeded %s budget", c.timeout), err))
			return
		}
		chCtx.AddError(c.GetName(), model.NewPipelineError(
			model.ErrExtractionFailed, "",
			fmt.Sprintf("ffmpeg failed: %s", strings.TrimSpace(stderr.String())), err))
		return
	}

	// An exit status of zero with no output file still counts as failure.
	if info, statErr := os.Stat(outputPath); statErr != nil || info.Size() == 0 {
		_ = os.Remove(outputPath)
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), model.NewPipelineError(
			model.ErrExtractionFailed, "", "ffmpeg produced no output file", statErr))
		return
	}

	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(c.GetOutputParam(), outputPath)
}

// ProbeDuration returns the duration in seconds of the media file at path,
// using ffprobe. It is best-effort metadata for upload handling; callers
// should treat an error as "duration unknown" rather than a rejection.
func ProbeDuration(ctx context.Context, ffprobePath string, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe duration failed: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration: %w", err)
	}
	return duration, nil
}
