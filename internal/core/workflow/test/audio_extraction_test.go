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

// Package workflow_test contains integration tests for the media workflows.
// This file tests the audio extraction workflow end to end against real
// ffmpeg/ffprobe binaries. The tests synthesize their source videos with
// ffmpeg's lavfi generators, so no media fixtures are checked in; hosts
// without ffmpeg skip the suite.
package workflow_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videobrief/internal/cloud"
	"videobrief/internal/core/commands"
	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
	"videobrief/internal/core/workflow"
)

// newToolingConfig resolves the media binaries from PATH, skipping the test
// when they are not installed.
func newToolingConfig(t *testing.T) *cloud.Config {
	t.Helper()
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}

	cfg := cloud.NewConfig()
	cfg.Tooling = cloud.Tooling{
		FfmpegPath:               ffmpeg,
		FfprobePath:              ffprobe,
		ExtractionTimeoutSeconds: 30,
	}
	return cfg
}

// synthesizeVideo renders a one-second test clip. With audio it carries a
// 440 Hz sine track; without it is a video-only container.
func synthesizeVideo(t *testing.T, cfg *cloud.Config, withAudio bool) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "clip.mp4")

	args := []string{"-y", "-hide_banner",
		"-f", "lavfi", "-i", "color=c=black:s=128x72:d=1"}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", "sine=frequency=440:duration=1", "-shortest")
	}
	args = append(args, out)

	cmd := exec.CommandContext(ctx, cfg.Tooling.FfmpegPath, args...)
	outBytes, err := cmd.CombinedOutput()
	require.NoError(t, err, "ffmpeg synthesis failed: %s", string(outBytes))
	return out
}

func TestAudioExtractionProducesWav(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "audio-extraction-test")
	defer span.End()

	cfg := newToolingConfig(t)
	source := synthesizeVideo(t, cfg, true)
	outputPath := filepath.Join(t.TempDir(), "clip.wav")

	extraction := workflow.NewAudioExtractionWorkflow(cfg)
	err := extraction.Extract(traceCtx, source, outputPath)
	require.NoError(t, err)

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// The source is untouched; reclamation is the orchestrator's job.
	_, err = os.Stat(source)
	assert.NoError(t, err)
}

func TestAudioExtractionRejectsVideoOnlySource(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "audio-extraction-no-audio-test")
	defer span.End()

	cfg := newToolingConfig(t)
	source := synthesizeVideo(t, cfg, false)
	outputPath := filepath.Join(t.TempDir(), "clip.wav")

	extraction := workflow.NewAudioExtractionWorkflow(cfg)
	err := extraction.Extract(traceCtx, source, outputPath)

	assert.Equal(t, model.ErrNoAudioStream, model.KindOf(err))
	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAudioProbeHonorsDeadline(t *testing.T) {
	cfg := newToolingConfig(t)
	source := synthesizeVideo(t, cfg, true)

	probe := commands.NewAudioProbeCommand("probe-audio-stream", cfg.Tooling.FfprobePath, time.Nanosecond)
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, source)
	probe.Execute(chainCtx)

	err := chainCtx.FirstError()
	require.Error(t, err)
	assert.Equal(t, model.ErrUnsupportedContainer, model.KindOf(err))
}

func TestAudioExtractionRejectsUnreadableContainer(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "audio-extraction-bad-container-test")
	defer span.End()

	cfg := newToolingConfig(t)
	source := filepath.Join(t.TempDir(), "not-a-video.mp4")
	require.NoError(t, os.WriteFile(source, []byte("this is not a media container"), 0644))
	outputPath := filepath.Join(t.TempDir(), "clip.wav")

	extraction := workflow.NewAudioExtractionWorkflow(cfg)
	err := extraction.Extract(traceCtx, source, outputPath)

	assert.Equal(t, model.ErrUnsupportedContainer, model.KindOf(err))
}
