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

// Package services contains the business logic of the pipeline. This file
// defines the PipelineService, the orchestrator that drives video records
// through their stages. It owns the rules the workflows themselves do not
// know about:
//
//   - Preconditions: every transition verifies the record has reached the
//     stage it depends on before any I/O happens.
//   - Idempotency: re-invoking a completed transition returns the stored
//     result instead of repeating work, finishing any cleanup a previous
//     run left behind.
//   - Reclamation: an upstream artifact is deleted only after the
//     downstream artifact and the stage advance have been durably
//     committed. Cleanup is best-effort; a failed delete is logged and
//     never overrides the outcome of the transition itself.
//
// The media work is delegated through small interfaces so the orchestrator
// can be tested hermetically against stubbed workflows.
package services

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"videobrief/internal/core/model"
	"videobrief/internal/storage"
)

// AudioExtractor strips the audio track of a staged source file into a
// canonical WAV artifact at outputPath.
type AudioExtractor interface {
	Extract(ctx context.Context, sourcePath, outputPath string) error
}

// Transcriber turns an audio artifact into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Summarizer condenses a transcript into summary text.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// RemoteIngester resolves and downloads remote source URLs.
type RemoteIngester interface {
	Resolve(ctx context.Context, url string) (*model.RemoteMetadata, error)
	Download(ctx context.Context, url, outputPath string) (int64, error)
}

// watchPattern matches the YouTube URL shapes the pipeline accepts: a
// standard watch URL, a short youtu.be link, or a shorts link.
var watchPattern = regexp.MustCompile(`^https?://(www\.)?(youtube\.com/(watch\?|shorts/)|youtu\.be/)\S+$`)

// playlistPattern identifies URLs that reference a playlist rather than a
// single video, either through the canonical /playlist path or a bare list
// parameter.
var playlistPattern = regexp.MustCompile(`youtube\.com/playlist\b|[?&]list=`)

// videoParamPattern identifies URLs that still carry a single-video
// reference alongside other parameters.
var videoParamPattern = regexp.MustCompile(`[?&]v=`)

// PipelineService orchestrates the processing pipeline for video records.
type PipelineService struct {
	Repo              *storage.VideoRepository
	Staging           *storage.Staging
	Extractor         AudioExtractor
	Transcriber       Transcriber
	Summarizer        Summarizer
	Ingester          RemoteIngester
	MaxAudioSizeBytes int64

	locks keyedMutex
}

// Get retrieves a single video record.
func (s *PipelineService) Get(ctx context.Context, id string) (*model.Video, error) {
	video, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, model.NewPipelineError(model.ErrNotFound, id, "video not found", nil)
	}
	return video, nil
}

// List returns the most recently created records.
func (s *PipelineService) List(ctx context.Context, limit int) ([]model.Video, error) {
	return s.Repo.ListRecent(ctx, limit)
}

// Stats returns the number of records at each pipeline stage.
func (s *PipelineService) Stats(ctx context.Context) (map[model.Stage]int64, error) {
	return s.Repo.CountByStage(ctx)
}

// ExtractAudio advances a record from uploaded to audio_extracted. The
// source artifact is reclaimed only after the audio artifact and the stage
// advance have been committed. Re-invoking the transition on a record whose
// audio already exists returns the stored result and finishes any pending
// source cleanup.
func (s *PipelineService) ExtractAudio(ctx context.Context, id string) (*model.Video, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	video, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Already past this transition: nothing to extract.
	switch video.Stage {
	case model.StageTranscribed, model.StageSummarized:
		return video, nil
	}

	// Completed extraction with the artifact still on disk: return the
	// stored result and finish any source cleanup a crashed run left
	// behind.
	if video.AudioLocation != "" && s.Staging.Exists(video.AudioLocation) {
		s.reclaimSource(ctx, video)
		return video, nil
	}

	if video.Stage != model.StageUploaded && video.Stage != model.StageFailed {
		return nil, model.NewPipelineError(model.ErrPrerequisiteMissing, id,
			"record is not ready for audio extraction", nil)
	}

	if video.SourceLocation == "" || !s.Staging.Exists(video.SourceLocation) {
		return nil, model.NewPipelineError(model.ErrSourceMissing, id,
			"source artifact is no longer in the staging area", nil)
	}

	// A client disconnect must not abort the transition once media work
	// has started; the record would be left inconsistent with the disk.
	workCtx := context.WithoutCancel(ctx)

	audioPath := s.Staging.AudioPath(video.ID)
	if err := s.Extractor.Extract(workCtx, video.SourceLocation, audioPath); err != nil {
		s.markFailed(workCtx, video)
		s.reclaimSource(workCtx, video)
		return nil, stampVideoID(err, id)
	}

	audioSize, err := s.Staging.SizeOf(audioPath)
	if err != nil {
		s.markFailed(workCtx, video)
		s.reclaimSource(workCtx, video)
		return nil, model.NewPipelineError(model.ErrExtractionFailed, id,
			"extracted audio artifact is missing", err)
	}

	// Commit the downstream artifact and the stage advance in one write,
	// then reclaim the source.
	video.AudioLocation = audioPath
	video.SizeBytes = audioSize
	video.Stage = model.StageAudioExtracted
	if err := s.Repo.Save(workCtx, video); err != nil {
		return nil, err
	}
	s.reclaimSource(workCtx, video)
	return video, nil
}

// Transcribe advances a record from audio_extracted to transcribed. The
// audio artifact is reclaimed only after the transcript and the stage
// advance have been committed. Re-invoking the transition on a record that
// already has a transcript returns the stored result and finishes any
// pending audio cleanup.
func (s *PipelineService) Transcribe(ctx context.Context, id string) (*model.Video, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	video, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if video.Transcript != "" {
		s.reclaimAudio(ctx, video)
		return video, nil
	}

	if video.AudioLocation == "" {
		return nil, model.NewPipelineError(model.ErrPrerequisiteMissing, id,
			"record has no extracted audio to transcribe", nil)
	}

	if !s.Staging.Exists(video.AudioLocation) {
		return nil, model.NewPipelineError(model.ErrAudioMissing, id,
			"audio artifact is no longer in the staging area", nil)
	}

	// The size ceiling is checked before any model work so an oversized
	// artifact fails fast and without marking the record failed.
	audioSize, err := s.Staging.SizeOf(video.AudioLocation)
	if err != nil {
		return nil, model.NewPipelineError(model.ErrAudioMissing, id,
			"audio artifact could not be inspected", err)
	}
	if s.MaxAudioSizeBytes > 0 && audioSize > s.MaxAudioSizeBytes {
		return nil, model.NewPipelineError(model.ErrPayloadTooLarge, id,
			"audio artifact exceeds the transcription size ceiling", nil)
	}

	workCtx := context.WithoutCancel(ctx)

	transcript, err := s.Transcriber.Transcribe(workCtx, video.AudioLocation)
	if err != nil {
		s.markFailed(workCtx, video)
		s.removeArtifact(workCtx, video.ID, video.AudioLocation)
		return nil, stampVideoID(err, id)
	}

	// Commit the transcript and stage advance first, then reclaim the
	// audio artifact in a second write.
	video.Transcript = transcript
	video.Stage = model.StageTranscribed
	if err := s.Repo.Save(workCtx, video); err != nil {
		return nil, err
	}
	s.reclaimAudio(workCtx, video)
	return video, nil
}

// Summarize advances a record from transcribed to summarized. There is no
// artifact to reclaim; the transcript stays on the record.
func (s *PipelineService) Summarize(ctx context.Context, id string) (*model.Video, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	video, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if video.Summary != "" {
		return video, nil
	}

	if video.Transcript == "" {
		return nil, model.NewPipelineError(model.ErrPrerequisiteMissing, id,
			"record has no transcript to summarize", nil)
	}

	workCtx := context.WithoutCancel(ctx)

	summary, err := s.Summarizer.Summarize(workCtx, video.Transcript)
	if err != nil {
		s.markFailed(workCtx, video)
		return nil, stampVideoID(err, id)
	}

	video.Summary = summary
	video.Stage = model.StageSummarized
	if err := s.Repo.Save(workCtx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// IngestFromURL creates a new record from a remote YouTube source. The URL
// is validated and resolved before any record exists; the record is created
// in its downloading stage, the audio-only stream is fetched into the
// staging area, and the download is run through the same extraction step as
// uploads so the record lands at audio_extracted with a canonical WAV
// artifact. A non-empty title overrides the title resolved from the remote
// source.
func (s *PipelineService) IngestFromURL(ctx context.Context, url, title string) (*model.Video, error) {
	// A playlist link without a single-video reference cannot be processed
	// as one artifact. Checked before the watch-shape gate so the canonical
	// /playlist path is reported as unsupported rather than unrecognized.
	if playlistPattern.MatchString(url) && !videoParamPattern.MatchString(url) {
		return nil, model.NewPipelineError(model.ErrUnsupportedContainer, "",
			"playlist urls are not supported", nil)
	}
	if !watchPattern.MatchString(url) {
		return nil, model.NewPipelineError(model.ErrInvalidSource, "",
			"url is not a recognized YouTube video link", nil)
	}

	meta, err := s.Ingester.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	if meta.IsCollection {
		return nil, model.NewPipelineError(model.ErrUnsupportedContainer, "",
			"url resolves to a collection, not a single video", nil)
	}

	if title == "" {
		title = meta.Title
	}
	video := &model.Video{
		Title:           title,
		Stage:           model.StageDownloading,
		MimeType:        "audio/mp4",
		DurationSeconds: meta.DurationSeconds,
		RemoteSourceURL: url,
	}
	if err := s.Repo.Create(ctx, video); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(video.ID)
	defer unlock()

	workCtx := context.WithoutCancel(ctx)

	downloadPath := s.Staging.SourcePath(video.ID, "m4a")
	size, err := s.Ingester.Download(workCtx, url, downloadPath)
	if err != nil {
		s.markFailed(workCtx, video)
		s.removeArtifact(workCtx, video.ID, downloadPath)
		return nil, stampVideoID(err, video.ID)
	}

	video.SourceLocation = downloadPath
	video.SizeBytes = size
	if err := s.Repo.Save(workCtx, video); err != nil {
		return nil, err
	}

	// Normalize the downloaded stream into the same WAV artifact uploads
	// produce, then reclaim the download.
	audioPath := s.Staging.AudioPath(video.ID)
	if err := s.Extractor.Extract(workCtx, downloadPath, audioPath); err != nil {
		s.markFailed(workCtx, video)
		s.reclaimSource(workCtx, video)
		return nil, stampVideoID(err, video.ID)
	}

	audioSize, err := s.Staging.SizeOf(audioPath)
	if err != nil {
		s.markFailed(workCtx, video)
		s.reclaimSource(workCtx, video)
		return nil, model.NewPipelineError(model.ErrExtractionFailed, video.ID,
			"extracted audio artifact is missing", err)
	}

	video.AudioLocation = audioPath
	video.SizeBytes = audioSize
	video.MimeType = "audio/wav"
	video.Stage = model.StageAudioExtracted
	if err := s.Repo.Save(workCtx, video); err != nil {
		return nil, err
	}
	s.reclaimSource(workCtx, video)
	return video, nil
}

// Delete removes a record and any artifacts it still references.
func (s *PipelineService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	video, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	s.removeArtifact(ctx, id, video.SourceLocation)
	s.removeArtifact(ctx, id, video.AudioLocation)
	return s.Repo.Delete(ctx, id)
}

// markFailed moves the record into its failed stage. The write itself is
// best-effort: a record that cannot be marked still carries a valid prior
// stage, and the caller's error is the one that matters.
func (s *PipelineService) markFailed(ctx context.Context, video *model.Video) {
	video.Stage = model.StageFailed
	if err := s.Repo.Save(ctx, video); err != nil {
		slog.Warn("failed to mark video as failed", "video_id", video.ID, "error", err)
	}
}

// reclaimSource deletes the source artifact and clears its reference once
// the delete succeeds. Best-effort: a failed delete is logged and the
// reference kept so a later run can retry the cleanup.
func (s *PipelineService) reclaimSource(ctx context.Context, video *model.Video) {
	if video.SourceLocation == "" {
		return
	}
	if err := s.Staging.Remove(video.SourceLocation); err != nil {
		slog.Warn("failed to reclaim source artifact", "video_id", video.ID, "path", video.SourceLocation, "error", err)
		return
	}
	video.SourceLocation = ""
	if err := s.Repo.Save(ctx, video); err != nil {
		slog.Warn("failed to clear source reference", "video_id", video.ID, "error", err)
	}
}

// reclaimAudio deletes the audio artifact and clears its reference, with
// the same best-effort semantics as reclaimSource.
func (s *PipelineService) reclaimAudio(ctx context.Context, video *model.Video) {
	if video.AudioLocation == "" {
		return
	}
	if err := s.Staging.Remove(video.AudioLocation); err != nil {
		slog.Warn("failed to reclaim audio artifact", "video_id", video.ID, "path", video.AudioLocation, "error", err)
		return
	}
	video.AudioLocation = ""
	if err := s.Repo.Save(ctx, video); err != nil {
		slog.Warn("failed to clear audio reference", "video_id", video.ID, "error", err)
	}
}

// removeArtifact deletes a staging file without touching the record.
func (s *PipelineService) removeArtifact(_ context.Context, videoID, path string) {
	if path == "" {
		return
	}
	if err := s.Staging.Remove(path); err != nil {
		slog.Warn("failed to remove staging artifact", "video_id", videoID, "path", path, "error", err)
	}
}

// stampVideoID fills in the video ID on a PipelineError produced below the
// orchestrator, where the ID is not known.
func stampVideoID(err error, id string) error {
	var pe *model.PipelineError
	if errors.As(err, &pe) && pe.VideoID == "" {
		pe.VideoID = id
	}
	return err
}
