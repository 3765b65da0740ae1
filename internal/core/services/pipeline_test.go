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

package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videobrief/internal/core/model"
	"videobrief/internal/storage"
	test "videobrief/internal/testutil"
)

type stubExtractor struct {
	err       error
	skipWrite bool // Report success without producing an output file.
	calls     int
}

func (s *stubExtractor) Extract(_ context.Context, _, outputPath string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	if s.skipWrite {
		return nil
	}
	return os.WriteFile(outputPath, []byte("pcm-audio-bytes"), 0644)
}

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubSummarizer struct {
	text  string
	err   error
	calls int
}

func (s *stubSummarizer) Summarize(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubIngester struct {
	meta        *model.RemoteMetadata
	resolveErr  error
	downloadErr error
}

func (s *stubIngester) Resolve(_ context.Context, _ string) (*model.RemoteMetadata, error) {
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return s.meta, nil
}

func (s *stubIngester) Download(_ context.Context, _, outputPath string) (int64, error) {
	if s.downloadErr != nil {
		return 0, s.downloadErr
	}
	data := []byte("m4a-audio-stream")
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

type pipelineFixture struct {
	service     *PipelineService
	extractor   *stubExtractor
	transcriber *stubTranscriber
	summarizer  *stubSummarizer
	ingester    *stubIngester
	staging     *storage.Staging
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "videobrief.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	staging, err := storage.NewStaging(t.TempDir())
	require.NoError(t, err)

	f := &pipelineFixture{
		extractor:   &stubExtractor{},
		transcriber: &stubTranscriber{text: "hello world transcript"},
		summarizer:  &stubSummarizer{text: "Short Summary: hello."},
		ingester: &stubIngester{meta: &model.RemoteMetadata{
			Title:           "remote talk",
			DurationSeconds: 90,
		}},
		staging: staging,
	}
	f.service = &PipelineService{
		Repo:              storage.NewVideoRepository(db),
		Staging:           staging,
		Extractor:         f.extractor,
		Transcriber:       f.transcriber,
		Summarizer:        f.summarizer,
		Ingester:          f.ingester,
		MaxAudioSizeBytes: 1 << 20,
	}
	return f
}

// seedUploaded creates a record in its uploaded stage with a real source
// file in the staging area.
func (f *pipelineFixture) seedUploaded(t *testing.T) *model.Video {
	t.Helper()
	video := &model.Video{Title: "meeting", Stage: model.StageUploaded, MimeType: "video/mp4"}
	require.NoError(t, f.service.Repo.Create(context.Background(), video))

	sourcePath := f.staging.SourcePath(video.ID, "mp4")
	require.NoError(t, os.WriteFile(sourcePath, []byte("mp4-container-bytes"), 0644))
	video.SourceLocation = sourcePath
	require.NoError(t, f.service.Repo.Save(context.Background(), video))
	return video
}

// seedExtracted creates a record in its audio_extracted stage with a real
// audio file in the staging area.
func (f *pipelineFixture) seedExtracted(t *testing.T) *model.Video {
	t.Helper()
	video := &model.Video{Title: "meeting", Stage: model.StageAudioExtracted}
	require.NoError(t, f.service.Repo.Create(context.Background(), video))

	audioPath := f.staging.AudioPath(video.ID)
	require.NoError(t, os.WriteFile(audioPath, []byte("pcm-audio-bytes"), 0644))
	video.AudioLocation = audioPath
	require.NoError(t, f.service.Repo.Save(context.Background(), video))
	return video
}

func TestGetMissingRecord(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.service.Get(context.Background(), "no-such-id")
	assert.Equal(t, model.ErrNotFound, model.KindOf(err))
}

func TestExtractAudioHappyPath(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedUploaded(t)
	sourcePath := video.SourceLocation

	got, err := f.service.ExtractAudio(context.Background(), video.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StageAudioExtracted, got.Stage)
	assert.True(t, f.staging.Exists(got.AudioLocation))
	assert.Equal(t, int64(len("pcm-audio-bytes")), got.SizeBytes)

	// The upstream artifact is reclaimed and its reference cleared.
	assert.False(t, f.staging.Exists(sourcePath))
	assert.Empty(t, got.SourceLocation)

	persisted, err := f.service.Get(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageAudioExtracted, persisted.Stage)
	assert.Empty(t, persisted.SourceLocation)
}

func TestExtractAudioIdempotent(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedUploaded(t)

	first, err := f.service.ExtractAudio(context.Background(), video.ID)
	require.NoError(t, err)
	second, err := f.service.ExtractAudio(context.Background(), video.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.extractor.calls)
	assert.Equal(t, first.AudioLocation, second.AudioLocation)
	assert.Equal(t, model.StageAudioExtracted, second.Stage)
}

func TestExtractAudioFinishesPendingCleanup(t *testing.T) {
	f := newPipelineFixture(t)

	// Simulate a run that committed the audio artifact but crashed before
	// reclaiming the source.
	video := f.seedUploaded(t)
	audioPath := f.staging.AudioPath(video.ID)
	require.NoError(t, os.WriteFile(audioPath, []byte("pcm-audio-bytes"), 0644))
	video.AudioLocation = audioPath
	video.Stage = model.StageAudioExtracted
	require.NoError(t, f.service.Repo.Save(context.Background(), video))
	sourcePath := video.SourceLocation

	got, err := f.service.ExtractAudio(context.Background(), video.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.extractor.calls)
	assert.False(t, f.staging.Exists(sourcePath))
	assert.Empty(t, got.SourceLocation)
}

func TestExtractAudioNotFound(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.service.ExtractAudio(context.Background(), "ghost")
	assert.Equal(t, model.ErrNotFound, model.KindOf(err))
}

func TestExtractAudioSourceMissing(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedUploaded(t)
	require.NoError(t, os.Remove(video.SourceLocation))

	_, err := f.service.ExtractAudio(context.Background(), video.ID)
	assert.Equal(t, model.ErrSourceMissing, model.KindOf(err))

	// A missing precondition does not push the record into failed.
	persisted, err := f.service.Get(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageUploaded, persisted.Stage)
}

func TestExtractAudioPrerequisiteMissing(t *testing.T) {
	f := newPipelineFixture(t)
	video := &model.Video{Stage: model.StageDownloading}
	require.NoError(t, f.service.Repo.Create(context.Background(), video))

	_, err := f.service.ExtractAudio(context.Background(), video.ID)
	assert.Equal(t, model.ErrPrerequisiteMissing, model.KindOf(err))
}

func TestExtractAudioMissingArtifactReclaimsSource(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedUploaded(t)
	sourcePath := video.SourceLocation
	f.extractor.skipWrite = true

	_, err := f.service.ExtractAudio(context.Background(), video.ID)
	assert.Equal(t, model.ErrExtractionFailed, model.KindOf(err))

	persisted, getErr := f.service.Get(context.Background(), video.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StageFailed, persisted.Stage)
	assert.False(t, f.staging.Exists(sourcePath))
}

func TestExtractAudioFailureMarksFailedAndReclaims(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedUploaded(t)
	sourcePath := video.SourceLocation
	f.extractor.err = model.NewPipelineError(model.ErrNoAudioStream, "", "source contains no audio stream", nil)

	_, err := f.service.ExtractAudio(context.Background(), video.ID)
	assert.Equal(t, model.ErrNoAudioStream, model.KindOf(err))

	persisted, getErr := f.service.Get(context.Background(), video.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StageFailed, persisted.Stage)
	assert.False(t, f.staging.Exists(sourcePath))
}

func TestTranscribeHappyPath(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedExtracted(t)
	audioPath := video.AudioLocation

	got, err := f.service.Transcribe(context.Background(), video.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StageTranscribed, got.Stage)
	assert.Equal(t, "hello world transcript", got.Transcript)
	assert.False(t, f.staging.Exists(audioPath))
	assert.Empty(t, got.AudioLocation)
}

func TestTranscribeIdempotentFinishesCleanup(t *testing.T) {
	f := newPipelineFixture(t)

	// A record that committed its transcript but crashed before deleting
	// the audio artifact.
	video := f.seedExtracted(t)
	audioPath := video.AudioLocation
	video.Transcript = "already transcribed"
	video.Stage = model.StageTranscribed
	require.NoError(t, f.service.Repo.Save(context.Background(), video))

	got, err := f.service.Transcribe(context.Background(), video.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.transcriber.calls)
	assert.Equal(t, "already transcribed", got.Transcript)
	assert.False(t, f.staging.Exists(audioPath))
	assert.Empty(t, got.AudioLocation)
}

func TestTranscribePrerequisiteMissing(t *testing.T) {
	f := newPipelineFixture(t)
	video := &model.Video{Stage: model.StageUploaded}
	require.NoError(t, f.service.Repo.Create(context.Background(), video))

	_, err := f.service.Transcribe(context.Background(), video.ID)
	assert.Equal(t, model.ErrPrerequisiteMissing, model.KindOf(err))
	assert.Equal(t, 0, f.transcriber.calls)
}

func TestTranscribeAudioMissing(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedExtracted(t)
	require.NoError(t, os.Remove(video.AudioLocation))

	_, err := f.service.Transcribe(context.Background(), video.ID)
	assert.Equal(t, model.ErrAudioMissing, model.KindOf(err))

	persisted, getErr := f.service.Get(context.Background(), video.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StageAudioExtracted, persisted.Stage)
}

func TestTranscribePayloadTooLarge(t *testing.T) {
	f := newPipelineFixture(t)
	f.service.MaxAudioSizeBytes = 4
	video := f.seedExtracted(t)

	_, err := f.service.Transcribe(context.Background(), video.ID)
	assert.Equal(t, model.ErrPayloadTooLarge, model.KindOf(err))
	assert.Equal(t, 0, f.transcriber.calls)

	// The oversized artifact stays on disk and the record stays retryable.
	persisted, getErr := f.service.Get(context.Background(), video.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StageAudioExtracted, persisted.Stage)
	assert.True(t, f.staging.Exists(persisted.AudioLocation))
}

func TestTranscribeFailureMarksFailedAndReclaims(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedExtracted(t)
	audioPath := video.AudioLocation
	f.transcriber.err = model.NewPipelineError(model.ErrInferenceFailed, "", "transcription request failed", nil)

	_, err := f.service.Transcribe(context.Background(), video.ID)
	assert.Equal(t, model.ErrInferenceFailed, model.KindOf(err))

	persisted, getErr := f.service.Get(context.Background(), video.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StageFailed, persisted.Stage)
	assert.False(t, f.staging.Exists(audioPath))
}

func TestSummarizeHappyPath(t *testing.T) {
	f := newPipelineFixture(t)
	video := &model.Video{Stage: model.StageTranscribed, Transcript: test.GetTestTranscriptText()}
	require.NoError(t, f.service.Repo.Create(context.Background(), video))

	got, err := f.service.Summarize(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageSummarized, got.Stage)
	assert.Equal(t, "Short Summary: hello.", got.Summary)
}

func TestSummarizeIdempotent(t *testing.T) {
	f := newPipelineFixture(t)
	video := &model.Video{
		Stage:      model.StageSummarized,
		Transcript: test.GetTestTranscriptText(),
		Summary:    "existing summary",
	}
	require.NoError(t, f.service.Repo.Create(context.Background(), video))

	got, err := f.service.Summarize(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.summarizer.calls)
	assert.Equal(t, "existing summary", got.Summary)
}

func TestSummarizePrerequisiteMissing(t *testing.T) {
	f := newPipelineFixture(t)
	video := &model.Video{Stage: model.StageUploaded}
	require.NoError(t, f.service.Repo.Create(context.Background(), video))

	_, err := f.service.Summarize(context.Background(), video.ID)
	assert.Equal(t, model.ErrPrerequisiteMissing, model.KindOf(err))
}

func TestSummarizeRetryAfterFailure(t *testing.T) {
	f := newPipelineFixture(t)
	video := &model.Video{Stage: model.StageTranscribed, Transcript: test.GetTestTranscriptText()}
	require.NoError(t, f.service.Repo.Create(context.Background(), video))

	f.summarizer.err = model.NewPipelineError(model.ErrInferenceFailed, "", "summary request failed", nil)
	_, err := f.service.Summarize(context.Background(), video.ID)
	assert.Equal(t, model.ErrInferenceFailed, model.KindOf(err))

	persisted, getErr := f.service.Get(context.Background(), video.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StageFailed, persisted.Stage)

	// Re-invoking the same operation after the transient failure clears
	// succeeds and advances the record.
	f.summarizer.err = nil
	got, err := f.service.Summarize(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageSummarized, got.Stage)
}

func TestIngestRejectsInvalidURL(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.service.IngestFromURL(context.Background(), "https://example.com/video.mp4", "")
	assert.Equal(t, model.ErrInvalidSource, model.KindOf(err))

	// No record is created for a rejected submission.
	videos, listErr := f.service.List(context.Background(), 10)
	require.NoError(t, listErr)
	assert.Empty(t, videos)
}

func TestIngestRejectsPlaylistURL(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.service.IngestFromURL(context.Background(),
		"https://www.youtube.com/watch?list=PL1234567890", "")
	assert.Equal(t, model.ErrUnsupportedContainer, model.KindOf(err))

	videos, listErr := f.service.List(context.Background(), 10)
	require.NoError(t, listErr)
	assert.Empty(t, videos)
}

func TestIngestRejectsPlaylistPathURL(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.service.IngestFromURL(context.Background(),
		"https://www.youtube.com/playlist?list=PL1234567890", "")
	assert.Equal(t, model.ErrUnsupportedContainer, model.KindOf(err))

	videos, listErr := f.service.List(context.Background(), 10)
	require.NoError(t, listErr)
	assert.Empty(t, videos)
}

func TestIngestRejectsResolvedCollection(t *testing.T) {
	f := newPipelineFixture(t)
	f.ingester.meta = &model.RemoteMetadata{Title: "talk series", IsCollection: true}

	_, err := f.service.IngestFromURL(context.Background(),
		"https://www.youtube.com/watch?v=abc123def45", "")
	assert.Equal(t, model.ErrUnsupportedContainer, model.KindOf(err))

	videos, listErr := f.service.List(context.Background(), 10)
	require.NoError(t, listErr)
	assert.Empty(t, videos)
}

func TestIngestHappyPath(t *testing.T) {
	f := newPipelineFixture(t)

	got, err := f.service.IngestFromURL(context.Background(),
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "")
	require.NoError(t, err)

	assert.Equal(t, model.StageAudioExtracted, got.Stage)
	assert.Equal(t, "remote talk", got.Title)
	assert.Equal(t, float64(90), got.DurationSeconds)
	assert.True(t, f.staging.Exists(got.AudioLocation))

	// The downloaded stream is reclaimed once the WAV artifact exists.
	assert.Empty(t, got.SourceLocation)
	assert.False(t, f.staging.Exists(f.staging.SourcePath(got.ID, "m4a")))
}

func TestIngestCallerTitleOverride(t *testing.T) {
	f := newPipelineFixture(t)

	got, err := f.service.IngestFromURL(context.Background(),
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "my own title")
	require.NoError(t, err)
	assert.Equal(t, "my own title", got.Title)
}

func TestIngestDownloadFailureMarksFailed(t *testing.T) {
	f := newPipelineFixture(t)
	f.ingester.downloadErr = model.NewPipelineError(model.ErrDownloadFailed, "", "download failed after 3 attempts", nil)

	_, err := f.service.IngestFromURL(context.Background(),
		"https://youtu.be/dQw4w9WgXcQ", "")
	assert.Equal(t, model.ErrDownloadFailed, model.KindOf(err))

	videos, listErr := f.service.List(context.Background(), 10)
	require.NoError(t, listErr)
	require.Len(t, videos, 1)
	assert.Equal(t, model.StageFailed, videos[0].Stage)
}

func TestIngestMissingArtifactReclaimsDownload(t *testing.T) {
	f := newPipelineFixture(t)
	f.extractor.skipWrite = true

	_, err := f.service.IngestFromURL(context.Background(),
		"https://youtu.be/dQw4w9WgXcQ", "")
	assert.Equal(t, model.ErrExtractionFailed, model.KindOf(err))

	videos, listErr := f.service.List(context.Background(), 10)
	require.NoError(t, listErr)
	require.Len(t, videos, 1)
	assert.Equal(t, model.StageFailed, videos[0].Stage)
	assert.False(t, f.staging.Exists(f.staging.SourcePath(videos[0].ID, "m4a")))
}

func TestFullPipelineEndToEnd(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedUploaded(t)
	ctx := context.Background()

	extracted, err := f.service.ExtractAudio(ctx, video.ID)
	require.NoError(t, err)
	transcribed, err := f.service.Transcribe(ctx, extracted.ID)
	require.NoError(t, err)
	summarized, err := f.service.Summarize(ctx, transcribed.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StageSummarized, summarized.Stage)
	assert.NotEmpty(t, summarized.Transcript)
	assert.NotEmpty(t, summarized.Summary)

	// Every artifact has been reclaimed by the time the record completes.
	assert.Empty(t, summarized.SourceLocation)
	assert.Empty(t, summarized.AudioLocation)
}

func TestDeleteRemovesRecordAndArtifacts(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.seedUploaded(t)

	require.NoError(t, f.service.Delete(context.Background(), video.ID))

	_, err := f.service.Get(context.Background(), video.ID)
	assert.Equal(t, model.ErrNotFound, model.KindOf(err))
	assert.False(t, f.staging.Exists(video.SourceLocation))
}
