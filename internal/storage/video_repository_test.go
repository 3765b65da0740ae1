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

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videobrief/internal/core/model"
)

func newTestRepo(t *testing.T) *VideoRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "videobrief.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewVideoRepository(db)
}

func TestVideoRepositoryCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	video := &model.Video{
		Title:          "standup recording",
		Stage:          model.StageUploaded,
		SourceLocation: "/tmp/staging/sources/abc.mp4",
		MimeType:       "video/mp4",
		SizeBytes:      1024,
	}
	require.NoError(t, repo.Create(ctx, video))
	assert.NotEmpty(t, video.ID)
	assert.False(t, video.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, video.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, video.Title, got.Title)
	assert.Equal(t, model.StageUploaded, got.Stage)
	assert.Equal(t, int64(1024), got.SizeBytes)
}

func TestVideoRepositoryGetMissing(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVideoRepositorySave(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	video := &model.Video{Stage: model.StageUploaded, SourceLocation: "/tmp/a.mp4"}
	require.NoError(t, repo.Create(ctx, video))

	video.Stage = model.StageAudioExtracted
	video.AudioLocation = "/tmp/a.wav"
	video.SourceLocation = ""
	require.NoError(t, repo.Save(ctx, video))

	got, err := repo.GetByID(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageAudioExtracted, got.Stage)
	assert.Equal(t, "/tmp/a.wav", got.AudioLocation)
	assert.Empty(t, got.SourceLocation)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestVideoRepositorySaveMissingRecord(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Save(context.Background(), &model.Video{ID: "ghost", Stage: model.StageUploaded})
	assert.Error(t, err)
}

func TestVideoRepositoryListAndCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, stage := range []model.Stage{model.StageUploaded, model.StageUploaded, model.StageSummarized} {
		require.NoError(t, repo.Create(ctx, &model.Video{Stage: stage}))
	}

	recent, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	uploaded, err := repo.ListByStage(ctx, model.StageUploaded, 10)
	require.NoError(t, err)
	assert.Len(t, uploaded, 2)

	counts, err := repo.CountByStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.StageUploaded])
	assert.Equal(t, int64(1), counts[model.StageSummarized])
}

func TestVideoRepositoryDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	video := &model.Video{Stage: model.StageUploaded}
	require.NoError(t, repo.Create(ctx, video))
	require.NoError(t, repo.Delete(ctx, video.ID))

	got, err := repo.GetByID(ctx, video.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
