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
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"videobrief/internal/core/model"
)

// VideoRepository is the data access layer for video records. GetByID
// returns (nil, nil) when no record exists so callers can map the miss to
// their own error type.
type VideoRepository struct {
	db *DB
}

// NewVideoRepository creates a repository backed by db.
func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, title, stage, source_location, audio_location, mime_type,
	size_bytes, duration_seconds, transcript, summary, remote_source_url,
	created_at, updated_at`

// Create inserts a new video record. A missing ID is filled with a fresh
// UUID; CreatedAt and UpdatedAt are always stamped here.
func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	if video.ID == "" {
		video.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	if video.Stage == "" {
		video.Stage = model.StageUploaded
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID, video.Title, video.Stage, video.SourceLocation,
		video.AudioLocation, video.MimeType, video.SizeBytes,
		video.DurationSeconds, video.Transcript, video.Summary,
		video.RemoteSourceURL, video.CreatedAt, video.UpdatedAt)
	return err
}

// GetByID retrieves a video record by its ID, or (nil, nil) when absent.
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*model.Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return video, nil
}

// Save writes the full mutable state of the record in a single statement.
// The pipeline relies on this to commit a downstream artifact reference and
// its stage advance atomically before the upstream artifact is reclaimed.
func (r *VideoRepository) Save(ctx context.Context, video *model.Video) error {
	video.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE videos SET title = ?, stage = ?, source_location = ?,
			audio_location = ?, mime_type = ?, size_bytes = ?,
			duration_seconds = ?, transcript = ?, summary = ?,
			remote_source_url = ?, updated_at = ?
		WHERE id = ?`,
		video.Title, video.Stage, video.SourceLocation, video.AudioLocation,
		video.MimeType, video.SizeBytes, video.DurationSeconds,
		video.Transcript, video.Summary, video.RemoteSourceURL,
		video.UpdatedAt, video.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListRecent returns the most recently created records, newest first.
func (r *VideoRepository) ListRecent(ctx context.Context, limit int) ([]model.Video, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVideos(rows)
}

// ListByStage returns records currently sitting at the given stage.
func (r *VideoRepository) ListByStage(ctx context.Context, stage model.Stage, limit int) ([]model.Video, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE stage = ? ORDER BY created_at DESC LIMIT ?`, stage, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVideos(rows)
}

// CountByStage returns the number of records at each stage.
func (r *VideoRepository) CountByStage(ctx context.Context) (map[model.Stage]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT stage, COUNT(*) FROM videos GROUP BY stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Stage]int64)
	for rows.Next() {
		var stage model.Stage
		var count int64
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		counts[stage] = count
	}
	return counts, rows.Err()
}

// Delete removes a record by ID.
func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*model.Video, error) {
	var v model.Video
	err := row.Scan(&v.ID, &v.Title, &v.Stage, &v.SourceLocation,
		&v.AudioLocation, &v.MimeType, &v.SizeBytes, &v.DurationSeconds,
		&v.Transcript, &v.Summary, &v.RemoteSourceURL,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVideos(rows *sql.Rows) ([]model.Video, error) {
	var videos []model.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}
