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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Staging manages the local scratch area where media artifacts live between
// pipeline stages. Paths are derived from the record ID, so a transition can
// always reconstruct where its artifacts should be without consulting the
// database first.
type Staging struct {
	root string
}

// NewStaging creates the staging area rooted at root, making sure the
// source and audio subdirectories exist.
func NewStaging(root string) (*Staging, error) {
	for _, sub := range []string{"sources", "audio"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create staging directory: %w", err)
		}
	}
	return &Staging{root: root}, nil
}

// Root returns the staging root directory.
func (s *Staging) Root() string {
	return s.root
}

// SourcePath returns the canonical location for an uploaded source file.
// The extension is normalized to lower case without a leading dot.
func (s *Staging) SourcePath(id, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "bin"
	}
	return filepath.Join(s.root, "sources", fmt.Sprintf("%s.%s", id, ext))
}

// AudioPath returns the canonical location for the extracted audio of a
// record. All extracted audio is WAV.
func (s *Staging) AudioPath(id string) string {
	return filepath.Join(s.root, "audio", fmt.Sprintf("%s.wav", id))
}

// Exists reports whether the artifact at path is present.
func (s *Staging) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SizeOf returns the size in bytes of the artifact at path.
func (s *Staging) SizeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes the artifact at path. A path that is already gone counts
// as success, which is what makes the pipeline's cleanup steps idempotent.
func (s *Staging) Remove(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
