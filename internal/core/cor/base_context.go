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

// Package cor (Chain of Responsibility) provides the building blocks for
// composing pipeline steps into workflows. This file defines `BaseContext`,
// the default implementation of the `Context` interface.
//
// The `Context` is the shared property bag passed through the entire chain
// of commands. Each command reads its inputs from the context, performs its
// work, and writes its results back for subsequent commands to use.
//
// This implementation includes:
//   - A map to hold arbitrary data (`data`).
//   - A map to collect errors from any command in the chain (`errors`).
//   - A slice tracking temporary files created during the workflow so they
//     can be cleaned up at the end (`tempFiles`).
//   - A standard Go `context.Context` for handling cancellations, deadlines,
//     and request-scoped values like OpenTelemetry spans.
package cor

import (
	"context"
	"log/slog"
	"os"
)

// BaseContext is the default implementation of the Context interface. It
// holds the shared state for a single workflow execution. It is not safe for
// concurrent mutation; each execution gets its own instance.
type BaseContext struct {
	data      map[string]interface{} // Arbitrary key-value data shared between commands.
	errors    map[string]error       // Errors keyed by the command name that produced them.
	errorKeys []string               // Insertion order of error keys, so FirstError is deterministic.
	tempFiles []string               // Paths of temporary files that need cleanup.
	context   context.Context        // The standard Go context for cancellation and trace propagation.
}

// NewBaseContext is the constructor for BaseContext. It initializes all the
// internal maps and slices so the context is ready for use.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
	}
}

// SetContext sets the underlying standard Go context. This is used by the
// BaseChain to manage the context for OpenTelemetry spans.
func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

// GetContext retrieves the underlying standard Go context.
func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Close removes any temporary files created along the way. It should be
// deferred at the start of a workflow.
func (c *BaseContext) Close() {
	for _, file := range c.GetTempFiles() {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
}

// Add stores a key-value pair in the context's data map. It returns the
// context instance to allow for fluent method chaining.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

// AddTempFile adds a file path to the list of temporary files needing cleanup.
func (c *BaseContext) AddTempFile(file string) {
	c.tempFiles = append(c.tempFiles, file)
}

// GetTempFiles returns the slice of all tracked temporary file paths.
func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

// AddError adds an error to the context's error map, keyed by the command
// name that generated it.
func (c *BaseContext) AddError(key string, err error) {
	if _, seen := c.errors[key]; !seen {
		c.errorKeys = append(c.errorKeys, key)
	}
	c.errors[key] = err
}

// GetErrors returns the map of all errors collected during the workflow.
func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

// FirstError returns the earliest recorded error, or nil when the workflow
// ran clean.
func (c *BaseContext) FirstError() error {
	if len(c.errorKeys) == 0 {
		return nil
	}
	return c.errors[c.errorKeys[0]]
}

// Get retrieves a value from the context's data map, or nil when the key
// does not exist.
func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

// Remove deletes a key-value pair from the context's data map.
func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

// HasErrors checks if any errors have been added to the context.
func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}
