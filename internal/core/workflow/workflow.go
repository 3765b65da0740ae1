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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into coherent pipelines. Each workflow wraps a Chain
// of Responsibility and exposes a plain Go method that runs the chain for
// one piece of work and translates the chain's collected errors into the
// pipeline's error model.
package workflow

import (
	"context"
	"errors"

	"videobrief/internal/core/cor"
	"videobrief/internal/core/model"
)

// Context parameter keys shared by the workflows in this package. These keys
// carry per-execution values that sit outside the chain's CtxIn/CtxOut data
// flow, such as destination paths.
const (
	ParamOutputPath = "__output_path__"
)

// newChainContext builds a fresh chain context bound to the given Go
// context. Every workflow run gets its own context instance.
func newChainContext(ctx context.Context) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	return chainCtx
}

// chainError extracts the error that halted a chain run, or nil when the
// run was clean. Errors that are not already PipelineErrors are wrapped
// with the given fallback kind so callers always see the closed error set.
func chainError(chainCtx cor.Context, fallbackKind model.ErrorKind) error {
	if !chainCtx.HasErrors() {
		return nil
	}
	err := chainCtx.FirstError()
	var pe *model.PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return model.NewPipelineError(fallbackKind, "", "workflow failed", err)
}
