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

// Package cloud provides the clients for the external services the pipeline
// depends on. This file implements a decorator around the GenAI client that
// adds rate limiting and retries without altering the client itself.
//
// Why this matters:
//   - Rate limiting: the Gemini API enforces quotas on requests per minute.
//     The decorator keeps the application under those limits instead of
//     burning attempts on quota errors.
//   - Retries: model calls can fail for transient reasons. The decorator
//     retries with exponential backoff before giving up.
package cloud

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// QuotaAwareGenerativeAIModel wraps a configured Gemini model with a rate
// limiter and retry policy. All generation requests for a model should go
// through this wrapper rather than the raw client.
type QuotaAwareGenerativeAIModel struct {
	GenerateConfig *genai.GenerateContentConfig // The generation settings applied to every request.
	ModelName      string                       // The model identifier passed to the API.
	ModelHandle    *genai.Models                // The underlying models handle from the GenAI client.
	RateLimit      *rate.Limiter                // Token bucket controlling request frequency.
}

// NewQuotaAwareModel creates a rate-limited wrapper around a configured
// model. requestsPerSecond bounds both the sustained rate and the burst.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, handle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &QuotaAwareGenerativeAIModel{
		GenerateConfig: config,
		ModelName:      name,
		ModelHandle:    handle,
		RateLimit:      rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// GenerateContent sends a generation request through the rate limiter,
// retrying transient failures with exponential backoff. It blocks until the
// limiter grants a slot or the context is canceled.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}

	var resp *genai.GenerateContentResponse
	operation := func() error {
		var err error
		resp, err = q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerateConfig)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(2*time.Second),
		backoff.WithMaxInterval(time.Minute),
	), 3), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}
