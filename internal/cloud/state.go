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
// depends on. This file initializes and holds the client objects needed to
// talk to the Gemini API. It acts as a dependency injection container,
// creating a single shared `ServiceClients` struct that is passed throughout
// the application.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at application startup with the
//     loaded configuration.
//  2. It creates the GenAI client, authenticating with the GEMINI_API_KEY
//     environment variable against the Gemini API backend.
//  3. It reads the agent model configurations, applies each model's
//     generation settings, and wraps every model in the rate-limiting
//     `QuotaAwareGenerativeAIModel` decorator.
//  4. The clients and wrapped models are bundled into a `ServiceClients`
//     struct consumed by the workflows.
package cloud

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// EnvGeminiAPIKey is the environment variable holding the Gemini API key.
// It is typically loaded from a .env file at startup.
const EnvGeminiAPIKey = "GEMINI_API_KEY"

// ServiceClients is a central container for all clients that interact with
// external services. This pattern is a form of dependency injection, making
// it easy to manage and share these connections across the application.
type ServiceClients struct {
	GenAIClient *genai.Client                           // Client for the Gemini API.
	AgentModels map[string]*QuotaAwareGenerativeAIModel // Configured models, keyed by logical name from the config.
}

// NewCloudServiceClients initializes the external service clients based on
// the provided configuration. It is the main entry point for setting up the
// application's external dependencies.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	apiKey := os.Getenv(EnvGeminiAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", EnvGeminiAPIKey)
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	// Build each configured agent model: apply its generation settings
	// (temperature, TopK, etc.), then wrap it in the rate-limiting decorator.
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for amKey, values := range config.AgentModels {
		generateConfig := &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](values.Temperature),
			TopP:             genai.Ptr[float32](values.TopP),
			TopK:             genai.Ptr[float32](values.TopK),
			MaxOutputTokens:  values.MaxTokens,
			SafetySettings:   DefaultSafetySettings,
			ResponseMIMEType: values.OutputFormat,
		}
		if values.SystemInstructions != "" {
			generateConfig.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: values.SystemInstructions}},
			}
		}
		agentModels[amKey] = NewQuotaAwareModel(generateConfig, values.Model, gc.Models, values.RateLimit)
	}

	return &ServiceClients{
		GenAIClient: gc,
		AgentModels: agentModels,
	}, nil
}
