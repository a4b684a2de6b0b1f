// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiModel generates text with the Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiModel creates a Gemini client for model.
func NewGeminiModel(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: model, logger: logger}, nil
}

// Generate sends one prompt. Thought parts returned for thinking requests
// are logged at debug level and left out of the answer.
func (g *GeminiModel) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Thinking {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("calling Gemini API: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("Gemini API returned no candidates")
	}

	var answer, thoughts strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			thoughts.WriteString(part.Text)
			continue
		}
		answer.WriteString(part.Text)
	}
	if thoughts.Len() > 0 {
		g.logger.Debug("model thoughts", zap.String("stage", req.Stage), zap.String("thoughts", thoughts.String()))
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("Gemini API returned empty content")
	}
	return answer.String(), nil
}
