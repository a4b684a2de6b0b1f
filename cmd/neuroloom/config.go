// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/neuroloom/internal/retrieve"
	"github.com/pdiddy/neuroloom/internal/secrets"
	"github.com/pdiddy/neuroloom/internal/stages"
	"github.com/pdiddy/neuroloom/pkg/types"
)

// setDefaults registers the default value of every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("retrieval.max_papers", 5)
	v.SetDefault("retrieval.max_pages", 25)
	v.SetDefault("retrieval.page_size", retrieve.DefaultPageSize)
	v.SetDefault("retrieval.concurrency", 1)
	v.SetDefault("retrieval.timeout", retrieve.DefaultDownloadTimeout)
	v.SetDefault("retrieval.papers_dir", "papers")
	v.SetDefault("loop.max_iterations", 3)
	v.SetDefault("loop.boundary", string(types.BoundaryAnalysis))
	v.SetDefault("ai.provider", string(types.ProviderGemini))
	v.SetDefault("ai.max_retries", 3)
}

// pipelineConfig reads the typed configuration from v, filling secrets
// that are not set explicitly.
func pipelineConfig(v *viper.Viper, s secrets.Set) types.PipelineConfig {
	cfg := types.PipelineConfig{
		Retrieval: types.RetrievalConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("retrieval.timeout"),
				UserAgent: "neuroloom/" + version,
			},
			MaxPapers:   v.GetInt("retrieval.max_papers"),
			MaxPages:    v.GetInt("retrieval.max_pages"),
			PageSize:    v.GetInt("retrieval.page_size"),
			Concurrency: v.GetInt("retrieval.concurrency"),
			PapersDir:   v.GetString("retrieval.papers_dir"),
			Email:       s.Get(secrets.EuropePMCEmail, v.GetString("retrieval.email")),
		},
		Loop: types.LoopConfig{
			MaxIterations: v.GetInt("loop.max_iterations"),
			Boundary:      types.LoopBoundary(v.GetString("loop.boundary")),
		},
		AI: types.AIConfig{
			Provider:   types.AIProvider(v.GetString("ai.provider")),
			Model:      v.GetString("ai.model"),
			MaxRetries: v.GetInt("ai.max_retries"),
		},
	}
	switch cfg.AI.Provider {
	case types.ProviderClaude:
		cfg.AI.APIKey = s.Get(secrets.AnthropicAPIKey, v.GetString("ai.api_key"))
	default:
		cfg.AI.APIKey = s.Get(secrets.GeminiAPIKey, v.GetString("ai.api_key"))
	}
	return cfg
}

// newEngine wires the Europe PMC client and HTTP downloader into a retrieval engine.
func newEngine(cfg types.RetrievalConfig, log *zap.Logger) *retrieve.Engine {
	client := &http.Client{}
	search := &retrieve.EuropePMCClient{
		Client:    &http.Client{Timeout: cfg.Timeout},
		UserAgent: cfg.UserAgent,
		Email:     cfg.Email,
		Logger:    log,
	}
	download := &retrieve.HTTPDownloader{
		Client:    client,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	}
	return retrieve.NewEngine(search, download, cfg, log)
}

// newModel builds the configured generation backend wrapped with retries.
func newModel(ctx context.Context, cfg types.AIConfig, log *zap.Logger) (stages.Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key for provider %s: add .secrets/%s or set ai.api_key", cfg.Provider, keyFile(cfg.Provider))
	}
	var m stages.Model
	switch cfg.Provider {
	case types.ProviderGemini, "":
		g, err := stages.NewGeminiModel(ctx, cfg.APIKey, cfg.Model, log)
		if err != nil {
			return nil, err
		}
		m = g
	case types.ProviderClaude:
		m = &stages.ClaudeModel{APIKey: cfg.APIKey, Model: cfg.Model}
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	return stages.WithRetry(m, cfg.MaxRetries, log), nil
}

func keyFile(p types.AIProvider) string {
	if p == types.ProviderClaude {
		return secrets.AnthropicAPIKey
	}
	return secrets.GeminiAPIKey
}
