// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/agents"
	"github.com/pdiddy/report-writer/internal/quality"
	"github.com/pdiddy/report-writer/internal/retrieval"
	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/internal/workflow"
	"github.com/pdiddy/report-writer/pkg/types"
)

// loadConfig assembles the pipeline configuration from defaults, the
// config file, and secrets, in that order of precedence.
func loadConfig() types.PipelineConfig {
	cfg := types.PipelineConfig{
		Roles:    types.DefaultModelRoles(),
		Quality:  types.DefaultQualityConfig(),
		Workflow: types.DefaultWorkflowConfig(),
		Retrieval: types.RetrievalConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "report-writer/" + version,
			},
		},
		Cache: types.CacheConfig{
			Addr: "localhost:6379",
			TTL:  7 * 24 * time.Hour,
		},
		Archive: types.ArchiveConfig{Dir: "archive"},
	}

	// Config file sections override the defaults where present.
	for key, target := range map[string]any{
		"roles":     &cfg.Roles,
		"retrieval": &cfg.Retrieval,
		"cache":     &cfg.Cache,
		"quality":   &cfg.Quality,
		"workflow":  &cfg.Workflow,
		"archive":   &cfg.Archive,
	} {
		if viper.IsSet(key) {
			viper.UnmarshalKey(key, target)
		}
	}

	cfg.AI.APIKey = secretDefault("google-api-key", viper.GetString("ai.api_key"))
	cfg.Retrieval.TavilyAPIKey = secretDefault("tavily-api-key", cfg.Retrieval.TavilyAPIKey)
	cfg.Retrieval.OpenAlexEmail = secretDefault("openalex-email", cfg.Retrieval.OpenAlexEmail)
	return cfg
}

// buildEngine constructs the retrieval engine: OpenAlex always, Tavily
// when its key is configured, with the Redis cache unless disabled.
func buildEngine(gen textgen.Generator, cfg types.PipelineConfig, noCache bool, logger *zap.Logger) *retrieval.Engine {
	client := &http.Client{Timeout: cfg.Retrieval.Timeout}

	providers := []retrieval.Provider{
		&retrieval.OpenAlexProvider{Client: client, Cfg: cfg.Retrieval},
	}
	if cfg.Retrieval.TavilyAPIKey != "" {
		providers = append(providers, &retrieval.TavilyProvider{Client: client, Cfg: cfg.Retrieval})
	}

	var cache *retrieval.Cache
	if !noCache {
		cache = retrieval.NewCache(cfg.Cache, logger)
	}
	return retrieval.NewEngine(providers, gen, cache, cfg.Retrieval, logger)
}

// buildMachine wires the full pipeline for a run.
func buildMachine(ctx context.Context, cfg types.PipelineConfig, noCache bool, approver workflow.Approver, logger *zap.Logger) (*workflow.Machine, *quality.Pipeline, *textgen.Gemini, error) {
	gen, err := textgen.NewGemini(ctx, cfg.AI.APIKey, cfg.Roles)
	if err != nil {
		return nil, nil, nil, err
	}

	qp, err := quality.NewPipeline(gen, cfg.Quality, logger)
	if err != nil {
		gen.Close()
		return nil, nil, nil, err
	}

	client := &http.Client{Timeout: cfg.Retrieval.Timeout}
	machine := workflow.NewMachine(workflow.Deps{
		Planner:    agents.NewPlanner(gen, logger),
		Critic:     agents.NewCritic(gen, logger),
		Researcher: agents.NewResearcher(gen, logger),
		Writer:     agents.NewWriter(gen, logger),
		Verifier:   agents.NewCitationVerifier(gen, logger),
		Style:      agents.NewLanguageTool(client, logger),
		Engine:     buildEngine(gen, cfg, noCache, logger),
		Quality:    qp,
		Approver:   approver,
	}, cfg.Workflow, logger)

	return machine, qp, gen, nil
}
