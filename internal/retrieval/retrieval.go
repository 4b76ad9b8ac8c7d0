// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval gathers candidate sources from multiple providers,
// deduplicates them by identity key, scores topical relevance, and selects
// a bounded high-quality subset, with Redis caching between runs.
// See docs/ARCHITECTURE.md § Retrieval Engine.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// Provider searches a single source of candidate records. Each provider
// (OpenAlex, Tavily) implements this interface per the Strategy pattern.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.Source, error)
}

// Engine coordinates query fan-out, gathering, deduplication, reranking,
// and caching.
type Engine struct {
	providers []Provider
	gen       textgen.Generator
	cache     *Cache // nil disables caching
	cfg       types.RetrievalConfig
	logger    *zap.Logger
}

// NewEngine constructs a retrieval engine. The cache may be nil, in which
// case every call gathers from providers.
func NewEngine(providers []Provider, gen textgen.Generator, cache *Cache, cfg types.RetrievalConfig, logger *zap.Logger) *Engine {
	if cfg.MaxPerQuery <= 0 {
		cfg.MaxPerQuery = 10
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = 0.7
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 25
	}
	if cfg.AbstractExcerptLen <= 0 {
		cfg.AbstractExcerptLen = 600
	}
	return &Engine{
		providers: providers,
		gen:       gen,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}
}

// Retrieve returns up to TopK validated sources for the topic. Provider
// failures are treated as empty result sets and never abort the whole
// retrieval; the only error cases are an empty topic and no configured
// providers.
func (e *Engine) Retrieve(ctx context.Context, topic string) ([]types.Source, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic is empty")
	}
	if len(e.providers) == 0 {
		return nil, fmt.Errorf("no retrieval providers configured")
	}

	if e.cache != nil {
		if cached, legacy, ok := e.cache.Get(ctx, topic); ok {
			e.logger.Debug("source cache hit",
				zap.String("topic", topic),
				zap.Int("sources", len(cached)),
				zap.Bool("legacy", legacy))
			if !legacy {
				return cached, nil
			}
			// A bare-list entry was written before composite scoring, so
			// it never went through selection. Rerank it and upgrade the
			// entry to the versioned envelope.
			for i := range cached {
				cached[i].QualityScore = CompositeScore(cached[i], e.cfg)
			}
			selected := SelectTop(cached, e.cfg.TopK, e.cfg.RelevanceThreshold)
			if len(selected) > 0 {
				e.cache.Set(ctx, topic, selected, "legacy_rerank")
			}
			return selected, nil
		}
	}

	queries := e.fanOutQueries(ctx, topic)
	gathered := e.gather(ctx, queries)
	deduped, removed := Deduplicate(gathered)
	e.logger.Debug("gathered sources",
		zap.Int("queries", len(queries)),
		zap.Int("raw", len(gathered)),
		zap.Int("duplicates_removed", removed))

	e.scoreRelevance(ctx, topic, deduped)
	for i := range deduped {
		deduped[i].QualityScore = CompositeScore(deduped[i], e.cfg)
	}

	selected := SelectTop(deduped, e.cfg.TopK, e.cfg.RelevanceThreshold)

	if e.cache != nil && len(selected) > 0 {
		e.cache.Set(ctx, topic, selected, "llm_batch_relevance")
	}
	return selected, nil
}

// fanOutQueries derives 3-5 focused sub-queries from the topic. On any
// generation or parse failure it falls back to the original topic as the
// only query.
func (e *Engine) fanOutQueries(ctx context.Context, topic string) []string {
	prompt := fmt.Sprintf(
		"Derive between 3 and 5 focused search queries for researching the topic %q. "+
			"Respond with a JSON array of strings and nothing else.", topic)

	out, err := e.gen.Generate(ctx, types.RoleRetriever, prompt)
	if err != nil {
		e.logger.Warn("query fan-out generation failed, using topic only", zap.Error(err))
		return []string{topic}
	}
	queries, err := textgen.ParseStringList(out)
	if err != nil {
		e.logger.Warn("query fan-out parse failed, using topic only", zap.Error(err))
		return []string{topic}
	}
	if len(queries) > 5 {
		queries = queries[:5]
	}
	return queries
}

// gather fans the sub-queries out to every provider concurrently. The
// aggregation is order-independent, so concurrent execution does not change
// observable results.
func (e *Engine) gather(ctx context.Context, queries []string) []types.Source {
	type gatherResult struct {
		sources  []types.Source
		err      error
		provider string
		query    string
	}

	ch := make(chan gatherResult, len(queries)*len(e.providers))
	var wg sync.WaitGroup

	for _, q := range queries {
		for _, p := range e.providers {
			wg.Add(1)
			go func(p Provider, q string) {
				defer wg.Done()
				sources, err := p.Search(ctx, q, e.cfg.MaxPerQuery)
				ch <- gatherResult{sources: sources, err: err, provider: p.Name(), query: q}
			}(p, q)
		}
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []types.Source
	for r := range ch {
		if r.err != nil {
			// Provider failures are empty result sets, never fatal.
			e.logger.Warn("provider search failed",
				zap.String("provider", r.provider),
				zap.String("query", r.query),
				zap.Error(r.err))
			continue
		}
		all = append(all, r.sources...)
	}
	return all
}

// Deduplicate collapses sources that share an identity key (title, url,
// doi). When two records collide the kept record is filled in from the
// duplicate's non-empty fields, and the higher relevance score wins.
// Deduplication is idempotent.
func Deduplicate(sources []types.Source) ([]types.Source, int) {
	seen := make(map[string]int) // identity key → index in deduped
	var deduped []types.Source
	removed := 0

	for _, s := range sources {
		key := s.IdentityKey()
		if idx, ok := seen[key]; ok {
			mergeInto(&deduped[idx], s)
			removed++
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, s)
	}
	return deduped, removed
}

// mergeInto fills empty fields of dst from src and keeps the higher
// relevance score.
func mergeInto(dst *types.Source, src types.Source) {
	if dst.Abstract == "" && src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = src.Authors
	}
	if dst.Year == 0 && src.Year != 0 {
		dst.Year = src.Year
	}
	if dst.Venue == "" && src.Venue != "" {
		dst.Venue = src.Venue
	}
	if dst.CitationCount == 0 && src.CitationCount != 0 {
		dst.CitationCount = src.CitationCount
	}
	if src.RelevanceScore > dst.RelevanceScore {
		dst.RelevanceScore = src.RelevanceScore
	}
	if dst.Provider != src.Provider && !strings.Contains(dst.Provider, src.Provider) {
		dst.Provider = dst.Provider + "," + src.Provider
	}
}
