// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// abstractExcerptLen bounds source abstracts in synthesis prompts.
const abstractExcerptLen = 600

// Researcher synthesizes a section's research content from its source
// pool.
type Researcher struct {
	gen    textgen.Generator
	logger *zap.Logger
}

// NewResearcher returns a Researcher backed by gen.
func NewResearcher(gen textgen.Generator, logger *zap.Logger) *Researcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Researcher{gen: gen, logger: logger}
}

// Synthesize produces the research entry for one outline section from its
// sources. Sources are referenced as [Source N] so the citation formatter
// can resolve them later; numbers carries each source's position in the
// run-wide pool so markers stay valid after sections are merged. A nil
// numbers slice falls back to 1..len(sources).
func (r *Researcher) Synthesize(ctx context.Context, topic, section string, sources []types.Source, numbers []int) (types.ResearchEntry, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a well-sourced research summary for the section %q of a report on %q.\n", section, topic)
	b.WriteString("Ground every claim in the numbered sources below and cite them inline as [Source N]. Use only the sources provided.\n\n")
	for i, s := range sources {
		n := i + 1
		if i < len(numbers) {
			n = numbers[i]
		}
		fmt.Fprintf(&b, "Source %d: %s", n, s.Title)
		if s.Year > 0 {
			fmt.Fprintf(&b, " (%d)", s.Year)
		}
		b.WriteString("\n")
		if s.Abstract != "" {
			fmt.Fprintf(&b, "%s\n", textgen.Excerpt(s.Abstract, abstractExcerptLen))
		}
		b.WriteString("\n")
	}

	out, err := textgen.GenerateWithRetry(ctx, r.gen, types.RoleRetriever, b.String(), 0)
	if err != nil {
		return types.ResearchEntry{}, fmt.Errorf("synthesizing section %q: %w", section, err)
	}

	var meanRelevance float64
	for _, s := range sources {
		meanRelevance += s.RelevanceScore
	}
	if len(sources) > 0 {
		meanRelevance /= float64(len(sources))
	}

	r.logger.Info("section synthesized",
		zap.String("section", section),
		zap.Int("sources", len(sources)),
		zap.Float64("mean_relevance", meanRelevance))

	return types.ResearchEntry{
		Content:       strings.TrimSpace(out),
		SourceCount:   len(sources),
		MeanRelevance: meanRelevance,
	}, nil
}
