// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agents holds the generation-backed pipeline roles: planning,
// critique, writing, citation formatting and verification, and style
// checking. Each agent wraps a textgen.Generator with a role-specific
// prompt and a parse-with-fallback discipline. See docs/ARCHITECTURE.md.
package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// Planner produces and refines report outlines.
type Planner struct {
	gen    textgen.Generator
	logger *zap.Logger
}

// NewPlanner returns a Planner backed by gen.
func NewPlanner(gen textgen.Generator, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{gen: gen, logger: logger}
}

// Outline produces an outline for topic. When critique is non-empty the
// previous outline and critique are included so the model revises rather
// than restarts.
func (p *Planner) Outline(ctx context.Context, topic string, previous []string, critique string) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an outline for a research report on %q. Respond with a JSON array of 4 to 7 section title strings, ordered for presentation. No commentary.\n", topic)
	if critique != "" && len(previous) > 0 {
		b.WriteString("\nRevise the previous outline to address this critique.\nPrevious outline:\n")
		for _, s := range previous {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		fmt.Fprintf(&b, "\nCritique:\n%s\n", critique)
	}

	out, err := textgen.GenerateWithRetry(ctx, p.gen, types.RolePlanner, b.String(), 0)
	if err != nil {
		return nil, fmt.Errorf("planning outline: %w", err)
	}

	sections, err := textgen.ParseStringList(out)
	if err != nil {
		return nil, fmt.Errorf("parsing outline: %w", err)
	}

	p.logger.Info("outline planned",
		zap.String("topic", topic),
		zap.Int("sections", len(sections)),
		zap.Bool("revision", critique != ""))
	return sections, nil
}
