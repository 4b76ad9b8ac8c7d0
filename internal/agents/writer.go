// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// Writer drafts the report body from section research and revises it on
// critic feedback.
type Writer struct {
	gen    textgen.Generator
	logger *zap.Logger
}

// NewWriter returns a Writer backed by gen.
func NewWriter(gen textgen.Generator, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{gen: gen, logger: logger}
}

// Draft produces the report body from the workflow state. Researched
// sections carry their quality context (source count, mean relevance) so
// the writer can calibrate confidence; skipped sections are disclosed in a
// methodology note rather than silently dropped.
func (w *Writer) Draft(ctx context.Context, state *types.WorkflowState) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a cohesive research report on %q from the section research below.\n", state.Topic)
	b.WriteString("Preserve the inline [Source N] citation markers exactly as they appear. Follow the outline order.\n")
	if len(state.Skipped) > 0 {
		b.WriteString("Include a short methodology note disclosing the sections that could not be researched and why.\n")
	}
	b.WriteString("\n")

	for _, section := range state.Outline {
		entry, ok := state.Research[section]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "## %s\n(%d sources, mean relevance %.2f)\n%s\n\n",
			section, entry.SourceCount, entry.MeanRelevance, entry.Content)
	}
	for _, s := range state.Skipped {
		fmt.Fprintf(&b, "Skipped section %q: %s\n", s.Section, s.Reason)
	}

	if state.Feedback != "" && !Approved(state.Feedback) && state.Report != "" {
		fmt.Fprintf(&b, "\nRevise the previous draft to address this critique.\nPrevious draft:\n%s\n\nCritique:\n%s\n",
			state.Report, state.Feedback)
	}

	out, err := textgen.GenerateWithRetry(ctx, w.gen, types.RoleWriter, b.String(), 0)
	if err != nil {
		return "", fmt.Errorf("drafting report: %w", err)
	}

	w.logger.Info("report drafted",
		zap.String("topic", state.Topic),
		zap.Int("sections", len(state.Research)),
		zap.Int("skipped", len(state.Skipped)),
		zap.Bool("revision", state.Report != ""))
	return strings.TrimSpace(out), nil
}

// FallbackDraft assembles a report body directly from the research
// entries when the generation service cannot produce a draft. The inline
// [Source N] markers survive, so citation formatting and verification
// still apply; skipped sections are disclosed the same way a generated
// draft would disclose them.
func (w *Writer) FallbackDraft(state *types.WorkflowState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report on %q\n\n", state.Topic)

	for _, section := range state.Outline {
		entry, ok := state.Research[section]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s\n\n%s\n\n", section, entry.Content)
	}

	if len(state.Skipped) > 0 {
		b.WriteString("Note on methodology: the following sections could not be researched and were omitted.\n")
		skipped := make([]types.SkippedSection, len(state.Skipped))
		copy(skipped, state.Skipped)
		sort.Slice(skipped, func(i, j int) bool { return skipped[i].Section < skipped[j].Section })
		for _, s := range skipped {
			fmt.Fprintf(&b, "- %s: %s\n", s.Section, s.Reason)
		}
	}

	w.logger.Warn("producing fallback draft without the generation service",
		zap.String("topic", state.Topic),
		zap.Int("sections", len(state.Research)),
		zap.Int("skipped", len(state.Skipped)))
	return strings.TrimSpace(b.String())
}

// DegradedReport produces the fallback report used when the feasibility
// gate skipped every planned section. It is assembled locally, without the
// generation service, and states each section's failure against the gate's
// thresholds.
func (w *Writer) DegradedReport(state *types.WorkflowState, cfg types.WorkflowConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report on %q\n\n", state.Topic)
	fmt.Fprintf(&b, "No section of this report could be researched: all %d planned sections were skipped because their candidate sources did not meet the feasibility requirements (at least %d sources, mean relevance %.2f or higher, topic alignment %.2f or higher).\n\n",
		len(state.Outline), cfg.MinSectionSources, cfg.MinSectionRelevance, cfg.MinSectionAlignment)

	skipped := make([]types.SkippedSection, len(state.Skipped))
	copy(skipped, state.Skipped)
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Section < skipped[j].Section })
	for _, s := range skipped {
		fmt.Fprintf(&b, "- %s: %s\n", s.Section, s.Reason)
	}
	b.WriteString("\nConsider broadening the topic or relaxing the source requirements and rerunning.\n")

	w.logger.Warn("producing degraded report, all sections skipped",
		zap.String("topic", state.Topic),
		zap.Int("skipped", len(state.Skipped)))
	return b.String()
}
