// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/agents"
	"github.com/pdiddy/report-writer/pkg/types"
)

// plan produces (or revises) the outline. Every execution counts against
// the outline revision cap. An empty outline is the one planning failure
// the pipeline cannot route around.
func (m *Machine) plan(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	state.OutlineRevisions++

	outline, err := m.planner.Outline(ctx, state.Topic, state.Outline, state.Critique)
	if err != nil {
		return StageDone, err
	}
	if len(outline) == 0 {
		return StageDone, fmt.Errorf("planner produced an empty outline for %q", state.Topic)
	}

	// A new outline invalidates prior research.
	state.Outline = outline
	state.Research = make(map[string]types.ResearchEntry)
	state.Skipped = nil
	state.SectionIndex = 0
	return StageCritiqueOutline, nil
}

// critiqueOutline gates the outline on critic feedback.
func (m *Machine) critiqueOutline(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	feedback := m.critic.CritiqueOutline(ctx, state.Topic, state.Outline)
	state.Critique = feedback
	state.Feedback = feedback
	return m.decide(StageCritiqueOutline, state, !agents.Approved(feedback)), nil
}

// researchSection researches one outline section per execution, advancing
// the cursor until every section is either researched or skipped. The
// feasibility gate makes a single decision per section: source count,
// mean relevance, and topic alignment are all checked before any
// synthesis happens, and a failed section is logged and skipped exactly
// once.
func (m *Machine) researchSection(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	if state.SectionIndex >= len(state.Outline) {
		m.quality.AssessResearch(ctx, state.Research, state.Sources, state.Skipped)
		return StageWrite, nil
	}

	section := state.Outline[state.SectionIndex]
	state.SectionIndex++

	query := state.Topic + ": " + section
	sources, err := m.engine.Retrieve(ctx, query)
	if err != nil {
		return StageDone, fmt.Errorf("retrieving sources for %q: %w", section, err)
	}

	if reason := m.feasibility(ctx, state.Topic, section, sources); reason != "" {
		state.Skipped = append(state.Skipped, types.SkippedSection{
			Section:        section,
			Reason:         reason,
			Recommendation: "skip_section",
		})
		m.logger.Warn("section skipped by feasibility gate",
			zap.String("section", section),
			zap.String("reason", reason))
		return StageResearchSection, nil
	}

	numbers := m.mergeSources(state, sources)
	entry, err := m.researcher.Synthesize(ctx, state.Topic, section, sources, numbers)
	if err != nil {
		// A synthesis failure costs one section, not the run.
		state.Skipped = append(state.Skipped, types.SkippedSection{
			Section:        section,
			Reason:         fmt.Sprintf("research synthesis failed: %v", err),
			Recommendation: "skip_section",
		})
		m.logger.Warn("section synthesis failed, skipping section",
			zap.String("section", section),
			zap.Error(err))
		return StageResearchSection, nil
	}
	state.Research[section] = entry
	return StageResearchSection, nil
}

// feasibility returns a non-empty reason when the section cannot be
// researched from its candidate sources.
func (m *Machine) feasibility(ctx context.Context, topic, section string, sources []types.Source) string {
	if len(sources) < m.cfg.MinSectionSources {
		return fmt.Sprintf("%d sources found, minimum is %d", len(sources), m.cfg.MinSectionSources)
	}

	var mean float64
	for _, s := range sources {
		mean += s.RelevanceScore
	}
	mean /= float64(len(sources))
	if mean < m.cfg.MinSectionRelevance {
		return fmt.Sprintf("mean source relevance %.2f below minimum %.2f", mean, m.cfg.MinSectionRelevance)
	}

	alignment, err := m.quality.SectionAlignment(ctx, topic, section, sources)
	if err != nil {
		// An unassessable section is not an infeasible one: waive the
		// alignment check rather than mass-skip on an assessor outage.
		m.logger.Warn("section alignment unavailable, waiving alignment check",
			zap.String("section", section),
			zap.Error(err))
		return ""
	}
	if alignment < m.cfg.MinSectionAlignment {
		return fmt.Sprintf("section alignment %.2f below minimum %.2f", alignment, m.cfg.MinSectionAlignment)
	}
	return ""
}

// mergeSources adds the section's sources to the run-wide pool, reusing
// entries already present by identity key, and returns each source's
// 1-based pool number for citation markers.
func (m *Machine) mergeSources(state *types.WorkflowState, sources []types.Source) []int {
	index := make(map[string]int, len(state.Sources))
	for i, s := range state.Sources {
		index[s.IdentityKey()] = i
	}

	numbers := make([]int, len(sources))
	for i, s := range sources {
		key := s.IdentityKey()
		if at, ok := index[key]; ok {
			numbers[i] = at + 1
			continue
		}
		state.Sources = append(state.Sources, s)
		index[key] = len(state.Sources) - 1
		numbers[i] = len(state.Sources)
	}
	return numbers
}

// write drafts the report body. Every execution counts against the report
// revision cap. When the feasibility gate skipped every section the draft
// is the locally assembled degraded report; when the generation service
// cannot produce a draft at all, the fallback is a local assembly of the
// research entries, so the run still ends in a report.
func (m *Machine) write(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	state.ReportRevisions++

	if state.AllSectionsSkipped() {
		state.Report = m.writer.DegradedReport(state, m.cfg)
		return StageFormatCitations, nil
	}

	draft, err := m.writer.Draft(ctx, state)
	if err != nil {
		m.logger.Warn("drafting failed, assembling fallback draft", zap.Error(err))
		state.Report = m.writer.FallbackDraft(state)
		return StageFormatCitations, nil
	}
	state.Report = draft
	return StageFormatCitations, nil
}

// formatCitations resolves inline markers and builds the reference list.
func (m *Machine) formatCitations(state *types.WorkflowState) (Stage, error) {
	state.FormattedReport, state.References = agents.FormatCitations(state.Report, state.Sources)
	return StageVerifyCitations, nil
}

// verifyCitations gates the draft on citation-claim support. Every
// execution counts against the citation revision cap.
func (m *Machine) verifyCitations(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	state.CitationRevisions++

	result := m.verifier.Verify(ctx, state.FormattedReport, state.Sources)

	supported, total := 0, len(result.Verdicts)
	for _, v := range result.Verdicts {
		if strings.EqualFold(v.Status, "supported") {
			supported++
		}
	}
	m.quality.AssessCitations(ctx, state.FormattedReport, state.References, supported, total)

	if result.NeedsRevision {
		state.Feedback = result.Feedback
	}
	return m.decide(StageVerifyCitations, state, result.NeedsRevision), nil
}

// critiqueReport gates the formatted draft on critic feedback.
func (m *Machine) critiqueReport(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	feedback := m.critic.CritiqueReport(ctx, state.Topic, state.FormattedReport)
	state.Feedback = feedback
	return m.decide(StageCritiqueReport, state, !agents.Approved(feedback)), nil
}

// qualityControl assesses outline, content, and coherence quality and
// gates on the overall score. When enough gates have already failed the
// pipeline stops revising and carries the report forward as-is.
func (m *Machine) qualityControl(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	m.quality.AssessOutline(ctx, state.Outline, state.Topic)
	m.quality.AssessContent(ctx, state.FormattedReport, state.Sources)
	m.quality.AssessCoherence(ctx, state.FormattedReport, state.Outline)

	report := m.quality.Report()
	if report == nil {
		return StageCheckStyle, nil
	}

	if m.quality.ShouldTerminateEarly() {
		m.logger.Warn("quality control terminating revision early",
			zap.Float64("overall_score", report.OverallScore),
			zap.String("recommendation", report.Recommendation))
		return m.decide(StageQualityControl, state, false), nil
	}

	passed := report.OverallScore >= m.quality.Threshold("overall_quality_threshold")
	if !passed {
		state.Feedback = agents.FeedbackRevise + ": overall quality score " +
			fmt.Sprintf("%.2f", report.OverallScore) + " is below the acceptance threshold"
	}
	return m.decide(StageQualityControl, state, !passed), nil
}

// checkStyle gates on the grammar checker's finding count. A checker
// outage passes the draft through rather than blocking the run.
func (m *Machine) checkStyle(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	issues, err := m.style.Check(ctx, state.FormattedReport)
	if err != nil {
		m.logger.Warn("style check unavailable, passing draft through", zap.Error(err))
		return m.decide(StageCheckStyle, state, false), nil
	}

	if len(issues) > m.cfg.MaxStyleErrors {
		var examples []string
		for i, issue := range issues {
			if i == 3 {
				break
			}
			examples = append(examples, issue.Message)
		}
		state.Feedback = fmt.Sprintf("%s: %d style issues found (max %d): %s",
			agents.FeedbackRevise, len(issues), m.cfg.MaxStyleErrors, strings.Join(examples, "; "))
		return m.decide(StageCheckStyle, state, true), nil
	}
	return m.decide(StageCheckStyle, state, false), nil
}

// humanApproval is the final gate. The approver's feedback follows the
// same token contract as the critic's.
func (m *Machine) humanApproval(ctx context.Context, state *types.WorkflowState) (Stage, error) {
	feedback, err := m.approver.Review(ctx, state.Topic, state.FormattedReport)
	if err != nil {
		return StageDone, fmt.Errorf("human approval: %w", err)
	}
	state.Feedback = feedback
	return m.decide(StageHumanApproval, state, !agents.Approved(feedback)), nil
}
