// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow drives the report pipeline as an explicit state
// machine: a fixed stage set, a static transition table for the gate
// stages, and bounded revision loops whose counters force progress once a
// cap is exceeded. See docs/ARCHITECTURE.md § Workflow.
package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/agents"
	"github.com/pdiddy/report-writer/internal/quality"
	"github.com/pdiddy/report-writer/internal/retrieval"
	"github.com/pdiddy/report-writer/pkg/types"
)

// Stage identifies a pipeline stage.
type Stage string

// The fixed stage set. Every run starts at StagePlan and ends at StageDone.
const (
	StagePlan            Stage = "plan"
	StageCritiqueOutline Stage = "critique_outline"
	StageResearchSection Stage = "research_section"
	StageWrite           Stage = "write"
	StageFormatCitations Stage = "format_citations"
	StageVerifyCitations Stage = "verify_citations"
	StageCritiqueReport  Stage = "critique_report"
	StageQualityControl  Stage = "quality_control"
	StageCheckStyle      Stage = "check_style"
	StageHumanApproval   Stage = "human_approval"
	StageDone            Stage = "done"
)

// gate describes a revision-bounded decision point: where an approval
// continues to, where a revision request loops back to, and which counter
// bounds the loop.
type gate struct {
	continueTo Stage
	reviseTo   Stage
	cap        func(types.WorkflowConfig) int
	counter    func(*types.WorkflowState) int
}

// gates is the static transition table for the decision stages. Linear
// stages (Plan, ResearchSection, Write, FormatCitations) transition
// unconditionally in their handlers.
var gates = map[Stage]gate{
	StageCritiqueOutline: {
		continueTo: StageResearchSection,
		reviseTo:   StagePlan,
		cap:        func(c types.WorkflowConfig) int { return c.OutlineRevisionCap },
		counter:    func(s *types.WorkflowState) int { return s.OutlineRevisions },
	},
	StageVerifyCitations: {
		continueTo: StageCritiqueReport,
		reviseTo:   StageWrite,
		cap:        func(c types.WorkflowConfig) int { return c.CitationRevisionCap },
		counter:    func(s *types.WorkflowState) int { return s.CitationRevisions },
	},
	StageCritiqueReport: {
		continueTo: StageQualityControl,
		reviseTo:   StageWrite,
		cap:        func(c types.WorkflowConfig) int { return c.ReportRevisionCap },
		counter:    func(s *types.WorkflowState) int { return s.ReportRevisions },
	},
	StageQualityControl: {
		continueTo: StageCheckStyle,
		reviseTo:   StageWrite,
		cap:        func(c types.WorkflowConfig) int { return c.ReportRevisionCap },
		counter:    func(s *types.WorkflowState) int { return s.ReportRevisions },
	},
	StageCheckStyle: {
		continueTo: StageHumanApproval,
		reviseTo:   StageWrite,
		cap:        func(c types.WorkflowConfig) int { return c.ReportRevisionCap },
		counter:    func(s *types.WorkflowState) int { return s.ReportRevisions },
	},
	StageHumanApproval: {
		continueTo: StageDone,
		reviseTo:   StageWrite,
		cap:        func(c types.WorkflowConfig) int { return c.ReportRevisionCap },
		counter:    func(s *types.WorkflowState) int { return s.ReportRevisions },
	},
}

// Approver decides the final human gate. Implementations return feedback
// beginning with an approval or revision token.
type Approver interface {
	Review(ctx context.Context, topic, report string) (string, error)
}

// AutoApprover approves every report. It is the non-interactive default.
type AutoApprover struct{}

// Review always approves.
func (AutoApprover) Review(ctx context.Context, topic, report string) (string, error) {
	return agents.FeedbackApproved + ": auto-approved", nil
}

// Machine runs the pipeline for one topic.
type Machine struct {
	planner    *agents.Planner
	critic     *agents.Critic
	researcher *agents.Researcher
	writer     *agents.Writer
	verifier   *agents.CitationVerifier
	style      agents.StyleChecker
	engine     *retrieval.Engine
	quality    *quality.Pipeline
	approver   Approver

	cfg    types.WorkflowConfig
	logger *zap.Logger
}

// Deps bundles the machine's collaborators.
type Deps struct {
	Planner    *agents.Planner
	Critic     *agents.Critic
	Researcher *agents.Researcher
	Writer     *agents.Writer
	Verifier   *agents.CitationVerifier
	Style      agents.StyleChecker
	Engine     *retrieval.Engine
	Quality    *quality.Pipeline
	Approver   Approver
}

// NewMachine constructs a workflow machine. A nil Approver defaults to
// AutoApprover.
func NewMachine(deps Deps, cfg types.WorkflowConfig, logger *zap.Logger) *Machine {
	if deps.Approver == nil {
		deps.Approver = AutoApprover{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := types.DefaultWorkflowConfig()
	if cfg.OutlineRevisionCap <= 0 {
		cfg.OutlineRevisionCap = def.OutlineRevisionCap
	}
	if cfg.ReportRevisionCap <= 0 {
		cfg.ReportRevisionCap = def.ReportRevisionCap
	}
	if cfg.CitationRevisionCap <= 0 {
		cfg.CitationRevisionCap = def.CitationRevisionCap
	}
	if cfg.MinSectionSources <= 0 {
		cfg.MinSectionSources = def.MinSectionSources
	}
	if cfg.MinSectionRelevance <= 0 {
		cfg.MinSectionRelevance = def.MinSectionRelevance
	}
	if cfg.MinSectionAlignment <= 0 {
		cfg.MinSectionAlignment = def.MinSectionAlignment
	}
	if cfg.MaxStyleErrors <= 0 {
		cfg.MaxStyleErrors = def.MaxStyleErrors
	}
	return &Machine{
		planner:    deps.Planner,
		critic:     deps.Critic,
		researcher: deps.Researcher,
		writer:     deps.Writer,
		verifier:   deps.Verifier,
		style:      deps.Style,
		engine:     deps.Engine,
		quality:    deps.Quality,
		approver:   deps.Approver,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes the pipeline for topic until StageDone. It returns the
// final state; the quality report is available from the quality pipeline.
func (m *Machine) Run(ctx context.Context, topic string) (*types.WorkflowState, error) {
	state := types.NewWorkflowState(topic)
	m.quality.Start(topic, "")

	stage := StagePlan
	for stage != StageDone {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		next, err := m.execute(ctx, stage, state)
		if err != nil {
			return state, fmt.Errorf("stage %s: %w", stage, err)
		}
		m.logger.Debug("stage transition",
			zap.String("from", string(stage)),
			zap.String("to", string(next)))
		stage = next
	}

	if _, err := m.quality.Finalize(); err != nil {
		m.logger.Warn("quality finalization failed", zap.Error(err))
	}
	return state, nil
}

func (m *Machine) execute(ctx context.Context, stage Stage, state *types.WorkflowState) (Stage, error) {
	switch stage {
	case StagePlan:
		return m.plan(ctx, state)
	case StageCritiqueOutline:
		return m.critiqueOutline(ctx, state)
	case StageResearchSection:
		return m.researchSection(ctx, state)
	case StageWrite:
		return m.write(ctx, state)
	case StageFormatCitations:
		return m.formatCitations(state)
	case StageVerifyCitations:
		return m.verifyCitations(ctx, state)
	case StageCritiqueReport:
		return m.critiqueReport(ctx, state)
	case StageQualityControl:
		return m.qualityControl(ctx, state)
	case StageCheckStyle:
		return m.checkStyle(ctx, state)
	case StageHumanApproval:
		return m.humanApproval(ctx, state)
	default:
		return StageDone, fmt.Errorf("unknown stage %q", stage)
	}
}

// decide routes a gate stage on its feedback. A revision request past the
// cap is forced through on the continue branch, never silently: the
// forced pass is logged with the counter and cap.
func (m *Machine) decide(stage Stage, state *types.WorkflowState, wantRevise bool) Stage {
	g, ok := gates[stage]
	if !ok {
		return StageDone
	}
	if !wantRevise {
		return g.continueTo
	}

	count, limit := g.counter(state), g.cap(m.cfg)
	if count > limit {
		m.logger.Warn("revision cap exceeded, forcing continue",
			zap.String("stage", string(stage)),
			zap.Int("revisions", count),
			zap.Int("cap", limit))
		return g.continueTo
	}
	m.logger.Info("revision requested",
		zap.String("stage", string(stage)),
		zap.Int("revisions", count),
		zap.Int("cap", limit))
	return g.reviseTo
}
