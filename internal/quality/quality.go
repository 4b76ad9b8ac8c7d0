// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality turns heuristic and model-based assessments into
// auditable pass/fail gate decisions. A Pipeline validates its
// configuration once at construction, collects one StageQualityReport per
// assessed stage, and aggregates them into a SystemQualityReport with a
// weighted overall score.
// See docs/ARCHITECTURE.md § Quality Gating.
package quality

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// residualWeight is applied to stage names missing from the configured
// weight table so unexpected stages never silently vanish from scoring.
const residualWeight = 0.1

// weightTolerance is the allowed deviation of the stage-weight sum from 1.0.
const weightTolerance = 0.05

// ConfigError marks an invalid quality configuration. It is raised at
// construction and is the only error in the system that aborts a run.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid quality configuration: " + e.Reason
}

// ValidateConfig checks thresholds, stage weights, and pipeline settings.
// It runs once at startup, not per call.
func ValidateConfig(cfg types.QualityConfig) error {
	for name, v := range cfg.Thresholds {
		if v < 0.0 || v > 1.0 {
			return &ConfigError{Reason: fmt.Sprintf("threshold %q must be between 0.0 and 1.0, got %v", name, v)}
		}
	}

	if len(cfg.StageWeights) > 0 {
		var sum float64
		for _, w := range cfg.StageWeights {
			sum += w
		}
		if sum < 1.0-weightTolerance || sum > 1.0+weightTolerance {
			return &ConfigError{Reason: fmt.Sprintf("stage weights must sum to 1.0, got %v", sum)}
		}
	}

	if cfg.Pipeline.MaxRevisionCycles < 1 {
		return &ConfigError{Reason: fmt.Sprintf("max_revision_cycles must be a positive integer, got %d", cfg.Pipeline.MaxRevisionCycles)}
	}
	return nil
}

// Pipeline is the quality gating framework for one or more workflow runs.
type Pipeline struct {
	gen    textgen.Generator
	cfg    types.QualityConfig
	logger *zap.Logger

	current *types.SystemQualityReport
}

// NewPipeline constructs a quality pipeline, failing fast on an invalid
// configuration.
func NewPipeline(gen textgen.Generator, cfg types.QualityConfig, logger *zap.Logger) (*Pipeline, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{gen: gen, cfg: cfg, logger: logger}, nil
}

// Threshold returns the named threshold, defaulting to 0.7 when unset.
func (p *Pipeline) Threshold(name string) float64 {
	if v, ok := p.cfg.Thresholds[name]; ok {
		return v
	}
	return 0.7
}

// Start begins quality tracking for a run. An empty workflowID gets a
// generated one.
func (p *Pipeline) Start(topic, workflowID string) *types.SystemQualityReport {
	if workflowID == "" {
		workflowID = uuid.NewString()
	}
	p.current = &types.SystemQualityReport{
		WorkflowID: workflowID,
		Topic:      topic,
		StartedAt:  time.Now().UTC(),
	}
	p.logger.Info("quality tracking started",
		zap.String("workflow_id", workflowID),
		zap.String("topic", topic))
	return p.current
}

// Report returns the current system report, or nil before Start.
func (p *Pipeline) Report() *types.SystemQualityReport {
	return p.current
}

// addStageReport records a stage report for the current run and refreshes
// the aggregate metrics. Re-assessing a stage (revision cycles do this)
// replaces its previous report so the aggregate never double-counts.
func (p *Pipeline) addStageReport(report types.StageQualityReport) {
	if p.current == nil {
		return
	}
	replaced := false
	for i, sr := range p.current.StageReports {
		if sr.StageName == report.StageName {
			p.current.StageReports[i] = report
			replaced = true
			break
		}
	}
	if !replaced {
		p.current.StageReports = append(p.current.StageReports, report)
	}
	Aggregate(p.cfg.StageWeights, p.current)

	p.logger.Info("stage quality assessed",
		zap.String("stage", report.StageName),
		zap.Float64("score", report.OverallScore),
		zap.Bool("passed", report.Passed))
}

// Aggregate recomputes the weighted overall score, gate counts, and
// recommendation band of a system report from its stage reports. Stage
// names missing from the weight table get the residual weight.
func Aggregate(weights map[string]float64, report *types.SystemQualityReport) {
	var weightedSum, totalWeight float64
	passed := 0

	for _, sr := range report.StageReports {
		w, ok := weights[sr.StageName]
		if !ok {
			w = residualWeight
		}
		weightedSum += sr.OverallScore * w
		totalWeight += w
		if sr.Passed {
			passed++
		}
	}

	report.GatesPassed = passed
	report.GatesTotal = len(report.StageReports)
	if totalWeight > 0 {
		report.OverallScore = weightedSum / totalWeight
	} else {
		report.OverallScore = 0
	}
	report.Recommendation = recommendationBand(report.OverallScore)
}

// recommendationBand maps an overall score to its qualitative band.
func recommendationBand(score float64) string {
	switch {
	case score >= 0.85:
		return "EXCELLENT: High-quality report ready for publication"
	case score >= 0.75:
		return "GOOD: Report meets quality standards"
	case score >= 0.60:
		return "ACCEPTABLE: Minor improvements recommended"
	default:
		return "NEEDS_IMPROVEMENT: Significant quality issues require attention"
	}
}

// ShouldTerminateEarly reports whether enough gates have failed to stop
// revising: the failed-stage count has reached the configured threshold
// and early termination is enabled.
func (p *Pipeline) ShouldTerminateEarly() bool {
	if !p.cfg.Pipeline.EnableEarlyTermination || p.current == nil {
		return false
	}

	failing := 0
	for _, sr := range p.current.StageReports {
		if !sr.Passed {
			failing++
		}
	}

	threshold := p.cfg.Pipeline.FailingStagesForTermination
	if threshold <= 0 {
		threshold = 2
	}
	if failing >= threshold {
		p.logger.Warn("early termination recommended",
			zap.Int("failing_stages", failing),
			zap.Int("threshold", threshold))
		return true
	}
	return false
}

// Finalize closes out the current run and returns the finished report.
func (p *Pipeline) Finalize() (*types.SystemQualityReport, error) {
	if p.current == nil {
		return nil, fmt.Errorf("no quality tracking session active")
	}
	p.current.FinishedAt = time.Now().UTC()
	p.logger.Info("quality report finalized",
		zap.String("workflow_id", p.current.WorkflowID),
		zap.Float64("overall_score", p.current.OverallScore),
		zap.Int("gates_passed", p.current.GatesPassed),
		zap.Int("gates_total", p.current.GatesTotal),
		zap.String("recommendation", p.current.Recommendation))
	return p.current, nil
}

// newStageReport assembles a stage report from metrics: the overall score
// is the arithmetic mean and the stage passes only when every metric
// passed.
func newStageReport(stageName string, metrics []types.QualityMetric, recommendations []string) types.StageQualityReport {
	var sum float64
	passed := true
	for _, m := range metrics {
		sum += m.Score
		passed = passed && m.Passed
	}
	overall := 0.0
	if len(metrics) > 0 {
		overall = sum / float64(len(metrics))
	}
	return types.StageQualityReport{
		StageName:       stageName,
		Metrics:         metrics,
		OverallScore:    overall,
		Passed:          passed,
		Recommendations: recommendations,
		CreatedAt:       time.Now().UTC(),
	}
}

// metric builds a QualityMetric with Passed derived from the threshold.
func metric(name string, score, threshold float64, details map[string]any) types.QualityMetric {
	return types.QualityMetric{
		Name:      name,
		Score:     score,
		Threshold: threshold,
		Passed:    score >= threshold,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}
