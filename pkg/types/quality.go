// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// QualityMetric is a single named quality measurement produced by an
// assessor: a score in [0,1] compared against a threshold in [0,1].
type QualityMetric struct {
	// Name identifies the metric (e.g. "topic_relevance", "source_quality").
	Name string `json:"name" yaml:"name"`

	// Score is the assessed value in [0,1].
	Score float64 `json:"score" yaml:"score"`

	// Threshold is the pass cutoff in [0,1].
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// Passed records score >= threshold at assessment time.
	Passed bool `json:"passed" yaml:"passed"`

	// Details carries free-form assessor findings.
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`

	// CreatedAt is the assessment timestamp.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// StageQualityReport aggregates the metrics assessed for one pipeline stage.
type StageQualityReport struct {
	// StageName identifies the assessed stage (e.g. "outline_quality").
	StageName string `json:"stage_name" yaml:"stage_name"`

	// Metrics lists the stage's quality metrics in assessment order.
	Metrics []QualityMetric `json:"metrics" yaml:"metrics"`

	// OverallScore is the arithmetic mean of the metric scores.
	OverallScore float64 `json:"overall_score" yaml:"overall_score"`

	// Passed is true only when every metric passed.
	Passed bool `json:"passed" yaml:"passed"`

	// Recommendations lists improvement suggestions for failed metrics.
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`

	// CreatedAt is the report timestamp.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Metric returns the named metric, or nil if the stage did not assess it.
func (r *StageQualityReport) Metric(name string) *QualityMetric {
	for i := range r.Metrics {
		if r.Metrics[i].Name == name {
			return &r.Metrics[i]
		}
	}
	return nil
}

// SystemQualityReport is the run-wide quality audit trail: one per workflow
// run, appended to as stages complete, finalized once after the last gate.
type SystemQualityReport struct {
	// WorkflowID uniquely identifies the run.
	WorkflowID string `json:"workflow_id" yaml:"workflow_id"`

	// Topic is the report topic for the run.
	Topic string `json:"topic" yaml:"topic"`

	// StageReports lists stage reports in completion order.
	StageReports []StageQualityReport `json:"stage_reports" yaml:"stage_reports"`

	// OverallScore is the weighted average of stage scores using the
	// configured stage-weight table.
	OverallScore float64 `json:"overall_score" yaml:"overall_score"`

	// GatesPassed counts stage reports with Passed set.
	GatesPassed int `json:"gates_passed" yaml:"gates_passed"`

	// GatesTotal counts all stage reports.
	GatesTotal int `json:"gates_total" yaml:"gates_total"`

	// Recommendation is the derived qualitative band for the run.
	Recommendation string `json:"recommendation" yaml:"recommendation"`

	// StartedAt is set when tracking begins; FinishedAt when finalized.
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Finalized reports whether the run has been closed out.
func (r *SystemQualityReport) Finalized() bool {
	return !r.FinishedAt.IsZero()
}
