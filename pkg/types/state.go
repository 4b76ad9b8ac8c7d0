// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ResearchEntry holds the synthesized research output for one outline
// section, together with the quality context the writer surfaces.
type ResearchEntry struct {
	// Content is the synthesized research text for the section.
	Content string `json:"content" yaml:"content"`

	// SourceCount is the number of sources the section drew on.
	SourceCount int `json:"source_count" yaml:"source_count"`

	// MeanRelevance is the average relevance score of those sources.
	MeanRelevance float64 `json:"mean_relevance" yaml:"mean_relevance"`
}

// SkippedSection records a section the feasibility gate declined to research.
type SkippedSection struct {
	// Section is the outline section title.
	Section string `json:"section" yaml:"section"`

	// Reason is the structured failure reason (e.g. "2 sources found,
	// minimum is 3").
	Reason string `json:"reason" yaml:"reason"`

	// Recommendation is the gate's suggested action, usually "skip_section".
	Recommendation string `json:"recommendation" yaml:"recommendation"`
}

// WorkflowState is the mutable record threaded through the pipeline. Within
// a run it is owned exclusively by the orchestrator; no concurrent mutation
// occurs.
type WorkflowState struct {
	// Topic is the report topic.
	Topic string

	// Outline holds section titles; slice order is presentation order.
	Outline []string

	// Critique is the most recent outline critique text.
	Critique string

	// Research maps section title to its research entry.
	Research map[string]ResearchEntry

	// Skipped logs sections declined by the feasibility gate, in outline
	// order.
	Skipped []SkippedSection

	// Sources is the deduplicated global source pool, in gathering order.
	Sources []Source

	// Report is the current draft body; FormattedReport the draft with
	// inline citations resolved; References the formatted reference list.
	Report          string
	FormattedReport string
	References      []string

	// Feedback is the current gate feedback token. It begins with an
	// approval marker ("APPROVED") or a revision marker ("REVISE").
	Feedback string

	// OutlineRevisions, ReportRevisions, and CitationRevisions count
	// executions of the Plan, Write, and VerifyCitations stages.
	OutlineRevisions  int
	ReportRevisions   int
	CitationRevisions int

	// SectionIndex is the research cursor into Outline. It is monotonically
	// non-decreasing within a research pass and never exceeds
	// len(Outline)+1.
	SectionIndex int
}

// NewWorkflowState returns the initial state for a topic.
func NewWorkflowState(topic string) *WorkflowState {
	return &WorkflowState{
		Topic:    topic,
		Research: make(map[string]ResearchEntry),
	}
}

// AllSectionsSkipped reports whether every planned section was declined by
// the feasibility gate. False when the outline is empty.
func (s *WorkflowState) AllSectionsSkipped() bool {
	return len(s.Outline) > 0 && len(s.Research) == 0 && len(s.Skipped) == len(s.Outline)
}
