// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "report-writer/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for components that call the text
// generation API.
type AIConfig struct {
	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ModelRoles maps a pipeline role name to the model identifier that role
// should use. It is an explicit value passed into each component at
// construction, never process-wide state.
type ModelRoles map[string]string

// Role names accepted in a ModelRoles table.
const (
	RolePlanner           = "planner"
	RoleCritic            = "critic"
	RoleWriter            = "writer"
	RoleRetriever         = "retriever"
	RoleCitationVerifier  = "citation_verifier"
	RoleQualityController = "quality_controller"
)

// DefaultModelRoles returns the default role-to-model table.
func DefaultModelRoles() ModelRoles {
	return ModelRoles{
		RolePlanner:           "gemini-2.5-flash",
		RoleCritic:            "gemini-2.5-flash",
		RoleWriter:            "gemini-2.5-flash-lite",
		RoleRetriever:         "gemini-2.5-flash",
		RoleCitationVerifier:  "gemini-2.5-flash-lite",
		RoleQualityController: "gemini-2.5-flash",
	}
}

// Model returns the model for role, falling back to the retriever model
// when the role is not in the table.
func (m ModelRoles) Model(role string) string {
	if v, ok := m[role]; ok {
		return v
	}
	return m[RoleRetriever]
}

// CacheConfig holds settings for the Redis source cache.
type CacheConfig struct {
	// Addr is the Redis address (default "localhost:6379").
	Addr string `json:"addr" yaml:"addr"`

	// DB is the Redis logical database number.
	DB int `json:"db" yaml:"db"`

	// TTL is the time-to-live for cached source sets (default 7 days).
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// RetrievalConfig holds settings for the source retrieval, reranking, and
// deduplication engine.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxPerQuery is the per-provider result limit for each sub-query
	// (default 10).
	MaxPerQuery int `json:"max_per_query" yaml:"max_per_query"`

	// TopK is the number of sources the engine selects (default 10).
	TopK int `json:"top_k" yaml:"top_k"`

	// RelevanceThreshold is the strictest rung of the threshold ladder
	// (default 0.7).
	RelevanceThreshold float64 `json:"relevance_threshold" yaml:"relevance_threshold"`

	// BatchLimit caps the number of candidates scored in one batched
	// relevance call (default 25).
	BatchLimit int `json:"batch_limit" yaml:"batch_limit"`

	// AbstractExcerptLen is the deterministic truncation length applied to
	// abstracts before relevance scoring (default 600).
	AbstractExcerptLen int `json:"abstract_excerpt_len" yaml:"abstract_excerpt_len"`

	// TrustedDomains is the primary domain-authority allowlist
	// (government, education, major publishers).
	TrustedDomains []string `json:"trusted_domains" yaml:"trusted_domains"`

	// SecondaryDomains is the secondary allowlist (preprint and medical
	// literature archives).
	SecondaryDomains []string `json:"secondary_domains" yaml:"secondary_domains"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`

	// TavilyAPIKey authenticates the web search provider.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`
}

// PipelineSettings controls quality-gate pipeline behavior.
type PipelineSettings struct {
	// EnableEarlyTermination allows the pipeline to stop revising once
	// enough gates have failed.
	EnableEarlyTermination bool `json:"enable_early_termination" yaml:"enable_early_termination"`

	// FailingStagesForTermination is the failed-gate count that triggers
	// early termination (default 2).
	FailingStagesForTermination int `json:"failing_stages_for_termination" yaml:"failing_stages_for_termination"`

	// MaxRevisionCycles bounds quality-driven revision cycles (default 3).
	MaxRevisionCycles int `json:"max_revision_cycles" yaml:"max_revision_cycles"`
}

// QualityConfig holds the quality gating framework configuration. It is
// validated once at construction; see quality.NewPipeline.
type QualityConfig struct {
	// Thresholds maps metric threshold names to cutoffs in [0,1].
	Thresholds map[string]float64 `json:"quality_thresholds" yaml:"quality_thresholds"`

	// StageWeights maps stage names to aggregate weights. The values must
	// sum to 1.0 within a 0.05 tolerance.
	StageWeights map[string]float64 `json:"stage_weights" yaml:"stage_weights"`

	// Pipeline holds pipeline-level settings.
	Pipeline PipelineSettings `json:"pipeline_settings" yaml:"pipeline_settings"`
}

// DefaultQualityConfig returns the built-in quality configuration.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		Thresholds: map[string]float64{
			"outline_quality_threshold":   0.7,
			"research_quality_threshold":  0.75,
			"content_quality_threshold":   0.8,
			"citation_quality_threshold":  0.8,
			"coherence_quality_threshold": 0.75,
			"overall_quality_threshold":   0.7,
		},
		StageWeights: map[string]float64{
			"outline_quality":   0.15,
			"research_quality":  0.25,
			"content_quality":   0.25,
			"citation_quality":  0.20,
			"coherence_quality": 0.15,
		},
		Pipeline: PipelineSettings{
			EnableEarlyTermination:      true,
			FailingStagesForTermination: 2,
			MaxRevisionCycles:           3,
		},
	}
}

// WorkflowConfig holds settings for the workflow state machine and its
// per-section feasibility gate.
type WorkflowConfig struct {
	// OutlineRevisionCap, ReportRevisionCap, and CitationRevisionCap bound
	// the revision loops (defaults 5, 5, 3). Once a counter exceeds its
	// cap the gate forces a continue.
	OutlineRevisionCap  int `json:"outline_revision_cap" yaml:"outline_revision_cap"`
	ReportRevisionCap   int `json:"report_revision_cap" yaml:"report_revision_cap"`
	CitationRevisionCap int `json:"citation_revision_cap" yaml:"citation_revision_cap"`

	// MinSectionSources is the feasibility gate's minimum source count
	// per section (default 3).
	MinSectionSources int `json:"min_section_sources" yaml:"min_section_sources"`

	// MinSectionRelevance is the minimum mean relevance of a section's
	// sources (default 0.5).
	MinSectionRelevance float64 `json:"min_section_relevance" yaml:"min_section_relevance"`

	// MinSectionAlignment is the minimum assessed section-topic alignment
	// score (default 0.6).
	MinSectionAlignment float64 `json:"min_section_alignment" yaml:"min_section_alignment"`

	// MaxStyleErrors is the style gate's tolerated error count (default 2).
	MaxStyleErrors int `json:"max_style_errors" yaml:"max_style_errors"`
}

// DefaultWorkflowConfig returns the built-in workflow configuration.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		OutlineRevisionCap:  5,
		ReportRevisionCap:   5,
		CitationRevisionCap: 3,
		MinSectionSources:   3,
		MinSectionRelevance: 0.5,
		MinSectionAlignment: 0.6,
		MaxStyleErrors:      2,
	}
}

// ArchiveConfig holds settings for the run archive.
type ArchiveConfig struct {
	// Dir is the base directory for the archive (contains index/ and
	// export.yaml).
	Dir string `json:"dir" yaml:"dir"`
}

// PipelineConfig groups all component configurations for a pipeline run.
type PipelineConfig struct {
	AI        AIConfig        `json:"ai" yaml:"ai"`
	Roles     ModelRoles      `json:"roles" yaml:"roles"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Quality   QualityConfig   `json:"quality" yaml:"quality"`
	Workflow  WorkflowConfig  `json:"workflow" yaml:"workflow"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive"`
}
