// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the report-writer pipeline.
// See docs/ARCHITECTURE.md § Data Structures.
package types

import (
	"strings"
	"time"
)

// Source represents a candidate source gathered by the retrieval engine from
// a bibliographic or web search provider. Optional fields use their zero
// value to mean "absent"; presentation code is responsible for rendering
// placeholders such as "n.d." for a missing year.
type Source struct {
	// Title is the source title as returned by the provider.
	Title string `json:"title" yaml:"title"`

	// Abstract is the abstract or page excerpt, possibly empty.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Authors lists author display names in provider order. May be empty.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year; 0 means unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// DOI is the bare DOI (no https://doi.org/ prefix); empty means none.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the landing page or document URL; empty means none.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Provider identifies which provider found this source
	// (e.g. "openalex", "tavily").
	Provider string `json:"provider" yaml:"provider"`

	// Venue is the journal or publication venue, if the provider reports one.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// CitationCount is the provider-reported citation count; 0 means
	// unknown or uncited.
	CitationCount int `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`

	// RelevanceScore is the topical-fit score in [0,1] assigned by the
	// reranking engine.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// QualityScore is the composite ranking score: relevance plus recency,
	// citation, and domain-authority bonuses. Unbounded above.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
}

// IdentityKey returns the deduplication key for a source. Two sources with
// equal identity keys are the same source regardless of other field
// differences. The key covers exactly the declared identity fields
// (title, url, doi), normalized for case and surrounding whitespace.
func (s Source) IdentityKey() string {
	norm := func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return norm(s.Title) + "\x00" + norm(s.URL) + "\x00" + norm(s.DOI)
}

// Age returns the number of years since publication, or -1 when the year
// is unknown.
func (s Source) Age(now time.Time) int {
	if s.Year <= 0 {
		return -1
	}
	return now.Year() - s.Year
}
