// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// Conservative fallback scores used when an assessor fails. Correctness
// sensitive metrics fall to zero; aesthetic and coherence metrics fall to
// the midpoint.
const (
	fallbackCorrectness = 0.0
	fallbackAesthetic   = 0.5
)

// Deterministic truncation lengths for assessor inputs, in bytes.
const (
	excerptContent = 2000
	excerptSource  = 200
)

// AssessOutline validates outline quality: topic relevance (model
// assessed), structural coherence, and completeness.
func (p *Pipeline) AssessOutline(ctx context.Context, outline []string, topic string) types.StageQualityReport {
	threshold := p.Threshold("outline_quality_threshold")

	relevance := p.outlineTopicRelevance(ctx, outline, topic)
	structure := outlineStructure(outline)
	completeness := outlineCompleteness(outline, topic)

	metrics := []types.QualityMetric{
		metric("topic_relevance", relevance, threshold, map[string]any{"outline_sections": len(outline)}),
		metric("structural_coherence", structure, threshold, map[string]any{"logical_flow": structure > 0.8}),
		metric("completeness", completeness, threshold, nil),
	}

	var recs []string
	if relevance < threshold {
		recs = append(recs, "Improve topic alignment of outline sections")
	}
	if structure < threshold {
		recs = append(recs, "Enhance logical flow between sections")
	}
	if completeness < threshold {
		recs = append(recs, "Add missing key topic areas to outline")
	}

	report := newStageReport("outline_quality", metrics, recs)
	p.addStageReport(report)
	return report
}

// AssessResearch validates research quality across all sections: source
// quality, research completeness, and content depth.
func (p *Pipeline) AssessResearch(ctx context.Context, research map[string]types.ResearchEntry, sources []types.Source, skipped []types.SkippedSection) types.StageQualityReport {
	threshold := p.Threshold("research_quality_threshold")

	srcQuality := sourceQuality(sources)
	completeness := researchCompleteness(len(research), len(skipped))
	depth := researchDepth(research)

	highRelevance := 0
	for _, s := range sources {
		if s.RelevanceScore > 0.7 {
			highRelevance++
		}
	}

	metrics := []types.QualityMetric{
		metric("source_quality", srcQuality, threshold, map[string]any{
			"source_count":    len(sources),
			"quality_sources": highRelevance,
		}),
		metric("research_completeness", completeness, threshold, map[string]any{
			"completed_sections": len(research),
			"skipped_sections":   len(skipped),
		}),
		metric("content_depth", depth, threshold, nil),
	}

	var recs []string
	if srcQuality < threshold {
		recs = append(recs, "Improve source quality and relevance")
	}
	if completeness < threshold {
		recs = append(recs, "Reduce skipped sections by finding better sources")
	}
	if depth < threshold {
		recs = append(recs, "Conduct more thorough research with deeper analysis")
	}

	report := newStageReport("research_quality", metrics, recs)
	p.addStageReport(report)
	return report
}

// AssessCoherence validates content coherence and flow against the
// planned outline.
func (p *Pipeline) AssessCoherence(ctx context.Context, content string, outline []string) types.StageQualityReport {
	threshold := p.Threshold("coherence_quality_threshold")

	alignment := outlineAlignment(content, outline)
	flow := narrativeFlow(content)
	consistency := argumentConsistency(content)

	metrics := []types.QualityMetric{
		metric("outline_alignment", alignment, threshold, nil),
		metric("narrative_flow", flow, threshold, map[string]any{"transition_quality": flow > 0.8}),
		metric("argument_consistency", consistency, threshold, nil),
	}

	var recs []string
	if alignment < threshold {
		recs = append(recs, "Better align content with planned outline structure")
	}
	if flow < threshold {
		recs = append(recs, "Improve transitions and narrative flow between sections")
	}
	if consistency < threshold {
		recs = append(recs, "Resolve contradictions and ensure argument consistency")
	}

	report := newStageReport("coherence_quality", metrics, recs)
	p.addStageReport(report)
	return report
}

// AssessContent validates the drafted report body: coherence, factual
// accuracy against the source pool, and source usage.
// Each assessor calls the generation service; failures substitute the
// conservative default for that metric.
func (p *Pipeline) AssessContent(ctx context.Context, content string, sources []types.Source) types.StageQualityReport {
	threshold := p.Threshold("content_quality_threshold")

	coherence := p.llmScore(ctx, coherencePrompt(content), "coherence", fallbackAesthetic)
	accuracy := p.llmScore(ctx, accuracyPrompt(content, sources), "factual_accuracy", fallbackCorrectness)
	usage := p.llmScore(ctx, usagePrompt(content, len(sources)), "source_usage", fallbackAesthetic)

	metrics := []types.QualityMetric{
		metric("coherence", coherence, threshold, nil),
		metric("factual_accuracy", accuracy, threshold, nil),
		metric("source_usage", usage, threshold, nil),
	}

	var recs []string
	if coherence < threshold {
		recs = append(recs, "Improve logical flow and organization of content")
	}
	if accuracy < threshold {
		recs = append(recs, "Verify factual claims against provided sources")
	}
	if usage < threshold {
		recs = append(recs, "Better integrate sources with appropriate citations")
	}

	report := newStageReport("content_quality", metrics, recs)
	p.addStageReport(report)
	return report
}

// AssessCitations validates the citation layer of the formatted report:
// citation density, reference list completeness, and the verifier's
// support rate. It is deterministic; the verifier verdicts are passed in
// as (supported, total) counts, with total 0 meaning no verdicts were
// available (scored at the aesthetic fallback).
func (p *Pipeline) AssessCitations(ctx context.Context, formatted string, references []string, supported, total int) types.StageQualityReport {
	threshold := p.Threshold("citation_quality_threshold")

	density := citationDensity(formatted)
	completeness := referenceCompleteness(formatted, references)
	support := fallbackAesthetic
	if total > 0 {
		support = float64(supported) / float64(total)
	}

	metrics := []types.QualityMetric{
		metric("citation_density", density, threshold, nil),
		metric("reference_completeness", completeness, threshold, map[string]any{"references": len(references)}),
		metric("verification_support", support, threshold, map[string]any{
			"supported": supported,
			"total":     total,
		}),
	}

	var recs []string
	if density < threshold {
		recs = append(recs, "Cite sources more consistently throughout the report")
	}
	if completeness < threshold {
		recs = append(recs, "Ensure every cited source appears in the reference list")
	}
	if support < threshold {
		recs = append(recs, "Replace or rework claims their sources do not support")
	}

	report := newStageReport("citation_quality", metrics, recs)
	p.addStageReport(report)
	return report
}

// SectionAlignment assesses how well a section title fits the run topic
// given its candidate sources, for the per-section feasibility gate. It
// returns an error on assessor failure, not a substitute score: the gate
// must waive the alignment check rather than skip sections it could not
// actually assess.
func (p *Pipeline) SectionAlignment(ctx context.Context, topic, section string, sources []types.Source) (float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Rate from 0.0 to 1.0 how well the section %q of a report on %q is supported by these sources. Respond with only the number.\n\n", section, topic)
	for i, s := range sources {
		fmt.Fprintf(&b, "Source %d: %s\n%s\n\n", i+1, s.Title, textgen.Excerpt(s.Abstract, excerptSource))
	}

	out, err := p.gen.Generate(ctx, types.RoleQualityController, b.String())
	if err != nil {
		return 0, fmt.Errorf("assessing section alignment: %w", err)
	}
	score, err := parseScoreResponse(out)
	if err != nil {
		return 0, fmt.Errorf("assessing section alignment: %w", err)
	}
	return score, nil
}

// llmScore runs one assessor prompt and parses a [0,1] score, substituting
// the given fallback and logging on any failure.
func (p *Pipeline) llmScore(ctx context.Context, prompt, name string, fallback float64) float64 {
	out, err := p.gen.Generate(ctx, types.RoleQualityController, prompt)
	if err != nil {
		p.logger.Warn("assessor generation failed", zap.String("metric", name), zap.Error(err))
		return fallback
	}
	score, err := parseScoreResponse(out)
	if err != nil {
		p.logger.Warn("assessor response unparseable", zap.String("metric", name), zap.Error(err))
		return fallback
	}
	return score
}

// parseScoreResponse accepts either a bare number or a JSON document
// carrying a "score" field.
func parseScoreResponse(out string) (float64, error) {
	var doc struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(textgen.CleanJSONBlock(out)), &doc); err == nil && doc.Score != nil {
		return textgen.Clamp01(*doc.Score), nil
	}
	return textgen.ParseScore(out)
}

// --- assessor prompts ---

func coherencePrompt(content string) string {
	return fmt.Sprintf(
		"Evaluate the coherence and logical flow of this report content. Rate from 0.0 to 1.0. Respond with only the number.\n\n%s",
		textgen.Excerpt(content, excerptContent))
}

func accuracyPrompt(content string, sources []types.Source) string {
	var b strings.Builder
	b.WriteString("Evaluate the factual accuracy of this report content against the provided sources. Rate from 0.0 to 1.0. Respond with only the number.\n\nContent:\n")
	b.WriteString(textgen.Excerpt(content, excerptContent))
	b.WriteString("\n\nSources:\n")
	limit := len(sources)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&b, "Source %d: %s\n%s\n\n", i+1, sources[i].Title, textgen.Excerpt(sources[i].Abstract, excerptSource))
	}
	return b.String()
}

func usagePrompt(content string, sourceCount int) string {
	return fmt.Sprintf(
		"Evaluate how effectively the %d available sources are integrated into this report content. Rate from 0.0 to 1.0. Respond with only the number.\n\n%s",
		sourceCount, textgen.Excerpt(content, excerptContent))
}

// --- heuristic assessors ---

// outlineTopicRelevance asks the model how well the outline fits the
// topic, falling back to keyword overlap on failure.
func (p *Pipeline) outlineTopicRelevance(ctx context.Context, outline []string, topic string) float64 {
	prompt := fmt.Sprintf(
		"Evaluate how well this outline covers the topic %q. Rate from 0.0 to 1.0. Respond with only the number.\n\n- %s",
		topic, strings.Join(outline, "\n- "))

	out, err := p.gen.Generate(ctx, types.RoleQualityController, prompt)
	if err == nil {
		if score, perr := textgen.ParseScore(out); perr == nil {
			return score
		}
	}
	p.logger.Warn("outline relevance assessment failed, using keyword overlap")
	return keywordOverlap(strings.Join(outline, " "), topic)
}

// outlineStructure scores structural coherence: section count in a sane
// band, presence of a logical progression, no duplicated sections.
func outlineStructure(outline []string) float64 {
	if len(outline) < 2 {
		return 0.3
	}
	score := 0.5

	if len(outline) >= 3 && len(outline) <= 8 {
		score += 0.2
	} else if len(outline) > 8 {
		score -= 0.1
	}

	joined := strings.ToLower(strings.Join(outline, " "))
	for _, w := range []string{"introduction", "background", "methods", "results", "discussion", "conclusion"} {
		if strings.Contains(joined, w) {
			score += 0.2
			break
		}
	}

	unique := make(map[string]bool, len(outline))
	for _, s := range outline {
		unique[strings.ToLower(strings.TrimSpace(s))] = true
	}
	if len(unique) == len(outline) {
		score += 0.1
	}

	return textgen.Clamp01(score)
}

// outlineCompleteness scores coverage of key report sections and topic
// terms.
func outlineCompleteness(outline []string, topic string) float64 {
	score := 0.5
	joined := strings.ToLower(strings.Join(outline, " "))

	keySections := []string{"introduction", "background", "analysis", "conclusion"}
	covered := 0
	for _, s := range keySections {
		if strings.Contains(joined, s) {
			covered++
		}
	}
	score += float64(covered) / float64(len(keySections)) * 0.3

	score += keywordOverlap(joined, topic) * 0.2
	return textgen.Clamp01(score)
}

// sourceQuality scores the pool on academic indicators: DOIs, authorship,
// recency, and high relevance.
func sourceQuality(sources []types.Source) float64 {
	if len(sources) == 0 {
		return 0.0
	}
	var total float64
	for _, s := range sources {
		score := 0.5
		if s.DOI != "" {
			score += 0.2
		}
		if len(s.Authors) > 0 {
			score += 0.1
		}
		if s.Year >= 2010 {
			score += 0.1
		}
		if s.RelevanceScore > 0.7 {
			score += 0.1
		}
		total += textgen.Clamp01(score)
	}
	return total / float64(len(sources))
}

// researchCompleteness is the completion rate over planned sections with a
// penalty for skips.
func researchCompleteness(completed, skipped int) float64 {
	total := completed + skipped
	if total == 0 {
		return 0.0
	}
	rate := float64(completed) / float64(total)
	penalty := float64(skipped) * 0.1
	if penalty > 0.3 {
		penalty = 0.3
	}
	if rate-penalty < 0 {
		return 0
	}
	return rate - penalty
}

// researchDepth scores section content on length, sentence count, and
// evidence markers.
func researchDepth(research map[string]types.ResearchEntry) float64 {
	if len(research) == 0 {
		return 0.0
	}
	var total float64
	for _, entry := range research {
		content := entry.Content
		score := 0.5
		if len(content) > 200 {
			score += 0.2
		}
		if strings.Count(content, ".") > 3 {
			score += 0.1
		}
		lower := strings.ToLower(content)
		for _, w := range []string{"research", "study", "analysis", "evidence"} {
			if strings.Contains(lower, w) {
				score += 0.1
				break
			}
		}
		if strings.Contains(content, "(") {
			score += 0.1
		}
		total += textgen.Clamp01(score)
	}
	return total / float64(len(research))
}

// outlineAlignment measures how much of each planned section's wording
// appears in the content.
func outlineAlignment(content string, outline []string) float64 {
	if len(outline) == 0 {
		return 0.5
	}
	lower := strings.ToLower(content)
	var total float64
	for _, section := range outline {
		words := strings.Fields(strings.ToLower(section))
		if len(words) == 0 {
			continue
		}
		hits := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		total += float64(hits) / float64(len(words))
	}
	return textgen.Clamp01(total / float64(len(outline)))
}

// narrativeFlow scores transition density across paragraphs.
func narrativeFlow(content string) float64 {
	score := 0.5
	lower := strings.ToLower(content)
	transitions := 0
	for _, w := range []string{"however", "furthermore", "moreover", "additionally", "consequently", "therefore"} {
		transitions += strings.Count(lower, w)
	}

	paragraphs := strings.Split(content, "\n\n")
	if len(paragraphs) > 1 {
		ratio := float64(transitions) / float64(len(paragraphs)) * 0.5
		if ratio > 0.3 {
			ratio = 0.3
		}
		score += ratio
	}
	if len(paragraphs) >= 3 {
		score += 0.2
	}
	return textgen.Clamp01(score)
}

// argumentConsistency deducts for obvious contradiction patterns.
func argumentConsistency(content string) float64 {
	score := 0.9
	lower := strings.ToLower(content)
	for _, pattern := range []string{"but however", "although but", "despite however"} {
		if strings.Contains(lower, pattern) {
			score -= 0.2
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// citationDensity scores inline citation frequency per paragraph.
func citationDensity(content string) float64 {
	paragraphs := strings.Split(content, "\n\n")
	if len(paragraphs) == 0 {
		return 0.0
	}
	cited := 0
	for _, para := range paragraphs {
		if strings.Contains(para, "(") && strings.Contains(para, ")") {
			cited++
		}
	}
	return textgen.Clamp01(float64(cited) / float64(len(paragraphs)) * 1.25)
}

// referenceCompleteness scores whether cited authors appear in the
// reference list.
func referenceCompleteness(content string, references []string) float64 {
	if len(references) == 0 {
		if strings.Contains(content, "(") {
			return 0.0
		}
		return fallbackAesthetic
	}
	hits := 0
	for _, ref := range references {
		author, _, _ := strings.Cut(ref, " (")
		if author != "" && strings.Contains(content, strings.TrimSuffix(author, " et al.")) {
			hits++
		}
	}
	return float64(hits) / float64(len(references))
}

// keywordOverlap returns the fraction of topic words present in text.
func keywordOverlap(text, topic string) float64 {
	words := strings.Fields(strings.ToLower(topic))
	if len(words) == 0 {
		return 0.0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}
