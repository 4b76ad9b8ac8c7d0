// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// Ladder is the fixed sequence of progressively looser relevance cutoffs
// applied when too few sources qualify at the strict cutoff.
var Ladder = []float64{0.7, 0.5, 0.3, 0.1}

// ladderFloor is the minimum number of sources the ladder tries to reach
// before giving up, capped by the requested k.
const ladderFloor = 5

// scoreRelevance assigns a relevance score in [0,1] to every source. It
// prefers one batched assessment call; if batch parsing fails it falls
// back to one call per candidate, and finally to keyword overlap. Scores
// outside [0,1] are clamped by the parsers.
func (e *Engine) scoreRelevance(ctx context.Context, topic string, sources []types.Source) {
	if len(sources) == 0 {
		return
	}

	batch := sources
	if len(batch) > e.cfg.BatchLimit {
		batch = batch[:e.cfg.BatchLimit]
	}

	scores, err := e.scoreBatch(ctx, topic, batch)
	if err != nil {
		e.logger.Warn("batched relevance scoring failed, scoring per candidate", zap.Error(err))
		for i := range sources {
			sources[i].RelevanceScore = e.scoreOne(ctx, topic, sources[i])
		}
		return
	}

	for i := range batch {
		if s, ok := scores[i]; ok {
			batch[i].RelevanceScore = s
		} else {
			batch[i].RelevanceScore = keywordOverlap(topic, batch[i])
		}
	}
	// Candidates beyond the batch limit are scored heuristically.
	for i := len(batch); i < len(sources); i++ {
		sources[i].RelevanceScore = keywordOverlap(topic, sources[i])
	}
}

// scoreBatch scores all candidates against the topic in a single request.
func (e *Engine) scoreBatch(ctx context.Context, topic string, sources []types.Source) (map[int]float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Score each candidate source for topical relevance to %q.\n", topic)
	b.WriteString("Respond with a JSON object mapping the candidate index to a score between 0.0 and 1.0, and nothing else.\n\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "%d. %s\n%s\n\n", i, s.Title, textgen.Excerpt(s.Abstract, e.cfg.AbstractExcerptLen))
	}

	out, err := e.gen.Generate(ctx, types.RoleRetriever, b.String())
	if err != nil {
		return nil, err
	}
	return textgen.ParseScoreMap(out)
}

// scoreOne scores a single candidate, falling back to keyword overlap when
// the assessment cannot be parsed.
func (e *Engine) scoreOne(ctx context.Context, topic string, s types.Source) float64 {
	prompt := fmt.Sprintf(
		"Score the topical relevance of this source to %q from 0.0 to 1.0. Respond with only the number.\n\nTitle: %s\n%s",
		topic, s.Title, textgen.Excerpt(s.Abstract, e.cfg.AbstractExcerptLen))

	out, err := e.gen.Generate(ctx, types.RoleRetriever, prompt)
	if err != nil {
		return keywordOverlap(topic, s)
	}
	score, err := textgen.ParseScore(out)
	if err != nil {
		return keywordOverlap(topic, s)
	}
	return score
}

// keywordOverlap is the deterministic non-LLM fallback: the fraction of
// topic words that appear in the source title or abstract.
func keywordOverlap(topic string, s types.Source) float64 {
	words := strings.Fields(strings.ToLower(topic))
	if len(words) == 0 {
		return 0
	}
	text := strings.ToLower(s.Title + " " + s.Abstract)
	hits := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// CompositeScore computes the ranking score for a source: relevance times
// ten, plus tiered recency, citation-count, and domain-authority bonuses.
// Bonuses are additive and order-independent; the score is monotonic in
// the relevance score.
func CompositeScore(s types.Source, cfg types.RetrievalConfig) float64 {
	score := s.RelevanceScore * 10

	switch age := s.Age(time.Now()); {
	case age < 0:
		// Unknown year earns no recency bonus.
	case age < 3:
		score += 3
	case age < 5:
		score += 2
	case age < 10:
		score += 1
	}

	switch {
	case s.CitationCount > 500:
		score += 4
	case s.CitationCount > 100:
		score += 3
	case s.CitationCount > 20:
		score += 2
	}

	score += domainBonus(s.URL, cfg)
	return score
}

// domainBonus awards +3 for primary-allowlist domains and +2 for
// secondary-allowlist domains. The allowlists default to government,
// education, and major publisher domains and preprint or medical
// literature archives respectively.
func domainBonus(url string, cfg types.RetrievalConfig) float64 {
	trusted := cfg.TrustedDomains
	if len(trusted) == 0 {
		trusted = []string{".gov", ".edu", "nature.com", "science.org"}
	}
	secondary := cfg.SecondaryDomains
	if len(secondary) == 0 {
		secondary = []string{"arxiv.org", "pubmed.ncbi.nlm.nih.gov"}
	}

	for _, d := range trusted {
		if strings.Contains(url, d) {
			return 3
		}
	}
	for _, d := range secondary {
		if strings.Contains(url, d) {
			return 2
		}
	}
	return 0
}

// SelectTop applies the dynamic threshold ladder and returns the top k
// qualifying sources by composite quality score. Starting from the
// configured relevance threshold it relaxes through the fixed ladder until
// at least min(k, 5) sources qualify or the ladder is exhausted. Ties are
// broken by title so the output is reproducible.
func SelectTop(sources []types.Source, k int, threshold float64) []types.Source {
	if len(sources) == 0 || k <= 0 {
		return nil
	}

	need := k
	if need > ladderFloor {
		need = ladderFloor
	}

	rungs := []float64{threshold}
	for _, r := range Ladder {
		if r < threshold {
			rungs = append(rungs, r)
		}
	}

	var qualifying []types.Source
	for _, rung := range rungs {
		qualifying = qualifying[:0]
		for _, s := range sources {
			if s.RelevanceScore >= rung {
				qualifying = append(qualifying, s)
			}
		}
		if len(qualifying) >= need {
			break
		}
	}

	sort.Slice(qualifying, func(i, j int) bool {
		if qualifying[i].QualityScore != qualifying[j].QualityScore {
			return qualifying[i].QualityScore > qualifying[j].QualityScore
		}
		return qualifying[i].Title < qualifying[j].Title
	})

	if len(qualifying) > k {
		qualifying = qualifying[:k]
	}
	out := make([]types.Source, len(qualifying))
	copy(out, qualifying)
	return out
}
