// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// sourceMarker matches the inline citation markers the researcher emits.
var sourceMarker = regexp.MustCompile(`\[Source (\d+)\]`)

// doiPattern matches a DOI anywhere in free text.
var doiPattern = regexp.MustCompile(`\b10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)

// FormatCitations resolves [Source N] markers in body to author-year
// citations and returns the rewritten body together with the formatted
// reference list for the sources actually cited. Markers referencing
// sources outside the pool are left untouched.
func FormatCitations(body string, sources []types.Source) (string, []string) {
	cited := make(map[int]bool)
	formatted := sourceMarker.ReplaceAllStringFunc(body, func(m string) string {
		n, err := strconv.Atoi(sourceMarker.FindStringSubmatch(m)[1])
		if err != nil || n < 1 || n > len(sources) {
			return m
		}
		cited[n-1] = true
		return inlineCitation(sources[n-1])
	})

	var refs []string
	for i, s := range sources {
		if cited[i] {
			refs = append(refs, referenceEntry(s))
		}
	}
	sort.Strings(refs)
	return formatted, refs
}

// inlineCitation renders a parenthetical author-year citation: one author
// as (Lastname, Year), two as (A & B, Year), three or more as
// (A et al., Year). Unknown year renders as "n.d.".
func inlineCitation(s types.Source) string {
	return "(" + authorLabel(s.Authors) + ", " + yearLabel(s.Year) + ")"
}

// referenceEntry renders a reference list line: Author (year). Title.
// Venue.
func referenceEntry(s types.Source) string {
	var b strings.Builder
	b.WriteString(authorLabel(s.Authors))
	fmt.Fprintf(&b, " (%s). %s.", yearLabel(s.Year), strings.TrimSuffix(s.Title, "."))
	if s.Venue != "" {
		fmt.Fprintf(&b, " %s.", strings.TrimSuffix(s.Venue, "."))
	}
	if s.DOI != "" {
		fmt.Fprintf(&b, " https://doi.org/%s", s.DOI)
	}
	return b.String()
}

func authorLabel(authors []string) string {
	switch len(authors) {
	case 0:
		return "Unknown"
	case 1:
		return lastName(authors[0])
	case 2:
		return lastName(authors[0]) + " & " + lastName(authors[1])
	default:
		return lastName(authors[0]) + " et al."
	}
}

func lastName(author string) string {
	fields := strings.Fields(strings.TrimSpace(author))
	if len(fields) == 0 {
		return "Unknown"
	}
	return fields[len(fields)-1]
}

func yearLabel(year int) string {
	if year <= 0 {
		return "n.d."
	}
	return strconv.Itoa(year)
}

// ExtractDOIs returns the distinct DOIs found in text, in first-seen
// order.
func ExtractDOIs(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, doi := range doiPattern.FindAllString(text, -1) {
		doi = strings.TrimRight(doi, ".,;)")
		if !seen[doi] {
			seen[doi] = true
			out = append(out, doi)
		}
	}
	return out
}

// CitationVerdict is the verifier's judgment on one cited claim.
type CitationVerdict struct {
	Claim    string `json:"claim"`
	Citation string `json:"citation"`
	// Status is "supported", "mentioned", or "disputed".
	Status string `json:"status"`
}

// VerificationResult aggregates verdicts for a report draft.
type VerificationResult struct {
	Verdicts []CitationVerdict

	// NeedsRevision is set when any verdict is disputed or when cited
	// claims outnumber verifiable ones.
	NeedsRevision bool

	// Feedback is the revision guidance passed back to the writer, empty
	// when no revision is needed.
	Feedback string
}

// CitationVerifier checks that cited claims are supported by the sources
// they cite.
type CitationVerifier struct {
	gen    textgen.Generator
	logger *zap.Logger
}

// NewCitationVerifier returns a CitationVerifier backed by gen.
func NewCitationVerifier(gen textgen.Generator, logger *zap.Logger) *CitationVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CitationVerifier{gen: gen, logger: logger}
}

// Verify judges every cited claim in body against the source pool. A
// generation or parse failure yields a pass (no verdicts, no revision):
// the verifier must not block the pipeline on its own outage, and the
// quality gate still scores citation quality independently.
func (v *CitationVerifier) Verify(ctx context.Context, body string, sources []types.Source) VerificationResult {
	var b strings.Builder
	b.WriteString("For each cited claim in the report below, judge whether the cited source supports it.\n")
	b.WriteString(`Respond with a JSON array of {"claim": ..., "citation": ..., "status": ...} where status is "supported", "mentioned", or "disputed". No commentary.` + "\n\nSources:\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "Source %d: %s\n%s\n\n", i+1, s.Title, textgen.Excerpt(s.Abstract, abstractExcerptLen))
	}
	fmt.Fprintf(&b, "Report:\n%s\n", body)

	out, err := textgen.GenerateWithRetry(ctx, v.gen, types.RoleCitationVerifier, b.String(), 0)
	if err != nil {
		v.logger.Warn("citation verification unavailable, passing draft through", zap.Error(err))
		return VerificationResult{}
	}

	var verdicts []CitationVerdict
	if err := json.Unmarshal([]byte(textgen.CleanJSONBlock(out)), &verdicts); err != nil {
		v.logger.Warn("citation verdicts unparseable, passing draft through", zap.Error(err))
		return VerificationResult{}
	}

	result := VerificationResult{Verdicts: verdicts}
	var disputed []string
	for _, verdict := range verdicts {
		if strings.EqualFold(verdict.Status, "disputed") {
			disputed = append(disputed, verdict.Claim)
		}
	}
	if len(disputed) > 0 {
		result.NeedsRevision = true
		result.Feedback = FeedbackRevise + ": the following claims are disputed by their cited sources: " +
			strings.Join(disputed, "; ")
	}

	v.logger.Info("citations verified",
		zap.Int("verdicts", len(verdicts)),
		zap.Int("disputed", len(disputed)))
	return result
}
