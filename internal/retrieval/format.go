// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/report-writer/pkg/types"
)

// FormatTable writes sources as a human-readable table to w.
func FormatTable(sources []types.Source, w io.Writer) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-5s  %-6s  %s\n",
		"Rank", "Title", "Authors", "Year", "Rel", "Score", "Provider")
	fmt.Fprintln(w, strings.Repeat("-", 118))

	for i, s := range sources {
		title := s.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		year := ""
		if s.Year > 0 {
			year = fmt.Sprintf("%d", s.Year)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-5.2f  %-6.1f  %s\n",
			i+1, title, formatAuthors(s.Authors), year, s.RelevanceScore, s.QualityScore, s.Provider)
	}

	fmt.Fprintf(w, "\n%d sources\n", len(sources))
}

// FormatJSON writes sources as indented JSON to w.
func FormatJSON(sources []types.Source, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sources)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 12) + " et al."
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
