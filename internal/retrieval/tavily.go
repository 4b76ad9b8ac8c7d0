// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pdiddy/report-writer/internal/httputil"
	"github.com/pdiddy/report-writer/pkg/types"
)

// tavilySearchBase is the Tavily search endpoint. Declared as a var so
// tests can substitute an httptest server.
var tavilySearchBase = "https://api.tavily.com/search"

// TavilyProvider queries the Tavily web search API.
type TavilyProvider struct {
	Client *http.Client
	Cfg    types.RetrievalConfig
}

// Name returns the provider identifier.
func (p *TavilyProvider) Name() string { return "tavily" }

// Search queries Tavily and returns candidate sources. Web results carry
// page excerpts as abstracts and usually no DOI; the publication year is
// parsed from the published date when present.
func (p *TavilyProvider) Search(ctx context.Context, query string, limit int) ([]types.Source, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Tavily query")
	}
	if p.Cfg.TavilyAPIKey == "" {
		return nil, fmt.Errorf("Tavily API key not configured")
	}
	if limit <= 0 {
		limit = 10
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      p.Cfg.TavilyAPIKey,
		Query:       query,
		SearchDepth: "advanced",
		MaxResults:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding Tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilySearchBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Tavily API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tavily API returned HTTP %d", resp.StatusCode)
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("parsing Tavily response: %w", err)
	}

	var sources []types.Source
	for _, r := range tr.Results {
		s := types.Source{
			Title:    r.Title,
			Abstract: r.Content,
			URL:      r.URL,
			Provider: "tavily",
			Year:     parseYear(r.PublishedDate),
		}
		if r.Author != "" {
			s.Authors = []string{r.Author}
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// parseYear extracts the year from an ISO-style date string; 0 when the
// date is absent or malformed.
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < 1000 {
		return 0
	}
	return year
}

// Tavily API JSON structures.
type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date"`
	Author        string `json:"author"`
}
