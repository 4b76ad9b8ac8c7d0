// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/report-writer/pkg/types"
)

func TestTavilySearch(t *testing.T) {
	var gotReq tavilyRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tavilyResponse{Results: []tavilyResult{
			{
				Title:         "Quantum computing explained",
				Content:       "An overview of qubits.",
				URL:           "https://example.com/quantum",
				PublishedDate: "2024-03-15",
				Author:        "Jane Doe",
			},
			{
				Title:   "Undated page",
				Content: "No date here.",
				URL:     "https://example.com/undated",
			},
		}})
	}))
	defer ts.Close()

	orig := tavilySearchBase
	tavilySearchBase = ts.URL
	t.Cleanup(func() { tavilySearchBase = orig })

	p := &TavilyProvider{
		Client: ts.Client(),
		Cfg: types.RetrievalConfig{
			HTTPConfig:   types.HTTPConfig{UserAgent: "report-writer/test"},
			TavilyAPIKey: "tvly_test",
		},
	}

	got, err := p.Search(context.Background(), "quantum computing", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "tvly_test", gotReq.APIKey)
	assert.Equal(t, "quantum computing", gotReq.Query)
	assert.Equal(t, "advanced", gotReq.SearchDepth)
	assert.Equal(t, 5, gotReq.MaxResults)

	first := got[0]
	assert.Equal(t, "Quantum computing explained", first.Title)
	assert.Equal(t, "An overview of qubits.", first.Abstract)
	assert.Equal(t, 2024, first.Year)
	assert.Equal(t, []string{"Jane Doe"}, first.Authors)
	assert.Equal(t, "tavily", first.Provider)

	second := got[1]
	assert.Zero(t, second.Year)
	assert.Empty(t, second.Authors)
}

func TestTavilySearchErrors(t *testing.T) {
	t.Run("missing API key", func(t *testing.T) {
		p := &TavilyProvider{Client: http.DefaultClient}
		_, err := p.Search(context.Background(), "anything", 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key")
	})

	t.Run("empty query", func(t *testing.T) {
		p := &TavilyProvider{Client: http.DefaultClient, Cfg: types.RetrievalConfig{TavilyAPIKey: "k"}}
		_, err := p.Search(context.Background(), " ", 5)
		assert.Error(t, err)
	})
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2024-03-15", 2024},
		{"1999", 1999},
		{"", 0},
		{"n/a", 0},
		{"0001-01-01", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseYear(tt.in), "input %q", tt.in)
	}
}
