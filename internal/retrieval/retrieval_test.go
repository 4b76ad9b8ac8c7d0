// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/pkg/types"
)

// fakeProvider returns a canned result set for every query. The call
// counter is atomic because gather runs providers concurrently.
type fakeProvider struct {
	name    string
	sources []types.Source
	err     error
	calls   atomic.Int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Search(ctx context.Context, query string, limit int) ([]types.Source, error) {
	p.calls.Add(1)
	return p.sources, p.err
}

// scriptedGenerator returns canned responses in order.
type scriptedGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (g *scriptedGenerator) Generate(ctx context.Context, role, prompt string) (string, error) {
	i := g.calls
	g.calls++
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	return g.responses[i], err
}

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name        string
		in          []types.Source
		wantKept    int
		wantRemoved int
	}{
		{
			name: "distinct sources survive",
			in: []types.Source{
				{Title: "A", URL: "https://x/a"},
				{Title: "B", URL: "https://x/b"},
			},
			wantKept:    2,
			wantRemoved: 0,
		},
		{
			name: "case and whitespace variants collapse",
			in: []types.Source{
				{Title: "Deep Learning", URL: "https://x/a"},
				{Title: "  deep learning ", URL: "HTTPS://X/A"},
			},
			wantKept:    1,
			wantRemoved: 1,
		},
		{
			name:        "empty input",
			in:          nil,
			wantKept:    0,
			wantRemoved: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, removed := Deduplicate(tt.in)
			assert.Len(t, got, tt.wantKept)
			assert.Equal(t, tt.wantRemoved, removed)
		})
	}
}

func TestDeduplicateMergesFields(t *testing.T) {
	in := []types.Source{
		{Title: "A", URL: "https://x/a", Provider: "openalex", RelevanceScore: 0.4},
		{Title: "A", URL: "https://x/a", Provider: "tavily", Abstract: "full text", Year: 2021, RelevanceScore: 0.9},
	}
	got, removed := Deduplicate(in)
	require.Len(t, got, 1)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "full text", got[0].Abstract)
	assert.Equal(t, 2021, got[0].Year)
	assert.InDelta(t, 0.9, got[0].RelevanceScore, 1e-9)
	assert.Equal(t, "openalex,tavily", got[0].Provider)
}

func TestDeduplicateIdempotent(t *testing.T) {
	in := []types.Source{
		{Title: "A", URL: "https://x/a"},
		{Title: "A", URL: "https://x/a"},
		{Title: "B", URL: "https://x/b"},
	}
	once, _ := Deduplicate(in)
	twice, removed := Deduplicate(once)
	assert.Equal(t, 0, removed)
	assert.Equal(t, once, twice)
}

func TestRetrieve(t *testing.T) {
	logger := zap.NewNop()

	t.Run("full pass without cache", func(t *testing.T) {
		provider := &fakeProvider{name: "fake", sources: []types.Source{
			{Title: "Quantum computing advances", URL: "https://x/a", Abstract: "quantum computing"},
			{Title: "Unrelated gardening tips", URL: "https://x/b", Abstract: "flowers"},
		}}
		gen := &scriptedGenerator{responses: []string{
			`["quantum computing"]`, // fan-out
			`{"0": 0.9, "1": 0.1}`,  // batch relevance
		}}

		engine := NewEngine([]Provider{provider}, gen, nil, types.RetrievalConfig{TopK: 5}, logger)
		got, err := engine.Retrieve(context.Background(), "quantum computing")
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "Quantum computing advances", got[0].Title)
		assert.Equal(t, int32(1), provider.calls.Load())
	})

	t.Run("fan-out failure falls back to topic", func(t *testing.T) {
		provider := &fakeProvider{name: "fake", sources: []types.Source{
			{Title: "Quantum paper", URL: "https://x/a"},
		}}
		gen := &scriptedGenerator{
			responses: []string{"", `{"0": 0.8}`},
			errs:      []error{errors.New("quota"), nil},
		}

		engine := NewEngine([]Provider{provider}, gen, nil, types.RetrievalConfig{}, logger)
		got, err := engine.Retrieve(context.Background(), "quantum")
		require.NoError(t, err)
		assert.NotEmpty(t, got)
		assert.Equal(t, int32(1), provider.calls.Load()) // single query, single provider
	})

	t.Run("provider failure is not fatal", func(t *testing.T) {
		broken := &fakeProvider{name: "broken", err: errors.New("timeout")}
		working := &fakeProvider{name: "working", sources: []types.Source{
			{Title: "Quantum result", URL: "https://x/a"},
		}}
		gen := &scriptedGenerator{responses: []string{`["quantum"]`, `{"0": 0.9}`}}

		engine := NewEngine([]Provider{broken, working}, gen, nil, types.RetrievalConfig{}, logger)
		got, err := engine.Retrieve(context.Background(), "quantum")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("batch failure falls back to per-candidate scoring", func(t *testing.T) {
		provider := &fakeProvider{name: "fake", sources: []types.Source{
			{Title: "Quantum paper", URL: "https://x/a", Abstract: "quantum"},
		}}
		gen := &scriptedGenerator{
			responses: []string{`["quantum"]`, "not a score map", "0.85"},
		}

		engine := NewEngine([]Provider{provider}, gen, nil, types.RetrievalConfig{}, logger)
		got, err := engine.Retrieve(context.Background(), "quantum")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 0.85, got[0].RelevanceScore, 1e-9)
	})

	t.Run("empty topic", func(t *testing.T) {
		engine := NewEngine([]Provider{&fakeProvider{name: "fake"}}, &scriptedGenerator{responses: []string{""}}, nil, types.RetrievalConfig{}, logger)
		_, err := engine.Retrieve(context.Background(), "   ")
		assert.Error(t, err)
	})

	t.Run("no providers", func(t *testing.T) {
		engine := NewEngine(nil, &scriptedGenerator{responses: []string{""}}, nil, types.RetrievalConfig{}, logger)
		_, err := engine.Retrieve(context.Background(), "quantum")
		assert.Error(t, err)
	})
}

func TestRetrieveCacheHits(t *testing.T) {
	logger := zap.NewNop()

	t.Run("versioned hit is returned as stored", func(t *testing.T) {
		cache, _ := newTestCache(t)
		provider := &fakeProvider{name: "fake"}
		stored := []types.Source{
			{Title: "Cached paper", URL: "https://x/a", RelevanceScore: 0.9, QualityScore: 9},
		}
		cache.Set(context.Background(), "quantum", stored, "llm_batch_relevance")

		engine := NewEngine([]Provider{provider}, &scriptedGenerator{responses: []string{""}}, cache, types.RetrievalConfig{}, logger)
		got, err := engine.Retrieve(context.Background(), "quantum")
		require.NoError(t, err)
		assert.Equal(t, stored, got)
		assert.Equal(t, int32(0), provider.calls.Load())
	})

	t.Run("legacy bare list is reranked through the ladder", func(t *testing.T) {
		cache, mr := newTestCache(t)
		ctx := context.Background()

		year := time.Now().Year()
		bare, err := json.Marshal([]types.Source{
			{Title: "Strong A", URL: "https://nature.com/a", RelevanceScore: 0.9, Year: year, CitationCount: 600},
			{Title: "Strong B", URL: "https://x/b", RelevanceScore: 0.9},
			{Title: "Strong C", URL: "https://x/c", RelevanceScore: 0.85},
			{Title: "Weak D", URL: "https://x/d", RelevanceScore: 0.05},
			{Title: "Weak E", URL: "https://x/e", RelevanceScore: 0.02},
		})
		require.NoError(t, err)
		require.NoError(t, mr.Set("sources:old quantum", string(bare)))

		provider := &fakeProvider{name: "fake"}
		engine := NewEngine([]Provider{provider}, &scriptedGenerator{responses: []string{""}}, cache, types.RetrievalConfig{}, logger)

		got, err := engine.Retrieve(ctx, "old quantum")
		require.NoError(t, err)
		assert.Equal(t, int32(0), provider.calls.Load())

		// Below-ladder entries are dropped and the survivors carry
		// composite scores, best first.
		require.Len(t, got, 3)
		assert.Equal(t, "Strong A", got[0].Title)
		for _, s := range got {
			assert.Greater(t, s.QualityScore, 0.0)
			assert.GreaterOrEqual(t, s.RelevanceScore, 0.1)
		}

		// The entry is rewritten in the versioned envelope.
		upgraded, legacy, ok := cache.Get(ctx, "old quantum")
		require.True(t, ok)
		assert.False(t, legacy)
		assert.Equal(t, got, upgraded)
	})
}

func TestRetrieveFanOutCap(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	gen := &scriptedGenerator{responses: []string{
		`["q1","q2","q3","q4","q5","q6","q7"]`,
	}}

	engine := NewEngine([]Provider{provider}, gen, nil, types.RetrievalConfig{}, zap.NewNop())
	_, err := engine.Retrieve(context.Background(), "broad topic")
	require.NoError(t, err)
	// Seven derived queries are capped to five provider calls.
	assert.Equal(t, int32(5), provider.calls.Load())
}
