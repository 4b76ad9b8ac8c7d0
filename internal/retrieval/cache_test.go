// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/pkg/types"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewCache(types.CacheConfig{Addr: mr.Addr(), TTL: time.Hour}, zap.NewNop())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	sources := []types.Source{
		{Title: "A", URL: "https://x/a", RelevanceScore: 0.9},
		{Title: "B", URL: "https://x/b", RelevanceScore: 0.7},
	}

	_, _, ok := c.Get(ctx, "quantum computing")
	assert.False(t, ok)

	c.Set(ctx, "quantum computing", sources, "llm_batch_relevance")

	got, legacy, ok := c.Get(ctx, "quantum computing")
	require.True(t, ok)
	assert.False(t, legacy)
	assert.Equal(t, sources, got)
}

func TestCacheKeyNormalization(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "Quantum   Computing", []types.Source{{Title: "A"}}, "test")

	got, _, ok := c.Get(ctx, "  quantum computing ")
	require.True(t, ok)
	assert.Equal(t, "A", got[0].Title)
}

func TestCacheLegacyBareListFormat(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	legacyRaw, err := json.Marshal([]types.Source{{Title: "Old entry", URL: "https://x/old"}})
	require.NoError(t, err)
	require.NoError(t, mr.Set("sources:old topic", string(legacyRaw)))

	got, legacy, ok := c.Get(ctx, "old topic")
	require.True(t, ok)
	assert.True(t, legacy)
	require.Len(t, got, 1)
	assert.Equal(t, "Old entry", got[0].Title)
}

func TestCacheFormatMismatchIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("sources:bad topic", `{"something": "else"}`))

	_, _, ok := c.Get(ctx, "bad topic")
	assert.False(t, ok)

	require.NoError(t, mr.Set("sources:worse topic", "not json at all"))
	_, _, ok = c.Get(ctx, "worse topic")
	assert.False(t, ok)
}

func TestCacheTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "topic", []types.Source{{Title: "A"}}, "test")

	ttl := mr.TTL("sources:topic")
	assert.Equal(t, time.Hour, ttl)

	mr.FastForward(2 * time.Hour)
	_, _, ok := c.Get(ctx, "topic")
	assert.False(t, ok)
}

func TestNormalizeTopic(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Quantum Computing", "quantum computing"},
		{"  spaced   out  ", "spaced out"},
		{"already normal", "already normal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTopic(tt.in))
	}
}
