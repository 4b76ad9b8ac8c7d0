// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOutline(t *testing.T) {
	t.Run("initial outline", func(t *testing.T) {
		gen := &scriptedGenerator{responses: []string{`["Introduction", "Analysis", "Conclusion"]`}}
		p := NewPlanner(gen, zap.NewNop())

		outline, err := p.Outline(context.Background(), "solar power", nil, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"Introduction", "Analysis", "Conclusion"}, outline)
		assert.NotContains(t, gen.lastPrompt, "Previous outline")
	})

	t.Run("revision includes previous outline and critique", func(t *testing.T) {
		gen := &scriptedGenerator{responses: []string{`["Introduction", "Costs", "Conclusion"]`}}
		p := NewPlanner(gen, zap.NewNop())

		previous := []string{"Introduction", "Conclusion"}
		outline, err := p.Outline(context.Background(), "solar power", previous, "REVISE: missing cost analysis")
		require.NoError(t, err)
		assert.Len(t, outline, 3)
		assert.Contains(t, gen.lastPrompt, "Previous outline")
		assert.Contains(t, gen.lastPrompt, "- Introduction")
		assert.Contains(t, gen.lastPrompt, "missing cost analysis")
	})

	t.Run("unparseable response errors", func(t *testing.T) {
		gen := &scriptedGenerator{responses: []string{"[]"}}
		p := NewPlanner(gen, zap.NewNop())

		_, err := p.Outline(context.Background(), "solar power", nil, "")
		assert.Error(t, err)
	})
}
