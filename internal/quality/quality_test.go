// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/pkg/types"
)

// scriptedGenerator returns canned responses in order, repeating the last.
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

func validConfig() types.QualityConfig {
	return types.DefaultQualityConfig()
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.QualityConfig)
		errMsg string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*types.QualityConfig) {},
		},
		{
			name:   "threshold above one",
			mutate: func(c *types.QualityConfig) { c.Thresholds["outline_quality_threshold"] = 1.5 },
			errMsg: "between 0.0 and 1.0",
		},
		{
			name:   "threshold below zero",
			mutate: func(c *types.QualityConfig) { c.Thresholds["outline_quality_threshold"] = -0.1 },
			errMsg: "between 0.0 and 1.0",
		},
		{
			name:   "weights must sum to one",
			mutate: func(c *types.QualityConfig) { c.StageWeights["outline_quality"] = 0.5 },
			errMsg: "sum to 1.0",
		},
		{
			name: "weight sum within tolerance passes",
			mutate: func(c *types.QualityConfig) {
				// 0.04 over: inside the 0.05 tolerance band.
				c.StageWeights["outline_quality"] = 0.19
			},
		},
		{
			name:   "zero revision cycles",
			mutate: func(c *types.QualityConfig) { c.Pipeline.MaxRevisionCycles = 0 },
			errMsg: "max_revision_cycles",
		},
		{
			name:   "empty weight table is allowed",
			mutate: func(c *types.QualityConfig) { c.StageWeights = nil },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cerr *ConfigError
			assert.ErrorAs(t, err, &cerr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewPipelineFailsFast(t *testing.T) {
	cfg := validConfig()
	cfg.Thresholds["content_quality_threshold"] = 2.0

	_, err := NewPipeline(&scriptedGenerator{responses: []string{""}}, cfg, zap.NewNop())
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestNewPipelineNilLogger(t *testing.T) {
	p, err := NewPipeline(&scriptedGenerator{responses: []string{""}}, validConfig(), nil)
	require.NoError(t, err)

	report := p.Start("topic", "")
	assert.NotEmpty(t, report.WorkflowID)
}

func stageReport(name string, score float64, passed bool) types.StageQualityReport {
	return types.StageQualityReport{StageName: name, OverallScore: score, Passed: passed}
}

func TestAggregate(t *testing.T) {
	weights := map[string]float64{"a": 0.5, "b": 0.5}

	t.Run("weighted average", func(t *testing.T) {
		report := &types.SystemQualityReport{StageReports: []types.StageQualityReport{
			stageReport("a", 1.0, true),
			stageReport("b", 0.5, true),
		}}
		Aggregate(weights, report)
		assert.InDelta(t, 0.75, report.OverallScore, 1e-9)
		assert.Equal(t, 2, report.GatesPassed)
		assert.Equal(t, 2, report.GatesTotal)
	})

	t.Run("unknown stage gets residual weight", func(t *testing.T) {
		report := &types.SystemQualityReport{StageReports: []types.StageQualityReport{
			stageReport("a", 1.0, true),
			stageReport("mystery", 0.0, false),
		}}
		Aggregate(weights, report)
		// (1.0*0.5 + 0.0*0.1) / 0.6
		assert.InDelta(t, 0.8333, report.OverallScore, 1e-3)
		assert.Equal(t, 1, report.GatesPassed)
	})

	t.Run("no stage reports", func(t *testing.T) {
		report := &types.SystemQualityReport{}
		Aggregate(weights, report)
		assert.Zero(t, report.OverallScore)
		assert.Zero(t, report.GatesTotal)
	})
}

func TestRecommendationBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, "EXCELLENT"},
		{0.85, "EXCELLENT"},
		{0.8, "GOOD"},
		{0.75, "GOOD"},
		{0.65, "ACCEPTABLE"},
		{0.60, "ACCEPTABLE"},
		{0.59, "NEEDS_IMPROVEMENT"},
		{0.0, "NEEDS_IMPROVEMENT"},
	}
	for _, tt := range tests {
		report := &types.SystemQualityReport{StageReports: []types.StageQualityReport{
			stageReport("a", tt.score, true),
		}}
		Aggregate(map[string]float64{"a": 1.0}, report)
		assert.Contains(t, report.Recommendation, tt.want, "score %v", tt.score)
	}
}

func TestAddStageReportReplacesOnReassessment(t *testing.T) {
	p, err := NewPipeline(&scriptedGenerator{responses: []string{""}}, validConfig(), zap.NewNop())
	require.NoError(t, err)
	p.Start("topic", "wf-1")

	p.addStageReport(stageReport("outline_quality", 0.4, false))
	p.addStageReport(stageReport("outline_quality", 0.9, true))

	report := p.Report()
	require.Len(t, report.StageReports, 1)
	assert.InDelta(t, 0.9, report.StageReports[0].OverallScore, 1e-9)
	assert.Equal(t, 1, report.GatesPassed)
}

func TestShouldTerminateEarly(t *testing.T) {
	newStarted := func(cfg types.QualityConfig) *Pipeline {
		p, err := NewPipeline(&scriptedGenerator{responses: []string{""}}, cfg, zap.NewNop())
		require.NoError(t, err)
		p.Start("topic", "wf-1")
		return p
	}

	t.Run("below threshold", func(t *testing.T) {
		p := newStarted(validConfig())
		p.addStageReport(stageReport("a", 0.2, false))
		assert.False(t, p.ShouldTerminateEarly())
	})

	t.Run("at threshold", func(t *testing.T) {
		p := newStarted(validConfig())
		p.addStageReport(stageReport("a", 0.2, false))
		p.addStageReport(stageReport("b", 0.3, false))
		assert.True(t, p.ShouldTerminateEarly())
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.EnableEarlyTermination = false
		p := newStarted(cfg)
		p.addStageReport(stageReport("a", 0.2, false))
		p.addStageReport(stageReport("b", 0.3, false))
		assert.False(t, p.ShouldTerminateEarly())
	})

	t.Run("before start", func(t *testing.T) {
		p, err := NewPipeline(&scriptedGenerator{responses: []string{""}}, validConfig(), zap.NewNop())
		require.NoError(t, err)
		assert.False(t, p.ShouldTerminateEarly())
	})
}

func TestFinalize(t *testing.T) {
	p, err := NewPipeline(&scriptedGenerator{responses: []string{""}}, validConfig(), zap.NewNop())
	require.NoError(t, err)

	_, err = p.Finalize()
	assert.Error(t, err, "finalize before start")

	p.Start("topic", "")
	report := p.Report()
	assert.NotEmpty(t, report.WorkflowID, "empty workflow ID gets generated")
	assert.False(t, report.Finalized())

	final, err := p.Finalize()
	require.NoError(t, err)
	assert.True(t, final.Finalized())
}

func TestThresholdDefault(t *testing.T) {
	p, err := NewPipeline(&scriptedGenerator{responses: []string{""}}, validConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.InDelta(t, 0.8, p.Threshold("content_quality_threshold"), 1e-9)
	assert.InDelta(t, 0.7, p.Threshold("never_configured"), 1e-9)
}
