package s2_signals

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/rebalance"
	"github.com/wonny/momentum-lab/pkg/logger"
)

// tradingDays returns n consecutive business days from 2020-01-01
func tradingDays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	cur := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if cur.Weekday() != time.Saturday && cur.Weekday() != time.Sunday {
			out = append(out, cur)
		}
		cur = cur.AddDate(0, 0, 1)
	}
	return out
}

// buildPanel makes a close-only panel; a NaN price means no bar that day
func buildPanel(t *testing.T, days int, prices map[string]func(k int) float64) *contracts.PricePanel {
	t.Helper()
	cal := tradingDays(days)
	series := make(map[string][]contracts.DatedBar, len(prices))
	for symbol, fn := range prices {
		for k, d := range cal {
			p := fn(k)
			if math.IsNaN(p) {
				continue
			}
			series[symbol] = append(series[symbol], contracts.DatedBar{
				Date: d,
				Bar:  contracts.Bar{Open: p, High: p, Low: p, Close: p},
			})
		}
	}
	panel, err := contracts.NewPricePanel(series)
	require.NoError(t, err)
	return panel
}

func flat() func(int) float64 {
	return func(int) float64 { return 1.0 }
}

func threeMonthConfig() Config {
	cfg := DefaultConfig()
	cfg.Horizons = []contracts.Horizon{contracts.Horizon3M}
	cfg.TopN = 5
	return cfg
}

func TestBuilder_LinearGrowerRanksFirst(t *testing.T) {
	cfg := threeMonthConfig()
	window := contracts.Horizon3M.Days()
	days := cfg.SkipDays + window + 1

	prices := map[string]func(int) float64{
		"A": func(k int) float64 {
			if k > window {
				return 1.2
			}
			return 1.0 + 0.2*float64(k)/float64(window)
		},
	}
	for _, s := range []string{"B", "C", "D", "E", "F", "G", "H", "I", "J"} {
		prices[s] = flat()
	}
	panel := buildPanel(t, days, prices)

	b, err := NewBuilder(cfg, logger.Nop())
	require.NoError(t, err)

	last := panel.Date(panel.Len() - 1)
	cands, err := b.CrossSection(panel, last)
	require.NoError(t, err)
	require.Len(t, cands, 10)

	assert.Equal(t, "A", cands[0].Symbol)
	for _, c := range cands[1:] {
		assert.Less(t, c.Composite, cands[0].Composite)
	}
	assert.InDelta(t, 0.2, cands[0].Horizons[contracts.Horizon3M].Momentum, 1e-12)

	table, _, err := b.Build(context.Background(), panel, []time.Time{last})
	require.NoError(t, err)
	require.NotEmpty(t, table.Rows)
	assert.Equal(t, 1, table.Rows[0].Rank)
	assert.Equal(t, "A", table.Rows[0].Symbol)
	assert.Len(t, table.Rows, cfg.TopN)
}

func TestBuilder_InsufficientHistoryExcluded(t *testing.T) {
	cfg := threeMonthConfig()
	need := cfg.SkipDays + contracts.Horizon3M.Days()
	panel := buildPanel(t, need+1, map[string]func(int) float64{
		"A": flat(),
		"B": func(k int) float64 {
			if k < 5 {
				return math.NaN()
			}
			return 1
		},
	})

	b, err := NewBuilder(cfg, logger.Nop())
	require.NoError(t, err)

	early := panel.Date(need - 1)
	last := panel.Date(need)
	table, report, err := b.Build(context.Background(), panel, []time.Time{early, last})
	require.NoError(t, err)

	// early: both lack history; last: only B lacks history
	assert.Equal(t, 3, report.Rejections[RejectInsufficientHistory])
	assert.Equal(t, []time.Time{early}, report.EmptyDates)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "A", table.Rows[0].Symbol)
	assert.True(t, table.Rows[0].Date.Equal(last))
}

func TestBuilder_NoBarRejected(t *testing.T) {
	cfg := threeMonthConfig()
	days := cfg.SkipDays + contracts.Horizon3M.Days() + 1
	panel := buildPanel(t, days, map[string]func(int) float64{
		"A": flat(),
		"B": func(k int) float64 {
			if k == days-1 {
				return math.NaN()
			}
			return 1
		},
	})

	b, _ := NewBuilder(cfg, logger.Nop())
	_, report, err := b.Build(context.Background(), panel, []time.Time{panel.Date(days - 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rejections[RejectNoBar])
}

func TestBuilder_TieBreakBySymbol(t *testing.T) {
	cfg := threeMonthConfig()
	days := cfg.SkipDays + contracts.Horizon3M.Days() + 1
	grow := func(k int) float64 { return 1 + 0.001*float64(k) }
	panel := buildPanel(t, days, map[string]func(int) float64{
		"ZED":   grow,
		"ALPHA": grow,
		"MID":   flat(),
	})

	b, _ := NewBuilder(cfg, logger.Nop())
	cands, err := b.CrossSection(panel, panel.Date(days-1))
	require.NoError(t, err)

	assert.Equal(t, []string{"ALPHA", "ZED", "MID"}, []string{cands[0].Symbol, cands[1].Symbol, cands[2].Symbol})
}

func randomWalkPanel(t *testing.T, symbols, days int, seed int64) *contracts.PricePanel {
	rng := rand.New(rand.NewSource(seed))
	prices := make(map[string]func(int) float64, symbols)
	for s := 0; s < symbols; s++ {
		path := make([]float64, days)
		p := 100.0
		drift := rng.NormFloat64() * 0.001
		for k := range path {
			p *= 1 + drift + rng.NormFloat64()*0.02
			path[k] = p
		}
		name := string(rune('A'+s/26)) + string(rune('A'+s%26))
		prices[name] = func(k int) float64 { return path[k] }
	}
	return buildPanel(t, days, prices)
}

func TestBuilder_DenseRanksAndZScores(t *testing.T) {
	panel := randomWalkPanel(t, 40, 320, 42)
	cfg := Config{
		SkipDays:   5,
		Horizons:   []contracts.Horizon{contracts.Horizon6M, contracts.Horizon3M},
		VolFloor:   0.0005,
		VolPower:   1,
		TopN:       10,
		ExtraDepth: 3,
	}
	b, err := NewBuilder(cfg, logger.Nop())
	require.NoError(t, err)

	dates := rebalance.Dates(panel.Dates(), rebalance.DefaultConfig())
	table, report, err := b.Build(context.Background(), panel, dates)
	require.NoError(t, err)
	require.Greater(t, report.SignalDates, 0)

	warnings, err := ValidateTable(table, cfg.Depth())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	for d, rows := range table.ByDate() {
		assert.Len(t, rows, cfg.Depth(), "date %s", d)
		for i, row := range rows {
			assert.Equal(t, i+1, row.Rank)
			if i > 0 {
				assert.GreaterOrEqual(t, rows[i-1].CompositeScore, row.CompositeScore)
			}
		}
	}

	cands, err := b.CrossSection(panel, panel.Date(panel.Len()-1))
	require.NoError(t, err)
	require.Len(t, cands, 40)

	for _, h := range cfg.Horizons {
		zs := make([]float64, len(cands))
		for i, c := range cands {
			zs[i] = c.Horizons[h].ZScore
		}
		mean, std := meanStd(zs)
		assert.InDelta(t, 0, mean, 1e-9, "horizon %d mean", h)
		assert.InDelta(t, 1, std, 1e-9, "horizon %d std", h)
	}

	composite := make([]float64, len(cands))
	for i, c := range cands {
		composite[i] = c.Composite
	}
	mean, _ := meanStd(composite)
	assert.InDelta(t, 0, mean, 1e-9)
}

func TestBuilder_Deterministic(t *testing.T) {
	panel := randomWalkPanel(t, 15, 200, 9)
	cfg := threeMonthConfig()
	b, _ := NewBuilder(cfg, logger.Nop())
	dates := rebalance.Dates(panel.Dates(), rebalance.DefaultConfig())

	first, _, err := b.Build(context.Background(), panel, dates)
	require.NoError(t, err)
	second, _, err := b.Build(context.Background(), panel, dates)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuilder_CancelledContext(t *testing.T) {
	panel := randomWalkPanel(t, 5, 120, 1)
	b, _ := NewBuilder(threeMonthConfig(), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := b.Build(ctx, panel, panel.Dates())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative skip", func(c *Config) { c.SkipDays = -1 }},
		{"no horizons", func(c *Config) { c.Horizons = nil }},
		{"bad horizon", func(c *Config) { c.Horizons = []contracts.Horizon{9} }},
		{"duplicate horizon", func(c *Config) { c.Horizons = []contracts.Horizon{3, 3} }},
		{"zero floor", func(c *Config) { c.VolFloor = 0 }},
		{"negative power", func(c *Config) { c.VolPower = -1 }},
		{"zero top", func(c *Config) { c.TopN = 0 }},
	}

	assert.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), contracts.ErrInvalidConfig)
		})
	}
}

func meanStd(xs []float64) (float64, float64) {
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
