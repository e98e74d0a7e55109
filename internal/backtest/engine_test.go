package backtest

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/audit"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/rebalance"
	"github.com/wonny/momentum-lab/internal/s0_data/quality"
	"github.com/wonny/momentum-lab/internal/s2_signals"
	"github.com/wonny/momentum-lab/pkg/logger"
)

func walkPanel(t *testing.T, symbols, days int, seed int64) *contracts.PricePanel {
	rng := rand.New(rand.NewSource(seed))
	paths := make(map[string]func(int) float64, symbols)
	for s := 0; s < symbols; s++ {
		path := make([]float64, days)
		p := 100.0
		drift := rng.NormFloat64() * 0.002
		for k := range path {
			p *= 1 + drift + rng.NormFloat64()*0.015
			path[k] = p
		}
		paths["S"+string(rune('A'+s/26))+string(rune('A'+s%26))] = func(k int) float64 { return path[k] }
	}
	return pricePanel(t, days, paths)
}

func engineConfig() RunConfig {
	sig := s2_signals.DefaultConfig()
	sig.SkipDays = 5
	sig.Horizons = []contracts.Horizon{contracts.Horizon3M}

	port := DefaultConfig()
	port.TopN = 5
	port.ExitBuffer = 3

	return RunConfig{Signals: sig, Rebalance: rebalance.DefaultConfig(), Portfolio: port}
}

func TestEngine_RunBaseline(t *testing.T) {
	panel := walkPanel(t, 20, 300, 11)
	cfg := engineConfig()

	out, err := NewEngine(logger.Nop()).Run(context.Background(), panel, nil, cfg)
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	require.NotNil(t, out.Metrics)

	assert.Equal(t, out.Result.RunID, out.RunID)
	assert.Greater(t, out.Result.RebalanceCount, 5)
	assert.NotEmpty(t, out.Result.Trades)

	for _, rows := range out.Signals.ByDate() {
		assert.Len(t, rows, cfg.Portfolio.TopN+cfg.Portfolio.ExitBuffer)
	}
	assert.InDelta(t, out.Result.FinalEquity(), out.Metrics.FinalEquity, 1e-9)
	assert.Empty(t, out.TableWarnings)
}

func TestEngine_ReplayMatchesEquityCurve(t *testing.T) {
	panel := walkPanel(t, 25, 320, 5)

	for _, sc := range Scenarios {
		t.Run(string(sc), func(t *testing.T) {
			cfg := engineConfig()
			cfg.Portfolio.Overlay.Scenario = sc
			cfg.Portfolio.Overlay.VolTrigger.Lookback = 20
			cfg.Portfolio.Overlay.Cooldown.DrawdownTrigger = 0.05

			out, err := NewEngine(logger.Nop()).Run(context.Background(), panel, nil, cfg)
			require.NoError(t, err)

			curve := out.Result.EquityCurve

			replayDates := panel.Dates()[len(panel.Dates())-len(curve):]
			replayed, err := audit.ReplayEquity(cfg.Portfolio.InitialCapital, out.Result.Trades, panel, replayDates)
			require.NoError(t, err)
			require.Len(t, replayed, len(curve))

			for i := range curve {
				assert.InDelta(t, curve[i].Equity, replayed[i], 1e-2, "date %s", curve[i].Date)
			}
		})
	}
}

func TestEngine_UniverseRestriction(t *testing.T) {
	panel := walkPanel(t, 20, 260, 2)
	cfg := engineConfig()
	cfg.Universe = []string{"SAA", "SAB", "SAC", "SAD", "SAE", "SAF", "SAG"}

	out, err := NewEngine(logger.Nop()).Run(context.Background(), panel, nil, cfg)
	require.NoError(t, err)

	allowed := make(map[string]bool)
	for _, s := range cfg.Universe {
		allowed[s] = true
	}
	for _, row := range out.Signals.Rows {
		assert.True(t, allowed[row.Symbol], row.Symbol)
	}
}

func TestEngine_InvalidConfig(t *testing.T) {
	panel := walkPanel(t, 5, 100, 1)
	cfg := engineConfig()
	cfg.Portfolio.TopN = 0

	_, err := NewEngine(logger.Nop()).Run(context.Background(), panel, nil, cfg)
	assert.ErrorIs(t, err, contracts.ErrInvalidConfig)

	cfg = engineConfig()
	cfg.Rebalance.EveryWeeks = 0
	_, err = NewEngine(logger.Nop()).Run(context.Background(), panel, nil, cfg)
	assert.Error(t, err)
}

func TestEngine_NoEligibleDates(t *testing.T) {
	panel := walkPanel(t, 5, 40, 1)

	_, err := NewEngine(logger.Nop()).Run(context.Background(), panel, nil, engineConfig())
	assert.ErrorIs(t, err, contracts.ErrNoSignals)
}

func TestEngine_QualityGateOnGappedPanel(t *testing.T) {
	base := walkPanel(t, 12, 260, 9)
	paths := make(map[string]func(int) float64, len(base.Symbols()))
	for _, s := range base.Symbols() {
		closes, idx := base.Closes(s)
		byIndex := make(map[int]float64, len(idx))
		for j, i := range idx {
			byIndex[i] = closes[j]
		}
		gapped := s == "SAC"
		paths[s] = func(k int) float64 {
			if gapped && k >= 150 && k < 160 {
				return math.NaN()
			}
			return byIndex[k]
		}
	}
	panel := pricePanel(t, 260, paths)

	t.Run("lenient gate reports gaps", func(t *testing.T) {
		out, err := NewEngine(logger.Nop()).Run(context.Background(), panel, nil, engineConfig())
		require.NoError(t, err)
		require.NotNil(t, out.Quality)
		require.Len(t, out.Quality.Gaps, 1)
		assert.Equal(t, "SAC", out.Quality.Gaps[0].Symbol)
		assert.Equal(t, 10, out.Quality.Gaps[0].Days)
	})

	t.Run("strict gate rejects before simulating", func(t *testing.T) {
		cfg := engineConfig()
		strict := quality.DefaultConfig()
		strict.Strict = true
		cfg.Quality = &strict

		out, err := NewEngine(logger.Nop()).Run(context.Background(), panel, nil, cfg)
		assert.ErrorIs(t, err, contracts.ErrDataGap)
		assert.Nil(t, out)

		_, _, _, err = NewEngine(logger.Nop()).Signals(context.Background(), panel, cfg)
		assert.ErrorIs(t, err, contracts.ErrDataGap)
	})

	t.Run("clean panel has no gaps", func(t *testing.T) {
		out, err := NewEngine(logger.Nop()).Run(context.Background(), base, nil, engineConfig())
		require.NoError(t, err)
		assert.Empty(t, out.Quality.Gaps)
	})
}
