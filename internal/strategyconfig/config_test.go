package strategyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/s0_data/quality"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "momentum_l6", cfg.Meta.StrategyID)
	assert.Equal(t, 21, cfg.Signals.SkipDays)
	assert.Equal(t, []int{12, 6, 3}, cfg.Signals.LookbacksMonths)
	assert.Equal(t, 0.0005, cfg.Signals.VolFloor)
	assert.Equal(t, "friday", cfg.Rebalance.Anchor)
	assert.Equal(t, 25, cfg.Portfolio.TopN)
	assert.Nil(t, cfg.Portfolio.PnLHoldThreshold)
	assert.Equal(t, "baseline", cfg.RiskOverlay.Scenario)
	assert.Equal(t, []string{"top_n", "exit_buffer", "scenario"}, cfg.Experiment.GroupBy)
	assert.Equal(t, 10, cfg.Experiment.Churn.ExitBuffer)
	assert.Equal(t, 0.05, cfg.Experiment.Churn.PnLHoldThreshold)

	run := cfg.RunConfig()
	require.NotNil(t, run.Quality)
	assert.Equal(t, quality.DefaultConfig(), *run.Quality)

	require.NoError(t, Validate(cfg))
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
meta:
  strategy_id: l6_hyst
signals:
  lookbacks_months: [6, 3]
rebalance:
  anchor: monday
  every_weeks: 2
portfolio:
  top_n: 20
  exit_buffer: 10
  pnl_hold_threshold: 0.05
risk_overlay:
  scenario: cooldown
experiment:
  grid:
    top_ns: [10, 20]
    pnl_holds: [null, 0.05]
`))
	require.NoError(t, err)

	assert.Equal(t, "l6_hyst", cfg.Meta.StrategyID)
	assert.Equal(t, []int{6, 3}, cfg.Signals.LookbacksMonths)
	assert.Equal(t, 21, cfg.Signals.SkipDays, "untouched fields keep defaults")
	require.NotNil(t, cfg.Portfolio.PnLHoldThreshold)
	assert.Equal(t, 0.05, *cfg.Portfolio.PnLHoldThreshold)
	require.Len(t, cfg.Experiment.Grid.PnLHolds, 2)
	assert.Nil(t, cfg.Experiment.Grid.PnLHolds[0])

	run := cfg.RunConfig()
	assert.Equal(t, []contracts.Horizon{contracts.Horizon6M, contracts.Horizon3M}, run.Signals.Horizons)
	assert.Equal(t, time.Monday, run.Rebalance.Anchor)
	assert.Equal(t, 2, run.Rebalance.EveryWeeks)
	assert.Equal(t, 20, run.Portfolio.TopN)
	assert.Equal(t, 10, run.Portfolio.ExitBuffer)
	assert.Equal(t, backtest.ScenarioCooldown, run.Portfolio.Overlay.Scenario)
	assert.Equal(t, 0.25, run.Portfolio.Overlay.Cooldown.DrawdownTrigger)

	// 변환 결과는 원본 포인터를 공유하지 않음
	*run.Portfolio.PnLHoldThreshold = 0.5
	assert.Equal(t, 0.05, *cfg.Portfolio.PnLHoldThreshold)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("portfolio:\n  topn: 20\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topn")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad scenario", "risk_overlay:\n  scenario: panic\n", "risk_overlay.scenario"},
		{"bad lookback", "signals:\n  lookbacks_months: [12, 9]\n", "signals.lookbacks_months[1]"},
		{"duplicate lookback", "signals:\n  lookbacks_months: [6, 6]\n", "signals.lookbacks_months"},
		{"zero top_n", "portfolio:\n  top_n: 0\n", "portfolio.top_n"},
		{"negative buffer", "portfolio:\n  exit_buffer: -1\n", "portfolio.exit_buffer"},
		{"hold above one", "portfolio:\n  pnl_hold_threshold: 1.5\n", "portfolio.pnl_hold_threshold"},
		{"weekend anchor", "rebalance:\n  anchor: sunday\n", "rebalance.anchor"},
		{"mc range", "experiment:\n  monte_carlo:\n    top_n_min: 30\n    top_n_max: 10\n", "experiment.monte_carlo"},
		{"grid lookback", "experiment:\n  grid:\n    lookbacks: [[12], [1]]\n", "experiment.grid.lookbacks[1]"},
		{"group key", "experiment:\n  group_by: [top_n, color]\n", "experiment.group_by[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.NotEmpty(t, verr.Message)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	raw := []byte("portfolio:\n  top_n: 15\n")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	cfg, data, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
	assert.Equal(t, 15, cfg.Portfolio.TopN)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	cfg := Default()

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	again, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	cfg.Portfolio.ExitBuffer = 10
	changed, err := Hash(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, hash, changed)
}

func TestWarn(t *testing.T) {
	assert.Empty(t, Warn(Default()))

	cfg := Default()
	cfg.Signals.SkipDays = 0
	cfg.Portfolio.TopN = 5
	cfg.Portfolio.Slippage = 0.02
	cfg.Universe.SampleSize = 8
	cfg.Portfolio.ExitBuffer = 5
	hold := 0.05
	cfg.Portfolio.PnLHoldThreshold = &hold

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []string{"NO_SKIP_WINDOW", "CONCENTRATED", "HIGH_SLIPPAGE", "SMALL_UNIVERSE"}, codes)

	cfg.Portfolio.ExitBuffer = 0
	codes = codes[:0]
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "PNL_HOLD_WITHOUT_BUFFER")
}
