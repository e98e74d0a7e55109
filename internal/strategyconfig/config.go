package strategyconfig

import (
	"strings"
	"time"

	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/experiment"
	"github.com/wonny/momentum-lab/internal/rebalance"
	"github.com/wonny/momentum-lab/internal/s0_data/quality"
	"github.com/wonny/momentum-lab/internal/s2_signals"
)

// Config는 모멘텀 전략과 실험의 전체 설정
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Universe    Universe    `yaml:"universe" json:"universe"`
	DataQuality DataQuality `yaml:"data_quality" json:"data_quality"`
	Signals     Signals     `yaml:"signals" json:"signals"`
	Rebalance   Rebalance   `yaml:"rebalance" json:"rebalance"`
	Portfolio   Portfolio   `yaml:"portfolio" json:"portfolio"`
	RiskOverlay RiskOverlay `yaml:"risk_overlay" json:"risk_overlay"`
	Experiment  Experiment  `yaml:"experiment" json:"experiment"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id" default:"momentum_l6" validate:"required"`
	Version    string `yaml:"version" json:"version" default:"1"`
}

// Universe 투자 가능 풀
type Universe struct {
	File       string `yaml:"file" json:"file"`                                // Symbol column CSV, empty = every stored symbol
	SampleSize int    `yaml:"sample_size" json:"sample_size" validate:"gte=0"` // 0 = no sampling
	Seed       int64  `yaml:"seed" json:"seed" default:"42"`
	Benchmark  string `yaml:"benchmark" json:"benchmark"` // date,close CSV
}

// DataQuality S0: 시뮬레이션 전 가격 품질 게이트
type DataQuality struct {
	MaxGapDays   int     `yaml:"max_gap_days" json:"max_gap_days" default:"3" validate:"gte=0"`
	MaxDailyMove float64 `yaml:"max_daily_move" json:"max_daily_move" default:"1.0" validate:"gte=0"`
	Strict       bool    `yaml:"strict" json:"strict"` // 결측 구간이 있으면 실행 거부
}

// Signals S2: 모멘텀 점수화
type Signals struct {
	SkipDays        int     `yaml:"skip_days" json:"skip_days" default:"21" validate:"gte=0"`
	LookbacksMonths []int   `yaml:"lookbacks_months" json:"lookbacks_months" default:"[12,6,3]" validate:"min=1,unique,dive,oneof=3 6 12"`
	VolFloor        float64 `yaml:"vol_floor" json:"vol_floor" default:"0.0005" validate:"gt=0"`
	VolPower        float64 `yaml:"vol_power" json:"vol_power" default:"1" validate:"gte=0"`
}

// Rebalance 리밸런싱 주기
type Rebalance struct {
	Anchor     string `yaml:"anchor" json:"anchor" default:"friday" validate:"oneof=monday tuesday wednesday thursday friday"`
	EveryWeeks int    `yaml:"every_weeks" json:"every_weeks" default:"1" validate:"gte=1,lte=12"`
}

// Portfolio S5: 포트폴리오 구성
type Portfolio struct {
	TopN             int      `yaml:"top_n" json:"top_n" default:"25" validate:"gte=1"`
	ExitBuffer       int      `yaml:"exit_buffer" json:"exit_buffer" validate:"gte=0"`
	PnLHoldThreshold *float64 `yaml:"pnl_hold_threshold" json:"pnl_hold_threshold" validate:"omitempty,gte=0,lte=1"`
	InitialCapital   float64  `yaml:"initial_capital" json:"initial_capital" default:"1000000" validate:"gt=0"`
	Slippage         float64  `yaml:"slippage" json:"slippage" default:"0.002" validate:"gte=0,lt=1"`
}

// RiskOverlay 노출 조절 시나리오
type RiskOverlay struct {
	Scenario        string  `yaml:"scenario" json:"scenario" default:"baseline" validate:"oneof=baseline cooldown vol_trigger"`
	DrawdownTrigger float64 `yaml:"drawdown_trigger" json:"drawdown_trigger" default:"0.25" validate:"gt=0,lt=1"`
	CooldownWeeks   int     `yaml:"cooldown_weeks" json:"cooldown_weeks" default:"1" validate:"gte=0"`
	StagedStep      float64 `yaml:"staged_step" json:"staged_step" default:"0.25" validate:"gt=0,lte=1"`
	VolLookback     int     `yaml:"vol_lookback" json:"vol_lookback" default:"63" validate:"gte=2"`
	TargetVol       float64 `yaml:"target_vol" json:"target_vol" default:"0.15" validate:"gt=0"`
}

// Experiment 파라미터 스윕
type Experiment struct {
	Workers    int                       `yaml:"workers" json:"workers" validate:"gte=0"` // 0 = SWEEP_WORKERS
	TopK       int                       `yaml:"top_k" json:"top_k" default:"10" validate:"gte=0"`
	GroupBy    []string                  `yaml:"group_by" json:"group_by" default:"[\"top_n\",\"exit_buffer\",\"scenario\"]"`
	Grid       experiment.GridSpec       `yaml:"grid" json:"grid"`
	MonteCarlo experiment.MonteCarloSpec `yaml:"monte_carlo" json:"monte_carlo"`
	Churn      experiment.ChurnSpec      `yaml:"churn" json:"churn"`
}

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
}

// SignalConfig converts the signal section
func (c *Config) SignalConfig() s2_signals.Config {
	horizons := make([]contracts.Horizon, 0, len(c.Signals.LookbacksMonths))
	for _, m := range c.Signals.LookbacksMonths {
		horizons = append(horizons, contracts.Horizon(m))
	}
	return s2_signals.Config{
		SkipDays: c.Signals.SkipDays,
		Horizons: horizons,
		VolFloor: c.Signals.VolFloor,
		VolPower: c.Signals.VolPower,
		TopN:     c.Portfolio.TopN,
	}
}

// RebalanceConfig converts the rebalance section
func (c *Config) RebalanceConfig() rebalance.Config {
	return rebalance.Config{
		Anchor:     weekdays[strings.ToLower(c.Rebalance.Anchor)],
		EveryWeeks: c.Rebalance.EveryWeeks,
	}
}

// PortfolioConfig converts the portfolio and overlay sections
func (c *Config) PortfolioConfig() backtest.Config {
	var hold *float64
	if c.Portfolio.PnLHoldThreshold != nil {
		v := *c.Portfolio.PnLHoldThreshold
		hold = &v
	}
	return backtest.Config{
		TopN:             c.Portfolio.TopN,
		ExitBuffer:       c.Portfolio.ExitBuffer,
		PnLHoldThreshold: hold,
		Slippage:         c.Portfolio.Slippage,
		InitialCapital:   c.Portfolio.InitialCapital,
		Overlay: backtest.OverlayConfig{
			Scenario: backtest.Scenario(c.RiskOverlay.Scenario),
			Cooldown: backtest.CooldownConfig{
				DrawdownTrigger: c.RiskOverlay.DrawdownTrigger,
				CooldownWeeks:   c.RiskOverlay.CooldownWeeks,
				StagedStep:      c.RiskOverlay.StagedStep,
			},
			VolTrigger: backtest.VolTriggerConfig{
				Lookback:  c.RiskOverlay.VolLookback,
				TargetVol: c.RiskOverlay.TargetVol,
			},
		},
	}
}

// QualityConfig converts the data quality section
func (c *Config) QualityConfig() quality.Config {
	return quality.Config{
		MaxGapDays:   c.DataQuality.MaxGapDays,
		MaxDailyMove: c.DataQuality.MaxDailyMove,
		Strict:       c.DataQuality.Strict,
	}
}

// RunConfig assembles the immutable backtest configuration
func (c *Config) RunConfig() backtest.RunConfig {
	q := c.QualityConfig()
	return backtest.RunConfig{
		Signals:   c.SignalConfig(),
		Rebalance: c.RebalanceConfig(),
		Portfolio: c.PortfolioConfig(),
		Quality:   &q,
	}
}
