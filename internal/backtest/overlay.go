package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// Scenario selects the exposure overlay
type Scenario string

const (
	ScenarioBaseline   Scenario = "baseline"
	ScenarioCooldown   Scenario = "cooldown"
	ScenarioVolTrigger Scenario = "vol_trigger"
)

// Scenarios lists every supported overlay
var Scenarios = []Scenario{ScenarioBaseline, ScenarioCooldown, ScenarioVolTrigger}

// ParseScenario converts a scenario name
func ParseScenario(s string) (Scenario, error) {
	for _, sc := range Scenarios {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: unknown scenario %q", contracts.ErrInvalidConfig, s)
}

// CooldownConfig parameterizes the drawdown cooldown overlay
type CooldownConfig struct {
	DrawdownTrigger float64 `json:"drawdown_trigger"`
	CooldownWeeks   int     `json:"cooldown_weeks"` // rebalances held at zero exposure
	StagedStep      float64 `json:"staged_step"`
}

// VolTriggerConfig parameterizes the volatility targeting overlay
type VolTriggerConfig struct {
	Lookback  int     `json:"vol_lookback"`
	TargetVol float64 `json:"target_vol"`
}

// OverlayConfig is the scenario plus its parameters
type OverlayConfig struct {
	Scenario   Scenario         `json:"scenario"`
	Cooldown   CooldownConfig   `json:"cooldown"`
	VolTrigger VolTriggerConfig `json:"vol_trigger"`
}

// DefaultOverlayConfig returns the baseline overlay with default parameters
func DefaultOverlayConfig() OverlayConfig {
	return OverlayConfig{
		Scenario: ScenarioBaseline,
		Cooldown: CooldownConfig{
			DrawdownTrigger: 0.25,
			CooldownWeeks:   1,
			StagedStep:      0.25,
		},
		VolTrigger: VolTriggerConfig{
			Lookback:  63,
			TargetVol: 0.15,
		},
	}
}

// Validate checks the overlay parameters of the selected scenario
func (c OverlayConfig) Validate() error {
	switch c.Scenario {
	case ScenarioBaseline:
	case ScenarioCooldown:
		if c.Cooldown.DrawdownTrigger <= 0 || c.Cooldown.DrawdownTrigger >= 1 {
			return fmt.Errorf("%w: drawdown_trigger must be in (0, 1)", contracts.ErrInvalidConfig)
		}
		if c.Cooldown.StagedStep <= 0 || c.Cooldown.StagedStep > 1 {
			return fmt.Errorf("%w: staged_step must be in (0, 1]", contracts.ErrInvalidConfig)
		}
		if c.Cooldown.CooldownWeeks < 0 {
			return fmt.Errorf("%w: cooldown_weeks must be >= 0", contracts.ErrInvalidConfig)
		}
	case ScenarioVolTrigger:
		if c.VolTrigger.Lookback < 2 {
			return fmt.Errorf("%w: vol_lookback must be >= 2", contracts.ErrInvalidConfig)
		}
		if c.VolTrigger.TargetVol <= 0 {
			return fmt.Errorf("%w: target_vol must be > 0", contracts.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown scenario %q", contracts.ErrInvalidConfig, c.Scenario)
	}
	return nil
}

// Phase is the cooldown state
type Phase int

const (
	PhaseNormal Phase = iota
	PhaseCooldown
)

func (p Phase) String() string {
	if p == PhaseCooldown {
		return "cooldown"
	}
	return "normal"
}

// OverlayState is the scenario-specific state carried between rebalances
type OverlayState struct {
	Phase Phase `json:"phase"`
	Step  int   `json:"step"`
	Hold  int   `json:"hold"`  // zero-exposure rebalances left before staging
	Armed bool  `json:"armed"` // false until drawdown falls back below the trigger
}

// InitialOverlayState is the state at simulation start
func InitialOverlayState() OverlayState {
	return OverlayState{Phase: PhaseNormal, Armed: true}
}

// Observation is what the overlay sees at a rebalance date
type Observation struct {
	Date            time.Time
	Drawdown        float64
	TrailingReturns []float64
}

const fullExposureTolerance = 1e-12

// Transition advances the overlay state at a rebalance date
func Transition(cfg OverlayConfig, state OverlayState, obs Observation) OverlayState {
	if cfg.Scenario != ScenarioCooldown {
		return state
	}

	cd := cfg.Cooldown
	hold := cd.CooldownWeeks - 1
	if hold < 0 {
		hold = 0
	}

	breached := obs.Drawdown >= cd.DrawdownTrigger
	fresh := breached && state.Armed

	next := state
	if !breached {
		next.Armed = true
	}

	switch state.Phase {
	case PhaseNormal:
		if fresh {
			return OverlayState{Phase: PhaseCooldown, Step: 0, Hold: hold, Armed: false}
		}
	case PhaseCooldown:
		if fresh {
			return OverlayState{Phase: PhaseCooldown, Step: 0, Hold: hold, Armed: false}
		}
		if next.Hold > 0 {
			next.Hold--
		} else {
			next.Step++
		}
		if float64(next.Step)*cd.StagedStep >= 1-fullExposureTolerance {
			next.Phase = PhaseNormal
			next.Step = 0
			next.Hold = 0
		}
	}

	return next
}

// Exposure returns the target invested fraction for a state
func Exposure(cfg OverlayConfig, state OverlayState, obs Observation) float64 {
	switch cfg.Scenario {
	case ScenarioCooldown:
		if state.Phase == PhaseNormal {
			return 1.0
		}
		return math.Min(1.0, float64(state.Step)*cfg.Cooldown.StagedStep)
	case ScenarioVolTrigger:
		return volTargetExposure(cfg.VolTrigger, obs.TrailingReturns)
	default:
		return 1.0
	}
}

// volTargetExposure scales toward the target annualized volatility
func volTargetExposure(cfg VolTriggerConfig, returns []float64) float64 {
	if len(returns) < cfg.Lookback {
		return 1.0
	}
	realized := sampleStd(returns[len(returns)-cfg.Lookback:]) * math.Sqrt(tradingDaysPerYear)
	if realized <= 0 || math.IsNaN(realized) {
		return 1.0
	}
	return math.Max(0, math.Min(1, cfg.TargetVol/realized))
}

const tradingDaysPerYear = 252

func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
