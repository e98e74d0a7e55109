package experiment

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/s0_data"
)

// Mode names the sweep that produced a trial
type Mode string

const (
	ModeGrid       Mode = "grid"
	ModeMonteCarlo Mode = "montecarlo"
	ModeChurn      Mode = "churn"
)

// Trial is one independent (configuration, universe) pair
type Trial struct {
	ID           string             `json:"id"`
	Mode         Mode               `json:"mode"`
	Label        string             `json:"label"`
	Config       backtest.RunConfig `json:"config"`
	UniverseSeed int64              `json:"universe_seed,omitempty"`
}

// GridSpec enumerates the cartesian product of its dimensions.
// An empty dimension keeps the base configuration's value.
type GridSpec struct {
	SkipDays    []int               `yaml:"skip_days" json:"skip_days"`
	VolFloors   []float64           `yaml:"vol_floors" json:"vol_floors"`
	TopNs       []int               `yaml:"top_ns" json:"top_ns"`
	ExitBuffers []int               `yaml:"exit_buffers" json:"exit_buffers"`
	Scenarios   []backtest.Scenario `yaml:"scenarios" json:"scenarios"`
	Lookbacks   [][]int             `yaml:"lookbacks" json:"lookbacks"`
	PnLHolds    []*float64          `yaml:"pnl_holds" json:"pnl_holds"` // null = no PnL hold
	Limit       int                 `yaml:"limit" json:"limit"`         // 0 = all
}

// Trials expands the grid in listed order
func (g GridSpec) Trials(base backtest.RunConfig) ([]Trial, error) {
	skips := orInts(g.SkipDays, base.Signals.SkipDays)
	floors := orFloats(g.VolFloors, base.Signals.VolFloor)
	topNs := orInts(g.TopNs, base.Portfolio.TopN)
	buffers := orInts(g.ExitBuffers, base.Portfolio.ExitBuffer)

	scenarios := g.Scenarios
	if len(scenarios) == 0 {
		scenarios = []backtest.Scenario{base.Portfolio.Overlay.Scenario}
	}
	lookbacks := make([][]contracts.Horizon, 0, len(g.Lookbacks))
	for _, set := range g.Lookbacks {
		hs, err := Horizons(set)
		if err != nil {
			return nil, err
		}
		lookbacks = append(lookbacks, hs)
	}
	if len(lookbacks) == 0 {
		lookbacks = [][]contracts.Horizon{base.Signals.Horizons}
	}
	holds := g.PnLHolds
	if len(holds) == 0 {
		holds = []*float64{base.Portfolio.PnLHoldThreshold}
	}

	trials := make([]Trial, 0)
	for _, skip := range skips {
		for _, floor := range floors {
			for _, topN := range topNs {
				for _, buffer := range buffers {
					for _, scenario := range scenarios {
						for _, hs := range lookbacks {
							for _, hold := range holds {
								if g.Limit > 0 && len(trials) >= g.Limit {
									return trials, nil
								}
								cfg := cloneRun(base)
								cfg.Signals.SkipDays = skip
								cfg.Signals.VolFloor = floor
								cfg.Signals.Horizons = append([]contracts.Horizon(nil), hs...)
								cfg.Portfolio.TopN = topN
								cfg.Portfolio.ExitBuffer = buffer
								cfg.Portfolio.Overlay.Scenario = scenario
								cfg.Portfolio.PnLHoldThreshold = copyFloat(hold)

								trials = append(trials, Trial{
									ID:     fmt.Sprintf("grid-%04d", len(trials)+1),
									Mode:   ModeGrid,
									Label:  label(cfg),
									Config: cfg,
								})
							}
						}
					}
				}
			}
		}
	}
	return trials, nil
}

// MonteCarloSpec samples configurations and universes from a seed.
// The same seed and symbol list always yield the same trials.
type MonteCarloSpec struct {
	Runs           int                 `yaml:"runs" json:"runs"`
	Seed           int64               `yaml:"seed" json:"seed"`
	LookbackSets   [][]int             `yaml:"lookback_sets" json:"lookback_sets"`
	TopNMin        int                 `yaml:"top_n_min" json:"top_n_min"`
	TopNMax        int                 `yaml:"top_n_max" json:"top_n_max"`
	SkipDays       []int               `yaml:"skip_days" json:"skip_days"`
	VolFloors      []float64           `yaml:"vol_floors" json:"vol_floors"`
	ExitBuffers    []int               `yaml:"exit_buffers" json:"exit_buffers"`
	PnLHolds       []float64           `yaml:"pnl_holds" json:"pnl_holds"`
	Scenarios      []backtest.Scenario `yaml:"scenarios" json:"scenarios"`
	RebalanceWeeks []int               `yaml:"rebalance_weeks" json:"rebalance_weeks"`
	UniverseSize   int                 `yaml:"universe_size" json:"universe_size"` // 0 = full universe
}

// Trials draws Runs trials. Universe i is sampled with seed Seed+i.
func (m MonteCarloSpec) Trials(base backtest.RunConfig, symbols []string) ([]Trial, error) {
	if m.Runs < 1 {
		return nil, fmt.Errorf("%w: runs must be >= 1", contracts.ErrInvalidConfig)
	}
	topMin, topMax := m.TopNMin, m.TopNMax
	if topMin <= 0 {
		topMin = base.Portfolio.TopN
	}
	if topMax < topMin {
		topMax = topMin
	}

	lookbacks := make([][]contracts.Horizon, 0, len(m.LookbackSets))
	for _, set := range m.LookbackSets {
		hs, err := Horizons(set)
		if err != nil {
			return nil, err
		}
		lookbacks = append(lookbacks, hs)
	}

	rng := rand.New(rand.NewSource(m.Seed))
	trials := make([]Trial, 0, m.Runs)
	for i := 1; i <= m.Runs; i++ {
		cfg := cloneRun(base)
		cfg.Portfolio.TopN = topMin + rng.Intn(topMax-topMin+1)
		if len(m.SkipDays) > 0 {
			cfg.Signals.SkipDays = m.SkipDays[rng.Intn(len(m.SkipDays))]
		}
		if len(m.VolFloors) > 0 {
			cfg.Signals.VolFloor = m.VolFloors[rng.Intn(len(m.VolFloors))]
		}
		if len(lookbacks) > 0 {
			cfg.Signals.Horizons = append([]contracts.Horizon(nil), lookbacks[rng.Intn(len(lookbacks))]...)
		}
		if len(m.ExitBuffers) > 0 {
			cfg.Portfolio.ExitBuffer = m.ExitBuffers[rng.Intn(len(m.ExitBuffers))]
		}
		if len(m.PnLHolds) > 0 {
			hold := m.PnLHolds[rng.Intn(len(m.PnLHolds))]
			cfg.Portfolio.PnLHoldThreshold = &hold
		}
		if len(m.Scenarios) > 0 {
			cfg.Portfolio.Overlay.Scenario = m.Scenarios[rng.Intn(len(m.Scenarios))]
		}
		if len(m.RebalanceWeeks) > 0 {
			cfg.Rebalance.EveryWeeks = m.RebalanceWeeks[rng.Intn(len(m.RebalanceWeeks))]
		}

		seed := m.Seed + int64(i)
		if m.UniverseSize > 0 {
			cfg.Universe = s0_data.SampleUniverse(symbols, m.UniverseSize, seed)
		}

		trials = append(trials, Trial{
			ID:           fmt.Sprintf("mc-%04d", i),
			Mode:         ModeMonteCarlo,
			Label:        label(cfg),
			Config:       cfg,
			UniverseSeed: seed,
		})
	}
	return trials, nil
}

// ChurnSpec compares strict replacement against hysteresis on one universe
type ChurnSpec struct {
	ExitBuffer       int     `yaml:"exit_buffer" json:"exit_buffer" default:"10"`
	PnLHoldThreshold float64 `yaml:"pnl_hold_threshold" json:"pnl_hold_threshold" default:"0.05"`
}

// DefaultChurnSpec returns a buffer of 10 and a 5% PnL hold
func DefaultChurnSpec() ChurnSpec {
	return ChurnSpec{ExitBuffer: 10, PnLHoldThreshold: 0.05}
}

// Trials returns the baseline, hyst and hyst_pnl trials
func (c ChurnSpec) Trials(base backtest.RunConfig) []Trial {
	variants := []struct {
		name   string
		buffer int
		hold   *float64
	}{
		{"baseline", 0, nil},
		{"hyst", c.ExitBuffer, nil},
		{"hyst_pnl", c.ExitBuffer, &c.PnLHoldThreshold},
	}

	trials := make([]Trial, 0, len(variants))
	for i, v := range variants {
		cfg := cloneRun(base)
		cfg.Portfolio.ExitBuffer = v.buffer
		cfg.Portfolio.PnLHoldThreshold = copyFloat(v.hold)
		trials = append(trials, Trial{
			ID:     fmt.Sprintf("churn-%d", i+1),
			Mode:   ModeChurn,
			Label:  v.name,
			Config: cfg,
		})
	}
	return trials
}

// Horizons converts month lengths into horizons
func Horizons(months []int) ([]contracts.Horizon, error) {
	out := make([]contracts.Horizon, 0, len(months))
	for _, m := range months {
		h := contracts.Horizon(m)
		if !h.Valid() {
			return nil, fmt.Errorf("%w: unsupported lookback %dm", contracts.ErrInvalidConfig, m)
		}
		out = append(out, h)
	}
	return out, nil
}

// LookbackKey renders a horizon set as "12-6-3"
func LookbackKey(hs []contracts.Horizon) string {
	sorted := append([]contracts.Horizon(nil), hs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	parts := make([]string, len(sorted))
	for i, h := range sorted {
		parts[i] = strconv.Itoa(int(h))
	}
	return strings.Join(parts, "-")
}

func label(cfg backtest.RunConfig) string {
	pnl := "none"
	if cfg.Portfolio.PnLHoldThreshold != nil {
		pnl = strconv.FormatFloat(*cfg.Portfolio.PnLHoldThreshold, 'g', -1, 64)
	}
	return fmt.Sprintf("lb%s_sd%d_vf%g_top%d_buf%d_pnl%s_%s",
		LookbackKey(cfg.Signals.Horizons), cfg.Signals.SkipDays, cfg.Signals.VolFloor,
		cfg.Portfolio.TopN, cfg.Portfolio.ExitBuffer, pnl, cfg.Portfolio.Overlay.Scenario)
}

// cloneRun deep-copies the slices and pointers of a run configuration
func cloneRun(c backtest.RunConfig) backtest.RunConfig {
	out := c
	out.Signals.Horizons = append([]contracts.Horizon(nil), c.Signals.Horizons...)
	out.Universe = append([]string(nil), c.Universe...)
	out.Portfolio.PnLHoldThreshold = copyFloat(c.Portfolio.PnLHoldThreshold)
	if c.Quality != nil {
		q := *c.Quality
		out.Quality = &q
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

func orInts(values []int, fallback int) []int {
	if len(values) == 0 {
		return []int{fallback}
	}
	return values
}

func orFloats(values []float64, fallback float64) []float64 {
	if len(values) == 0 {
		return []float64{fallback}
	}
	return values
}
