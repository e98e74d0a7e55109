package s2_signals

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/logger"
)

// Config is the immutable SignalBuilder configuration
type Config struct {
	SkipDays   int                 `json:"skip_days"`
	Horizons   []contracts.Horizon `json:"horizons"`
	VolFloor   float64             `json:"vol_floor"`
	VolPower   float64             `json:"vol_power"`
	TopN       int                 `json:"top_n"`
	ExtraDepth int                 `json:"extra_depth"` // extra rows for downstream hysteresis
}

// DefaultConfig returns the 12/6/3 month configuration
func DefaultConfig() Config {
	return Config{
		SkipDays: 21,
		Horizons: []contracts.Horizon{contracts.Horizon12M, contracts.Horizon6M, contracts.Horizon3M},
		VolFloor: 0.0005,
		VolPower: 1.0,
		TopN:     25,
	}
}

// Depth returns the number of ranked rows kept per date
func (c Config) Depth() int {
	return c.TopN + c.ExtraDepth
}

// Validate checks parameter ranges
func (c Config) Validate() error {
	if c.SkipDays < 0 {
		return fmt.Errorf("%w: skip_days must be >= 0", contracts.ErrInvalidConfig)
	}
	if len(c.Horizons) == 0 {
		return fmt.Errorf("%w: at least one horizon is required", contracts.ErrInvalidConfig)
	}
	seen := make(map[contracts.Horizon]bool)
	for _, h := range c.Horizons {
		if !h.Valid() {
			return fmt.Errorf("%w: unsupported horizon %dm", contracts.ErrInvalidConfig, int(h))
		}
		if seen[h] {
			return fmt.Errorf("%w: duplicate horizon %dm", contracts.ErrInvalidConfig, int(h))
		}
		seen[h] = true
	}
	if c.VolFloor <= 0 {
		return fmt.Errorf("%w: vol_floor must be > 0", contracts.ErrInvalidConfig)
	}
	if c.VolPower < 0 {
		return fmt.Errorf("%w: vol_power must be >= 0", contracts.ErrInvalidConfig)
	}
	if c.TopN < 1 {
		return fmt.Errorf("%w: top_n must be >= 1", contracts.ErrInvalidConfig)
	}
	if c.ExtraDepth < 0 {
		return fmt.Errorf("%w: extra_depth must be >= 0", contracts.ErrInvalidConfig)
	}
	return nil
}

// RejectReason explains why a symbol-date left the candidate set
type RejectReason string

const (
	RejectNoBar               RejectReason = "no_bar"
	RejectInsufficientHistory RejectReason = "insufficient_history"
)

// BuildReport is the structured rejection report of a build
type BuildReport struct {
	RebalanceDates int                  `json:"rebalance_dates"`
	SignalDates    int                  `json:"signal_dates"`
	EmptyDates     []time.Time          `json:"empty_dates"`
	Rejections     map[RejectReason]int `json:"rejections"`
	Eligible       map[string]int       `json:"eligible"` // date → eligible symbol count
}

// Candidate is one eligible symbol-date before truncation
type Candidate struct {
	Symbol    string
	Composite float64
	Horizons  map[contracts.Horizon]contracts.HorizonScore
}

// Builder turns a price panel into a ranked momentum table
// ⭐ SSOT: 시그널 생성 오케스트레이션은 여기서만
type Builder struct {
	cfg    Config
	logger *logger.Logger
}

// NewBuilder creates a new signal builder
func NewBuilder(cfg Config, log *logger.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{
		cfg:    cfg,
		logger: log.Component("signal_builder"),
	}, nil
}

// Config returns the builder configuration
func (b *Builder) Config() Config {
	return b.cfg
}

// history is one symbol's calculator plus the panel-index → observation map
type history struct {
	calc *MomentumCalculator
	pos  []int
}

func (b *Builder) prepare(panel *contracts.PricePanel) map[string]*history {
	out := make(map[string]*history, len(panel.Symbols()))
	for _, symbol := range panel.Symbols() {
		closes, idx := panel.Closes(symbol)
		pos := make([]int, panel.Len())
		for i := range pos {
			pos[i] = -1
		}
		for k, i := range idx {
			pos[i] = k
		}
		out[symbol] = &history{
			calc: NewMomentumCalculator(closes, b.cfg.SkipDays, b.cfg.VolFloor, b.cfg.VolPower),
			pos:  pos,
		}
	}
	return out
}

// Build ranks the panel at every given rebalance date.
// Dates missing from the panel calendar are ignored.
func (b *Builder) Build(ctx context.Context, panel *contracts.PricePanel, dates []time.Time) (*contracts.SignalTable, *BuildReport, error) {
	if panel == nil || panel.Len() == 0 {
		return nil, nil, contracts.ErrEmptyPanel
	}

	b.logger.WithFields(map[string]interface{}{
		"symbols":   len(panel.Symbols()),
		"dates":     len(dates),
		"skip_days": b.cfg.SkipDays,
		"horizons":  b.cfg.Horizons,
		"depth":     b.cfg.Depth(),
	}).Info("Starting signal generation")

	histories := b.prepare(panel)
	report := &BuildReport{
		RebalanceDates: len(dates),
		Rejections:     make(map[RejectReason]int),
		Eligible:       make(map[string]int),
		EmptyDates:     make([]time.Time, 0),
	}
	table := &contracts.SignalTable{
		Horizons: append([]contracts.Horizon(nil), b.cfg.Horizons...),
		Rows:     make([]contracts.SignalRow, 0, len(dates)*b.cfg.Depth()),
	}

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		ti, ok := panel.IndexOf(date)
		if !ok {
			continue
		}
		d := panel.Date(ti)

		cands := b.crossSection(panel, histories, ti, report.Rejections)
		report.Eligible[d.Format(contracts.DateLayout)] = len(cands)
		if len(cands) == 0 {
			report.EmptyDates = append(report.EmptyDates, d)
			continue
		}
		report.SignalDates++

		depth := b.cfg.Depth()
		if len(cands) < depth {
			depth = len(cands)
		}
		for i := 0; i < depth; i++ {
			table.Rows = append(table.Rows, contracts.SignalRow{
				Date:           d,
				Rank:           i + 1,
				Symbol:         cands[i].Symbol,
				CompositeScore: cands[i].Composite,
				Horizons:       cands[i].Horizons,
			})
		}
	}

	b.logger.WithFields(map[string]interface{}{
		"rows":                 len(table.Rows),
		"signal_dates":         report.SignalDates,
		"empty_dates":          len(report.EmptyDates),
		"no_bar":               report.Rejections[RejectNoBar],
		"insufficient_history": report.Rejections[RejectInsufficientHistory],
	}).Info("Signal generation completed")

	return table, report, nil
}

// CrossSection returns every eligible candidate at a date, ranked, without truncation
func (b *Builder) CrossSection(panel *contracts.PricePanel, date time.Time) ([]Candidate, error) {
	ti, ok := panel.IndexOf(date)
	if !ok {
		return nil, fmt.Errorf("date %s not in panel", date.Format(contracts.DateLayout))
	}
	return b.crossSection(panel, b.prepare(panel), ti, make(map[RejectReason]int)), nil
}

func (b *Builder) crossSection(panel *contracts.PricePanel, histories map[string]*history, ti int, rejections map[RejectReason]int) []Candidate {
	cands := make([]Candidate, 0, len(histories))

	for _, symbol := range panel.Symbols() {
		h := histories[symbol]
		k := h.pos[ti]
		if k < 0 {
			rejections[RejectNoBar]++
			continue
		}

		scores := make(map[contracts.Horizon]contracts.HorizonScore, len(b.cfg.Horizons))
		eligible := true
		for _, horizon := range b.cfg.Horizons {
			hs, err := h.calc.Score(k, horizon)
			if err != nil {
				eligible = false
				break
			}
			scores[horizon] = hs
		}
		if !eligible {
			rejections[RejectInsufficientHistory]++
			continue
		}

		cands = append(cands, Candidate{Symbol: symbol, Horizons: scores})
	}

	if len(cands) == 0 {
		return cands
	}

	for _, horizon := range b.cfg.Horizons {
		raw := make([]float64, len(cands))
		for i := range cands {
			raw[i] = cands[i].Horizons[horizon].Score
		}
		for i, z := range ZScores(raw) {
			hs := cands[i].Horizons[horizon]
			hs.ZScore = z
			cands[i].Horizons[horizon] = hs
			cands[i].Composite += z
		}
	}
	for i := range cands {
		cands[i].Composite /= float64(len(b.cfg.Horizons))
	}

	sortCandidates(cands)
	return cands
}
