package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/s2_signals"
	"github.com/wonny/momentum-lab/pkg/logger"
)

const (
	// equityEpsilon is the fraction of initial capital treated as zero equity
	equityEpsilon = 1e-12
	// dustNotional skips trades too small to matter
	dustNotional = 1e-9
	weightTolerance = 1e-12
)

// Config holds the portfolio simulation configuration
type Config struct {
	TopN             int           `json:"top_n"`
	ExitBuffer       int           `json:"exit_buffer"`
	PnLHoldThreshold *float64      `json:"pnl_hold_threshold,omitempty"`
	Slippage         float64       `json:"slippage"`
	InitialCapital   float64       `json:"initial_capital"`
	Overlay          OverlayConfig `json:"overlay"`
}

// DefaultConfig returns top-25 baseline with 20 bps slippage
func DefaultConfig() Config {
	return Config{
		TopN:           25,
		Slippage:       0.002,
		InitialCapital: 1_000_000,
		Overlay:        DefaultOverlayConfig(),
	}
}

// Validate checks parameter ranges
func (c Config) Validate() error {
	if c.TopN < 1 {
		return fmt.Errorf("%w: top_n must be >= 1", contracts.ErrInvalidConfig)
	}
	if c.ExitBuffer < 0 {
		return fmt.Errorf("%w: exit_buffer must be >= 0", contracts.ErrInvalidConfig)
	}
	if c.PnLHoldThreshold != nil && (*c.PnLHoldThreshold < 0 || *c.PnLHoldThreshold > 1) {
		return fmt.Errorf("%w: pnl_hold_threshold must be in [0, 1]", contracts.ErrInvalidConfig)
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return fmt.Errorf("%w: slippage must be in [0, 1)", contracts.ErrInvalidConfig)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be > 0", contracts.ErrInvalidConfig)
	}
	return c.Overlay.Validate()
}

// Input is the read-only data a simulation consumes
type Input struct {
	Panel     *contracts.PricePanel
	Signals   *contracts.SignalTable
	Benchmark *contracts.Series // optional
}

// PortfolioState is the mutable simulation state
type PortfolioState struct {
	Cash      float64
	Positions map[string]*contracts.Position
	Exposure  float64
	Overlay   OverlayState
}

// Equity returns cash plus marked position value, summed in symbol order
func (p *PortfolioState) Equity() float64 {
	equity := p.Cash
	for _, symbol := range p.heldSymbols() {
		equity += p.Positions[symbol].MarketValue()
	}
	return equity
}

// heldSymbols returns held symbols in sorted order
func (p *PortfolioState) heldSymbols() []string {
	out := make([]string, 0, len(p.Positions))
	for s := range p.Positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Result holds the simulation output
type Result struct {
	RunID          string                        `json:"run_id"`
	Config         Config                        `json:"config"`
	StartDate      time.Time                     `json:"start_date"`
	EndDate        time.Time                     `json:"end_date"`
	EquityCurve    []contracts.EquityPoint       `json:"equity_curve"`
	Trades         []contracts.TradeRecord       `json:"trades"`
	Entries        []contracts.EntryOutcome      `json:"entries"`
	Warnings       []contracts.StalePriceWarning `json:"warnings"`
	RebalanceCount int                           `json:"rebalance_count"`
	FinalCash      float64                       `json:"final_cash"`
	FinalPositions []contracts.Position          `json:"final_positions"`
	Halted         bool                          `json:"halted"`
}

// FinalEquity returns the last equity observation
func (r *Result) FinalEquity() float64 {
	if len(r.EquityCurve) == 0 {
		return r.Config.InitialCapital
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Equity
}

// Simulator walks rebalance dates and applies the holdings and exposure rules
// ⭐ SSOT: 백테스팅 시뮬레이션은 여기서만
type Simulator struct {
	cfg    Config
	logger *logger.Logger
}

// NewSimulator creates a new portfolio simulator
func NewSimulator(cfg Config, log *logger.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, logger: log.Component("simulator")}, nil
}

// run is the per-simulation working set
type run struct {
	cfg       Config
	panel     *contracts.PricePanel
	state     *PortfolioState
	result    *Result
	benchmark map[time.Time]float64
	returns   []float64 // portfolio daily returns
	pending   []int     // entries awaiting their forward return
	logger    *logger.Logger
}

// Run simulates from the first signal date to the end of the panel.
// On a fatal error the partial result is returned with the error.
func (s *Simulator) Run(ctx context.Context, in Input) (*Result, error) {
	if in.Panel == nil || in.Panel.Len() == 0 {
		return nil, contracts.ErrEmptyPanel
	}
	if _, err := s2_signals.ValidateTable(in.Signals, 0); err != nil {
		return nil, fmt.Errorf("signal table rejected: %w", err)
	}

	rebalances, first, err := alignSignals(in.Panel, in.Signals)
	if err != nil {
		return nil, err
	}

	r := &run{
		cfg:   s.cfg,
		panel: in.Panel,
		state: &PortfolioState{
			Cash:      s.cfg.InitialCapital,
			Positions: make(map[string]*contracts.Position),
			Exposure:  1.0,
			Overlay:   InitialOverlayState(),
		},
		result: &Result{
			RunID:       uuid.New().String(),
			Config:      s.cfg,
			StartDate:   in.Panel.Date(first),
			EquityCurve: make([]contracts.EquityPoint, 0, in.Panel.Len()-first),
			Trades:      make([]contracts.TradeRecord, 0),
			Entries:     make([]contracts.EntryOutcome, 0),
			Warnings:    make([]contracts.StalePriceWarning, 0),
		},
		logger: s.logger,
	}
	if in.Benchmark != nil {
		r.benchmark = in.Benchmark.Returns()
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":      r.result.RunID,
		"start_date":  r.result.StartDate.Format(contracts.DateLayout),
		"rebalances":  len(rebalances),
		"top_n":       s.cfg.TopN,
		"exit_buffer": s.cfg.ExitBuffer,
		"scenario":    s.cfg.Overlay.Scenario,
	}).Info("Starting simulation")

	peak := s.cfg.InitialCapital
	prevEquity := s.cfg.InitialCapital

	for i := first; i < in.Panel.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return r.finish(), err
		}

		date := in.Panel.Date(i)
		r.mark(i, true)
		equity := r.state.Equity()

		if rows, ok := rebalances[i]; ok {
			drawdown := 0.0
			if top := math.Max(peak, equity); top > 0 {
				drawdown = 1 - equity/top
			}
			r.resolveEntries(i)

			obs := Observation{Date: date, Drawdown: drawdown, TrailingReturns: r.trailingReturns(i)}
			r.state.Overlay = Transition(s.cfg.Overlay, r.state.Overlay, obs)
			exposure := Exposure(s.cfg.Overlay, r.state.Overlay, obs)

			r.rebalance(i, rows, exposure)
			r.state.Exposure = exposure
			r.result.RebalanceCount++

			r.mark(i, false)
			equity = r.state.Equity()
		}

		if equity > peak {
			peak = equity
		}
		drawdown := 0.0
		if peak > 0 {
			drawdown = 1 - equity/peak
		}
		r.result.EquityPoint(date, equity, r.state.Exposure, drawdown)

		if i > first && prevEquity > 0 {
			r.returns = append(r.returns, equity/prevEquity-1)
		}
		prevEquity = equity

		if equity <= s.cfg.InitialCapital*equityEpsilon {
			r.result.Halted = true
			s.logger.WithFields(map[string]interface{}{
				"run_id": r.result.RunID,
				"date":   date.Format(contracts.DateLayout),
				"equity": equity,
			}).Error("Equity exhausted, halting simulation")
			return r.finish(), &contracts.ZeroOrNegativeEquityError{Date: date, Equity: equity}
		}
	}

	res := r.finish()
	s.logger.WithFields(map[string]interface{}{
		"run_id":       res.RunID,
		"final_equity": res.FinalEquity(),
		"trades":       len(res.Trades),
		"rebalances":   res.RebalanceCount,
		"stale_prices": len(res.Warnings),
	}).Info("Simulation completed")

	return res, nil
}

// EquityPoint appends one daily observation
func (r *Result) EquityPoint(date time.Time, equity, exposure, drawdown float64) {
	r.EquityCurve = append(r.EquityCurve, contracts.EquityPoint{
		Date:     date,
		Equity:   equity,
		Exposure: exposure,
		Drawdown: drawdown,
	})
}

// alignSignals maps signal dates to panel indices and finds the first one
func alignSignals(panel *contracts.PricePanel, table *contracts.SignalTable) (map[int][]contracts.SignalRow, int, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, 0, contracts.ErrNoSignals
	}

	out := make(map[int][]contracts.SignalRow)
	first := -1
	for date, rows := range table.ByDate() {
		i, ok := panel.IndexOf(date)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", contracts.ErrOffCalendarSignal, date.Format(contracts.DateLayout))
		}
		out[i] = rows
		if first < 0 || i < first {
			first = i
		}
	}
	return out, first, nil
}

func (r *run) finish() *Result {
	res := r.result
	if n := len(res.EquityCurve); n > 0 {
		res.EndDate = res.EquityCurve[n-1].Date
	}
	res.FinalCash = r.state.Cash
	res.FinalPositions = make([]contracts.Position, 0, len(r.state.Positions))
	for _, symbol := range r.state.heldSymbols() {
		res.FinalPositions = append(res.FinalPositions, *r.state.Positions[symbol])
	}
	return res
}

// mark prices held positions at the close of date i.
// A missing bar keeps the last known price and, when warn is set, records a stale-price warning.
func (r *run) mark(i int, warn bool) {
	date := r.panel.Date(i)
	for _, symbol := range r.state.heldSymbols() {
		pos := r.state.Positions[symbol]
		if bar, ok := r.panel.Bar(i, symbol); ok {
			pos.LastPrice = bar.Close
			pos.LastPriced = date
			continue
		}
		if !warn {
			continue
		}
		w := contracts.StalePriceWarning{
			Date:      date,
			Symbol:    symbol,
			LastPrice: pos.LastPrice,
			LastDate:  pos.LastPriced,
		}
		r.result.Warnings = append(r.result.Warnings, w)
		r.logger.WithFields(map[string]interface{}{
			"symbol":     symbol,
			"date":       date.Format(contracts.DateLayout),
			"last_price": pos.LastPrice,
			"last_date":  pos.LastPriced.Format(contracts.DateLayout),
		}).Warn("Stale price, using last known close")
	}
}

// trailingReturns returns the daily return series the vol overlay reads
func (r *run) trailingReturns(i int) []float64 {
	if r.cfg.Overlay.Scenario != ScenarioVolTrigger {
		return nil
	}
	if r.benchmark == nil {
		return r.returns
	}

	lookback := r.cfg.Overlay.VolTrigger.Lookback
	out := make([]float64, 0, lookback)
	for j := i; j >= 0 && len(out) < lookback; j-- {
		if ret, ok := r.benchmark[r.panel.Date(j)]; ok {
			out = append(out, ret)
		}
	}
	// oldest first
	for a, b := 0, len(out)-1; a < b; a, b = a+1, b-1 {
		out[a], out[b] = out[b], out[a]
	}
	return out
}

// closeAtOrBefore returns the most recent close of a symbol up to index i
func (r *run) closeAtOrBefore(i int, symbol string) (float64, bool) {
	for j := i; j >= 0; j-- {
		if bar, ok := r.panel.Bar(j, symbol); ok {
			return bar.Close, true
		}
	}
	return 0, false
}

// resolveEntries fills the forward return of entries made at the previous rebalance
func (r *run) resolveEntries(i int) {
	for _, idx := range r.pending {
		e := &r.result.Entries[idx]
		if price, ok := r.closeAtOrBefore(i, e.Symbol); ok && e.EntryPrice > 0 {
			e.ForwardReturn = price/e.EntryPrice - 1
			e.Resolved = true
		}
	}
	r.pending = r.pending[:0]
}

// rebalance applies the holdings transition at date index i
func (r *run) rebalance(i int, ranked []contracts.SignalRow, exposure float64) {
	date := r.panel.Date(i)
	cfg := r.cfg

	fills := make(map[string]float64)
	fill := func(symbol string) (float64, bool) {
		if p, ok := fills[symbol]; ok {
			return p, true
		}
		bar, ok := r.panel.Bar(i, symbol)
		if !ok {
			return 0, false
		}
		fills[symbol] = bar.FillPrice()
		return fills[symbol], true
	}

	rankOf := make(map[string]contracts.SignalRow, len(ranked))
	core := make(map[string]bool, cfg.TopN)
	for _, row := range ranked {
		rankOf[row.Symbol] = row
		if row.Rank <= cfg.TopN {
			core[row.Symbol] = true
		}
	}

	// valuation at the date's fill price
	equity := r.state.Cash
	for _, symbol := range r.state.heldSymbols() {
		pos := r.state.Positions[symbol]
		if p, ok := fill(symbol); ok {
			equity += pos.Shares * p
		} else {
			equity += pos.MarketValue()
		}
	}

	keep := make([]string, 0, cfg.TopN)
	exits := make([]string, 0)
	for _, symbol := range r.state.heldSymbols() {
		pos := r.state.Positions[symbol]
		price, tradable := fill(symbol)

		switch {
		case core[symbol]:
			keep = append(keep, symbol)
		case !tradable:
			// cannot trade without a bar; exit deferred
			keep = append(keep, symbol)
		case r.retained(symbol, pos, price, rankOf):
			keep = append(keep, symbol)
		default:
			exits = append(exits, symbol)
		}
	}

	weight := exposure / float64(cfg.TopN)
	entries := make([]contracts.SignalRow, 0)
	if weight > 0 {
		slots := cfg.TopN - len(keep)
		for _, row := range ranked {
			if slots <= 0 {
				break
			}
			if _, held := r.state.Positions[row.Symbol]; held {
				continue
			}
			if _, ok := fill(row.Symbol); !ok {
				continue
			}
			entries = append(entries, row)
			slots--
		}
	}

	target := weight * equity

	for _, symbol := range exits {
		price, _ := fill(symbol)
		r.sell(date, symbol, r.state.Positions[symbol].Shares, price)
	}

	type buy struct {
		symbol string
		shares float64
		price  float64
		row    *contracts.SignalRow
	}
	buys := make([]buy, 0, len(keep)+len(entries))

	for _, symbol := range keep {
		pos := r.state.Positions[symbol]
		price, tradable := fill(symbol)
		if !tradable || math.Abs(pos.TargetWeight-weight) <= weightTolerance {
			continue
		}
		pos.TargetWeight = weight
		delta := target/price - pos.Shares
		switch {
		case delta < 0:
			r.sell(date, symbol, -delta, price)
		case delta > 0:
			buys = append(buys, buy{symbol: symbol, shares: delta, price: price})
		}
	}

	for k := range entries {
		row := entries[k]
		price, _ := fill(row.Symbol)
		buys = append(buys, buy{symbol: row.Symbol, shares: target / price, price: price, row: &entries[k]})
	}

	cost := 0.0
	for _, b := range buys {
		cost += b.shares * b.price * (1 + cfg.Slippage)
	}
	scale := 1.0
	if cost > r.state.Cash && cost > 0 {
		scale = math.Max(0, r.state.Cash) / cost
	}

	for _, b := range buys {
		shares := b.shares * scale
		if shares*b.price < dustNotional {
			continue
		}
		r.buyShares(date, b.symbol, shares, b.price, weight)
		if b.row != nil {
			r.result.Entries = append(r.result.Entries, contracts.EntryOutcome{
				Date:           date,
				Symbol:         b.symbol,
				Rank:           b.row.Rank,
				CompositeScore: b.row.CompositeScore,
				EntryPrice:     b.price,
			})
			r.pending = append(r.pending, len(r.result.Entries)-1)
		}
	}

	if r.state.Cash < 0 && r.state.Cash > -cfg.InitialCapital*1e-9 {
		r.state.Cash = 0
	}

	r.logger.WithFields(map[string]interface{}{
		"date":     date.Format(contracts.DateLayout),
		"exposure": exposure,
		"kept":     len(keep),
		"exits":    len(exits),
		"entries":  len(entries),
		"cash":     r.state.Cash,
	}).Debug("Rebalanced")
}

// retained applies the hysteresis rules to a ranked-out holding
func (r *run) retained(symbol string, pos *contracts.Position, price float64, rankOf map[string]contracts.SignalRow) bool {
	if r.cfg.ExitBuffer > 0 {
		if row, ok := rankOf[symbol]; ok && row.Rank <= r.cfg.TopN+r.cfg.ExitBuffer {
			return true
		}
	}
	if r.cfg.PnLHoldThreshold != nil && pos.UnrealizedReturn(price) >= *r.cfg.PnLHoldThreshold {
		return true
	}
	return false
}

func (r *run) sell(date time.Time, symbol string, shares, price float64) {
	pos := r.state.Positions[symbol]
	if shares > pos.Shares {
		shares = pos.Shares
	}
	if shares*price < dustNotional && shares < pos.Shares {
		return
	}

	slip := shares * price * r.cfg.Slippage
	r.state.Cash += shares*price - slip
	r.result.Trades = append(r.result.Trades, contracts.TradeRecord{
		Date:         date,
		Symbol:       symbol,
		Side:         contracts.SideSell,
		Shares:       shares,
		FillPrice:    price,
		SlippageCost: slip,
	})

	pos.Shares -= shares
	if pos.Shares*price < dustNotional {
		delete(r.state.Positions, symbol)
	}
}

func (r *run) buyShares(date time.Time, symbol string, shares, price, weight float64) {
	slip := shares * price * r.cfg.Slippage
	r.state.Cash -= shares*price + slip
	r.result.Trades = append(r.result.Trades, contracts.TradeRecord{
		Date:         date,
		Symbol:       symbol,
		Side:         contracts.SideBuy,
		Shares:       shares,
		FillPrice:    price,
		SlippageCost: slip,
	})

	pos, ok := r.state.Positions[symbol]
	if !ok {
		pos = &contracts.Position{Symbol: symbol, EntryDate: date}
		r.state.Positions[symbol] = pos
	}
	cost := pos.Shares*pos.EntryPrice + shares*price*(1+r.cfg.Slippage)
	pos.Shares += shares
	pos.EntryPrice = cost / pos.Shares
	pos.LastPrice = price
	pos.LastPriced = date
	pos.TargetWeight = weight
}
