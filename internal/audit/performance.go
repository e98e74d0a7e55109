package audit

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// ErrEmptyCurve is returned when there is nothing to measure
var ErrEmptyCurve = errors.New("empty equity curve")

const (
	tradingDaysPerYear = 252
	daysPerYear        = 365.25
	quintiles          = 5
)

// trailingWindows maps a label to its length in trading days
var trailingWindows = []struct {
	Label string
	Days  int
}{
	{"1M", 21},
	{"3M", 63},
	{"6M", 126},
	{"1Y", 252},
}

// Input is everything the metrics computation reads
type Input struct {
	InitialCapital float64
	EquityCurve    []contracts.EquityPoint
	Trades         []contracts.TradeRecord
	Entries        []contracts.EntryOutcome
	Benchmark      *contracts.Series // optional
}

// DrawdownStats describes the deepest drawdown episode
type DrawdownStats struct {
	Depth        float64   `json:"depth"`
	Peak         time.Time `json:"peak"`
	Trough       time.Time `json:"trough"`
	Recovery     time.Time `json:"recovery,omitempty"`
	DurationDays int       `json:"duration_days"` // trading days peak → trough
	RecoveryDays int       `json:"recovery_days"` // trading days trough → recovery, -1 if never
}

// QuintileHitRate is the share of entries in a score bucket with a positive forward return
type QuintileHitRate struct {
	Quintile int     `json:"quintile"` // 1 = highest composite scores
	Entries  int     `json:"entries"`
	Hits     int     `json:"hits"`
	HitRate  float64 `json:"hit_rate"`
}

// TradeFrequency counts trades per calendar bucket
type TradeFrequency struct {
	Total    int         `json:"total"`
	PerWeek  float64     `json:"per_week"`
	PerMonth float64     `json:"per_month"`
	PerYear  float64     `json:"per_year"`
	ByYear   map[int]int `json:"by_year"`
}

// BenchmarkStats compares the strategy to the benchmark over the same span
type BenchmarkStats struct {
	Name        string  `json:"name"`
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	ExcessCAGR  float64 `json:"excess_cagr"`
}

// Report is the full metrics set of one simulation
// ⭐ SSOT: 성과 지표 계산은 여기서만
type Report struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Years     float64   `json:"years"`

	// 수익률
	InitialEquity float64 `json:"initial_equity"`
	FinalEquity   float64 `json:"final_equity"`
	TotalReturn   float64 `json:"total_return"`
	CAGR          float64 `json:"cagr"`

	// 리스크 지표
	Volatility float64       `json:"volatility"`
	Sharpe     float64       `json:"sharpe"`
	Sortino    float64       `json:"sortino"`
	Drawdown   DrawdownStats `json:"drawdown"`

	// 트레이딩 지표
	Turnover       float64           `json:"turnover"` // annualized
	AvgTurnoverPct float64           `json:"avg_turnover_pct"`
	TotalSlippage  float64           `json:"total_slippage"`
	CostDrag       float64           `json:"cost_drag"`
	AvgHoldingDays float64           `json:"avg_holding_days"`
	ClosedTrips    int               `json:"closed_trips"`
	HitRate        float64           `json:"hit_rate_overall"`
	HitRates       []QuintileHitRate `json:"hit_rates"`
	Frequency      TradeFrequency    `json:"trade_frequency"`

	// 비교
	Benchmark *BenchmarkStats    `json:"benchmark,omitempty"`
	Trailing  map[string]float64 `json:"trailing"`
	Symbols   []SymbolPnL        `json:"symbols"`
}

// Compute derives every metric from the simulation outputs.
// Inputs are copied and sorted, so the result does not depend on their order.
func Compute(in Input) (*Report, error) {
	if len(in.EquityCurve) == 0 {
		return nil, ErrEmptyCurve
	}

	curve := append([]contracts.EquityPoint(nil), in.EquityCurve...)
	sort.SliceStable(curve, func(i, j int) bool { return curve[i].Date.Before(curve[j].Date) })
	trades := sortedTrades(in.Trades)

	r := &Report{
		StartDate:   curve[0].Date,
		EndDate:     curve[len(curve)-1].Date,
		FinalEquity: curve[len(curve)-1].Equity,
		Trailing:    make(map[string]float64),
	}
	r.InitialEquity = in.InitialCapital
	if r.InitialEquity <= 0 {
		r.InitialEquity = curve[0].Equity
	}
	r.Years = yearsBetween(r.StartDate, r.EndDate)

	// 수익률
	r.TotalReturn = r.FinalEquity/r.InitialEquity - 1
	r.CAGR = cagr(r.InitialEquity, r.FinalEquity, r.Years)

	// 리스크 지표
	returns := dailyReturns(curve)
	r.Volatility = stdDev(returns) * math.Sqrt(tradingDaysPerYear)
	if r.Volatility > 0 {
		r.Sharpe = r.CAGR / r.Volatility
	}
	if downside := downsideDeviation(returns) * math.Sqrt(tradingDaysPerYear); downside > 0 {
		r.Sortino = r.CAGR / downside
	}
	r.Drawdown = maxDrawdown(curve, r.InitialEquity)

	// 트레이딩 지표
	avgEquity := meanEquity(curve)
	notional, perDate := 0.0, make(map[time.Time]float64)
	for _, t := range trades {
		notional += t.Notional()
		perDate[t.Date] += t.Notional()
		r.TotalSlippage += t.SlippageCost
	}
	if avgEquity > 0 {
		if r.Years > 0 {
			r.Turnover = notional / avgEquity / r.Years
		}
		r.CostDrag = r.TotalSlippage / avgEquity
	}
	r.AvgTurnoverPct = avgTurnoverPct(curve, perDate)
	r.AvgHoldingDays, r.ClosedTrips = holdingPeriod(trades)
	r.HitRate, r.HitRates = hitRates(in.Entries)
	r.Frequency = frequency(trades, r.StartDate, r.EndDate)

	// 비교
	if in.Benchmark != nil {
		if first, last, ok := in.Benchmark.Between(r.StartDate, r.EndDate); ok && first > 0 {
			b := &BenchmarkStats{
				Name:        in.Benchmark.Name,
				TotalReturn: last/first - 1,
				CAGR:        cagr(first, last, r.Years),
			}
			b.ExcessCAGR = r.CAGR - b.CAGR
			r.Benchmark = b
		}
	}
	for _, w := range trailingWindows {
		if len(curve) > w.Days {
			base := curve[len(curve)-1-w.Days].Equity
			if base > 0 {
				r.Trailing[w.Label] = r.FinalEquity/base - 1
			}
		}
	}
	r.Symbols = SymbolAttribution(trades, nil)

	return r, nil
}

// Row is one line of the metrics table
type Row struct {
	Metric string
	Value  float64
}

// Rows flattens the headline metrics into a two-column table
func (r *Report) Rows() []Row {
	rows := []Row{
		{"initial_equity", r.InitialEquity},
		{"final_equity", r.FinalEquity},
		{"total_return", r.TotalReturn},
		{"cagr", r.CAGR},
		{"volatility", r.Volatility},
		{"sharpe", r.Sharpe},
		{"sortino", r.Sortino},
		{"max_drawdown", r.Drawdown.Depth},
		{"max_drawdown_duration_days", float64(r.Drawdown.DurationDays)},
		{"max_drawdown_recovery_days", float64(r.Drawdown.RecoveryDays)},
		{"turnover", r.Turnover},
		{"avg_turnover_pct", r.AvgTurnoverPct},
		{"total_slippage", r.TotalSlippage},
		{"cost_drag", r.CostDrag},
		{"avg_holding_days", r.AvgHoldingDays},
		{"closed_trips", float64(r.ClosedTrips)},
		{"hit_rate_overall", r.HitRate},
		{"trades_total", float64(r.Frequency.Total)},
		{"trades_per_week", r.Frequency.PerWeek},
		{"trades_per_month", r.Frequency.PerMonth},
		{"trades_per_year", r.Frequency.PerYear},
	}
	for _, q := range r.HitRates {
		rows = append(rows, Row{Metric: "hit_rate_q" + strconv.Itoa(q.Quintile), Value: q.HitRate})
	}
	if r.Benchmark != nil {
		rows = append(rows,
			Row{"benchmark_total_return", r.Benchmark.TotalReturn},
			Row{"benchmark_cagr", r.Benchmark.CAGR},
			Row{"excess_cagr", r.Benchmark.ExcessCAGR},
		)
	}
	for _, w := range trailingWindows {
		if v, ok := r.Trailing[w.Label]; ok {
			rows = append(rows, Row{Metric: "trailing_" + w.Label, Value: v})
		}
	}
	return rows
}

func sortedTrades(in []contracts.TradeRecord) []contracts.TradeRecord {
	out := append([]contracts.TradeRecord(nil), in...)
	// sells before buys on the same date, matching execution order
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Side != out[j].Side {
			return out[i].Side == contracts.SideSell
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func yearsBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / daysPerYear
}

// cagr annualizes growth over the elapsed calendar span
func cagr(start, end, years float64) float64 {
	if start <= 0 || years <= 0 {
		return 0
	}
	if end <= 0 {
		return -1
	}
	return math.Pow(end/start, 1/years) - 1
}

func dailyReturns(curve []contracts.EquityPoint) []float64 {
	out := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		if prev := curve[i-1].Equity; prev > 0 {
			out = append(out, curve[i].Equity/prev-1)
		}
	}
	return out
}

// stdDev is the sample standard deviation
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var variance float64
	for _, x := range xs {
		diff := x - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

// downsideDeviation is the root mean square of negative returns
func downsideDeviation(xs []float64) float64 {
	var sumSq float64
	var n int
	for _, x := range xs {
		if x < 0 {
			sumSq += x * x
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

func maxDrawdown(curve []contracts.EquityPoint, initial float64) DrawdownStats {
	stats := DrawdownStats{RecoveryDays: -1}
	peak, peakIdx := initial, 0
	worstPeakIdx, troughIdx := -1, -1

	for i, p := range curve {
		if p.Equity > peak {
			peak, peakIdx = p.Equity, i
		}
		if peak <= 0 {
			continue
		}
		if dd := 1 - p.Equity/peak; dd > stats.Depth {
			stats.Depth = dd
			worstPeakIdx, troughIdx = peakIdx, i
		}
	}
	if troughIdx < 0 {
		return DrawdownStats{}
	}

	stats.Peak = curve[worstPeakIdx].Date
	stats.Trough = curve[troughIdx].Date
	stats.DurationDays = troughIdx - worstPeakIdx

	level := math.Max(initial, curve[worstPeakIdx].Equity)
	for i := troughIdx + 1; i < len(curve); i++ {
		if curve[i].Equity >= level {
			stats.Recovery = curve[i].Date
			stats.RecoveryDays = i - troughIdx
			break
		}
	}
	return stats
}

func meanEquity(curve []contracts.EquityPoint) float64 {
	var sum float64
	for _, p := range curve {
		sum += p.Equity
	}
	return sum / float64(len(curve))
}

// avgTurnoverPct averages traded notional over equity across dates with trades
func avgTurnoverPct(curve []contracts.EquityPoint, perDate map[time.Time]float64) float64 {
	var sum float64
	var n int
	for _, p := range curve {
		notional, ok := perDate[p.Date]
		if !ok || p.Equity <= 0 {
			continue
		}
		sum += notional / p.Equity
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// holdingPeriod averages calendar days from first buy to full exit
func holdingPeriod(trades []contracts.TradeRecord) (float64, int) {
	type open struct {
		since  time.Time
		shares float64
	}
	book := make(map[string]*open)
	var totalDays float64
	var trips int

	for _, t := range trades {
		o, ok := book[t.Symbol]
		switch t.Side {
		case contracts.SideBuy:
			if !ok {
				o = &open{since: t.Date}
				book[t.Symbol] = o
			}
			o.shares += t.Shares
		case contracts.SideSell:
			if !ok {
				continue
			}
			o.shares -= t.Shares
			if o.shares <= flatTolerance*math.Max(1, t.Shares) {
				totalDays += t.Date.Sub(o.since).Hours() / 24
				trips++
				delete(book, t.Symbol)
			}
		}
	}
	if trips == 0 {
		return 0, 0
	}
	return totalDays / float64(trips), trips
}

const flatTolerance = 1e-9

// hitRates buckets resolved entries into composite-score quintiles
func hitRates(entries []contracts.EntryOutcome) (float64, []QuintileHitRate) {
	resolved := make([]contracts.EntryOutcome, 0, len(entries))
	for _, e := range entries {
		if e.Resolved {
			resolved = append(resolved, e)
		}
	}
	if len(resolved) == 0 {
		return 0, nil
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		a, b := resolved[i], resolved[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Symbol < b.Symbol
	})

	buckets := make([]QuintileHitRate, quintiles)
	for q := range buckets {
		buckets[q].Quintile = q + 1
	}
	hits := 0
	for i, e := range resolved {
		q := i * quintiles / len(resolved)
		buckets[q].Entries++
		if e.ForwardReturn > 0 {
			buckets[q].Hits++
			hits++
		}
	}

	out := make([]QuintileHitRate, 0, quintiles)
	for _, b := range buckets {
		if b.Entries == 0 {
			continue
		}
		b.HitRate = float64(b.Hits) / float64(b.Entries)
		out = append(out, b)
	}
	return float64(hits) / float64(len(resolved)), out
}

// frequency averages trade counts per week, month and year of the simulated span
func frequency(trades []contracts.TradeRecord, start, end time.Time) TradeFrequency {
	f := TradeFrequency{Total: len(trades), ByYear: make(map[int]int)}
	for _, t := range trades {
		f.ByYear[t.Date.Year()]++
	}

	days := end.Sub(start).Hours()/24 + 1
	if days <= 0 {
		return f
	}
	f.PerWeek = float64(f.Total) / (days / 7)
	f.PerMonth = float64(f.Total) / (days / (daysPerYear / 12))
	f.PerYear = float64(f.Total) / (days / daysPerYear)
	return f
}
