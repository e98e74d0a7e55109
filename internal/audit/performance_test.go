package audit

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/contracts"
)

func day(n int) time.Time {
	return time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func curveOf(values ...float64) []contracts.EquityPoint {
	out := make([]contracts.EquityPoint, len(values))
	for i, v := range values {
		out[i] = contracts.EquityPoint{Date: day(i), Equity: v, Exposure: 1}
	}
	return out
}

func trade(d int, symbol string, side contracts.Side, shares, price float64) contracts.TradeRecord {
	return contracts.TradeRecord{
		Date:         day(d),
		Symbol:       symbol,
		Side:         side,
		Shares:       shares,
		FillPrice:    price,
		SlippageCost: shares * price * 0.002,
	}
}

func TestCompute_EmptyCurve(t *testing.T) {
	_, err := Compute(Input{InitialCapital: 100})
	assert.ErrorIs(t, err, ErrEmptyCurve)
}

func TestCompute_CAGRUsesCalendarSpan(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []contracts.EquityPoint{
		{Date: start, Equity: 100},
		{Date: end, Equity: 121},
	}

	r, err := Compute(Input{InitialCapital: 100, EquityCurve: curve})
	require.NoError(t, err)

	years := end.Sub(start).Hours() / 24 / 365.25
	assert.InDelta(t, math.Pow(1.21, 1/years)-1, r.CAGR, 1e-12)
	assert.InDelta(t, 0.21, r.TotalReturn, 1e-12)
	assert.InDelta(t, years, r.Years, 1e-12)
}

func TestCompute_MaxDrawdownAndRecovery(t *testing.T) {
	r, err := Compute(Input{InitialCapital: 100, EquityCurve: curveOf(100, 120, 90, 100, 130, 125)})
	require.NoError(t, err)

	assert.InDelta(t, 0.25, r.Drawdown.Depth, 1e-12)
	assert.Equal(t, day(1), r.Drawdown.Peak)
	assert.Equal(t, day(2), r.Drawdown.Trough)
	assert.Equal(t, 1, r.Drawdown.DurationDays)
	assert.Equal(t, 2, r.Drawdown.RecoveryDays)
	assert.Equal(t, day(4), r.Drawdown.Recovery)

	r, err = Compute(Input{InitialCapital: 100, EquityCurve: curveOf(100, 80, 90)})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, r.Drawdown.Depth, 1e-12)
	assert.Equal(t, -1, r.Drawdown.RecoveryDays)

	r, err = Compute(Input{InitialCapital: 100, EquityCurve: curveOf(100, 101, 102)})
	require.NoError(t, err)
	assert.Zero(t, r.Drawdown.Depth)
}

func TestCompute_TurnoverAndCostDrag(t *testing.T) {
	curve := curveOf(1000, 1000, 1000)
	trades := []contracts.TradeRecord{
		trade(0, "A", contracts.SideBuy, 5, 100),
		trade(2, "A", contracts.SideSell, 5, 100),
	}

	r, err := Compute(Input{InitialCapital: 1000, EquityCurve: curve, Trades: trades})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, r.TotalSlippage, 1e-12)
	assert.InDelta(t, 2.0/1000, r.CostDrag, 1e-12)
	assert.InDelta(t, 1000.0/1000/r.Years, r.Turnover, 1e-9)
	assert.InDelta(t, 0.5, r.AvgTurnoverPct, 1e-12)
}

func TestCompute_HoldingPeriod(t *testing.T) {
	curve := curveOf(make([]float64, 15)...)
	for i := range curve {
		curve[i].Equity = 1000
	}
	trades := []contracts.TradeRecord{
		trade(0, "A", contracts.SideBuy, 10, 10),
		trade(3, "A", contracts.SideSell, 4, 10), // resize, still open
		trade(10, "A", contracts.SideSell, 6, 10),
		trade(2, "B", contracts.SideBuy, 10, 10),
		trade(6, "B", contracts.SideSell, 10, 10),
		trade(7, "C", contracts.SideBuy, 10, 10), // never exited
	}

	r, err := Compute(Input{InitialCapital: 1000, EquityCurve: curve, Trades: trades})
	require.NoError(t, err)

	assert.Equal(t, 2, r.ClosedTrips)
	assert.InDelta(t, (10.0+4.0)/2, r.AvgHoldingDays, 1e-12)
	assert.Equal(t, 6, r.Frequency.Total)
	assert.Equal(t, 6, r.Frequency.ByYear[2021])
	assert.InDelta(t, 6/(15.0/7), r.Frequency.PerWeek, 1e-12)
}

func TestCompute_HitRateByQuintile(t *testing.T) {
	entries := make([]contracts.EntryOutcome, 0, 11)
	for i := 0; i < 10; i++ {
		score := float64(10 - i)
		ret := -0.01
		if i < 4 {
			ret = 0.02
		}
		entries = append(entries, contracts.EntryOutcome{
			Date:           day(i),
			Symbol:         string(rune('A' + i)),
			CompositeScore: score,
			ForwardReturn:  ret,
			Resolved:       true,
		})
	}
	entries = append(entries, contracts.EntryOutcome{Symbol: "Z", CompositeScore: 99, ForwardReturn: 1})

	r, err := Compute(Input{InitialCapital: 100, EquityCurve: curveOf(100, 100), Entries: entries})
	require.NoError(t, err)

	require.Len(t, r.HitRates, 5)
	want := []float64{1, 1, 0, 0, 0}
	for i, q := range r.HitRates {
		assert.Equal(t, i+1, q.Quintile)
		assert.Equal(t, 2, q.Entries)
		assert.InDelta(t, want[i], q.HitRate, 1e-12)
	}
	assert.InDelta(t, 0.4, r.HitRate, 1e-12)
}

func TestCompute_BenchmarkAndTrailing(t *testing.T) {
	values := make([]float64, 30)
	bench := &contracts.Series{Name: "NIFTY100"}
	for i := range values {
		values[i] = 100 + float64(i)
		bench.Dates = append(bench.Dates, day(i))
		bench.Values = append(bench.Values, 200+float64(i))
	}

	r, err := Compute(Input{InitialCapital: 100, EquityCurve: curveOf(values...), Benchmark: bench})
	require.NoError(t, err)

	require.NotNil(t, r.Benchmark)
	assert.InDelta(t, 229.0/200-1, r.Benchmark.TotalReturn, 1e-12)
	assert.InDelta(t, r.CAGR-r.Benchmark.CAGR, r.Benchmark.ExcessCAGR, 1e-12)

	assert.InDelta(t, 129.0/108-1, r.Trailing["1M"], 1e-12)
	_, ok := r.Trailing["3M"]
	assert.False(t, ok)

	metrics := make(map[string]float64)
	for _, row := range r.Rows() {
		metrics[row.Metric] = row.Value
	}
	assert.Contains(t, metrics, "benchmark_cagr")
	assert.Contains(t, metrics, "trailing_1M")
	assert.NotContains(t, metrics, "trailing_1Y")
}

func TestCompute_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	values := make([]float64, 80)
	v := 1000.0
	for i := range values {
		v *= 1 + rng.NormFloat64()*0.01
		values[i] = v
	}
	curve := curveOf(values...)
	trades := []contracts.TradeRecord{
		trade(0, "A", contracts.SideBuy, 3, 100),
		trade(0, "B", contracts.SideBuy, 2, 150),
		trade(20, "A", contracts.SideSell, 3, 104),
		trade(20, "C", contracts.SideBuy, 1, 290),
		trade(50, "B", contracts.SideSell, 2, 140),
	}

	first, err := Compute(Input{InitialCapital: 1000, EquityCurve: curve, Trades: trades})
	require.NoError(t, err)

	shuffledCurve := append([]contracts.EquityPoint(nil), curve...)
	shuffledTrades := append([]contracts.TradeRecord(nil), trades...)
	rng.Shuffle(len(shuffledCurve), func(i, j int) { shuffledCurve[i], shuffledCurve[j] = shuffledCurve[j], shuffledCurve[i] })
	rng.Shuffle(len(shuffledTrades), func(i, j int) { shuffledTrades[i], shuffledTrades[j] = shuffledTrades[j], shuffledTrades[i] })

	second, err := Compute(Input{InitialCapital: 1000, EquityCurve: shuffledCurve, Trades: shuffledTrades})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
