package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/audit"
	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/experiment"
)

var (
	d1 = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	d2 = time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
)

func TestWriteSignals_HeaderAndDisabledHorizons(t *testing.T) {
	table := &contracts.SignalTable{
		Horizons: []contracts.Horizon{contracts.Horizon6M},
		Rows: []contracts.SignalRow{
			{Date: d1, Rank: 2, Symbol: "TCS", CompositeScore: -0.5, Horizons: map[contracts.Horizon]contracts.HorizonScore{
				contracts.Horizon6M: {Score: 3, ZScore: -0.5, Momentum: 0.1, Volatility: 0.02},
			}},
			{Date: d1, Rank: 1, Symbol: "INFY", CompositeScore: 0.5, Horizons: map[contracts.Horizon]contracts.HorizonScore{
				contracts.Horizon6M: {Score: 6, ZScore: 0.5, Momentum: 0.2, Volatility: 0.03},
			}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSignals(&buf, table))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "date,rank,symbol,composite_score,score_12m,score_6m,score_3m,mom_12m,mom_6m,mom_3m,vol_12m,vol_6m,vol_3m",
		strings.Join(records[0], ","))
	assert.Equal(t, []string{"2024-01-05", "1", "INFY", "0.5", "", "0.5", "", "", "0.2", "", "", "0.03", ""}, records[1])
	assert.Equal(t, "TCS", records[2][2])
}

func TestReadSignals_RoundTrip(t *testing.T) {
	table := &contracts.SignalTable{
		Horizons: []contracts.Horizon{contracts.Horizon12M, contracts.Horizon3M},
		Rows: []contracts.SignalRow{
			{Date: d2, Rank: 1, Symbol: "B", CompositeScore: 1.25, Horizons: map[contracts.Horizon]contracts.HorizonScore{
				contracts.Horizon12M: {ZScore: 1, Momentum: 0.4, Volatility: 0.02},
				contracts.Horizon3M:  {ZScore: 1.5, Momentum: 0.1, Volatility: 0.01},
			}},
			{Date: d1, Rank: 1, Symbol: "A", CompositeScore: 0.75, Horizons: map[contracts.Horizon]contracts.HorizonScore{
				contracts.Horizon12M: {ZScore: 0.5, Momentum: 0.2, Volatility: 0.02},
				contracts.Horizon3M:  {ZScore: 1, Momentum: 0.05, Volatility: 0.015},
			}},
		},
	}

	path := filepath.Join(t.TempDir(), "signals", "latest.csv")
	require.NoError(t, WriteSignalsFile(path, table))

	got, err := ReadSignalsFile(path)
	require.NoError(t, err)

	assert.Equal(t, []contracts.Horizon{contracts.Horizon12M, contracts.Horizon3M}, got.Horizons)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "A", got.Rows[0].Symbol)
	assert.True(t, got.Rows[0].Date.Equal(d1))
	assert.Equal(t, 0.75, got.Rows[0].CompositeScore)
	assert.Equal(t, contracts.HorizonScore{ZScore: 1, Momentum: 0.05, Volatility: 0.015}, got.Rows[0].Horizons[contracts.Horizon3M])
	assert.NotContains(t, got.Rows[0].Horizons, contracts.Horizon6M)
}

func TestReadSignals_Malformed(t *testing.T) {
	_, err := ReadSignals(strings.NewReader("date,rank,symbol\n"))
	assert.ErrorContains(t, err, "composite_score")

	_, err = ReadSignals(strings.NewReader("date,rank,symbol,composite_score\n2024-01-05,one,A,1\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestTradesAndEquity_RoundTrip(t *testing.T) {
	trades := []contracts.TradeRecord{
		{Date: d1, Symbol: "A", Side: contracts.SideBuy, Shares: 12.5, FillPrice: 100.25, SlippageCost: 2.50625},
		{Date: d2, Symbol: "A", Side: contracts.SideSell, Shares: 12.5, FillPrice: 101, SlippageCost: 2.525},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, trades))
	assert.True(t, strings.HasPrefix(buf.String(), "date,symbol,side,shares,fill_price,slippage_cost\n"))

	gotTrades, err := ReadTrades(&buf)
	require.NoError(t, err)
	assert.Equal(t, trades, gotTrades)

	curve := []contracts.EquityPoint{
		{Date: d1, Equity: 1_000_000, Exposure: 1, Drawdown: 0},
		{Date: d2, Equity: 950_000, Exposure: 0.25, Drawdown: 0.05},
	}
	buf.Reset()
	require.NoError(t, WriteEquity(&buf, curve))
	gotCurve, err := ReadEquity(&buf)
	require.NoError(t, err)
	assert.Equal(t, curve, gotCurve)

	_, err = ReadTrades(strings.NewReader("date,symbol,side,shares,fill_price,slippage_cost\n2024-01-05,A,short,1,1,0\n"))
	assert.ErrorContains(t, err, "invalid side")
}

func TestWriteRun(t *testing.T) {
	res := &backtest.Result{
		RunID:       "run-1",
		Config:      backtest.DefaultConfig(),
		EquityCurve: []contracts.EquityPoint{{Date: d1, Equity: 1_000_000, Exposure: 1}, {Date: d2, Equity: 1_010_000, Exposure: 1}},
		Trades:      []contracts.TradeRecord{{Date: d1, Symbol: "A", Side: contracts.SideBuy, Shares: 10, FillPrice: 100, SlippageCost: 2}},
		Entries:     []contracts.EntryOutcome{{Date: d1, Symbol: "A", Rank: 1, CompositeScore: 1, EntryPrice: 100.2}},
		Warnings:    []contracts.StalePriceWarning{{Date: d2, Symbol: "A", LastPrice: 99, LastDate: d1}},
	}
	out := &backtest.RunOutput{
		RunID:  "run-1",
		Result: res,
		Metrics: &audit.Report{
			InitialEquity: 1_000_000,
			FinalEquity:   1_010_000,
			CAGR:          0.5,
			Trailing:      map[string]float64{},
		},
	}

	root := t.TempDir()
	dir := filepath.Join(root, "run-1")
	require.NoError(t, WriteRun(dir, out))

	for _, name := range []string{EquityFile, TradesFile, MetricsFile, EntriesFile, WarningsFile, ConfigFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, SignalsFile))

	file, err := os.Open(filepath.Join(dir, MetricsFile))
	require.NoError(t, err)
	defer file.Close()
	metrics, err := ReadMetrics(file)
	require.NoError(t, err)
	assert.Contains(t, metrics, audit.Row{Metric: "cagr", Value: 0.5})

	raw, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])

	entries, err := os.ReadFile(filepath.Join(dir, EntriesFile))
	require.NoError(t, err)
	assert.Contains(t, string(entries), "2024-01-05,A,1,1,100.2,,false")

	runs, err := ListRuns(root)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Contains(t, runs[0].Tables, MetricsFile)

	assert.Error(t, WriteRun(dir, &backtest.RunOutput{}))
}

func TestListRuns_MissingRoot(t *testing.T) {
	runs, err := ListRuns(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWriteSweep(t *testing.T) {
	rows := []experiment.Row{
		{TrialID: "grid-0001", Mode: experiment.ModeGrid, Status: experiment.StatusOK, TopN: 25, PnLHold: "none", CAGR: 0.12, RankCAGR: 1},
		{TrialID: "grid-0002", Mode: experiment.ModeGrid, Status: experiment.StatusFailed, Error: "boom", TopN: 20, PnLHold: "0.05"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSweep(&buf, rows))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Len(t, records[1], len(sweepHeader))
	assert.Equal(t, "grid-0001", records[1][0])
	assert.Equal(t, "1", records[1][len(sweepHeader)-1])
	assert.Equal(t, "", records[2][len(sweepHeader)-1])
	assert.Equal(t, "boom", records[2][4])

	agg, err := experiment.Aggregate(rows, "top_n")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "agg.csv")
	require.NoError(t, WriteAggregateFile(path, agg))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "top_n,25,1,0,0.12")
}
