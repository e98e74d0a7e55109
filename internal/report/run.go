package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/momentum-lab/internal/audit"
	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/contracts"
)

// Run directory files
const (
	EquityFile   = "equity_curve.csv"
	TradesFile   = "trades.csv"
	MetricsFile  = "metrics.csv"
	EntriesFile  = "entries.csv"
	WarningsFile = "warnings.csv"
	ConfigFile   = "config.json"
	SignalsFile  = "signals.csv"
)

var (
	equityHeader   = []string{"date", "equity", "exposure_fraction", "drawdown"}
	tradeHeader    = []string{"date", "symbol", "side", "shares", "fill_price", "slippage_cost"}
	metricHeader   = []string{"metric", "value"}
	entryHeader    = []string{"date", "symbol", "rank", "composite_score", "entry_price", "forward_return", "resolved"}
	warningsHeader = []string{"date", "symbol", "last_price", "last_date"}
)

type tableWriter struct {
	name  string
	write func(io.Writer) error
}

// WriteRun writes every table of a backtest into dir
// ⭐ SSOT: 백테스트 결과 저장 포맷은 여기서만
func WriteRun(dir string, out *backtest.RunOutput) error {
	if out == nil || out.Result == nil {
		return fmt.Errorf("no simulation result to write")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	res := out.Result
	writers := []tableWriter{
		{EquityFile, func(w io.Writer) error { return WriteEquity(w, res.EquityCurve) }},
		{TradesFile, func(w io.Writer) error { return WriteTrades(w, res.Trades) }},
		{EntriesFile, func(w io.Writer) error { return WriteEntries(w, res.Entries) }},
		{WarningsFile, func(w io.Writer) error { return WriteWarnings(w, res.Warnings) }},
	}
	if out.Metrics != nil {
		writers = append(writers, tableWriter{MetricsFile, func(w io.Writer) error { return WriteMetrics(w, out.Metrics.Rows()) }})
	}
	if out.Signals != nil {
		writers = append(writers, tableWriter{SignalsFile, func(w io.Writer) error { return WriteSignals(w, out.Signals) }})
	}

	for _, f := range writers {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFile), data, 0644)
}

// WriteEquity writes the equity curve table
func WriteEquity(w io.Writer, curve []contracts.EquityPoint) error {
	rows := make([][]string, 0, len(curve))
	for _, p := range curve {
		rows = append(rows, []string{
			p.Date.Format(contracts.DateLayout),
			formatFloat(p.Equity),
			formatFloat(p.Exposure),
			formatFloat(p.Drawdown),
		})
	}
	return writeCSV(w, equityHeader, rows)
}

// WriteTrades writes the trade log
func WriteTrades(w io.Writer, trades []contracts.TradeRecord) error {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			t.Date.Format(contracts.DateLayout),
			t.Symbol,
			string(t.Side),
			formatFloat(t.Shares),
			formatFloat(t.FillPrice),
			formatFloat(t.SlippageCost),
		})
	}
	return writeCSV(w, tradeHeader, rows)
}

// WriteMetrics writes the metric,value table
func WriteMetrics(w io.Writer, metrics []audit.Row) error {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{m.Metric, formatFloat(m.Value)})
	}
	return writeCSV(w, metricHeader, rows)
}

// WriteEntries writes entry outcomes
func WriteEntries(w io.Writer, entries []contracts.EntryOutcome) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		fwd := ""
		if e.Resolved {
			fwd = formatFloat(e.ForwardReturn)
		}
		rows = append(rows, []string{
			e.Date.Format(contracts.DateLayout),
			e.Symbol,
			strconv.Itoa(e.Rank),
			formatFloat(e.CompositeScore),
			formatFloat(e.EntryPrice),
			fwd,
			strconv.FormatBool(e.Resolved),
		})
	}
	return writeCSV(w, entryHeader, rows)
}

// WriteWarnings writes stale price warnings
func WriteWarnings(w io.Writer, warnings []contracts.StalePriceWarning) error {
	rows := make([][]string, 0, len(warnings))
	for _, sw := range warnings {
		rows = append(rows, []string{
			sw.Date.Format(contracts.DateLayout),
			sw.Symbol,
			formatFloat(sw.LastPrice),
			sw.LastDate.Format(contracts.DateLayout),
		})
	}
	return writeCSV(w, warningsHeader, rows)
}

// ReadEquity parses an equity curve table
func ReadEquity(r io.Reader) ([]contracts.EquityPoint, error) {
	tbl, err := readCSV(r, equityHeader...)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.EquityPoint, 0, len(tbl.records))
	for i, record := range tbl.records {
		line := i + 2
		date, err := time.Parse(contracts.DateLayout, tbl.cell(record, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date: %w", line, err)
		}
		p := contracts.EquityPoint{Date: date}
		if p.Equity, err = tbl.float(record, "equity", line); err != nil {
			return nil, err
		}
		if p.Exposure, err = tbl.float(record, "exposure_fraction", line); err != nil {
			return nil, err
		}
		if p.Drawdown, err = tbl.float(record, "drawdown", line); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadTrades parses a trade log
func ReadTrades(r io.Reader) ([]contracts.TradeRecord, error) {
	tbl, err := readCSV(r, tradeHeader...)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.TradeRecord, 0, len(tbl.records))
	for i, record := range tbl.records {
		line := i + 2
		date, err := time.Parse(contracts.DateLayout, tbl.cell(record, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date: %w", line, err)
		}
		side := contracts.Side(tbl.cell(record, "side"))
		if side != contracts.SideBuy && side != contracts.SideSell {
			return nil, fmt.Errorf("line %d: invalid side %q", line, side)
		}
		t := contracts.TradeRecord{Date: date, Symbol: tbl.cell(record, "symbol"), Side: side}
		if t.Shares, err = tbl.float(record, "shares", line); err != nil {
			return nil, err
		}
		if t.FillPrice, err = tbl.float(record, "fill_price", line); err != nil {
			return nil, err
		}
		if t.SlippageCost, err = tbl.float(record, "slippage_cost", line); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ReadMetrics parses a metric,value table. Empty values are skipped.
func ReadMetrics(r io.Reader) ([]audit.Row, error) {
	tbl, err := readCSV(r, metricHeader...)
	if err != nil {
		return nil, err
	}

	out := make([]audit.Row, 0, len(tbl.records))
	for i, record := range tbl.records {
		if tbl.cell(record, "value") == "" {
			continue
		}
		v, err := tbl.float(record, "value", i+2)
		if err != nil {
			return nil, err
		}
		out = append(out, audit.Row{Metric: tbl.cell(record, "metric"), Value: v})
	}
	return out, nil
}

// RunInfo describes one run directory
type RunInfo struct {
	ID       string    `json:"id"`
	Modified time.Time `json:"modified"`
	Tables   []string  `json:"tables"`
}

// ListRuns returns the run directories under root (those holding an equity
// curve), newest first
func ListRuns(root string) ([]RunInfo, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]RunInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		info, err := os.Stat(filepath.Join(dir, EquityFile))
		if err != nil {
			continue
		}
		run := RunInfo{ID: e.Name(), Modified: info.ModTime()}
		for _, name := range []string{EquityFile, TradesFile, MetricsFile, EntriesFile, WarningsFile, SignalsFile, ConfigFile} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				run.Tables = append(run.Tables, name)
			}
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].Modified.Equal(runs[j].Modified) {
			return runs[i].Modified.After(runs[j].Modified)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}
