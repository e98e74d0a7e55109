package report

import (
	"io"
	"strconv"

	"github.com/wonny/momentum-lab/internal/experiment"
)

var sweepHeader = []string{
	"trial_id", "mode", "label", "status", "error", "run_id",
	"lookbacks", "skip_days", "vol_floor", "top_n", "exit_buffer", "pnl_hold", "scenario",
	"rebalance_weeks", "universe_size", "universe_seed", "data_gaps",
	"total_return", "cagr", "volatility", "sharpe", "max_drawdown", "turnover", "avg_turnover_pct",
	"cost_drag", "avg_holding_days", "hit_rate", "trades", "rebalances", "final_equity", "seconds", "rank_cagr",
}

var aggregateHeader = []string{
	"key", "value", "trials", "failed", "mean_cagr", "mean_max_drawdown", "mean_sharpe", "mean_trades", "best_trial_id",
}

// WriteSweep writes one line per trial row
func WriteSweep(w io.Writer, rows []experiment.Row) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		rank := ""
		if r.RankCAGR > 0 {
			rank = strconv.Itoa(r.RankCAGR)
		}
		out = append(out, []string{
			r.TrialID, string(r.Mode), r.Label, r.Status, r.Error, r.RunID,
			r.Lookbacks,
			strconv.Itoa(r.SkipDays),
			formatFloat(r.VolFloor),
			strconv.Itoa(r.TopN),
			strconv.Itoa(r.ExitBuffer),
			r.PnLHold,
			r.Scenario,
			strconv.Itoa(r.RebalanceWeeks),
			strconv.Itoa(r.UniverseSize),
			strconv.FormatInt(r.UniverseSeed, 10),
			strconv.Itoa(r.DataGaps),
			formatFloat(r.TotalReturn),
			formatFloat(r.CAGR),
			formatFloat(r.Volatility),
			formatFloat(r.Sharpe),
			formatFloat(r.MaxDrawdown),
			formatFloat(r.Turnover),
			formatFloat(r.AvgTurnoverPct),
			formatFloat(r.CostDrag),
			formatFloat(r.AvgHoldingDays),
			formatFloat(r.HitRate),
			strconv.Itoa(r.Trades),
			strconv.Itoa(r.Rebalances),
			formatFloat(r.FinalEquity),
			formatFloat(r.Seconds),
			rank,
		})
	}
	return writeCSV(w, sweepHeader, out)
}

// WriteSweepFile writes trial rows to path
func WriteSweepFile(path string, rows []experiment.Row) error {
	return writeFile(path, func(w io.Writer) error { return WriteSweep(w, rows) })
}

// WriteAggregate writes per-parameter means
func WriteAggregate(w io.Writer, rows []experiment.AggregateRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Key, r.Value,
			strconv.Itoa(r.Trials),
			strconv.Itoa(r.Failed),
			formatFloat(r.MeanCAGR),
			formatFloat(r.MeanMaxDD),
			formatFloat(r.MeanSharpe),
			formatFloat(r.MeanTrades),
			r.BestTrialID,
		})
	}
	return writeCSV(w, aggregateHeader, out)
}

// WriteAggregateFile writes per-parameter means to path
func WriteAggregateFile(path string, rows []experiment.AggregateRow) error {
	return writeFile(path, func(w io.Writer) error { return WriteAggregate(w, rows) })
}
