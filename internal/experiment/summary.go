package experiment

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// AggregateKeys lists the parameters rows can be grouped by
var AggregateKeys = []string{
	"lookbacks", "skip_days", "vol_floor", "top_n", "exit_buffer",
	"pnl_hold", "scenario", "rebalance_weeks", "universe_size",
}

// Summarize ranks successful rows by CAGR (ties by trial id) and returns the
// top k. k <= 0 returns every ranked row. The input is not modified.
func Summarize(rows []Row, k int) []Row {
	ranked := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.Status == StatusOK {
			ranked = append(ranked, row)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CAGR != ranked[j].CAGR {
			return ranked[i].CAGR > ranked[j].CAGR
		}
		return ranked[i].TrialID < ranked[j].TrialID
	})
	for i := range ranked {
		ranked[i].RankCAGR = i + 1
	}
	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// AggregateRow is the mean outcome of the trials sharing a parameter value
type AggregateRow struct {
	Key         string  `json:"key"`
	Value       string  `json:"value"`
	Trials      int     `json:"trials"`
	Failed      int     `json:"failed"`
	MeanCAGR    float64 `json:"mean_cagr"`
	MeanMaxDD   float64 `json:"mean_max_drawdown"`
	MeanSharpe  float64 `json:"mean_sharpe"`
	MeanTrades  float64 `json:"mean_trades"`
	BestTrialID string  `json:"best_trial_id"`
}

// Aggregate groups rows by one parameter. Means cover successful rows only.
func Aggregate(rows []Row, key string) ([]AggregateRow, error) {
	groups := make(map[string]*AggregateRow)
	best := make(map[string]float64)
	order := make([]string, 0)

	for _, row := range rows {
		value, err := row.Param(key)
		if err != nil {
			return nil, err
		}
		g, ok := groups[value]
		if !ok {
			g = &AggregateRow{Key: key, Value: value}
			groups[value] = g
			order = append(order, value)
		}
		if row.Status != StatusOK {
			g.Failed++
			continue
		}
		g.Trials++
		g.MeanCAGR += row.CAGR
		g.MeanMaxDD += row.MaxDrawdown
		g.MeanSharpe += row.Sharpe
		g.MeanTrades += float64(row.Trades)

		if cur, seen := best[value]; !seen || row.CAGR > cur || (row.CAGR == cur && row.TrialID < g.BestTrialID) {
			best[value] = row.CAGR
			g.BestTrialID = row.TrialID
		}
	}

	sort.Strings(order)
	out := make([]AggregateRow, 0, len(order))
	for _, value := range order {
		g := groups[value]
		if g.Trials > 0 {
			n := float64(g.Trials)
			g.MeanCAGR /= n
			g.MeanMaxDD /= n
			g.MeanSharpe /= n
			g.MeanTrades /= n
		}
		out = append(out, *g)
	}
	return out, nil
}

// Param returns the row's value of an aggregate key
func (r Row) Param(key string) (string, error) {
	switch key {
	case "lookbacks":
		return r.Lookbacks, nil
	case "skip_days":
		return strconv.Itoa(r.SkipDays), nil
	case "vol_floor":
		return formatFloat(r.VolFloor), nil
	case "top_n":
		return strconv.Itoa(r.TopN), nil
	case "exit_buffer":
		return strconv.Itoa(r.ExitBuffer), nil
	case "pnl_hold":
		return r.PnLHold, nil
	case "scenario":
		return r.Scenario, nil
	case "rebalance_weeks":
		return strconv.Itoa(r.RebalanceWeeks), nil
	case "universe_size":
		return strconv.Itoa(r.UniverseSize), nil
	default:
		return "", fmt.Errorf("%w: unknown aggregate key %q", contracts.ErrInvalidConfig, key)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
