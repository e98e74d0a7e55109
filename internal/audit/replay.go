package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// ReplayEquity rebuilds the daily equity of a run from its trade log and the
// panel's closing marks. Cash starts at initialCapital and moves only by trade
// cash flows; held shares are marked at the latest known close.
func ReplayEquity(initialCapital float64, trades []contracts.TradeRecord, panel *contracts.PricePanel, dates []time.Time) ([]float64, error) {
	byDate := make(map[time.Time][]contracts.TradeRecord)
	for _, t := range sortedTrades(trades) {
		d := contracts.NormalizeDate(t.Date)
		byDate[d] = append(byDate[d], t)
	}

	cash := initialCapital
	shares := make(map[string]float64)
	last := make(map[string]float64)
	out := make([]float64, 0, len(dates))

	for _, date := range dates {
		i, ok := panel.IndexOf(date)
		if !ok {
			return nil, fmt.Errorf("replay date %s not in panel", date.Format(contracts.DateLayout))
		}

		for _, t := range byDate[contracts.NormalizeDate(date)] {
			cash += t.CashFlow()
			if t.Side == contracts.SideBuy {
				shares[t.Symbol] += t.Shares
				if _, seen := last[t.Symbol]; !seen {
					last[t.Symbol] = t.FillPrice
				}
			} else {
				shares[t.Symbol] -= t.Shares
			}
		}

		symbols := make([]string, 0, len(shares))
		for symbol := range shares {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)

		equity := cash
		for _, symbol := range symbols {
			if bar, ok := panel.Bar(i, symbol); ok {
				last[symbol] = bar.Close
			}
			equity += shares[symbol] * last[symbol]
		}
		out = append(out, equity)
	}

	return out, nil
}
