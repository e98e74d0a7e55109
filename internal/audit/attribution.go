package audit

import (
	"sort"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// SymbolPnL is the profit contribution of one symbol
type SymbolPnL struct {
	Symbol        string  `json:"symbol"`
	Trades        int     `json:"trades"`
	Bought        float64 `json:"bought"` // notional
	Sold          float64 `json:"sold"`   // notional
	Slippage      float64 `json:"slippage"`
	RealizedPnL   float64 `json:"realized_pnl"`
	OpenShares    float64 `json:"open_shares"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Total returns realized plus unrealized P&L
func (s SymbolPnL) Total() float64 {
	return s.RealizedPnL + s.UnrealizedPnL
}

// SymbolAttribution attributes P&L to symbols using average cost.
// marks gives the closing price of open positions; nil leaves them unrealized at zero.
func SymbolAttribution(trades []contracts.TradeRecord, marks map[string]float64) []SymbolPnL {
	type book struct {
		pnl    SymbolPnL
		shares float64
		cost   float64 // cost basis of open shares, slippage included
	}
	books := make(map[string]*book)

	for _, t := range sortedTrades(trades) {
		b, ok := books[t.Symbol]
		if !ok {
			b = &book{pnl: SymbolPnL{Symbol: t.Symbol}}
			books[t.Symbol] = b
		}
		b.pnl.Trades++
		b.pnl.Slippage += t.SlippageCost

		switch t.Side {
		case contracts.SideBuy:
			b.pnl.Bought += t.Notional()
			b.shares += t.Shares
			b.cost += t.Notional() + t.SlippageCost
		case contracts.SideSell:
			b.pnl.Sold += t.Notional()
			if b.shares <= 0 {
				continue
			}
			shares := t.Shares
			if shares > b.shares {
				shares = b.shares
			}
			basis := b.cost * shares / b.shares
			b.pnl.RealizedPnL += t.CashFlow() - basis
			b.cost -= basis
			b.shares -= shares
			if b.shares <= flatTolerance {
				b.shares, b.cost = 0, 0
			}
		}
	}

	out := make([]SymbolPnL, 0, len(books))
	for symbol, b := range books {
		b.pnl.OpenShares = b.shares
		if price, ok := marks[symbol]; ok && b.shares > 0 {
			b.pnl.UnrealizedPnL = b.shares*price - b.cost
		}
		out = append(out, b.pnl)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total() != out[j].Total() {
			return out[i].Total() > out[j].Total()
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// BestWorst returns up to n top and bottom contributors.
// The two lists never share a symbol: best takes at most the upper half
// (the middle row of an odd count) and worst the lower half.
func BestWorst(rows []SymbolPnL, n int) (best, worst []SymbolPnL) {
	nb, nw := n, n
	if half := (len(rows) + 1) / 2; nb > half {
		nb = half
	}
	if half := len(rows) / 2; nw > half {
		nw = half
	}
	best = append(best, rows[:nb]...)
	for i := len(rows) - 1; i >= len(rows)-nw; i-- {
		worst = append(worst, rows[i])
	}
	return best, worst
}
