package contracts

import (
	"sort"
	"time"
)

// TradingDaysPerMonth maps lookback months to trading-day counts
const TradingDaysPerMonth = 21

// Horizon is a momentum lookback expressed in months
type Horizon int

const (
	Horizon3M  Horizon = 3
	Horizon6M  Horizon = 6
	Horizon12M Horizon = 12
)

// AllHorizons lists the supported horizons in output column order
var AllHorizons = []Horizon{Horizon12M, Horizon6M, Horizon3M}

// Days returns the horizon length in trading days
func (h Horizon) Days() int {
	return int(h) * TradingDaysPerMonth
}

// Valid reports whether the horizon is one of 3, 6 or 12 months
func (h Horizon) Valid() bool {
	return h == Horizon3M || h == Horizon6M || h == Horizon12M
}

// HorizonScore holds one horizon's intermediate values for a symbol-date
type HorizonScore struct {
	Score      float64 `json:"score"` // R / vol^power
	ZScore     float64 `json:"z_score"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
}

// SignalRow is one ranked (date, symbol) momentum entry
// ⭐ SSOT: SignalBuilder → PortfolioSimulator 전달 단위
type SignalRow struct {
	Date           time.Time                `json:"date"`
	Rank           int                      `json:"rank"`
	Symbol         string                   `json:"symbol"`
	CompositeScore float64                  `json:"composite_score"`
	Horizons       map[Horizon]HorizonScore `json:"horizons"`
}

// SignalTable is the ranked momentum table, ordered by (date, rank)
type SignalTable struct {
	Horizons []Horizon  `json:"horizons"`
	Rows     []SignalRow `json:"rows"`
}

// Sort orders rows by date then rank
func (t *SignalTable) Sort() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		if !t.Rows[i].Date.Equal(t.Rows[j].Date) {
			return t.Rows[i].Date.Before(t.Rows[j].Date)
		}
		return t.Rows[i].Rank < t.Rows[j].Rank
	})
}

// Dates returns the distinct signal dates in ascending order
func (t *SignalTable) Dates() []time.Time {
	seen := make(map[time.Time]struct{})
	dates := make([]time.Time, 0)
	for _, row := range t.Rows {
		d := NormalizeDate(row.Date)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// ByDate groups rows by date, each group ordered by rank
func (t *SignalTable) ByDate() map[time.Time][]SignalRow {
	out := make(map[time.Time][]SignalRow)
	for _, row := range t.Rows {
		d := NormalizeDate(row.Date)
		out[d] = append(out[d], row)
	}
	for d := range out {
		rows := out[d]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	}
	return out
}

// HasHorizon reports whether the table was built with the given horizon enabled
func (t *SignalTable) HasHorizon(h Horizon) bool {
	for _, enabled := range t.Horizons {
		if enabled == h {
			return true
		}
	}
	return false
}
