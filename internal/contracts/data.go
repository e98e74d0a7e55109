package contracts

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the date format used by every tabular input and output
const DateLayout = "2006-01-02"

// Bar is one daily OHLC observation
type Bar struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// FillPrice returns the typical price used for every simulated fill
func (b Bar) FillPrice() float64 {
	return (b.Open + b.High + b.Low + b.Close) / 4
}

// DatedBar is a bar keyed by its trading date
type DatedBar struct {
	Date time.Time
	Bar
}

// PricePanel is a date × symbol OHLC panel
// ⭐ SSOT: 모든 컴포넌트는 이 패널만 읽는다 (읽기 전용)
//
// Dates are strictly increasing. A symbol missing on a date means it did not
// trade that day.
type PricePanel struct {
	dates   []time.Time
	index   map[time.Time]int
	symbols []string
	bars    map[string][]*Bar // aligned with dates, nil = no bar
}

// NewPricePanel builds a panel from per-symbol series.
// The calendar is the union of all series dates.
func NewPricePanel(series map[string][]DatedBar) (*PricePanel, error) {
	seen := make(map[time.Time]struct{})
	for symbol, rows := range series {
		own := make(map[time.Time]struct{}, len(rows))
		for _, row := range rows {
			d := NormalizeDate(row.Date)
			if _, dup := own[d]; dup {
				return nil, fmt.Errorf("symbol %s: duplicate date %s", symbol, d.Format(DateLayout))
			}
			own[d] = struct{}{}
			seen[d] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	p := &PricePanel{
		dates: dates,
		index: make(map[time.Time]int, len(dates)),
		bars:  make(map[string][]*Bar, len(series)),
	}
	for i, d := range dates {
		p.index[d] = i
	}

	for symbol, rows := range series {
		if len(rows) == 0 {
			continue
		}
		aligned := make([]*Bar, len(dates))
		for _, row := range rows {
			bar := row.Bar
			aligned[p.index[NormalizeDate(row.Date)]] = &bar
		}
		p.bars[symbol] = aligned
		p.symbols = append(p.symbols, symbol)
	}
	sort.Strings(p.symbols)

	return p, nil
}

// NormalizeDate truncates a timestamp to its UTC calendar date
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Len returns the number of trading dates
func (p *PricePanel) Len() int {
	return len(p.dates)
}

// Dates returns a copy of the trading calendar
func (p *PricePanel) Dates() []time.Time {
	out := make([]time.Time, len(p.dates))
	copy(out, p.dates)
	return out
}

// Date returns the i-th trading date
func (p *PricePanel) Date(i int) time.Time {
	return p.dates[i]
}

// IndexOf returns the position of a trading date in the calendar
func (p *PricePanel) IndexOf(date time.Time) (int, bool) {
	i, ok := p.index[NormalizeDate(date)]
	return i, ok
}

// Symbols returns the sorted symbol list
func (p *PricePanel) Symbols() []string {
	out := make([]string, len(p.symbols))
	copy(out, p.symbols)
	return out
}

// Bar returns the bar of a symbol at date index i
func (p *PricePanel) Bar(i int, symbol string) (Bar, bool) {
	series, ok := p.bars[symbol]
	if !ok || i < 0 || i >= len(series) || series[i] == nil {
		return Bar{}, false
	}
	return *series[i], true
}

// Closes returns the symbol's own close history (trading days only) and the
// panel index of each observation.
func (p *PricePanel) Closes(symbol string) ([]float64, []int) {
	series := p.bars[symbol]
	closes := make([]float64, 0, len(series))
	idx := make([]int, 0, len(series))
	for i, bar := range series {
		if bar == nil {
			continue
		}
		closes = append(closes, bar.Close)
		idx = append(idx, i)
	}
	return closes, idx
}

// Restrict returns a panel holding only the given symbols on the same calendar.
// Unknown symbols are ignored.
func (p *PricePanel) Restrict(symbols []string) *PricePanel {
	out := &PricePanel{
		dates: p.dates,
		index: p.index,
		bars:  make(map[string][]*Bar, len(symbols)),
	}
	for _, s := range symbols {
		if series, ok := p.bars[s]; ok {
			if _, dup := out.bars[s]; dup {
				continue
			}
			out.bars[s] = series
			out.symbols = append(out.symbols, s)
		}
	}
	sort.Strings(out.symbols)
	return out
}

// Fingerprint summarizes the panel shape for cache keys
func (p *PricePanel) Fingerprint() string {
	if len(p.dates) == 0 {
		return "empty"
	}
	return fmt.Sprintf("%d:%d:%s:%s",
		len(p.symbols), len(p.dates),
		p.dates[0].Format(DateLayout), p.dates[len(p.dates)-1].Format(DateLayout))
}

// Series is a dated value series such as a benchmark close
type Series struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// Returns returns simple daily returns keyed by the later date
func (s *Series) Returns() map[time.Time]float64 {
	out := make(map[time.Time]float64, len(s.Values))
	for i := 1; i < len(s.Values); i++ {
		if s.Values[i-1] == 0 {
			continue
		}
		out[NormalizeDate(s.Dates[i])] = s.Values[i]/s.Values[i-1] - 1
	}
	return out
}

// Between returns the first and last values inside [from, to]
func (s *Series) Between(from, to time.Time) (float64, float64, bool) {
	first, last := -1, -1
	for i, d := range s.Dates {
		if d.Before(from) || d.After(to) {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return 0, 0, false
	}
	return s.Values[first], s.Values[last], true
}
