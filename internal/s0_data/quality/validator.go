package quality

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// Config holds quality gate thresholds
type Config struct {
	MaxGapDays   int     `yaml:"max_gap_days"`   // missing business days tolerated between bars
	MaxDailyMove float64 `yaml:"max_daily_move"` // |close/prev - 1| above this is flagged
	Strict       bool    `yaml:"strict"`         // gaps become errors
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{MaxGapDays: 3, MaxDailyMove: 1.0}
}

// Issue is one finding of the gate
type Issue struct {
	Symbol  string    `json:"symbol"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	if i.Date.IsZero() {
		return fmt.Sprintf("%s: %s", i.Symbol, i.Message)
	}
	return fmt.Sprintf("%s %s: %s", i.Symbol, i.Date.Format(contracts.DateLayout), i.Message)
}

// Report is the result of a panel check
type Report struct {
	Symbols  int                       `json:"symbols"`
	Dates    int                       `json:"dates"`
	Coverage float64                   `json:"coverage"` // bars present / bars expected inside each symbol's span
	Errors   []Issue                   `json:"errors"`
	Warnings []Issue                   `json:"warnings"`
	Gaps     []*contracts.DataGapError `json:"gaps"`
	strict   bool
}

// OK reports whether the panel passed
func (r *Report) OK() bool {
	return r.Err() == nil
}

// Err joins every blocking finding. Gaps block only in strict mode.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Errors)+len(r.Gaps))
	for _, issue := range r.Errors {
		errs = append(errs, errors.New(issue.String()))
	}
	if r.strict {
		for _, gap := range r.Gaps {
			errs = append(errs, gap)
		}
	}
	return errors.Join(errs...)
}

// QualityGate validates a price panel before it reaches the signal builder
// ⭐ SSOT: S0 → S2 품질 검증
type QualityGate struct {
	config Config
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check validates every symbol of the panel
func (g *QualityGate) Check(panel *contracts.PricePanel) *Report {
	report := &Report{
		Symbols:  len(panel.Symbols()),
		Dates:    panel.Len(),
		Errors:   make([]Issue, 0),
		Warnings: make([]Issue, 0),
		Gaps:     make([]*contracts.DataGapError, 0),
		strict:   g.config.Strict,
	}

	var present, expected int
	for _, symbol := range panel.Symbols() {
		p, e := g.checkSymbol(panel, symbol, report)
		present += p
		expected += e
	}
	if expected > 0 {
		report.Coverage = float64(present) / float64(expected)
	}

	return report
}

// checkSymbol records the symbol's findings and returns its bar coverage counts
func (g *QualityGate) checkSymbol(panel *contracts.PricePanel, symbol string, report *Report) (int, int) {
	first, last := -1, -1
	var prev contracts.Bar
	var prevDate time.Time
	present := 0

	for i := 0; i < panel.Len(); i++ {
		bar, ok := panel.Bar(i, symbol)
		if !ok {
			continue
		}
		date := panel.Date(i)
		present++
		if first < 0 {
			first = i
		}
		last = i

		// 1. 가격 유효성
		if bar.Close <= 0 {
			report.Errors = append(report.Errors, Issue{symbol, date, "non-positive close"})
		}
		if bar.High < bar.Low {
			report.Errors = append(report.Errors, Issue{symbol, date, "high below low"})
		}

		if !prevDate.IsZero() {
			// 2. 결측 구간
			if missing := businessDaysBetween(prevDate, date); missing > g.config.MaxGapDays {
				report.Gaps = append(report.Gaps, &contracts.DataGapError{
					Symbol: symbol,
					From:   prevDate,
					To:     date,
					Days:   missing,
				})
			}

			// 3. 급등락
			if prev.Close > 0 && g.config.MaxDailyMove > 0 {
				if move := math.Abs(bar.Close/prev.Close - 1); move > g.config.MaxDailyMove {
					report.Warnings = append(report.Warnings, Issue{
						Symbol:  symbol,
						Date:    date,
						Message: fmt.Sprintf("daily move %.0f%% exceeds %.0f%%", move*100, g.config.MaxDailyMove*100),
					})
				}
			}
		}

		prev, prevDate = bar, date
	}

	if first < 0 {
		report.Warnings = append(report.Warnings, Issue{Symbol: symbol, Message: "no bars"})
		return 0, 0
	}
	return present, last - first + 1
}

// businessDaysBetween counts weekdays strictly between two dates
func businessDaysBetween(from, to time.Time) int {
	n := 0
	for d := from.AddDate(0, 0, 1); d.Before(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n++
		}
	}
	return n
}
