package rebalance

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// Config controls the rebalance cadence
type Config struct {
	// Anchor is the weekday a week's rebalance falls on or before
	Anchor time.Weekday `json:"anchor"`

	// EveryWeeks keeps every N-th weekly date, starting from the first
	EveryWeeks int `json:"every_weeks"`
}

// DefaultConfig returns the weekly Friday cadence
func DefaultConfig() Config {
	return Config{Anchor: time.Friday, EveryWeeks: 1}
}

// Validate checks the cadence parameters
func (c Config) Validate() error {
	if c.Anchor < time.Sunday || c.Anchor > time.Saturday {
		return fmt.Errorf("%w: anchor weekday out of range: %d", contracts.ErrInvalidConfig, c.Anchor)
	}
	if c.EveryWeeks < 1 || c.EveryWeeks > 12 {
		return fmt.Errorf("%w: every_weeks must be in [1, 12], got %d", contracts.ErrInvalidConfig, c.EveryWeeks)
	}
	return nil
}

type weekKey struct {
	year int
	week int
}

// Dates returns the ordered rebalance dates for a trading calendar.
//
// For every ISO week present in the calendar it picks the last trading date
// on or before that week's anchor day. Weeks whose only trading dates fall
// after the anchor produce no date. The input order does not matter.
func Dates(calendar []time.Time, cfg Config) []time.Time {
	if cfg.EveryWeeks < 1 {
		cfg.EveryWeeks = 1
	}

	best := make(map[weekKey]time.Time)
	for _, d := range calendar {
		if isoOffset(d.Weekday()) > isoOffset(cfg.Anchor) {
			continue
		}
		year, week := d.ISOWeek()
		key := weekKey{year, week}
		if cur, ok := best[key]; !ok || d.After(cur) {
			best[key] = d
		}
	}

	dates := make([]time.Time, 0, len(best))
	for _, d := range best {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if cfg.EveryWeeks == 1 {
		return dates
	}

	thinned := make([]time.Time, 0, len(dates)/cfg.EveryWeeks+1)
	for i := 0; i < len(dates); i += cfg.EveryWeeks {
		thinned = append(thinned, dates[i])
	}
	return thinned
}

// isoOffset maps a weekday to its position in an ISO week (Monday = 0)
func isoOffset(d time.Weekday) int {
	return (int(d) + 6) % 7
}
