package quality

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/contracts"
)

func bar(d time.Time, close float64) contracts.DatedBar {
	return contracts.DatedBar{Date: d, Bar: contracts.Bar{Open: close, High: close, Low: close, Close: close}}
}

// weekdays returns n business days starting Monday 2024-01-01
func weekdays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

func TestQualityGate_CleanPanel(t *testing.T) {
	days := weekdays(20)
	series := map[string][]contracts.DatedBar{}
	for _, d := range days {
		series["A"] = append(series["A"], bar(d, 100))
		series["B"] = append(series["B"], bar(d, 50))
	}
	panel, err := contracts.NewPricePanel(series)
	require.NoError(t, err)

	report := NewQualityGate(DefaultConfig()).Check(panel)
	assert.True(t, report.OK())
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Gaps)
	assert.Equal(t, 2, report.Symbols)
	assert.Equal(t, 20, report.Dates)
	assert.InDelta(t, 1.0, report.Coverage, 1e-12)
}

func TestQualityGate_Findings(t *testing.T) {
	days := weekdays(20)
	series := map[string][]contracts.DatedBar{}
	for i, d := range days {
		series["FULL"] = append(series["FULL"], bar(d, 100))

		// GAPPY misses four business days in the middle
		if i < 5 || i > 8 {
			series["GAPPY"] = append(series["GAPPY"], bar(d, 100))
		}

		switch i {
		case 3:
			series["BAD"] = append(series["BAD"], bar(d, 0))
		case 4:
			series["BAD"] = append(series["BAD"], contracts.DatedBar{Date: d, Bar: contracts.Bar{Open: 10, High: 9, Low: 11, Close: 10}})
		case 5:
			series["BAD"] = append(series["BAD"], bar(d, 25))
		default:
			series["BAD"] = append(series["BAD"], bar(d, 10))
		}
	}
	panel, err := contracts.NewPricePanel(series)
	require.NoError(t, err)

	report := NewQualityGate(DefaultConfig()).Check(panel)

	require.Len(t, report.Errors, 2)
	assert.Equal(t, "BAD", report.Errors[0].Symbol)
	assert.Equal(t, "non-positive close", report.Errors[0].Message)
	assert.Equal(t, "high below low", report.Errors[1].Message)

	require.Len(t, report.Gaps, 1)
	gap := report.Gaps[0]
	assert.Equal(t, "GAPPY", gap.Symbol)
	assert.Equal(t, 4, gap.Days)
	assert.True(t, gap.From.Equal(days[4]))
	assert.True(t, gap.To.Equal(days[9]))
	assert.True(t, errors.Is(gap, contracts.ErrDataGap))

	// only 10 → 25 exceeds 100%; 0 → 10 has no base
	moves := 0
	for _, w := range report.Warnings {
		if w.Symbol == "BAD" {
			moves++
		}
	}
	assert.Equal(t, 1, moves)

	assert.False(t, report.OK())
	assert.Less(t, report.Coverage, 1.0)
}

func TestQualityGate_StrictGaps(t *testing.T) {
	days := weekdays(15)
	series := map[string][]contracts.DatedBar{
		"A": {bar(days[0], 10), bar(days[1], 10), bar(days[10], 10)},
	}
	panel, err := contracts.NewPricePanel(series)
	require.NoError(t, err)

	lenient := NewQualityGate(DefaultConfig()).Check(panel)
	assert.True(t, lenient.OK())
	assert.Len(t, lenient.Gaps, 1)

	cfg := DefaultConfig()
	cfg.Strict = true
	strict := NewQualityGate(cfg).Check(panel)
	assert.ErrorIs(t, strict.Err(), contracts.ErrDataGap)
}

func TestBusinessDaysBetween(t *testing.T) {
	fri := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, businessDaysBetween(fri, fri.AddDate(0, 0, 3)))
	assert.Equal(t, 1, businessDaysBetween(fri, fri.AddDate(0, 0, 4)))
	assert.Equal(t, 5, businessDaysBetween(fri, fri.AddDate(0, 0, 10)))
}
