package audit

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/contracts"
)

func replayPanel(t *testing.T, symbols []string, days int) *contracts.PricePanel {
	t.Helper()
	series := make(map[string][]contracts.DatedBar, len(symbols))
	for i, s := range symbols {
		for d := 0; d < days; d++ {
			p := 20 + 3.7*float64(i) + math.Sqrt(float64(i+2))*math.Sin(float64(d)/2+float64(i))
			series[s] = append(series[s], contracts.DatedBar{
				Date: day(d),
				Bar:  contracts.Bar{Open: p, High: p, Low: p, Close: p},
			})
		}
	}
	panel, err := contracts.NewPricePanel(series)
	require.NoError(t, err)
	return panel
}

func TestReplayEquity_CashAndMarks(t *testing.T) {
	panel := replayPanel(t, []string{"A"}, 3)
	buy := trade(0, "A", contracts.SideBuy, 10, 20)
	sell := trade(2, "A", contracts.SideSell, 4, 21)

	equity, err := ReplayEquity(1000, []contracts.TradeRecord{buy, sell}, panel, panel.Dates())
	require.NoError(t, err)
	require.Len(t, equity, 3)

	cash := 1000 + buy.CashFlow()
	for d := 0; d < 2; d++ {
		bar, ok := panel.Bar(d, "A")
		require.True(t, ok)
		assert.InDelta(t, cash+10*bar.Close, equity[d], 1e-9)
	}
	bar, _ := panel.Bar(2, "A")
	assert.InDelta(t, cash+sell.CashFlow()+6*bar.Close, equity[2], 1e-9)

	_, err = ReplayEquity(1000, nil, panel, []time.Time{day(10)})
	assert.Error(t, err)
}

func TestReplayEquity_StableAcrossRuns(t *testing.T) {
	symbols := make([]string, 0, 16)
	for i := 0; i < 16; i++ {
		symbols = append(symbols, fmt.Sprintf("S%02d", i))
	}
	panel := replayPanel(t, symbols, 10)

	trades := make([]contracts.TradeRecord, 0, len(symbols))
	for i, s := range symbols {
		bar, _ := panel.Bar(0, s)
		trades = append(trades, trade(0, s, contracts.SideBuy, 1000/3.0/float64(i+1), bar.FillPrice()))
	}

	want, err := ReplayEquity(1e6, trades, panel, panel.Dates())
	require.NoError(t, err)
	for run := 0; run < 30; run++ {
		got, err := ReplayEquity(1e6, trades, panel, panel.Dates())
		require.NoError(t, err)
		// exact comparison: the sum must not depend on map iteration order
		require.Equal(t, want, got, "run %d", run)
	}
}
