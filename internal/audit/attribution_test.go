package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/contracts"
)

func TestSymbolAttribution(t *testing.T) {
	trades := []contracts.TradeRecord{
		trade(0, "A", contracts.SideBuy, 10, 100),
		trade(5, "A", contracts.SideSell, 10, 110),
		trade(0, "B", contracts.SideBuy, 10, 50),
		trade(5, "B", contracts.SideSell, 5, 40),
	}

	rows := SymbolAttribution(trades, map[string]float64{"B": 45})
	require.Len(t, rows, 2)

	a := rows[0]
	assert.Equal(t, "A", a.Symbol)
	assert.Equal(t, 2, a.Trades)
	assert.InDelta(t, (1100-2.2)-(1000+2), a.RealizedPnL, 1e-9)
	assert.Zero(t, a.OpenShares)
	assert.Zero(t, a.UnrealizedPnL)

	b := rows[1]
	assert.Equal(t, "B", b.Symbol)
	basis := (500 + 1.0) / 2
	assert.InDelta(t, (200-0.4)-basis, b.RealizedPnL, 1e-9)
	assert.InDelta(t, 5, b.OpenShares, 1e-12)
	assert.InDelta(t, 5*45-basis, b.UnrealizedPnL, 1e-9)

	best, worst := BestWorst(rows, 1)
	assert.Equal(t, "A", best[0].Symbol)
	assert.Equal(t, "B", worst[0].Symbol)

	best, worst = BestWorst(rows, 5)
	require.Len(t, best, 1)
	require.Len(t, worst, 1)
	assert.Equal(t, "A", best[0].Symbol)
	assert.Equal(t, "B", worst[0].Symbol)
}

func TestBestWorst_Disjoint(t *testing.T) {
	rows := make([]SymbolPnL, 0, 5)
	for i, s := range []string{"A", "B", "C", "D", "E"} {
		rows = append(rows, SymbolPnL{Symbol: s, RealizedPnL: float64(50 - 10*i)})
	}

	tests := []struct {
		name      string
		rows      []SymbolPnL
		n         int
		wantBest  []string
		wantWorst []string
	}{
		{"within halves", rows, 2, []string{"A", "B"}, []string{"E", "D"}},
		{"odd count keeps middle in best", rows, 10, []string{"A", "B", "C"}, []string{"E", "D"}},
		{"single row", rows[:1], 3, []string{"A"}, nil},
		{"empty", nil, 3, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, worst := BestWorst(tt.rows, tt.n)
			assert.Equal(t, tt.wantBest, symbolsOf(best))
			assert.Equal(t, tt.wantWorst, symbolsOf(worst))
			for _, b := range best {
				assert.NotContains(t, symbolsOf(worst), b.Symbol)
			}
		})
	}
}

func symbolsOf(rows []SymbolPnL) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r.Symbol)
	}
	return out
}

func TestSymbolAttribution_WithoutMarks(t *testing.T) {
	rows := SymbolAttribution([]contracts.TradeRecord{trade(0, "A", contracts.SideBuy, 1, 10)}, nil)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].UnrealizedPnL)
	assert.InDelta(t, 1, rows[0].OpenShares, 1e-12)
}
