package contracts

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTradeRecord_CashFlow(t *testing.T) {
	buy := TradeRecord{Side: SideBuy, Shares: 10, FillPrice: 5, SlippageCost: 0.1}
	sell := TradeRecord{Side: SideSell, Shares: 10, FillPrice: 5, SlippageCost: 0.1}

	if got := buy.CashFlow(); math.Abs(got+50.1) > 1e-9 {
		t.Errorf("buy CashFlow() = %v, want -50.1", got)
	}
	if got := sell.CashFlow(); math.Abs(got-49.9) > 1e-9 {
		t.Errorf("sell CashFlow() = %v, want 49.9", got)
	}
}

func TestPosition_UnrealizedReturn(t *testing.T) {
	p := &Position{Shares: 2, EntryPrice: 10, LastPrice: 12}
	if got := p.UnrealizedReturn(12); got < 0.1999 || got > 0.2001 {
		t.Errorf("UnrealizedReturn() = %v", got)
	}
	if got := p.UnrealizedPnL(); got != 4 {
		t.Errorf("UnrealizedPnL() = %v", got)
	}
}

func TestErrorKinds_Unwrap(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"gap", &DataGapError{Symbol: "A", From: date, To: date, Days: 5}, ErrDataGap},
		{"rank", &DuplicateRankError{Date: date, Symbol: "A", Rank: 1}, ErrDuplicateRank},
		{"stale", &StalePriceWarning{Date: date, Symbol: "A"}, ErrStalePrice},
		{"equity", &ZeroOrNegativeEquityError{Date: date}, ErrNonPositiveEquity},
		{"history", &InsufficientHistoryError{Symbol: "A", Date: date}, ErrInsufficientHistory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v) = false", tt.err)
			}
		})
	}
}
