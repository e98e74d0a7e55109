package contracts

import "time"

// Side is the direction of a trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Position is a single holding inside PortfolioState
type Position struct {
	Symbol       string    `json:"symbol"`
	Shares       float64   `json:"shares"`
	EntryPrice   float64   `json:"entry_price"` // average cost per share, slippage included
	EntryDate    time.Time `json:"entry_date"`
	LastPrice    float64   `json:"last_price"`
	LastPriced   time.Time `json:"last_priced"`
	TargetWeight float64   `json:"target_weight"`
}

// MarketValue returns shares × last known price
func (p *Position) MarketValue() float64 {
	return p.Shares * p.LastPrice
}

// UnrealizedPnL returns the running unrealized P&L against entry cost
func (p *Position) UnrealizedPnL() float64 {
	return p.Shares * (p.LastPrice - p.EntryPrice)
}

// UnrealizedReturn returns price/entry - 1 at the given price
func (p *Position) UnrealizedReturn(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return price/p.EntryPrice - 1
}

// TradeRecord is an immutable trade log entry
type TradeRecord struct {
	Date         time.Time `json:"date"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Shares       float64   `json:"shares"`
	FillPrice    float64   `json:"fill_price"` // OHLC/4 before slippage
	SlippageCost float64   `json:"slippage_cost"`
}

// Notional returns shares × fill price
func (t TradeRecord) Notional() float64 {
	return t.Shares * t.FillPrice
}

// CashFlow returns the signed cash impact of the trade
func (t TradeRecord) CashFlow() float64 {
	if t.Side == SideBuy {
		return -(t.Notional() + t.SlippageCost)
	}
	return t.Notional() - t.SlippageCost
}

// EquityPoint is one daily observation of the equity curve
type EquityPoint struct {
	Date     time.Time `json:"date"`
	Equity   float64   `json:"equity"`
	Exposure float64   `json:"exposure_fraction"`
	Drawdown float64   `json:"drawdown"` // 1 - equity/peak
}

// EntryOutcome records a new entry and its next-period return
type EntryOutcome struct {
	Date           time.Time `json:"date"`
	Symbol         string    `json:"symbol"`
	Rank           int       `json:"rank"`
	CompositeScore float64   `json:"composite_score"`
	EntryPrice     float64   `json:"entry_price"`
	ForwardReturn  float64   `json:"forward_return"`
	Resolved       bool      `json:"resolved"`
}
