package contracts

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDataGap             = errors.New("data gap in price panel")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrDuplicateRank       = errors.New("malformed signal table")
	ErrStalePrice          = errors.New("stale price")
	ErrNonPositiveEquity   = errors.New("equity reached zero or below")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrEmptyPanel          = errors.New("empty price panel")
	ErrNoSignals           = errors.New("signal table has no rebalance dates")
	ErrOffCalendarSignal   = errors.New("signal date is not a trading date")
)

// DataGapError reports missing trading days inside a symbol's span
type DataGapError struct {
	Symbol string
	From   time.Time
	To     time.Time
	Days   int
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("%s: %d day gap between %s and %s",
		e.Symbol, e.Days, e.From.Format(DateLayout), e.To.Format(DateLayout))
}

func (e *DataGapError) Unwrap() error { return ErrDataGap }

// InsufficientHistoryError is raised per symbol-date and absorbed by exclusion
type InsufficientHistoryError struct {
	Symbol  string
	Date    time.Time
	Horizon Horizon
	Have    int
	Need    int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s on %s: %dm horizon needs %d days, have %d",
		e.Symbol, e.Date.Format(DateLayout), int(e.Horizon), e.Need, e.Have)
}

func (e *InsufficientHistoryError) Unwrap() error { return ErrInsufficientHistory }

// DuplicateRankError reports a malformed ranking for a date
type DuplicateRankError struct {
	Date   time.Time
	Symbol string
	Rank   int
	Reason string
}

func (e *DuplicateRankError) Error() string {
	return fmt.Sprintf("%s: rank %d symbol %s: %s", e.Date.Format(DateLayout), e.Rank, e.Symbol, e.Reason)
}

func (e *DuplicateRankError) Unwrap() error { return ErrDuplicateRank }

// StalePriceWarning is emitted when a held symbol has no bar on a date
type StalePriceWarning struct {
	Date      time.Time `json:"date"`
	Symbol    string    `json:"symbol"`
	LastPrice float64   `json:"last_price"`
	LastDate  time.Time `json:"last_date"`
}

func (w *StalePriceWarning) Error() string {
	return fmt.Sprintf("%s on %s: using %.4f from %s",
		w.Symbol, w.Date.Format(DateLayout), w.LastPrice, w.LastDate.Format(DateLayout))
}

func (w *StalePriceWarning) Unwrap() error { return ErrStalePrice }

// ZeroOrNegativeEquityError halts a simulation
type ZeroOrNegativeEquityError struct {
	Date   time.Time
	Equity float64
}

func (e *ZeroOrNegativeEquityError) Error() string {
	return fmt.Sprintf("equity %.4f on %s", e.Equity, e.Date.Format(DateLayout))
}

func (e *ZeroOrNegativeEquityError) Unwrap() error { return ErrNonPositiveEquity }
