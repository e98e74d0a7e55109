package contracts

import "context"

// PriceStore supplies clean OHLC panels
// ⭐ SSOT: 가격 데이터 공급 인터페이스 (CSV, Postgres)
type PriceStore interface {
	// Symbols lists every symbol the store can serve
	Symbols(ctx context.Context) ([]string, error)

	// LoadPanel returns a chronologically sorted panel for the requested symbols
	LoadPanel(ctx context.Context, symbols []string) (*PricePanel, error)
}
