package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/logger"
)

// PostgresStore implements contracts.PriceStore over data.daily_prices
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgresStore creates a new price store
func NewPostgresStore(pool *pgxpool.Pool, log *logger.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: log.Component("postgres_store")}
}

// Symbols lists every symbol with at least one price row
func (s *PostgresStore) Symbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT stock_code
		FROM data.daily_prices
		ORDER BY stock_code
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	symbols := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		symbols = append(symbols, code)
	}
	return symbols, rows.Err()
}

// LoadPanel loads the OHLC history of the given symbols. A nil list loads every symbol.
func (s *PostgresStore) LoadPanel(ctx context.Context, symbols []string) (*contracts.PricePanel, error) {
	if symbols == nil {
		all, err := s.Symbols(ctx)
		if err != nil {
			return nil, err
		}
		symbols = all
	}

	query := `
		SELECT stock_code, trade_date, open_price, high_price, low_price, close_price
		FROM data.daily_prices
		WHERE stock_code = ANY($1)
		ORDER BY stock_code, trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	series := make(map[string][]contracts.DatedBar, len(symbols))
	for rows.Next() {
		var (
			code string
			date time.Time
			bar  contracts.Bar
		)
		if err := rows.Scan(&code, &date, &bar.Open, &bar.High, &bar.Low, &bar.Close); err != nil {
			return nil, err
		}
		series[code] = append(series[code], contracts.DatedBar{Date: contracts.NormalizeDate(date), Bar: bar})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(series) == 0 {
		return nil, contracts.ErrEmptyPanel
	}
	if missing := len(symbols) - len(series); missing > 0 {
		s.logger.Warnf("%d of %d symbols have no price data", missing, len(symbols))
	}

	return contracts.NewPricePanel(series)
}

// EnsureSchema creates data.daily_prices when it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS data`,
		`CREATE TABLE IF NOT EXISTS data.daily_prices (
			stock_code  VARCHAR(32)      NOT NULL,
			trade_date  DATE             NOT NULL,
			open_price  DOUBLE PRECISION NOT NULL,
			high_price  DOUBLE PRECISION NOT NULL,
			low_price   DOUBLE PRECISION NOT NULL,
			close_price DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (stock_code, trade_date)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create price schema: %w", err)
		}
	}
	return nil
}

// SaveBars upserts a symbol's bars in one batch
func (s *PostgresStore) SaveBars(ctx context.Context, symbol string, bars []contracts.DatedBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_prices (stock_code, trade_date, open_price, high_price, low_price, close_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (stock_code, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, symbol, b.Date, b.Open, b.High, b.Low, b.Close)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save %s prices: %w", symbol, err)
		}
	}
	return nil
}
