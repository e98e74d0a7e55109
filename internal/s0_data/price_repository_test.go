package s0_data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/config"
	"github.com/wonny/momentum-lab/pkg/database"
	"github.com/wonny/momentum-lab/pkg/logger"
)

func testStore(t *testing.T) *PostgresStore {
	url := os.Getenv("DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.New(ctx, config.DatabaseConfig{
		URL:             url,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store := NewPostgresStore(db.Pool, logger.Nop())
	require.NoError(t, store.EnsureSchema(ctx))

	cleanup := func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM data.daily_prices WHERE stock_code LIKE 'ZZT%'`)
	}
	cleanup()
	t.Cleanup(cleanup)
	return store
}

func dailyBar(date string, px float64) contracts.DatedBar {
	d, _ := time.Parse(contracts.DateLayout, date)
	return contracts.DatedBar{Date: d, Bar: contracts.Bar{Open: px - 1, High: px + 1, Low: px - 2, Close: px}}
}

func TestPostgresStore_SaveAndLoad(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBars(ctx, "ZZTA", []contracts.DatedBar{
		dailyBar("2024-01-02", 10),
		dailyBar("2024-01-03", 11),
	}))
	require.NoError(t, store.SaveBars(ctx, "ZZTB", []contracts.DatedBar{
		dailyBar("2024-01-03", 20),
	}))
	// upsert overwrites the existing row
	require.NoError(t, store.SaveBars(ctx, "ZZTA", []contracts.DatedBar{dailyBar("2024-01-03", 12)}))
	require.NoError(t, store.SaveBars(ctx, "ZZTA", nil))

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Subset(t, symbols, []string{"ZZTA", "ZZTB"})

	panel, err := store.LoadPanel(ctx, []string{"ZZTA", "ZZTB", "ZZTMISSING"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZTA", "ZZTB"}, panel.Symbols())
	require.Equal(t, 2, panel.Len())

	b, ok := panel.Bar(1, "ZZTA")
	require.True(t, ok)
	assert.Equal(t, 12.0, b.Close)
	assert.Equal(t, 10.0, b.Low)

	_, ok = panel.Bar(0, "ZZTB")
	assert.False(t, ok)

	_, err = store.LoadPanel(ctx, []string{"ZZTNONE"})
	assert.ErrorIs(t, err, contracts.ErrEmptyPanel)
}

func TestPostgresStore_ImportCSV(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ZZTC_day.csv"),
		"date,open,high,low,close\n2024-01-02,9,10,8,9.5\n2024-01-03,10,11,9,10.5\n")

	report, err := ImportCSV(ctx, NewCSVStore(dir, "day", logger.Nop()), store, nil, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Bars)

	panel, err := store.LoadPanel(ctx, []string{"ZZTC"})
	require.NoError(t, err)
	closes, _ := panel.Closes("ZZTC")
	assert.Equal(t, []float64{9.5, 10.5}, closes)
}
