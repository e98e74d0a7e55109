package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/momentum-lab/pkg/config"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	url := os.Getenv("DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	return config.DatabaseConfig{
		URL:             url,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(ctx))
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	status := db.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.GreaterOrEqual(t, status.TotalConns, int32(1))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{URL: "::not a url::"})
	assert.Error(t, err)
}
