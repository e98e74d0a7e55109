package s2_signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/rebalance"
	"github.com/wonny/momentum-lab/pkg/config"
	"github.com/wonny/momentum-lab/pkg/logger"
	"github.com/wonny/momentum-lab/pkg/redis"
)

func TestCachedBuilder_DisabledCacheBuilds(t *testing.T) {
	client, err := redis.New(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	b, _ := NewBuilder(threeMonthConfig(), logger.Nop())
	cached := NewCachedBuilder(b, redis.NewCache(client, "test"), time.Hour, logger.Nop())

	panel := randomWalkPanel(t, 8, 150, 3)
	dates := rebalance.Dates(panel.Dates(), rebalance.DefaultConfig())

	got, report, err := cached.Build(context.Background(), panel, dates)
	require.NoError(t, err)
	want, _, _ := b.Build(context.Background(), panel, dates)

	assert.Equal(t, want, got)
	assert.Equal(t, len(dates), report.RebalanceDates)
}

func TestCachedBuilder_KeyDependsOnConfig(t *testing.T) {
	panel := randomWalkPanel(t, 4, 90, 5)
	dates := panel.Dates()

	a, _ := NewBuilder(threeMonthConfig(), logger.Nop())
	cfg := threeMonthConfig()
	cfg.SkipDays = 10
	b, _ := NewBuilder(cfg, logger.Nop())

	ka, err := (&CachedBuilder{builder: a}).key(panel, dates)
	require.NoError(t, err)
	kb, err := (&CachedBuilder{builder: b}).key(panel, dates)
	require.NoError(t, err)
	ka2, _ := (&CachedBuilder{builder: a}).key(panel, dates)

	assert.NotEqual(t, ka, kb)
	assert.Equal(t, ka, ka2)
}
