package s2_signals

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/logger"
	"github.com/wonny/momentum-lab/pkg/redis"
)

// cachedTable is the cached payload of one build
type cachedTable struct {
	Table  *contracts.SignalTable `json:"table"`
	Report *BuildReport           `json:"report"`
}

// CachedBuilder memoizes signal tables in Redis keyed by configuration,
// rebalance dates and panel fingerprint. A disabled cache builds every time.
type CachedBuilder struct {
	builder *Builder
	cache   *redis.Cache
	ttl     time.Duration
	logger  *logger.Logger
}

// NewCachedBuilder wraps a builder with a Redis cache
func NewCachedBuilder(builder *Builder, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedBuilder {
	return &CachedBuilder{
		builder: builder,
		cache:   cache,
		ttl:     ttl,
		logger:  log.Component("signal_cache"),
	}
}

// Build returns a cached table when present, otherwise builds and stores it
func (c *CachedBuilder) Build(ctx context.Context, panel *contracts.PricePanel, dates []time.Time) (*contracts.SignalTable, *BuildReport, error) {
	key, err := c.key(panel, dates)
	if err != nil {
		return nil, nil, err
	}

	var hit cachedTable
	found, err := c.cache.Get(ctx, key, &hit)
	if err != nil {
		c.logger.WithError(err).Warn("Signal cache read failed, rebuilding")
	}
	if found && hit.Table != nil {
		c.logger.Debugf("Signal cache hit %s (%d rows)", key, len(hit.Table.Rows))
		return hit.Table, hit.Report, nil
	}

	table, report, err := c.builder.Build(ctx, panel, dates)
	if err != nil {
		return nil, nil, err
	}

	if err := c.cache.Set(ctx, key, cachedTable{Table: table, Report: report}, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Signal cache write failed")
	}

	return table, report, nil
}

func (c *CachedBuilder) key(panel *contracts.PricePanel, dates []time.Time) (string, error) {
	payload, err := json.Marshal(struct {
		Config  Config      `json:"config"`
		Symbols []string    `json:"symbols"`
		Dates   []time.Time `json:"dates"`
	}{c.builder.Config(), panel.Symbols(), dates})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return redis.SignalTableKey(hex.EncodeToString(sum[:16]), panel.Fingerprint()), nil
}
