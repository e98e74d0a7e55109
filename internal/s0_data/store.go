package s0_data

import (
	"context"
	"fmt"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/config"
	"github.com/wonny/momentum-lab/pkg/database"
	"github.com/wonny/momentum-lab/pkg/logger"
)

// OpenStore returns the PriceStore selected by PRICE_SOURCE and a release func
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (contracts.PriceStore, func(), error) {
	switch cfg.Data.Source {
	case "", "csv":
		return NewCSVStore(cfg.Data.Dir, cfg.Data.Frequency, log), func() {}, nil
	case "postgres":
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(db.Pool, log), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown price source %q", contracts.ErrInvalidConfig, cfg.Data.Source)
	}
}

// LoadUniversePanel loads the universe file's symbols (every store symbol when
// no universe path is set) and returns the panel
func LoadUniversePanel(ctx context.Context, store contracts.PriceStore, universePath string) (*contracts.PricePanel, []string, error) {
	var symbols []string
	if universePath != "" {
		list, err := LoadUniverse(universePath)
		if err != nil {
			return nil, nil, err
		}
		symbols = list
	} else {
		list, err := store.Symbols(ctx)
		if err != nil {
			return nil, nil, err
		}
		symbols = list
	}

	panel, err := store.LoadPanel(ctx, symbols)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load price panel: %w", err)
	}
	return panel, symbols, nil
}
