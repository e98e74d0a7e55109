package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/s0_data"
	"github.com/wonny/momentum-lab/internal/strategyconfig"
	"github.com/wonny/momentum-lab/pkg/config"
	"github.com/wonny/momentum-lab/pkg/logger"
	"github.com/wonny/momentum-lab/pkg/metrics"
	"github.com/wonny/momentum-lab/pkg/redis"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "momentum-lab - 주간 모멘텀 전략 백테스트 연구 도구",
	Long: `momentum-lab Unified CLI

일별 OHLC 패널에서 다중 기간 변동성 조정 모멘텀 시그널을 만들고,
주간 리밸런싱 포트폴리오를 시뮬레이션하고, 파라미터 스윕을 실행합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant signals build
  go run ./cmd/quant backtest run --strategy strategy.yaml
  go run ./cmd/quant sweep churn --workers 8
  go run ./cmd/quant validate prices
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: STRATEGY_PATH, then built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// runtime holds what every command needs
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	strategy *strategyconfig.Config
	hash     string
	recorder *metrics.Recorder
}

// setup loads env config, logger and the strategy file
func setup() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := strategyFile
	if path == "" {
		path = cfg.Data.StrategyPath
	}

	strategy := strategyconfig.Default()
	if path != "" {
		strategy, _, err = strategyconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load strategy %s: %w", path, err)
		}
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log, strategy: strategy, hash: hash}
	if cfg.MetricsEnabled {
		rt.recorder = metrics.New()
	}
	return rt, nil
}

// loadPanel opens the price store and loads the universe panel
func (rt *runtime) loadPanel(ctx context.Context) (*contracts.PricePanel, []string, error) {
	store, release, err := s0_data.OpenStore(ctx, rt.cfg, rt.log)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	universePath := rt.strategy.Universe.File
	if universePath == "" {
		universePath = rt.cfg.Data.UniversePath
	}
	panel, symbols, err := s0_data.LoadUniversePanel(ctx, store, universePath)
	if err != nil {
		return nil, nil, err
	}

	rt.log.WithFields(map[string]interface{}{
		"source":  rt.cfg.Data.Source,
		"symbols": len(panel.Symbols()),
		"dates":   panel.Len(),
	}).Info("Price panel loaded")
	return panel, symbols, nil
}

// loadBenchmark loads the benchmark series when one is configured
func (rt *runtime) loadBenchmark() (*contracts.Series, error) {
	path := rt.strategy.Universe.Benchmark
	if path == "" {
		path = rt.cfg.Data.BenchmarkPath
	}
	if path == "" {
		return nil, nil
	}
	return s0_data.LoadBenchmark(path)
}

// engine builds a backtest engine, with the Redis signal cache when enabled
func (rt *runtime) engine(ctx context.Context) (*backtest.Engine, func(), error) {
	engine := backtest.NewEngine(rt.log)
	if rt.recorder != nil {
		engine.WithRecorder(rt.recorder)
	}
	if !rt.cfg.Redis.Enabled {
		return engine, func() {}, nil
	}

	client, err := redis.New(ctx, rt.cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	engine.WithSignalCache(redis.NewCache(client, "momentum"), rt.cfg.Redis.TTL)
	return engine, func() { client.Close() }, nil
}

// runConfig applies the configured universe sample to the strategy's run config
func (rt *runtime) runConfig(symbols []string) backtest.RunConfig {
	run := rt.strategy.RunConfig()
	if size := rt.strategy.Universe.SampleSize; size > 0 {
		run.Universe = s0_data.SampleUniverse(symbols, size, rt.strategy.Universe.Seed)
	}
	return run
}
