package jobs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/report"
	"github.com/wonny/momentum-lab/internal/s0_data"
	"github.com/wonny/momentum-lab/internal/strategyconfig"
	"github.com/wonny/momentum-lab/pkg/config"
	"github.com/wonny/momentum-lab/pkg/logger"
)

// SignalRefreshJob rebuilds the signal table from the configured price store
// ⭐ SSOT: 정기 시그널 갱신은 이 Job에서만
type SignalRefreshJob struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	engine   *backtest.Engine
	logger   *logger.Logger
}

// NewSignalRefreshJob creates a new signal refresh job
func NewSignalRefreshJob(cfg *config.Config, strategy *strategyconfig.Config, engine *backtest.Engine, log *logger.Logger) *SignalRefreshJob {
	return &SignalRefreshJob{
		cfg:      cfg,
		strategy: strategy,
		engine:   engine,
		logger:   log.Component("signal_refresh"),
	}
}

// Name returns the job name
func (j *SignalRefreshJob) Name() string {
	return "signal_refresh"
}

// Schedule returns the cron schedule (SIGNAL_REFRESH_SCHEDULE, default Saturday 06:00)
func (j *SignalRefreshJob) Schedule() string {
	return j.cfg.SignalRefreshSchedule
}

// Path returns where the latest table is written
func (j *SignalRefreshJob) Path() string {
	return filepath.Join(j.cfg.Data.OutputDir, "signals", "latest.csv")
}

// Run loads the universe panel, builds the signal table and writes it
func (j *SignalRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled signal refresh")

	// 1. 가격 패널 로드
	store, release, err := s0_data.OpenStore(ctx, j.cfg, j.logger)
	if err != nil {
		return fmt.Errorf("open price store: %w", err)
	}
	defer release()

	universePath := j.strategy.Universe.File
	if universePath == "" {
		universePath = j.cfg.Data.UniversePath
	}
	panel, symbols, err := s0_data.LoadUniversePanel(ctx, store, universePath)
	if err != nil {
		return err
	}

	run := j.strategy.RunConfig()
	if size := j.strategy.Universe.SampleSize; size > 0 {
		run.Universe = s0_data.SampleUniverse(symbols, size, j.strategy.Universe.Seed)
	}

	// 2. 시그널 생성
	table, buildReport, warnings, err := j.engine.Signals(ctx, panel, run)
	if err != nil {
		return err
	}

	// 3. 저장
	if err := report.WriteSignalsFile(j.Path(), table); err != nil {
		return fmt.Errorf("write signals: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"symbols":      len(symbols),
		"rows":         len(table.Rows),
		"signal_dates": buildReport.SignalDates,
		"warnings":     len(warnings),
		"path":         j.Path(),
	}).Info("Signal table refreshed")

	return nil
}
