package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/momentum-lab/internal/audit"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/rebalance"
	"github.com/wonny/momentum-lab/internal/s0_data/quality"
	"github.com/wonny/momentum-lab/internal/s2_signals"
	"github.com/wonny/momentum-lab/pkg/logger"
	"github.com/wonny/momentum-lab/pkg/metrics"
	"github.com/wonny/momentum-lab/pkg/redis"
)

// SignalSource builds a ranked signal table for the given rebalance dates
type SignalSource interface {
	Build(ctx context.Context, panel *contracts.PricePanel, dates []time.Time) (*contracts.SignalTable, *s2_signals.BuildReport, error)
}

// RunConfig is the full configuration of one backtest
type RunConfig struct {
	Signals   s2_signals.Config `json:"signals"`
	Rebalance rebalance.Config  `json:"rebalance"`
	Portfolio Config            `json:"portfolio"`
	Universe  []string          `json:"universe,omitempty"` // empty = every panel symbol
	Quality   *quality.Config   `json:"quality,omitempty"`  // nil = quality.DefaultConfig()
}

// Validate checks every part of the run configuration
func (c RunConfig) Validate() error {
	if err := c.Rebalance.Validate(); err != nil {
		return err
	}
	if err := c.Portfolio.Validate(); err != nil {
		return err
	}
	return c.SignalConfig().Validate()
}

// SignalConfig aligns the ranking depth with the portfolio's hysteresis band
func (c RunConfig) SignalConfig() s2_signals.Config {
	cfg := c.Signals
	cfg.TopN = c.Portfolio.TopN
	if c.Portfolio.ExitBuffer > cfg.ExtraDepth {
		cfg.ExtraDepth = c.Portfolio.ExitBuffer
	}
	return cfg
}

// RunOutput holds everything one backtest produced
type RunOutput struct {
	RunID         string                    `json:"run_id"`
	Config        RunConfig                 `json:"config"`
	Signals       *contracts.SignalTable    `json:"-"`
	Quality       *quality.Report           `json:"quality"`
	BuildReport   *s2_signals.BuildReport   `json:"build_report"`
	TableWarnings []s2_signals.TableWarning `json:"table_warnings"`
	Result        *Result                   `json:"-"`
	Metrics       *audit.Report             `json:"metrics"`
	Duration      time.Duration             `json:"duration"`
}

// Engine chains scheduling, signal construction, simulation and metrics
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	cache    *redis.Cache
	cacheTTL time.Duration
	recorder *metrics.Recorder
	logger   *logger.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log}
}

// WithSignalCache memoizes signal tables in Redis
func (e *Engine) WithSignalCache(cache *redis.Cache, ttl time.Duration) *Engine {
	e.cache = cache
	e.cacheTTL = ttl
	return e
}

// WithRecorder reports completed runs to Prometheus
func (e *Engine) WithRecorder(recorder *metrics.Recorder) *Engine {
	e.recorder = recorder
	return e
}

// Run executes one backtest. A fatal simulation error is returned together
// with the output built so far.
func (e *Engine) Run(ctx context.Context, panel *contracts.PricePanel, benchmark *contracts.Series, cfg RunConfig) (*RunOutput, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if panel == nil || panel.Len() == 0 {
		return nil, contracts.ErrEmptyPanel
	}

	startTime := time.Now()
	if len(cfg.Universe) > 0 {
		panel = panel.Restrict(cfg.Universe)
	}

	qreport, err := e.checkQuality(panel, cfg)
	if err != nil {
		return nil, err
	}

	table, report, warnings, err := e.buildSignals(ctx, panel, cfg)
	if err != nil {
		return nil, err
	}

	sim, err := NewSimulator(cfg.Portfolio, e.logger)
	if err != nil {
		return nil, err
	}

	out := &RunOutput{
		Config:        cfg,
		Quality:       qreport,
		Signals:       table,
		BuildReport:   report,
		TableWarnings: warnings,
	}

	result, simErr := sim.Run(ctx, Input{Panel: panel, Signals: table, Benchmark: benchmark})
	if result == nil {
		return nil, simErr
	}
	out.RunID = result.RunID
	out.Result = result

	out.Metrics, err = audit.Compute(audit.Input{
		InitialCapital: cfg.Portfolio.InitialCapital,
		EquityCurve:    result.EquityCurve,
		Trades:         result.Trades,
		Entries:        result.Entries,
		Benchmark:      benchmark,
	})
	if err != nil && !errors.Is(err, audit.ErrEmptyCurve) {
		return out, err
	}
	if out.Metrics != nil {
		marks := make(map[string]float64, len(result.FinalPositions))
		for _, p := range result.FinalPositions {
			marks[p.Symbol] = p.LastPrice
		}
		out.Metrics.Symbols = audit.SymbolAttribution(result.Trades, marks)
	}
	out.Duration = time.Since(startTime)

	fields := map[string]interface{}{
		"run_id":     out.RunID,
		"scenario":   cfg.Portfolio.Overlay.Scenario,
		"rebalances": result.RebalanceCount,
		"trades":     len(result.Trades),
		"data_gaps":  len(qreport.Gaps),
		"duration":   out.Duration.Seconds(),
	}
	if out.Metrics != nil {
		fields["cagr"] = fmt.Sprintf("%.2f%%", out.Metrics.CAGR*100)
		fields["max_drawdown"] = fmt.Sprintf("%.2f%%", out.Metrics.Drawdown.Depth*100)
		fields["sharpe"] = fmt.Sprintf("%.2f", out.Metrics.Sharpe)
		if e.recorder != nil {
			e.recorder.RecordBacktest(string(cfg.Portfolio.Overlay.Scenario), out.Metrics.CAGR)
		}
	}
	if simErr != nil {
		e.logger.WithFields(fields).WithError(simErr).Error("Backtest halted")
		return out, simErr
	}
	e.logger.WithFields(fields).Info("Backtest completed")

	return out, nil
}

// Signals builds and validates the signal table for the run's rebalance dates
// without simulating
func (e *Engine) Signals(ctx context.Context, panel *contracts.PricePanel, cfg RunConfig) (*contracts.SignalTable, *s2_signals.BuildReport, []s2_signals.TableWarning, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if panel == nil || panel.Len() == 0 {
		return nil, nil, nil, contracts.ErrEmptyPanel
	}
	if len(cfg.Universe) > 0 {
		panel = panel.Restrict(cfg.Universe)
	}
	if _, err := e.checkQuality(panel, cfg); err != nil {
		return nil, nil, nil, err
	}
	return e.buildSignals(ctx, panel, cfg)
}

// checkQuality runs the price quality gate before any signal is built.
// Findings are logged; only a strict gate rejects the panel.
func (e *Engine) checkQuality(panel *contracts.PricePanel, cfg RunConfig) (*quality.Report, error) {
	qcfg := quality.DefaultConfig()
	if cfg.Quality != nil {
		qcfg = *cfg.Quality
	}

	report := quality.NewQualityGate(qcfg).Check(panel)
	if len(report.Errors)+len(report.Gaps)+len(report.Warnings) > 0 {
		e.logger.WithFields(map[string]interface{}{
			"errors":   len(report.Errors),
			"gaps":     len(report.Gaps),
			"warnings": len(report.Warnings),
			"coverage": report.Coverage,
			"strict":   qcfg.Strict,
		}).Warn("Price panel quality issues")
	}

	if qcfg.Strict {
		if err := report.Err(); err != nil {
			return report, fmt.Errorf("price panel rejected: %w", err)
		}
	}
	return report, nil
}

func (e *Engine) buildSignals(ctx context.Context, panel *contracts.PricePanel, cfg RunConfig) (*contracts.SignalTable, *s2_signals.BuildReport, []s2_signals.TableWarning, error) {
	dates := rebalance.Dates(panel.Dates(), cfg.Rebalance)
	sigCfg := cfg.SignalConfig()

	builder, err := s2_signals.NewBuilder(sigCfg, e.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	var source SignalSource = builder
	if e.cache != nil && e.cache.Enabled() {
		source = s2_signals.NewCachedBuilder(builder, e.cache, e.cacheTTL, e.logger)
	}

	table, report, err := source.Build(ctx, panel, dates)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build signals: %w", err)
	}

	warnings, err := s2_signals.ValidateTable(table, sigCfg.Depth())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("signal table rejected: %w", err)
	}
	for _, w := range warnings {
		e.logger.WithFields(map[string]interface{}{
			"date":   w.Date.Format(contracts.DateLayout),
			"symbol": w.Symbol,
		}).Warn(w.Message)
	}
	return table, report, warnings, nil
}
