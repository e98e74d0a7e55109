package experiment

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/logger"
	"github.com/wonny/momentum-lab/pkg/metrics"
)

// Trial statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Row is one trial's result. It carries its own configuration identity so a
// results table can be reordered freely.
type Row struct {
	TrialID        string  `json:"trial_id"`
	Mode           Mode    `json:"mode"`
	Label          string  `json:"label"`
	RunID          string  `json:"run_id"`
	Status         string  `json:"status"`
	Error          string  `json:"error,omitempty"`
	Lookbacks      string  `json:"lookbacks"`
	SkipDays       int     `json:"skip_days"`
	VolFloor       float64 `json:"vol_floor"`
	TopN           int     `json:"top_n"`
	ExitBuffer     int     `json:"exit_buffer"`
	PnLHold        string  `json:"pnl_hold"` // "none" when disabled
	Scenario       string  `json:"scenario"`
	RebalanceWeeks int     `json:"rebalance_weeks"`
	UniverseSize   int     `json:"universe_size"`
	UniverseSeed   int64   `json:"universe_seed"`
	DataGaps       int     `json:"data_gaps"`

	// 성과
	TotalReturn    float64 `json:"total_return"`
	CAGR           float64 `json:"cagr"`
	Volatility     float64 `json:"volatility"`
	Sharpe         float64 `json:"sharpe"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	Turnover       float64 `json:"turnover"`
	AvgTurnoverPct float64 `json:"avg_turnover_pct"`
	CostDrag       float64 `json:"cost_drag"`
	AvgHoldingDays float64 `json:"avg_holding_days"`
	HitRate        float64 `json:"hit_rate"`
	Trades         int     `json:"trades"`
	Rebalances     int     `json:"rebalances"`
	FinalEquity    float64 `json:"final_equity"`
	Seconds        float64 `json:"seconds"`
	RankCAGR       int     `json:"rank_cagr,omitempty"`
}

// Runner executes trials in parallel.
// Workers share only read-only inputs; every trial returns its own row.
// ⭐ SSOT: 파라미터 스윕 실행은 여기서만
type Runner struct {
	workers  int
	recorder *metrics.Recorder
	logger   *logger.Logger
}

// NewRunner creates a runner with the given concurrency (<= 0 uses GOMAXPROCS)
func NewRunner(workers int, log *logger.Logger) *Runner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{workers: workers, logger: log.Component("experiment")}
}

// WithRecorder reports trial outcomes to Prometheus
func (r *Runner) WithRecorder(recorder *metrics.Recorder) *Runner {
	r.recorder = recorder
	return r
}

// Run executes every trial against the shared panel. Row i belongs to
// trials[i]. A failed trial becomes a failed row; cancellation discards all
// rows and returns the context error.
func (r *Runner) Run(ctx context.Context, panel *contracts.PricePanel, benchmark *contracts.Series, trials []Trial) ([]Row, error) {
	if panel == nil || panel.Len() == 0 {
		return nil, contracts.ErrEmptyPanel
	}

	r.logger.WithFields(map[string]interface{}{
		"trials":  len(trials),
		"workers": r.workers,
	}).Info("Starting sweep")

	startTime := time.Now()
	rows := make([]Row, len(trials))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, trial := range trials {
		if gctx.Err() != nil {
			break
		}
		i, trial := i, trial
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = r.runTrial(gctx, panel, benchmark, trial)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, row := range rows {
		if row.Status == StatusFailed {
			failed++
		}
	}
	r.logger.WithFields(map[string]interface{}{
		"trials":   len(rows),
		"failed":   failed,
		"duration": time.Since(startTime).Seconds(),
	}).Info("Sweep completed")

	return rows, nil
}

// runTrial runs one backtest with a quiet engine
func (r *Runner) runTrial(ctx context.Context, panel *contracts.PricePanel, benchmark *contracts.Series, trial Trial) Row {
	startTime := time.Now()
	row := newRow(trial, panel)

	engine := backtest.NewEngine(logger.Nop())
	out, err := engine.Run(ctx, panel, benchmark, trial.Config)
	if out != nil {
		row.RunID = out.RunID
		if out.Quality != nil {
			row.DataGaps = len(out.Quality.Gaps)
		}
		if out.Result != nil {
			row.Trades = len(out.Result.Trades)
			row.Rebalances = out.Result.RebalanceCount
			row.FinalEquity = out.Result.FinalEquity()
		}
		if m := out.Metrics; m != nil {
			row.TotalReturn = m.TotalReturn
			row.CAGR = m.CAGR
			row.Volatility = m.Volatility
			row.Sharpe = m.Sharpe
			row.MaxDrawdown = m.Drawdown.Depth
			row.Turnover = m.Turnover
			row.AvgTurnoverPct = m.AvgTurnoverPct
			row.CostDrag = m.CostDrag
			row.AvgHoldingDays = m.AvgHoldingDays
			row.HitRate = m.HitRate
		}
	}
	row.Seconds = time.Since(startTime).Seconds()

	if err != nil {
		row.Status = StatusFailed
		row.Error = err.Error()
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"trial": trial.ID,
			"label": trial.Label,
		}).Warn("Trial failed")
	}
	if r.recorder != nil {
		r.recorder.RecordTrial(string(trial.Mode), row.Status, row.Seconds)
	}
	return row
}

func newRow(trial Trial, panel *contracts.PricePanel) Row {
	cfg := trial.Config
	pnl := "none"
	if cfg.Portfolio.PnLHoldThreshold != nil {
		pnl = formatFloat(*cfg.Portfolio.PnLHoldThreshold)
	}
	size := len(cfg.Universe)
	if size == 0 {
		size = len(panel.Symbols())
	}
	return Row{
		TrialID:        trial.ID,
		Mode:           trial.Mode,
		Label:          trial.Label,
		Status:         StatusOK,
		Lookbacks:      LookbackKey(cfg.Signals.Horizons),
		SkipDays:       cfg.Signals.SkipDays,
		VolFloor:       cfg.Signals.VolFloor,
		TopN:           cfg.Portfolio.TopN,
		ExitBuffer:     cfg.Portfolio.ExitBuffer,
		PnLHold:        pnl,
		Scenario:       string(cfg.Portfolio.Overlay.Scenario),
		RebalanceWeeks: cfg.Rebalance.EveryWeeks,
		UniverseSize:   size,
		UniverseSeed:   trial.UniverseSeed,
	}
}
