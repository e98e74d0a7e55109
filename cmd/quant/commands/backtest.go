package commands

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum-lab/internal/audit"
	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/experiment"
	"github.com/wonny/momentum-lab/internal/report"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스팅 프레임워크",
	Long: `과거 가격 패널로 주간 모멘텀 포트폴리오를 시뮬레이션합니다.

백테스팅은 다음을 산출합니다:
- equity curve, 거래 로그
- 수익률과 리스크 지표 (CAGR, Sharpe, MDD)
- 회전율과 비용
- 신규 편입 적중률

Example:
  go run ./cmd/quant backtest run --strategy strategy.yaml
  go run ./cmd/quant backtest run --top-n 20 --exit-buffer 10 --scenario cooldown`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `전략 설정으로 백테스트를 실행하고 결과 테이블을 OUTPUT_DIR/<run_id>에 저장합니다.

Flags (전략 YAML 값을 덮어씀):
  --top-n            보유 종목 수
  --exit-buffer      히스테리시스 버퍼
  --pnl-hold         수익 보유 임계값 (음수 = 사용 안 함)
  --scenario         baseline | cooldown | vol_trigger
  --skip-days        최근 제외 거래일 수
  --lookbacks        기간 (개월, 예: 12,6,3)
  --rebalance-weeks  리밸런싱 주기 (주)
  --slippage         슬리피지율
  --capital          초기 자본

Example:
  go run ./cmd/quant backtest run
  go run ./cmd/quant backtest run --lookbacks 6,3 --slippage 0.003`,
		RunE: runBacktest,
	}

	// Flags
	backtestTopN       int
	backtestBuffer     int
	backtestPnLHold    float64
	backtestScenario   string
	backtestSkipDays   int
	backtestLookbacks  []int
	backtestWeeks      int
	backtestSlippage   float64
	backtestCapital    float64
	backtestOut        string
	backtestSkipReplay bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	// Flags
	f := backtestRunCmd.Flags()
	f.IntVar(&backtestTopN, "top-n", 0, "보유 종목 수")
	f.IntVar(&backtestBuffer, "exit-buffer", 0, "히스테리시스 버퍼")
	f.Float64Var(&backtestPnLHold, "pnl-hold", -1, "수익 보유 임계값 (음수 = 사용 안 함)")
	f.StringVar(&backtestScenario, "scenario", "", "노출 시나리오")
	f.IntVar(&backtestSkipDays, "skip-days", 0, "최근 제외 거래일 수")
	f.IntSliceVar(&backtestLookbacks, "lookbacks", nil, "기간 (개월)")
	f.IntVar(&backtestWeeks, "rebalance-weeks", 0, "리밸런싱 주기 (주)")
	f.Float64Var(&backtestSlippage, "slippage", 0, "슬리피지율")
	f.Float64Var(&backtestCapital, "capital", 0, "초기 자본")
	f.StringVar(&backtestOut, "out", "", "출력 디렉토리 (기본: OUTPUT_DIR/<run_id>)")
	f.BoolVar(&backtestSkipReplay, "skip-replay", false, "거래 로그 재구성 검증 생략")
}

// applyBacktestFlags overrides run config values with the flags that were set
func applyBacktestFlags(cmd *cobra.Command, run *backtest.RunConfig) error {
	flags := cmd.Flags()
	if flags.Changed("top-n") {
		run.Portfolio.TopN = backtestTopN
	}
	if flags.Changed("exit-buffer") {
		run.Portfolio.ExitBuffer = backtestBuffer
	}
	if flags.Changed("pnl-hold") {
		if backtestPnLHold < 0 {
			run.Portfolio.PnLHoldThreshold = nil
		} else {
			v := backtestPnLHold
			run.Portfolio.PnLHoldThreshold = &v
		}
	}
	if flags.Changed("scenario") {
		run.Portfolio.Overlay.Scenario = backtest.Scenario(backtestScenario)
	}
	if flags.Changed("skip-days") {
		run.Signals.SkipDays = backtestSkipDays
	}
	if flags.Changed("lookbacks") {
		horizons, err := experiment.Horizons(backtestLookbacks)
		if err != nil {
			return err
		}
		run.Signals.Horizons = horizons
	}
	if flags.Changed("rebalance-weeks") {
		run.Rebalance.EveryWeeks = backtestWeeks
	}
	if flags.Changed("slippage") {
		run.Portfolio.Slippage = backtestSlippage
	}
	if flags.Changed("capital") {
		run.Portfolio.InitialCapital = backtestCapital
	}
	return run.Validate()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := setup()
	if err != nil {
		return err
	}
	PrintHeader("Momentum Backtest Engine")

	panel, symbols, err := rt.loadPanel(ctx)
	if err != nil {
		return err
	}
	benchmark, err := rt.loadBenchmark()
	if err != nil {
		return fmt.Errorf("load benchmark: %w", err)
	}

	run := rt.runConfig(symbols)
	if err := applyBacktestFlags(cmd, &run); err != nil {
		return err
	}

	engine, release, err := rt.engine(ctx)
	if err != nil {
		return err
	}
	defer release()

	fmt.Printf("🚀 Running %s (top_n=%d, exit_buffer=%d, lookbacks=%s)\n",
		run.Portfolio.Overlay.Scenario, run.Portfolio.TopN, run.Portfolio.ExitBuffer, experiment.LookbackKey(run.Signals.Horizons))

	out, runErr := engine.Run(ctx, panel, benchmark, run)
	if out == nil || out.Result == nil {
		return fmt.Errorf("backtest failed: %w", runErr)
	}

	dir := backtestOut
	if dir == "" {
		dir = filepath.Join(rt.cfg.Data.OutputDir, out.RunID)
	}
	if err := report.WriteRun(dir, out); err != nil {
		return err
	}

	if out.Metrics != nil {
		PrintMetrics(out.Metrics)
		best, worst := audit.BestWorst(out.Metrics.Symbols, 3)
		printAttribution("Top contributors", best)
		printAttribution("Bottom contributors", worst)
	}

	if !backtestSkipReplay {
		verifyReplay(out, panel)
	}
	for _, w := range out.Result.Warnings {
		PrintWarning(w.Error())
	}
	if q := out.Quality; q != nil && len(q.Gaps) > 0 {
		PrintWarning(fmt.Sprintf("%d price gaps in the panel (see config.json, strict with data_quality.strict)", len(q.Gaps)))
	}

	if runErr != nil {
		var equityErr *contracts.ZeroOrNegativeEquityError
		if errors.As(runErr, &equityErr) {
			PrintError(fmt.Sprintf("Halted on %s: equity %.2f", equityErr.Date.Format(contracts.DateLayout), equityErr.Equity))
		}
		return fmt.Errorf("backtest halted: %w", runErr)
	}

	PrintSuccess(fmt.Sprintf("Run %s saved to %s (%.2fs)", out.RunID, dir, out.Duration.Seconds()))
	return nil
}

// verifyReplay rebuilds final equity from the trade log and compares it to the curve
func verifyReplay(out *backtest.RunOutput, panel *contracts.PricePanel) {
	curve := out.Result.EquityCurve
	if len(curve) == 0 {
		return
	}
	dates := make([]time.Time, len(curve))
	for i, p := range curve {
		dates[i] = p.Date
	}

	replayed, err := audit.ReplayEquity(out.Config.Portfolio.InitialCapital, out.Result.Trades, panel, dates)
	if err != nil {
		PrintWarning(fmt.Sprintf("Replay failed: %v", err))
		return
	}

	final := curve[len(curve)-1].Equity
	diff := math.Abs(replayed[len(replayed)-1] - final)
	if diff > 1e-6*math.Max(1, math.Abs(final)) {
		PrintWarning(fmt.Sprintf("Replay mismatch: trade log gives %.4f, curve gives %.4f", replayed[len(replayed)-1], final))
		return
	}
	PrintSuccess("Trade log replay matches the equity curve")
}

func printAttribution(title string, rows []audit.SymbolPnL) {
	if len(rows) == 0 {
		return
	}
	fmt.Println(title)
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Symbol, fmt.Sprintf("%d", r.Trades), fmt.Sprintf("%.2f", r.Total())})
	}
	PrintTable([]string{"Symbol", "Trades", "P&L"}, out)
}
