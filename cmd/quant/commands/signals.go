package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/internal/report"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "모멘텀 시그널 테이블",
	Long: `리밸런싱 날짜별 다중 기간 모멘텀 랭킹 테이블을 생성합니다.

Example:
  go run ./cmd/quant signals build
  go run ./cmd/quant signals build --out data/signals.csv`,
}

var (
	signalsBuildCmd = &cobra.Command{
		Use:   "build",
		Short: "시그널 테이블 생성",
		Long: `가격 패널을 로드하고 전략 설정으로 시그널 테이블을 생성합니다.

REDIS_ENABLED=true 이면 설정 해시와 패널 지문으로 캐시합니다.

Flags:
  --out     출력 CSV (기본: OUTPUT_DIR/signals/<config hash>.csv)`,
		RunE: runSignalsBuild,
	}

	signalsOut string
)

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.AddCommand(signalsBuildCmd)

	signalsBuildCmd.Flags().StringVar(&signalsOut, "out", "", "출력 CSV 경로")
}

func runSignalsBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	rt, err := setup()
	if err != nil {
		return err
	}
	PrintHeader("Signal Builder")

	panel, symbols, err := rt.loadPanel(ctx)
	if err != nil {
		return err
	}

	engine, release, err := rt.engine(ctx)
	if err != nil {
		return err
	}
	defer release()

	table, buildReport, warnings, err := engine.Signals(ctx, panel, rt.runConfig(symbols))
	if err != nil {
		return err
	}

	out := signalsOut
	if out == "" {
		out = filepath.Join(rt.cfg.Data.OutputDir, "signals", rt.hash[:12]+".csv")
	}
	if err := report.WriteSignalsFile(out, table); err != nil {
		return err
	}

	first, last := "-", "-"
	if len(table.Rows) > 0 {
		first = table.Rows[0].Date.Format(contracts.DateLayout)
		last = table.Rows[len(table.Rows)-1].Date.Format(contracts.DateLayout)
	}
	PrintKeyValues([][2]string{
		{"Config Hash", rt.hash[:12]},
		{"Symbols", fmt.Sprintf("%d", len(symbols))},
		{"Rebalance Dates", fmt.Sprintf("%d (%d with signals)", buildReport.RebalanceDates, buildReport.SignalDates)},
		{"Rows", fmt.Sprintf("%d", len(table.Rows))},
		{"Span", first + " ~ " + last},
		{"Rejections", fmt.Sprintf("%v", buildReport.Rejections)},
		{"Output", out},
	})
	for _, w := range warnings {
		PrintWarning(fmt.Sprintf("%s %s: %s", w.Date.Format(contracts.DateLayout), w.Symbol, w.Message))
	}
	PrintSuccess(fmt.Sprintf("Signals built in %.2fs", time.Since(start).Seconds()))
	return nil
}
