package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum-lab/internal/report"
	"github.com/wonny/momentum-lab/internal/s0_data/quality"
	"github.com/wonny/momentum-lab/internal/s2_signals"
	"github.com/wonny/momentum-lab/internal/strategyconfig"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "입력 데이터 검증",
	Long: `가격 패널, 시그널 테이블, 전략 설정을 검증합니다.

Subcommands:
  prices   - 가격 패널 품질 검사 (결측 구간, 비정상 가격)
  signals  - 시그널 테이블 랭크 검증
  config   - 전략 YAML 검증

Example:
  go run ./cmd/quant validate prices --strict
  go run ./cmd/quant validate signals data/backtests/signals/latest.csv
  go run ./cmd/quant validate config strategy.yaml`,
}

var (
	validatePricesCmd = &cobra.Command{
		Use:   "prices",
		Short: "가격 패널 품질 검사",
		RunE:  runValidatePrices,
	}

	validateSignalsCmd = &cobra.Command{
		Use:   "signals [file]",
		Short: "시그널 테이블 검증",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidateSignals,
	}

	validateConfigCmd = &cobra.Command{
		Use:   "config [file]",
		Short: "전략 YAML 검증",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidateConfig,
	}

	// Flags
	validateStrict   bool
	validateMaxGap   int
	validateMaxMove  float64
	validateDepth    int
	validateMaxLines int
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.AddCommand(validatePricesCmd, validateSignalsCmd, validateConfigCmd)

	defaults := quality.DefaultConfig()
	validatePricesCmd.Flags().BoolVar(&validateStrict, "strict", false, "결측 구간을 오류로 처리")
	validatePricesCmd.Flags().IntVar(&validateMaxGap, "max-gap", defaults.MaxGapDays, "허용 결측 거래일 수")
	validatePricesCmd.Flags().Float64Var(&validateMaxMove, "max-move", defaults.MaxDailyMove, "일간 변동 경고 임계값")
	validateSignalsCmd.Flags().IntVar(&validateDepth, "depth", 0, "날짜별 최대 랭크 (0 = 제한 없음)")
	validateCmd.PersistentFlags().IntVar(&validateMaxLines, "max-lines", 20, "출력할 최대 항목 수")
}

func runValidatePrices(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	PrintHeader("Price Quality Gate")

	panel, _, err := rt.loadPanel(cmd.Context())
	if err != nil {
		return err
	}

	gate := quality.NewQualityGate(quality.Config{
		MaxGapDays:   validateMaxGap,
		MaxDailyMove: validateMaxMove,
		Strict:       validateStrict,
	})
	result := gate.Check(panel)

	PrintKeyValues([][2]string{
		{"Symbols", fmt.Sprintf("%d", result.Symbols)},
		{"Dates", fmt.Sprintf("%d", result.Dates)},
		{"Coverage", pct(result.Coverage)},
		{"Errors", fmt.Sprintf("%d", len(result.Errors))},
		{"Gaps", fmt.Sprintf("%d", len(result.Gaps))},
		{"Warnings", fmt.Sprintf("%d", len(result.Warnings))},
	})
	for i, issue := range result.Errors {
		if i == validateMaxLines {
			break
		}
		PrintError(issue.String())
	}
	for i, gap := range result.Gaps {
		if i == validateMaxLines {
			break
		}
		PrintWarning(gap.Error())
	}
	for i, issue := range result.Warnings {
		if i == validateMaxLines {
			break
		}
		PrintWarning(issue.String())
	}

	if err := result.Err(); err != nil {
		return fmt.Errorf("price panel rejected: %d blocking issues", len(result.Errors)+gapCount(result))
	}
	PrintSuccess("Price panel passed")
	return nil
}

func gapCount(r *quality.Report) int {
	if validateStrict {
		return len(r.Gaps)
	}
	return 0
}

func runValidateSignals(cmd *cobra.Command, args []string) error {
	PrintHeader("Signal Table Check")

	table, err := report.ReadSignalsFile(args[0])
	if err != nil {
		return err
	}

	warnings, err := s2_signals.ValidateTable(table, validateDepth)
	PrintKeyValues([][2]string{
		{"File", args[0]},
		{"Rows", fmt.Sprintf("%d", len(table.Rows))},
		{"Horizons", fmt.Sprintf("%v", table.Horizons)},
		{"Warnings", fmt.Sprintf("%d", len(warnings))},
	})
	for i, w := range warnings {
		if i == validateMaxLines {
			break
		}
		PrintWarning(fmt.Sprintf("%s %s: %s", w.Date.Format("2006-01-02"), w.Symbol, w.Message))
	}
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess("Signal table is valid")
	return nil
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	PrintHeader("Strategy Config Check")

	cfg, _, err := strategyconfig.Load(args[0])
	if err != nil {
		PrintError(err.Error())
		return err
	}
	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return err
	}

	PrintKeyValues([][2]string{
		{"Strategy", cfg.Meta.StrategyID},
		{"Hash", hash},
		{"Lookbacks", fmt.Sprintf("%v", cfg.Signals.LookbacksMonths)},
		{"Top N / Buffer", fmt.Sprintf("%d / %d", cfg.Portfolio.TopN, cfg.Portfolio.ExitBuffer)},
		{"Scenario", cfg.RiskOverlay.Scenario},
	})
	for _, w := range strategyconfig.Warn(cfg) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	PrintSuccess("Strategy config is valid")
	return nil
}
