package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum-lab/internal/s0_data"
	"github.com/wonny/momentum-lab/pkg/database"
)

// dataCmd represents the data command
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "가격 데이터 관리",
	Long: `가격 저장소 간 데이터를 옮깁니다.

Subcommands:
  import  - DATA_DIR의 CSV 가격 파일을 Postgres(data.daily_prices)로 복사

Example:
  go run ./cmd/quant data import
  go run ./cmd/quant data import --symbols INFY,TCS`,
}

var (
	dataImportCmd = &cobra.Command{
		Use:   "import",
		Short: "CSV → Postgres 가격 복사",
		Long: `DATA_DIR의 <SYMBOL>_<freq>.csv 파일을 읽어 data.daily_prices에 upsert 합니다.

DATABASE_URL이 필요하며 테이블이 없으면 생성합니다.
이후 PRICE_SOURCE=postgres 로 같은 패널을 읽을 수 있습니다.`,
		RunE: runDataImport,
	}

	dataSymbols []string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataImportCmd)

	dataImportCmd.Flags().StringSliceVar(&dataSymbols, "symbols", nil, "복사할 종목 (기본: DATA_DIR 전체)")
}

func runDataImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	rt, err := setup()
	if err != nil {
		return err
	}
	if rt.cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for data import")
	}
	PrintHeader("CSV → Postgres Import")

	db, err := database.New(ctx, rt.cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	dst := s0_data.NewPostgresStore(db.Pool, rt.log)
	if err := dst.EnsureSchema(ctx); err != nil {
		return err
	}
	src := s0_data.NewCSVStore(rt.cfg.Data.Dir, rt.cfg.Data.Frequency, rt.log)

	report, err := s0_data.ImportCSV(ctx, src, dst, dataSymbols, rt.log)
	if err != nil {
		return err
	}

	PrintKeyValues([][2]string{
		{"Source", rt.cfg.Data.Dir},
		{"Symbols", fmt.Sprintf("%d", report.Symbols)},
		{"Bars", fmt.Sprintf("%d", report.Bars)},
		{"Missing", fmt.Sprintf("%d", len(report.Missing))},
		{"Empty", fmt.Sprintf("%d", len(report.Empty))},
		{"Failed", fmt.Sprintf("%d", len(report.Failed))},
	})
	if len(report.Failed) > 0 {
		PrintError(fmt.Sprintf("%d symbols failed, last error: %s", len(report.Failed), report.LastErr))
		return fmt.Errorf("import incomplete: %d symbols failed", len(report.Failed))
	}

	PrintSuccess(fmt.Sprintf("Imported %d bars in %.2fs", report.Bars, time.Since(start).Seconds()))
	return nil
}
