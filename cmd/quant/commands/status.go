package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum-lab/internal/report"
	"github.com/wonny/momentum-lab/internal/s0_data"
	"github.com/wonny/momentum-lab/pkg/database"
	"github.com/wonny/momentum-lab/pkg/redis"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "환경 상태 점검",
	Long: `가격 저장소, Postgres, Redis 연결과 최근 실행 결과를 점검합니다.

표시 정보:
- 가격 저장소 (csv | postgres)와 종목 수
- Postgres 연결 상태 (PRICE_SOURCE=postgres)
- Redis 연결 상태 (REDIS_ENABLED=true)
- OUTPUT_DIR의 최근 실행

Example:
  go run ./cmd/quant status`,
	RunE: runStatus,
}

var statusRecent int

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusRecent, "recent", 5, "표시할 최근 실행 수")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := setup()
	if err != nil {
		return err
	}
	PrintHeader("momentum-lab Status")

	pairs := [][2]string{
		{"Env", rt.cfg.Env},
		{"Strategy", fmt.Sprintf("%s (%s)", rt.strategy.Meta.StrategyID, rt.hash[:12])},
		{"Price Source", rt.cfg.Data.Source},
	}

	// 1. 가격 저장소
	store, release, err := s0_data.OpenStore(ctx, rt.cfg, rt.log)
	if err != nil {
		pairs = append(pairs, [2]string{"Symbols", "error: " + err.Error()})
	} else {
		symbols, err := store.Symbols(ctx)
		release()
		if err != nil {
			pairs = append(pairs, [2]string{"Symbols", "error: " + err.Error()})
		} else {
			pairs = append(pairs, [2]string{"Symbols", fmt.Sprintf("%d", len(symbols))})
		}
	}

	// 2. Postgres
	if rt.cfg.Data.Source == "postgres" {
		db, err := database.New(ctx, rt.cfg.Database)
		if err != nil {
			pairs = append(pairs, [2]string{"Postgres", "error: " + err.Error()})
		} else {
			health := db.HealthCheck(ctx)
			db.Close()
			if health.Healthy {
				pairs = append(pairs, [2]string{"Postgres", fmt.Sprintf("ok (%s, %d conns)", health.ResponseTime, health.TotalConns)})
			} else {
				pairs = append(pairs, [2]string{"Postgres", "error: " + health.Error})
			}
		}
	}

	// 3. Redis
	if rt.cfg.Redis.Enabled {
		client, err := redis.New(ctx, rt.cfg.Redis)
		if err != nil {
			pairs = append(pairs, [2]string{"Redis", "error: " + err.Error()})
		} else {
			client.Close()
			pairs = append(pairs, [2]string{"Redis", "ok"})
		}
	} else {
		pairs = append(pairs, [2]string{"Redis", "disabled"})
	}
	PrintKeyValues(pairs)

	// 4. 최근 실행
	runs, err := report.ListRuns(rt.cfg.Data.OutputDir)
	if err != nil {
		return err
	}
	if len(runs) > statusRecent {
		runs = runs[:statusRecent]
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{run.ID, run.Modified.Format("2006-01-02 15:04"), fmt.Sprintf("%d", len(run.Tables))})
	}
	fmt.Printf("Recent runs in %s\n", rt.cfg.Data.OutputDir)
	PrintTable([]string{"Run", "Modified", "Tables"}, rows)
	return nil
}
