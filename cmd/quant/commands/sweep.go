package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/momentum-lab/internal/experiment"
	"github.com/wonny/momentum-lab/internal/report"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "파라미터 스윕 실험",
	Long: `여러 백테스트를 병렬로 실행하고 결과를 비교합니다.

Subcommands:
  grid        - 파라미터 격자 전체 조합
  montecarlo  - 시드 기반 무작위 설정과 유니버스 샘플
  churn       - baseline / hyst / hyst_pnl 비교

Example:
  go run ./cmd/quant sweep grid --strategy sweep.yaml
  go run ./cmd/quant sweep montecarlo --runs 200 --seed 7
  go run ./cmd/quant sweep churn --workers 8`,
}

var (
	sweepGridCmd = &cobra.Command{
		Use:   "grid",
		Short: "격자 스윕 (experiment.grid)",
		RunE:  runSweep(experiment.ModeGrid),
	}

	sweepMonteCarloCmd = &cobra.Command{
		Use:   "montecarlo",
		Short: "몬테카를로 스윕 (experiment.monte_carlo)",
		RunE:  runSweep(experiment.ModeMonteCarlo),
	}

	sweepChurnCmd = &cobra.Command{
		Use:   "churn",
		Short: "회전율 비교 (experiment.churn)",
		RunE:  runSweep(experiment.ModeChurn),
	}

	// Flags
	sweepWorkers int
	sweepOut     string
	sweepRuns    int
	sweepSeed    int64
	sweepTopK    int
)

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.AddCommand(sweepGridCmd, sweepMonteCarloCmd, sweepChurnCmd)

	sweepCmd.PersistentFlags().IntVar(&sweepWorkers, "workers", 0, "병렬 워커 수 (기본: experiment.workers, 그 다음 SWEEP_WORKERS)")
	sweepCmd.PersistentFlags().StringVar(&sweepOut, "out", "", "출력 디렉토리 (기본: OUTPUT_DIR/sweeps/<mode>-<id>)")
	sweepCmd.PersistentFlags().IntVar(&sweepTopK, "top", 0, "출력할 상위 trial 수 (기본: experiment.top_k)")
	sweepMonteCarloCmd.Flags().IntVar(&sweepRuns, "runs", 0, "trial 수 (기본: experiment.monte_carlo.runs)")
	sweepMonteCarloCmd.Flags().Int64Var(&sweepSeed, "seed", 0, "시드 (기본: experiment.monte_carlo.seed)")
}

func runSweep(mode experiment.Mode) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		rt, err := setup()
		if err != nil {
			return err
		}
		PrintHeader(fmt.Sprintf("Parameter Sweep: %s", mode))

		panel, symbols, err := rt.loadPanel(ctx)
		if err != nil {
			return err
		}
		benchmark, err := rt.loadBenchmark()
		if err != nil {
			return fmt.Errorf("load benchmark: %w", err)
		}

		// 1. Trial 생성
		exp := rt.strategy.Experiment
		base := rt.runConfig(symbols)
		var trials []experiment.Trial
		switch mode {
		case experiment.ModeGrid:
			trials, err = exp.Grid.Trials(base)
		case experiment.ModeMonteCarlo:
			spec := exp.MonteCarlo
			if cmd.Flags().Changed("runs") {
				spec.Runs = sweepRuns
			}
			if cmd.Flags().Changed("seed") {
				spec.Seed = sweepSeed
			}
			trials, err = spec.Trials(base, symbols)
		case experiment.ModeChurn:
			trials = exp.Churn.Trials(base)
		}
		if err != nil {
			return err
		}

		workers := sweepWorkers
		if workers == 0 {
			workers = exp.Workers
		}
		if workers == 0 {
			workers = rt.cfg.Sweep.Workers
		}
		fmt.Printf("🚀 %d trials on %d workers\n", len(trials), workers)

		// 2. 병렬 실행
		runner := experiment.NewRunner(workers, rt.log)
		if rt.recorder != nil {
			runner.WithRecorder(rt.recorder)
		}
		rows, err := runner.Run(ctx, panel, benchmark, trials)
		if err != nil {
			return err
		}

		// 3. 저장
		dir := sweepOut
		if dir == "" {
			dir = filepath.Join(rt.cfg.Data.OutputDir, "sweeps", fmt.Sprintf("%s-%s", mode, uuid.NewString()[:8]))
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		topK := sweepTopK
		if topK == 0 {
			topK = exp.TopK
		}
		ranked := experiment.Summarize(rows, 0)
		if err := report.WriteSweepFile(filepath.Join(dir, "trials.csv"), rows); err != nil {
			return err
		}
		if err := report.WriteSweepFile(filepath.Join(dir, "ranked.csv"), ranked); err != nil {
			return err
		}
		for _, key := range exp.GroupBy {
			agg, err := experiment.Aggregate(rows, key)
			if err != nil {
				return err
			}
			if err := report.WriteAggregateFile(filepath.Join(dir, "by_"+key+".csv"), agg); err != nil {
				return err
			}
		}

		// 4. 요약
		failed := 0
		for _, r := range rows {
			if r.Status == experiment.StatusFailed {
				failed++
			}
		}
		if topK > 0 && len(ranked) > topK {
			ranked = ranked[:topK]
		}
		PrintSweepRows(ranked)
		if failed > 0 {
			PrintWarning(fmt.Sprintf("%d of %d trials failed (see trials.csv)", failed, len(rows)))
		}
		PrintSuccess(fmt.Sprintf("Sweep saved to %s (%.2fs)", dir, time.Since(start).Seconds()))
		return nil
	}
}
