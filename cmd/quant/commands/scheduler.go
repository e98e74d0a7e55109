package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum-lab/internal/backtest"
	"github.com/wonny/momentum-lab/internal/scheduler"
	"github.com/wonny/momentum-lab/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 즉시 실행합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run signal_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- signal_refresh: SIGNAL_REFRESH_SCHEDULE (기본: 토요일 06:00, 시그널 테이블 갱신)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	PrintHeader("momentum-lab Scheduler")
	printJobs(sched)
	fmt.Println("Press Ctrl+C to stop")

	<-cmd.Context().Done()

	fmt.Println("Shutting down scheduler...")
	sched.Stop()

	for name, stat := range sched.GetJobStats() {
		fmt.Printf("📊 %s: %d runs, %d failures\n", name, stat.TotalRuns, stat.FailureCount)
	}
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJob(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempts: %s", jobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}

	PrintSuccess(fmt.Sprintf("%s completed in %.2fs", jobName, result.Duration.Seconds()))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	rows := make([][]string, 0)
	for _, name := range sched.GetAllJobs() {
		schedule := sched.GetJobStats()[name].Schedule
		next := "-"
		// cron이 다음 실행 시각을 계산할 시간을 줌
		for i := 0; i < 10; i++ {
			if t, err := sched.NextRun(name); err == nil && !t.IsZero() {
				next = t.Format("2006-01-02 15:04:05")
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		rows = append(rows, []string{name, schedule, next})
	}
	PrintTable([]string{"Job", "Schedule", "Next Run"}, rows)
}

func initScheduler() (*scheduler.Scheduler, error) {
	rt, err := setup()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(rt.log, scheduler.WithRetry(2, 5*time.Minute))

	engine := backtest.NewEngine(rt.log)
	if err := sched.AddJob(jobs.NewSignalRefreshJob(rt.cfg, rt.strategy, engine, rt.log)); err != nil {
		return nil, err
	}

	return sched, nil
}
