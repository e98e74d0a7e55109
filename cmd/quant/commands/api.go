package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/wonny/momentum-lab/internal/api"
	"github.com/wonny/momentum-lab/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `백테스트 결과 조회용 읽기 전용 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                  - Health check
  GET  /api/runs                - 실행 목록 (OUTPUT_DIR)
  GET  /api/runs/{id}/metrics   - 성과 지표
  GET  /api/runs/{id}/equity    - equity curve
  GET  /api/runs/{id}/trades    - 거래 로그
  GET  /metrics                 - Prometheus (METRICS_ENABLED)

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080 --rps 20`,
	RunE: runAPIServer,
}

var (
	apiPort string
	apiRPS  float64
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().Float64Var(&apiRPS, "rps", 50, "초당 요청 한도 (0 = 제한 없음)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Load config
	rt, err := setup()
	if err != nil {
		return err
	}
	if apiPort != "" {
		rt.cfg.Port = apiPort
	}
	log := rt.log

	// 2. Create router
	opts := api.RouterOptions{Recorder: rt.recorder}
	if apiRPS > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(apiRPS), int(apiRPS)+1)
	}
	runHandler := handlers.NewRunHandler(rt.cfg.Data.OutputDir, log)
	router := api.NewRouter(runHandler, log, opts)

	// 3. Create server
	server := api.New(rt.cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	PrintHeader("momentum-lab API Server")
	fmt.Printf("✅ Server running on http://localhost:%s (runs: %s)\n", rt.cfg.Port, rt.cfg.Data.OutputDir)
	fmt.Println("Press Ctrl+C to stop")

	// 4. Wait for interrupt signal
	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
