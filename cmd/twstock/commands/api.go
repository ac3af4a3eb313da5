package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ycwu/twstock/backend/internal/api"
	"github.com/ycwu/twstock/backend/internal/api/handlers"
	"github.com/ycwu/twstock/backend/internal/scheduler"
	"github.com/ycwu/twstock/backend/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "啟動 API 伺服器",
	Long: `啟動看板後端的 REST API 伺服器。

Endpoints:
  GET  /health                    - Health check
  GET  /api/stock/search          - 搜尋股票
  GET  /api/stock/realtime        - 盤中即時報價
  GET  /api/stock/price           - K 線數據
  GET  /api/stock/indicators      - 技術指標
  GET  /api/stock/institutional   - 三大法人買賣超
  GET  /api/stock/holders         - 大戶持股比率
  POST /api/stock/screen          - 多條件選股掃描
  GET  /api/stock/export          - CSV 匯出
  GET  /api/stock/stream          - WebSocket 報價推播

Example:
  go run ./cmd/twstock api
  go run ./cmd/twstock api --port 5001`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 伺服器埠號（預設取環境變數 PORT）")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	if apiPort != "" {
		app.cfg.Port = apiPort
	}

	log := app.log
	log.WithFields(map[string]interface{}{
		"port": app.cfg.Port,
		"env":  app.cfg.Env,
	}).Info("Initializing API server")

	// Handlers
	h := api.Handlers{
		Stock:       handlers.NewStockHandler(app.roster, app.finmind, app.quotes, log),
		Chip:        handlers.NewChipHandler(app.finmind, app.yahoo, log),
		Fundamental: handlers.NewFundamentalHandler(app.finmind, log),
		Screen:      handlers.NewScreenHandler(app.screener, log),
		Export:      handlers.NewExportHandler(app.finmind, log),
		Stream:      api.NewStreamHandler(app.quotes, log),
	}

	router := api.NewRouter(h, log)
	server := api.New(app.cfg, log, router)

	// 開盤前更新股票清單
	sched := scheduler.New(taipeiLocation(), log)
	if err := sched.AddJob(jobs.NewRosterRefreshJob(app.roster, log)); err != nil {
		return fmt.Errorf("schedule roster refresh: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", app.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
