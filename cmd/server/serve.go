package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/backorder-board/api"
	"github.com/warp/backorder-board/completion"
	"github.com/warp/backorder-board/dashboard"
	"github.com/warp/backorder-board/orders"
	"github.com/warp/backorder-board/provider"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the refresh scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}
	defer log.Sync()

	logs, tracker := newTracker(cfg, log)
	if err := tracker.Load(cmd.Context()); err != nil {
		return err
	}

	// Source
	var source orders.Source
	mock := provider.NewMock(0)
	sqlSource, err := provider.NewSQL(cfg.Database.SQL(), log)
	if err != nil {
		log.Warn("database provider unavailable, serving mock data", zap.Error(err))
		source = mock
	} else {
		source = sqlSource
		defer sqlSource.Close()
	}

	metrics := dashboard.NewMetrics("board")
	board := dashboard.NewController(source, mock, tracker, dashboard.Options{
		MaxAge:  cfg.Refresh.MaxAge,
		Offline: cfg.App.OfflineMode,
		Logger:  log,
		Metrics: metrics,
	})
	svc := completion.NewService(logs, tracker, board, nil, log)

	scheduler := dashboard.NewScheduler(board, log)
	scheduler.Interval = cfg.Refresh.Interval
	scheduler.Enabled = cfg.Refresh.Enabled
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(api.NewHandler(board, svc, tracker), api.RouterOptions{
		Logger:         log,
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		Metrics:        metrics.Handler(),
	})

	server := &http.Server{
		Addr:         cfg.App.Listen,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.App.Listen),
			zap.String("data_dir", cfg.Data.Dir),
			zap.Bool("offline", cfg.App.OfflineMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}
