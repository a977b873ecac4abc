package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/backorder-board/completion"
	"github.com/warp/backorder-board/config"
	"github.com/warp/backorder-board/logger"
	"github.com/warp/backorder-board/store/daylog"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd runs serve when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Pending-fulfillment dashboard for backordered pharmacy items.",
	Long: `board polls the ERP for orders waiting on product, groups them by product,
and records which client/product pairs staff have resolved.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./board.yaml or $HOME/board.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "", "override log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, rebuildCmd, datesCmd)
}

// loadEnv reads configuration and builds the logger.
func loadEnv() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newTracker wires the file stores and an unloaded tracker.
func newTracker(cfg *config.Config, log *zap.Logger) (*daylog.Store, *completion.Tracker) {
	logs := daylog.New(cfg.Data.Dir, log)
	tcfg := cfg.Tracking.TrackerConfig()
	tcfg.Logger = log
	return logs, completion.NewTracker(logs, daylog.NewSnapshotFile(cfg.Data.Dir), tcfg)
}
