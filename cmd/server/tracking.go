package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/backorder-board/completion"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-tracking",
	Short: "Rebuild the tracking index from the day-logs and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadEnv()
		if err != nil {
			return err
		}
		defer log.Sync()

		_, tracker := newTracker(cfg, log)
		if err := tracker.Rebuild(cmd.Context()); err != nil {
			return err
		}
		st := tracker.Status()
		fmt.Fprintf(cmd.OutOrStdout(), "tracking index rebuilt: %d keys (persisted: %t)\n", st.TrackingCount, st.PersistedToDisk)
		return nil
	},
}

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "Print the days that have completion records, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadEnv()
		if err != nil {
			return err
		}
		defer log.Sync()

		logs, _ := newTracker(cfg, log)
		svc := completion.NewService(logs, nil, nil, nil, log)
		dates, err := svc.AvailableDates(cmd.Context())
		if err != nil {
			return err
		}
		for _, d := range dates {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", d.Date, d.FormattedDate)
		}
		return nil
	},
}
