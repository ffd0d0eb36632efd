package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quadrant-tasks/quadrant/internal/daemon"
	"github.com/quadrant-tasks/quadrant/internal/schedule"
)

var scheduleCheckInterval time.Duration

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background flush and sync loops",
	Long: `Run the persistence engine in the foreground:

  1. Flushes dirty cache state to the database on an interval
  2. Syncs with the remote server (when configured) on an interval
  3. Spawns due recurring tasks

SIGINT/SIGTERM trigger a final flush and upload before exit.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		d, err := daemon.New(a.cache, a.syncer, &daemon.Config{
			FlushInterval: a.cfg.FlushInterval,
			SyncInterval:  a.cfg.SyncInterval,
			Logger:        newLogger(a.cfg, "[daemon] "),
		})
		if err != nil {
			fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scheduleLogger := newLogger(a.cfg, "[schedule] ")
		scheduler := schedule.NewScheduler(a.cache, a.store, scheduleLogger)
		go runScheduleChecks(ctx, scheduler, scheduleLogger)

		if err := d.Start(ctx); err != nil {
			fatalf("daemon failed: %v", err)
		}
	},
}

// runScheduleChecks fires due recurring tasks on an interval, including one
// check right at startup so tasks due while the daemon was down spawn
// immediately.
func runScheduleChecks(ctx context.Context, scheduler *schedule.Scheduler, logger *log.Logger) {
	check := func() {
		if _, err := scheduler.SpawnDue(time.Now()); err != nil {
			logger.Printf("Schedule check failed, retrying next tick: %v", err)
		}
	}
	check()

	ticker := time.NewTicker(scheduleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

func init() {
	daemonCmd.Flags().DurationVar(&scheduleCheckInterval, "schedule-check-interval",
		time.Minute, "how often to check for due recurring tasks")
	rootCmd.AddCommand(daemonCmd)
}
